// Copyright 2015 The go-probeum Authors
// This file is part of the go-probeum library.
//
// The go-probeum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-probeum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-probeum library. If not, see <http://www.gnu.org/licenses/>.

// Package adminhttp exposes the RPC fan-out coordinator (spec §4.6) over a
// small JSON HTTP surface — the "administrative RPC commands" the spec
// describes arriving from an originating caller, here an HTTP client
// instead of another in-process component.
package adminhttp

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"github.com/probeum/superfork/common"
	"github.com/probeum/superfork/rpcfanout"
)

// requestTimeout bounds how long an HTTP caller waits for the fan-out to
// complete before the coordinator's continuation is assumed lost.
const requestTimeout = 30 * time.Second

// Server is the admin HTTP surface. Handler returns an http.Handler ready
// to pass to http.ListenAndServe or a test httptest.Server.
type Server struct {
	coord   *rpcfanout.Coordinator
	nextRPC func() common.Nonce

	// OnStop, if set, runs once a TypeStop command completes — the real
	// effect of session_count reaching zero (§4.6), e.g. tearing the node
	// down. Runs in its own goroutine so it may itself close this Server's
	// http.Server without deadlocking the in-flight response.
	OnStop func()
}

// New returns a Server dispatching commands through coord. nextRPC mints a
// fresh rpc-nonce per request.
func New(coord *rpcfanout.Coordinator, nextRPC func() common.Nonce) *Server {
	return &Server{coord: coord, nextRPC: nextRPC}
}

// Handler builds the routed, CORS-wrapped http.Handler.
func (s *Server) Handler() http.Handler {
	r := httprouter.New()
	r.POST("/rpc/stop", s.handle(rpcfanout.TypeStop))
	r.POST("/rpc/fork-count", s.handle(rpcfanout.TypeGetForkCount))
	r.POST("/rpc/list-fork", s.handle(rpcfanout.TypeListFork))
	r.POST("/rpc/block-location", s.handle(rpcfanout.TypeGetBlockLocation))
	return cors.Default().Handler(r)
}

type resultJSON struct {
	Type          string   `json:"type"`
	ForkCount     int      `json:"forkCount,omitempty"`
	Forks         []string `json:"forks,omitempty"`
	BlockLocation string   `json:"blockLocation,omitempty"`
	TimedOut      bool     `json:"timedOut,omitempty"`
}

func (s *Server) handle(t rpcfanout.Type) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var body struct {
			Payload string `json:"payload"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		payload, _ := hex.DecodeString(body.Payload)

		req := rpcfanout.Request{Type: t, Nonce: s.nextRPC(), Payload: payload}

		done := make(chan rpcfanout.Result, 1)
		if err := s.coord.Dispatch(req, func(res rpcfanout.Result) { done <- res }); err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		select {
		case res := <-done:
			_ = json.NewEncoder(w).Encode(toJSON(res))
			if t == rpcfanout.TypeStop && s.OnStop != nil {
				go s.OnStop()
			}
		case <-time.After(requestTimeout):
			w.WriteHeader(http.StatusGatewayTimeout)
			_ = json.NewEncoder(w).Encode(resultJSON{Type: t.String(), TimedOut: true})
		}
	}
}

func toJSON(res rpcfanout.Result) resultJSON {
	out := resultJSON{Type: res.Type.String(), ForkCount: res.ForkCount}
	for _, f := range res.Forks {
		out.Forks = append(out.Forks, f.Hex())
	}
	if len(res.BlockLocation) > 0 {
		out.BlockLocation = hex.EncodeToString(res.BlockLocation)
	}
	return out
}
