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

package adminhttp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probeum/superfork/common"
	"github.com/probeum/superfork/rpcfanout"
)

func TestForkCountEndpointReturnsLocalContributionWithNoSubscribers(t *testing.T) {
	coord := rpcfanout.New(func(req rpcfanout.Request) rpcfanout.Result {
		return rpcfanout.Result{Type: req.Type, ForkCount: 3}
	}, func(common.Nonce, rpcfanout.Request) error { return nil })

	var n uint64
	srv := New(coord, func() common.Nonce { return common.Nonce(atomic.AddUint64(&n, 1)) })

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/rpc/fork-count", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	var got resultJSON
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, 3, got.ForkCount)
	assert.False(t, got.TimedOut)
}

func TestUnknownRouteIs404(t *testing.T) {
	coord := rpcfanout.New(func(req rpcfanout.Request) rpcfanout.Result {
		return rpcfanout.Result{Type: req.Type}
	}, func(common.Nonce, rpcfanout.Request) error { return nil })
	srv := New(coord, func() common.Nonce { return 1 })

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/rpc/does-not-exist", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
