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

package main

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/probeum/superfork/common"
	"github.com/probeum/superfork/config"
	"github.com/probeum/superfork/event"
	"github.com/probeum/superfork/internal/xlog"
	"github.com/probeum/superfork/ledger"
	"github.com/probeum/superfork/router"
	"github.com/probeum/superfork/rpcfanout"
	"github.com/probeum/superfork/rpcfanout/adminhttp"
	"github.com/probeum/superfork/tunnel"
	"github.com/probeum/superfork/vpeernet"
	"github.com/probeum/superfork/wire"
)

// wsUpgrader upgrades a Root node's incoming HTTP connections to WebSocket
// when cfg.Transport is config.TransportWebsocket; origin checking is left
// to whatever reverse proxy fronts the node; a standalone node accepts any
// origin.
var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// Node wires every core package into one running supernode, the way the
// teacher's node.Node assembles protocol managers and RPC services around
// a shared stack.
type Node struct {
	cfg config.Config
	log xlog.Logger

	router   *router.Router
	ledger   *ledger.Ledger
	cache    *vpeernet.PeerCache
	sessions *tunnel.SessionStore
	children *vpeernet.ChildSet
	upstream *tunnel.Tunnel // nil on a Root node until dialed

	dispatcher *vpeernet.Dispatcher
	heightGate *vpeernet.WatermarkGate // nil unless cfg.HeightGate is set
	coord      *rpcfanout.Coordinator
	rpcNonce   uint64

	adminSrv  *http.Server
	rootLn    net.Listener // set once ListenAndServeRoot binds a stream listener
	rootWSSrv *http.Server // set once ListenAndServeRoot binds a websocket listener

	stopOnce sync.Once
	done     chan struct{}
}

// New assembles a Node from cfg. It does not yet listen or dial; call
// ListenAndServeRoot/DialParent for that.
func New(cfg config.Config) (*Node, error) {
	n := &Node{
		cfg:      cfg,
		log:      xlog.New("pkg", "supernode", "role", string(cfg.Role)),
		router:   router.New(),
		ledger:   ledger.New(),
		cache:    vpeernet.NewPeerCache(),
		sessions: tunnel.NewSessionStore(),
		children: vpeernet.NewChildSet(),
		done:     make(chan struct{}),
	}
	n.coord = rpcfanout.New(n.localRPCContribution, n.sendRPC)

	role := vpeernet.RoleFork
	if cfg.Role == config.RoleRoot {
		role = vpeernet.RoleRoot
	}
	dispatcherCfg := vpeernet.Config{
		Role:     role,
		PeerNet:  noopPeerNet{log: n.log},
		Children: n.children,
		Router:   n.router,
		Ledger:   n.ledger,
		Cache:    n.cache,
	}
	if role == vpeernet.RoleFork && cfg.HeightGate {
		n.heightGate = vpeernet.NewWatermarkGate()
		dispatcherCfg.Height = n.heightGate
	}
	n.dispatcher = vpeernet.New(dispatcherCfg)

	return n, nil
}

// TrackForkHeight reports fork's current (height, hash) watermark to this
// node's height gate, e.g. on a report from a storage-layer collaborator
// that has caught the fork up to that point. A no-op if HeightGate was not
// enabled in cfg.
func (n *Node) TrackForkHeight(fork common.ForkId, height uint64, hash common.Hash256) {
	if n.heightGate == nil {
		return
	}
	n.heightGate.Track(fork, height, hash)
}

// Done reports a channel closed once a completed admin STOP command (or
// any other caller of Shutdown) has torn this node down.
func (n *Node) Done() <-chan struct{} { return n.done }

// Shutdown tears the node down: every attached child tunnel and the
// upstream tunnel are closed, the admin HTTP server stops accepting new
// requests, and the root tunnel listener (if any) is closed so
// ListenAndServeRoot's accept loop returns. This is the real effect a
// completed STOP admin RPC has (§4.6) — session_count reaching zero no
// longer just completes a Result, it shuts the node down. Safe to call more
// than once; only the first call has any effect.
func (n *Node) Shutdown() {
	n.stopOnce.Do(func() {
		n.log.Info("shutting down on STOP")
		_ = n.children.CloseAll()
		if n.upstream != nil {
			_ = n.upstream.Shutdown()
		}
		if n.rootLn != nil {
			_ = n.rootLn.Close()
		}
		if n.rootWSSrv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = n.rootWSSrv.Shutdown(ctx)
		}
		if n.adminSrv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = n.adminSrv.Shutdown(ctx)
		}
		close(n.done)
	})
}

func (n *Node) nextRPCNonce() common.Nonce {
	return common.Nonce(atomic.AddUint64(&n.rpcNonce, 1))
}

// localRPCContribution computes this node's own answer to req, with no
// child involved. A standalone node has no forks of its own to report on
// without a storage-layer collaborator wired in, so every contribution is
// the identity element for its merge rule (§4.6 step 6 still runs this
// before completing, so a leaf node's answer is exactly its children's
// merged answers once one is wired in).
func (n *Node) localRPCContribution(req rpcfanout.Request) rpcfanout.Result {
	return rpcfanout.Result{Type: req.Type}
}

// sendRPC pushes req to the child tunnel identified by session. A Fork
// node forwarding to its parent instead of a child is not expressed here:
// upstream replies travel the opposite direction, through
// handleUpstreamRPC's continuation, since the parent never "subscribes" as
// a coordinator session.
func (n *Node) sendRPC(session common.Nonce, req rpcfanout.Request) error {
	t, ok := n.children.Lookup(session)
	if !ok {
		return common.ErrRpcNonceUnknown
	}
	return t.SendRPC(wire.FrameTypeRpcRequest, req.Nonce, rpcfanout.EncodeRequest(req))
}

// AttachChild registers a newly handshaken child tunnel and wires its
// receive callbacks into the dispatcher and RPC coordinator.
func (n *Node) AttachChild(nonce common.Nonce, t *tunnel.Tunnel) {
	n.children.Register(nonce, t)
	n.coord.Subscribe(nonce)
	t.OnReceive(
		func(env *event.VPeerEnvelope) error { return n.dispatcher.HandleEnvelopeFromChild(nonce, env) },
		func(frameType uint16, rpcNonce common.Nonce, payload []byte) error {
			return n.handleChildRPC(nonce, frameType, rpcNonce, payload)
		},
	)
	go func() {
		_ = t.Run()
		n.children.Unregister(nonce)
		n.coord.Unsubscribe(nonce)
	}()
}

func (n *Node) handleChildRPC(child common.Nonce, frameType uint16, rpcNonce common.Nonce, payload []byte) error {
	if frameType == wire.FrameTypeRpcResponse {
		res, err := rpcfanout.DecodeResult(payload)
		if err != nil {
			return err
		}
		n.coord.Reply(rpcNonce, child, res)
		return nil
	}
	req, err := rpcfanout.DecodeRequest(rpcNonce, payload)
	if err != nil {
		return err
	}
	return n.coord.Dispatch(req, func(res rpcfanout.Result) {
		t, ok := n.children.Lookup(child)
		if !ok {
			return
		}
		_ = t.SendRPC(wire.FrameTypeRpcResponse, rpcNonce, rpcfanout.EncodeResult(res))
	})
}

// AttachUpstream sets the single parent tunnel on a Fork node.
func (n *Node) AttachUpstream(t *tunnel.Tunnel) {
	n.upstream = t
	t.OnReceive(
		func(env *event.VPeerEnvelope) error { return n.dispatcher.HandleEnvelopeFromParent(env) },
		n.handleUpstreamRPC,
	)
}

func (n *Node) handleUpstreamRPC(frameType uint16, rpcNonce common.Nonce, payload []byte) error {
	if frameType == wire.FrameTypeRpcResponse {
		res, err := rpcfanout.DecodeResult(payload)
		if err != nil {
			return err
		}
		n.coord.Reply(rpcNonce, common.NonceLocal, res)
		return nil
	}
	req, err := rpcfanout.DecodeRequest(rpcNonce, payload)
	if err != nil {
		return err
	}
	return n.coord.Dispatch(req, func(res rpcfanout.Result) {
		if n.upstream == nil {
			return
		}
		_ = n.upstream.SendRPC(wire.FrameTypeRpcResponse, rpcNonce, rpcfanout.EncodeResult(res))
	})
}

// ListenAndServeRoot binds cfg.ListenAddr and accepts child tunnel
// connections until the listener errors. The carrier is cfg.Transport: a
// plain TCP listener framed directly per §6, or an HTTP server that upgrades
// every request to a WebSocket and frames each tunnel message as one binary
// message.
func (n *Node) ListenAndServeRoot() error {
	if n.cfg.Transport == config.TransportWebsocket {
		return n.listenAndServeRootWebsocket()
	}
	return n.listenAndServeRootStream()
}

func (n *Node) listenAndServeRootStream() error {
	ln, err := net.Listen("tcp", n.cfg.ListenAddr)
	if err != nil {
		return err
	}
	n.rootLn = ln
	n.log.Info("tunnel listener started", "addr", n.cfg.ListenAddr, "transport", config.TransportStream)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil // Shutdown closed the listener on purpose
			}
			return err
		}
		go n.acceptChild(tunnel.NewStreamTransport(conn))
	}
}

func (n *Node) listenAndServeRootWebsocket() error {
	n.rootWSSrv = &http.Server{Addr: n.cfg.ListenAddr, Handler: n.rootWebsocketHandler()}
	n.log.Info("tunnel listener started", "addr", n.cfg.ListenAddr, "transport", config.TransportWebsocket)
	if err := n.rootWSSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// rootWebsocketHandler upgrades every request to a WebSocket and hands the
// resulting connection to acceptChild, split out from
// listenAndServeRootWebsocket so a test can drive it through an
// httptest.Server without binding cfg.ListenAddr.
func (n *Node) rootWebsocketHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			n.log.Warn("websocket upgrade failed", "err", err)
			return
		}
		n.acceptChild(tunnel.NewWebsocketTransport(conn))
	})
	return mux
}

func (n *Node) acceptChild(transport tunnel.Transport) {
	t, err := tunnel.AcceptAndHandshake(transport, n.sessions, tunnel.Config{
		HighWaterMark: n.cfg.HighWaterMark,
		IdleTimeout:   n.cfg.IdleTimeout,
	})
	if err != nil {
		n.log.Warn("child handshake failed", "err", err)
		_ = transport.Close()
		return
	}
	childNonce := sessionToNonce(t.Session())
	n.AttachChild(childNonce, t)
	if !t.Reconnected() {
		return
	}
	replay, err := n.cache.ReplayInOrder()
	if err != nil {
		n.log.Warn("replay failed", "err", err)
		return
	}
	for _, env := range replay {
		_ = t.Send(env)
	}
}

// DialParent connects to cfg.ParentAddr as a Fork node, over whichever
// Transport cfg.Transport selects.
func (n *Node) DialParent() error {
	transport, err := n.dialParentTransport()
	if err != nil {
		return err
	}
	t, err := tunnel.DialAndHandshake(transport, n.cfg.SessionID, tunnel.Config{
		HighWaterMark: n.cfg.HighWaterMark,
		IdleTimeout:   n.cfg.IdleTimeout,
	})
	if err != nil {
		return err
	}
	n.AttachUpstream(t)
	go func() { _ = t.Run() }()
	return nil
}

func (n *Node) dialParentTransport() (tunnel.Transport, error) {
	if n.cfg.Transport == config.TransportWebsocket {
		return tunnel.DialWebsocket(n.cfg.ParentAddr, nil)
	}
	conn, err := net.Dial("tcp", n.cfg.ParentAddr)
	if err != nil {
		return nil, err
	}
	return tunnel.NewStreamTransport(conn), nil
}

// StartAdminHTTP binds the admin RPC surface.
func (n *Node) StartAdminHTTP() error {
	srv := adminhttp.New(n.coord, n.nextRPCNonce)
	srv.OnStop = n.Shutdown
	n.adminSrv = &http.Server{Addr: n.cfg.RPCListenAddr, Handler: srv.Handler()}
	n.log.Info("admin http listening", "addr", n.cfg.RPCListenAddr)
	if err := n.adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// sessionToNonce derives a stable common.Nonce from a tunnel session id so
// the dispatcher/coordinator, which both key on common.Nonce, can identify
// a child without keeping a second parallel id space.
func sessionToNonce(s tunnel.SessionID) common.Nonce {
	return common.Nonce(binary.BigEndian.Uint64(s[:8]))
}

// noopPeerNet is the real peer network / local application consumer stand-in
// used when no such collaborator is wired in yet: it accepts dispatched
// events and logs them rather than acting on them, since that collaborator
// is explicitly out of scope (spec §1).
type noopPeerNet struct{ log xlog.Logger }

func (p noopPeerNet) Dispatch(e *event.PeerEvent) error {
	p.log.Debug("peer net dispatch", "kind", e.Kind.String(), "nonce", uint64(e.Nonce))
	return nil
}
