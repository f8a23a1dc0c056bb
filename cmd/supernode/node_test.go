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
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probeum/superfork/common"
	"github.com/probeum/superfork/config"
	"github.com/probeum/superfork/rpcfanout"
	"github.com/probeum/superfork/tunnel"
)

func attachedChildPair(t *testing.T, n *Node) (childNonce common.Nonce, remote *tunnel.Tunnel) {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	store := tunnel.NewSessionStore()
	cfg := tunnel.Config{IdleTimeout: time.Hour, HighWaterMark: 4}

	errCh := make(chan error, 1)
	var server *tunnel.Tunnel
	go func() {
		var err error
		server, err = tunnel.AcceptAndHandshake(tunnel.NewStreamTransport(serverConn), store, cfg)
		errCh <- err
	}()

	client, err := tunnel.DialAndHandshake(tunnel.NewStreamTransport(clientConn), tunnel.NewSessionID(), cfg)
	require.NoError(t, err)
	require.NoError(t, <-errCh)

	go func() { _ = client.Run() }()
	childNonce = common.Nonce(1)
	n.AttachChild(childNonce, client)
	return childNonce, server
}

func TestShutdownClosesChildrenAndSignalsDone(t *testing.T) {
	n, err := New(config.Default())
	require.NoError(t, err)

	_, remote := attachedChildPair(t, n)
	go func() { _ = remote.Run() }()

	select {
	case <-n.Done():
		t.Fatal("Done must not be closed before Shutdown")
	default:
	}

	n.Shutdown()

	select {
	case <-n.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown must close Done")
	}
	select {
	case <-remote.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown must close every attached child")
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	n, err := New(config.Default())
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		n.Shutdown()
		n.Shutdown()
	})
}

func TestStopRPCCompletionTriggersShutdown(t *testing.T) {
	n, err := New(config.Default())
	require.NoError(t, err)

	done := make(chan rpcfanout.Result, 1)
	require.NoError(t, n.coord.Dispatch(rpcfanout.Request{Type: rpcfanout.TypeStop, Nonce: n.nextRPCNonce()}, func(r rpcfanout.Result) {
		done <- r
		n.Shutdown()
	}))
	<-done

	select {
	case <-n.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("a completed STOP must tear the node down")
	}
}

func TestRootAcceptsChildOverWebsocketTransport(t *testing.T) {
	cfg := config.Default()
	cfg.Transport = config.TransportWebsocket
	root, err := New(cfg)
	require.NoError(t, err)

	srv := httptest.NewServer(root.rootWebsocketHandler())
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	forkCfg := config.Default()
	forkCfg.Transport = config.TransportWebsocket
	forkCfg.ParentAddr = wsURL
	fork, err := New(forkCfg)
	require.NoError(t, err)
	require.NoError(t, fork.DialParent())

	require.Eventually(t, func() bool { return root.children.Len() == 1 }, 2*time.Second, 10*time.Millisecond,
		"root must register the websocket-attached child")
}

func TestTrackForkHeightIsANoOpWithoutHeightGate(t *testing.T) {
	n, err := New(config.Default())
	require.NoError(t, err)
	assert.NotPanics(t, func() { n.TrackForkHeight(common.ForkId{}, 1, common.Hash256{}) })
}
