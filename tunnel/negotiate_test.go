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

package tunnel

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipeTransports() (Transport, Transport) {
	client, server := net.Pipe()
	return NewStreamTransport(client), NewStreamTransport(server)
}

func TestHandshakeFreshSessionIsNotAReconnect(t *testing.T) {
	clientT, serverT := pipeTransports()
	store := NewSessionStore()
	cfg := Config{IdleTimeout: time.Hour}

	errCh := make(chan error, 1)
	var serverTunnel *Tunnel
	go func() {
		var err error
		serverTunnel, err = AcceptAndHandshake(serverT, store, cfg)
		errCh <- err
	}()

	clientTunnel, err := DialAndHandshake(clientT, NewSessionID(), cfg)
	require.NoError(t, err)
	require.NoError(t, <-errCh)

	assert.False(t, clientTunnel.Reconnected())
	assert.False(t, serverTunnel.Reconnected())
	assert.Equal(t, clientTunnel.Session(), serverTunnel.Session())
}

func TestHandshakeRepeatSessionIsAReconnect(t *testing.T) {
	store := NewSessionStore()
	session := NewSessionID()
	cfg := Config{IdleTimeout: time.Hour}

	for i, want := range []bool{false, true} {
		clientT, serverT := pipeTransports()
		errCh := make(chan error, 1)
		var serverTunnel *Tunnel
		go func() {
			var err error
			serverTunnel, err = AcceptAndHandshake(serverT, store, cfg)
			errCh <- err
		}()

		clientTunnel, err := DialAndHandshake(clientT, session, cfg)
		require.NoError(t, err)
		require.NoError(t, <-errCh)

		assert.Equal(t, want, serverTunnel.Reconnected(), "attempt %d", i)
		assert.Equal(t, want, clientTunnel.Reconnected(), "attempt %d", i)
	}
}

func TestSessionStoreObserveAndForget(t *testing.T) {
	store := NewSessionStore()
	session := NewSessionID()

	assert.False(t, store.Observe(session))
	assert.True(t, store.Observe(session))

	store.Forget(session)
	assert.False(t, store.Observe(session))
}
