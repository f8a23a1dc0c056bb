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
	"encoding/binary"
	"sync"

	"github.com/probeum/superfork/common"
	"github.com/probeum/superfork/wire"
)

// frameTypeConnect/Connected/Failed are handshake-only frame tags, never
// seen by Tunnel.Run's steady-state loop: the handshake completes before a
// Tunnel value exists.
const (
	frameTypeConnect   uint16 = 40
	frameTypeConnected uint16 = 41
	frameTypeFailed    uint16 = 42
)

func encodeSession(s SessionID) []byte { b := s; return b[:] }

func decodeSession(b []byte) (SessionID, error) {
	var s SessionID
	if len(b) != len(s) {
		return s, common.ErrMalformedFrame
	}
	copy(s[:], b)
	return s, nil
}

// SessionStore tracks session ids a server-side listener has already seen,
// so it can tell a fresh Connect from a reconnect (§4.2).
type SessionStore struct {
	mu   sync.Mutex
	seen map[SessionID]struct{}
}

// NewSessionStore returns an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{seen: make(map[SessionID]struct{})}
}

// Observe records session as seen and reports whether it already was.
func (s *SessionStore) Observe(session SessionID) (reconnect bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, reconnect = s.seen[session]
	s.seen[session] = struct{}{}
	return reconnect
}

// Forget drops session, e.g. once its tunnel closes for a reason other than
// a transient network blip (so a later Connect with the same id is treated
// as fresh rather than a resumable reconnect).
func (s *SessionStore) Forget(session SessionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, session)
}

// DialAndHandshake performs the client side of §4.2's handshake over
// transport: it sends Connect{version=1, session} and returns the resulting
// Tunnel, or an error if the server replies Failed.
func DialAndHandshake(transport Transport, session SessionID, cfg Config) (*Tunnel, error) {
	if err := transport.WriteFrame(wire.Frame{Type: frameTypeConnect, Payload: append([]byte{byte(protocolVersion)}, encodeSession(session)...)}); err != nil {
		return nil, err
	}
	f, err := transport.ReadFrame()
	if err != nil {
		return nil, err
	}
	switch f.Type {
	case frameTypeConnected:
		if len(f.Payload) < 1+16 {
			return nil, common.ErrMalformedFrame
		}
		reconnect := f.Payload[0] != 0
		got, err := decodeSession(f.Payload[1:])
		if err != nil {
			return nil, err
		}
		return New(transport, got, reconnect, cfg), nil
	case frameTypeFailed:
		return nil, common.ErrVersionMismatch
	default:
		return nil, common.ErrMalformedFrame
	}
}

// AcceptAndHandshake performs the server side of §4.2's handshake over
// transport, consulting store to decide reconnect, and returns the
// resulting Tunnel or rejects with Failed{reason="001"} on a version
// mismatch.
func AcceptAndHandshake(transport Transport, store *SessionStore, cfg Config) (*Tunnel, error) {
	f, err := transport.ReadFrame()
	if err != nil {
		return nil, err
	}
	if f.Type != frameTypeConnect || len(f.Payload) < 1+16 {
		return nil, common.ErrMalformedFrame
	}
	version := int(f.Payload[0])
	session, err := decodeSession(f.Payload[1:])
	if err != nil {
		return nil, err
	}
	if version != protocolVersion {
		versions := make([]byte, 2)
		binary.BigEndian.PutUint16(versions, uint16(protocolVersion))
		payload := append([]byte(failedReasonVersion), versions...)
		payload = append(payload, encodeSession(session)...)
		_ = transport.WriteFrame(wire.Frame{Type: frameTypeFailed, Payload: payload})
		return nil, common.ErrVersionMismatch
	}

	reconnect := store.Observe(session)
	payload := append([]byte{boolByte(reconnect)}, encodeSession(session)...)
	if err := transport.WriteFrame(wire.Frame{Type: frameTypeConnected, Payload: payload}); err != nil {
		return nil, err
	}
	return New(transport, session, reconnect, cfg), nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
