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

// Package tunnel implements the event tunnel (spec §4.2): the single
// logical bidirectional stream between a fork node and its parent root
// node, carrying VPeerEnvelope and RPC records with reconnection/session
// resumption, a per-direction outbound queue with high-water-mark
// backpressure, and idle ping/pong.
package tunnel

import (
	"github.com/google/uuid"
)

// protocolVersion is the only handshake version this tunnel speaks.
const protocolVersion = 1

// ReasonCode explains why a tunnel closed, mirroring the session-vanish
// bookkeeping the RPC coordinator and router need (§5 Cancellation).
type ReasonCode string

const (
	ReasonTimeout        ReasonCode = "timeout"
	ReasonVersionMismatch ReasonCode = "version_mismatch"
	ReasonMalformedFrame ReasonCode = "malformed_frame"
	ReasonRemoteClose    ReasonCode = "remote_close"
	ReasonLocalShutdown  ReasonCode = "local_shutdown"
)

// SessionID identifies a tunnel across reconnects.
type SessionID = uuid.UUID

// NewSessionID mints a fresh session identifier for a node's first
// connection attempt.
func NewSessionID() SessionID { return uuid.New() }

// Connect is the client's handshake opener.
type Connect struct {
	Version int
	Session SessionID
}

// Connected is the server's handshake acceptance. Reconnect is true when
// Session matched a session the server had already seen, in which case the
// caller must replay the peer-event cache (§4.4, scenario 6) before
// delivering any live traffic.
type Connected struct {
	Session   SessionID
	Reconnect bool
}

// Failed is the server's handshake rejection, issued when Connect.Version
// does not equal protocolVersion.
type Failed struct {
	Reason   string
	Versions []int
	Session  SessionID
}

const failedReasonVersion = "001"
