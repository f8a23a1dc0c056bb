// Copyright 2014 The go-probeum Authors
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

package common

import (
	"errors"
)

// Error taxonomy for the routing fabric (wire codec, tunnel, subscription
// router, solicited-data ledger and RPC fan-out). Every package reports one
// of these via errors.Is rather than inventing its own ad-hoc error strings.
var (
	// ErrMalformedFrame is returned by the wire codec when a declared length
	// exceeds the remaining buffer or the tag is unknown. Recovery is to
	// drop the connection.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrUnknownTopic is returned when an RPC fan-out command names a Type
	// this coordinator does not recognize — a stale or forward-incompatible
	// peer. Not fatal: the dispatch is simply rejected before fan-out.
	ErrUnknownTopic = errors.New("unknown topic")

	// ErrSessionTimeout is the tunnel's close cause when two consecutive
	// pings go unanswered within the idle window; a Send/SendRPC issued
	// afterward reports this instead of the generic ErrTunnelClosed.
	ErrSessionTimeout = errors.New("session timeout")

	// ErrVersionMismatch is returned when a tunnel handshake presents a
	// protocol version this node does not speak.
	ErrVersionMismatch = errors.New("version mismatch")

	// ErrUnsolicitedData names the case of a fork node receiving a Block/Tx
	// it never solicited. The dispatcher does not return it: such data is
	// dropped silently (logged at debug level) and the handler returns nil.
	ErrUnsolicitedData = errors.New("unsolicited data")

	// ErrRpcNonceUnknown marks an RPC reply carrying a nonce the coordinator
	// has no pending entry for (late reply, already completed or evicted);
	// Coordinator.Reply logs it and discards the reply rather than returning
	// it. The supernode's RPC sender returns it when the target session is
	// not attached.
	ErrRpcNonceUnknown = errors.New("rpc nonce unknown")

	// ErrTransient is returned by a tunnel Send/SendRPC whose outbound queue
	// stayed at its high-water mark for the full SendTimeout — a
	// congested-but-not-yet-dead peer. Not a hard failure: the producing
	// handler is expected to retry rather than treat the session as gone.
	ErrTransient = errors.New("transient backpressure")

	// ErrTunnelClosed is returned by a Send/SendRPC issued after the tunnel
	// has already closed for a reason that carried no underlying cause
	// (e.g. a local, intentional shutdown).
	ErrTunnelClosed = errors.New("tunnel closed")
)
