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

package wire

import (
	"github.com/probeum/superfork/common"
	"github.com/probeum/superfork/event"
)

// EnvelopeFromEvent builds the tunnel-carried VPeerEnvelope for e, encoding
// its payload with EncodeEvent. The envelope's Type/Nonce/Fork header
// duplicates what's in the payload so a forwarding hop can route on the
// header alone without decoding the payload.
func EnvelopeFromEvent(e *event.PeerEvent) (*event.VPeerEnvelope, error) {
	payload, err := EncodeEvent(e)
	if err != nil {
		return nil, err
	}
	return &event.VPeerEnvelope{
		Type:    e.Kind,
		Nonce:   e.Nonce,
		Fork:    e.Fork,
		Payload: payload,
	}, nil
}

// EventFromEnvelope decodes the PeerEvent carried by env's payload. The
// result's Kind/Nonce/Fork are cross-checked against the envelope header
// and a mismatch is reported as common.ErrMalformedFrame.
func EventFromEnvelope(env *event.VPeerEnvelope) (*event.PeerEvent, error) {
	e, err := DecodeEvent(env.Payload)
	if err != nil {
		return nil, err
	}
	if e.Kind != env.Type || e.Nonce != env.Nonce || (env.HasFork() && e.Fork != env.Fork) {
		return nil, common.ErrMalformedFrame
	}
	return e, nil
}
