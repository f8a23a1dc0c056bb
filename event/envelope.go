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

package event

import "github.com/probeum/superfork/common"

// VPeerEnvelope is the tunnel-carried wrapper around a serialized PeerEvent.
// Its payload is opaque to the tunnel and the dispatcher's forwarding path:
// only the handler that ultimately needs the decoded event pays the cost of
// decoding it.
type VPeerEnvelope struct {
	Type    Kind
	Nonce   common.Nonce
	Fork    common.ForkId // zero when Type doesn't carry a fork
	Payload []byte        // self-contained serialization of the PeerEvent
}

// HasFork reports whether the envelope's Fork field is meaningful.
func (v *VPeerEnvelope) HasFork() bool { return v.Type.HasFork() }
