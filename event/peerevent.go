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

// Package event defines the peer-event model shared by the tunnel, the
// subscription router and the virtual peer-net dispatcher: a closed tagged
// union over the peer-network protocol's event kinds, plus the flow/sender
// annotations used to suppress re-dispatch loops across the tunnel.
package event

import "github.com/probeum/superfork/common"

// Kind identifies a PeerEvent variant. Values match the wire frame "type"
// field (§6) so the codec can switch on the same constant the dispatcher
// switches on.
type Kind uint16

const (
	KindActive      Kind = 1
	KindDeactive    Kind = 2
	KindSubscribe   Kind = 3
	KindUnsubscribe Kind = 4
	KindGetBlocks   Kind = 5
	KindGetData     Kind = 6
	KindInv         Kind = 7
	KindTx          Kind = 8
	KindBlock       Kind = 9
	KindNetReward   Kind = 10
	KindNetClose    Kind = 11
)

func (k Kind) String() string {
	switch k {
	case KindActive:
		return "Active"
	case KindDeactive:
		return "Deactive"
	case KindSubscribe:
		return "Subscribe"
	case KindUnsubscribe:
		return "Unsubscribe"
	case KindGetBlocks:
		return "GetBlocks"
	case KindGetData:
		return "GetData"
	case KindInv:
		return "Inv"
	case KindTx:
		return "Tx"
	case KindBlock:
		return "Block"
	case KindNetReward:
		return "NetReward"
	case KindNetClose:
		return "NetClose"
	default:
		return "Unknown"
	}
}

// HasFork reports whether k carries a ForkId. Active/Deactive/NetReward/
// NetClose do not (§3).
func (k Kind) HasFork() bool {
	switch k {
	case KindActive, KindDeactive, KindNetReward, KindNetClose:
		return false
	default:
		return true
	}
}

// Flow marks which direction a PeerEvent travelled across the tunnel, used
// strictly to prevent a component from re-dispatching an event back onto the
// component that produced it (I3).
type Flow uint8

const (
	FlowUnset Flow = iota
	FlowUp
	FlowDown
)

func (f Flow) String() string {
	switch f {
	case FlowUp:
		return "up"
	case FlowDown:
		return "down"
	default:
		return "unset"
	}
}

// Active is the payload of a KindActive event: a peer session came online.
type Active struct {
	Address string
}

// Deactive is the payload of a KindDeactive event: a peer session went away.
type Deactive struct {
	Reason string
}

// Subscribe is the payload of a KindSubscribe event.
type Subscribe struct {
	Forks []common.ForkId
}

// Unsubscribe is the payload of a KindUnsubscribe event.
type Unsubscribe struct {
	Forks []common.ForkId
}

// GetBlocks is the payload of a KindGetBlocks event: a block-locator style
// request for the blocks following the most recent hash in Locator that the
// requester and responder share.
type GetBlocks struct {
	Locator  []common.Hash256
	HashStop common.Hash256
}

// GetData is the payload of a KindGetData event: a request for the full
// bodies named by Inv.
type GetData struct {
	Inv []common.Hash256
}

// Inv is the payload of a KindInv event: an announcement of available
// inventory hashes.
type Inv struct {
	Hashes []common.Hash256
}

// Tx is the payload of a KindTx event.
type Tx struct {
	Hash common.Hash256
	Data []byte
}

// Block is the payload of a KindBlock event.
type Block struct {
	Hash common.Hash256
	Data []byte
}

// NetReward is the payload of a KindNetReward event: a peer-scoring
// adjustment from the peer network.
type NetReward struct {
	Score  int32
	Reason string
}

// NetClose is the payload of a KindNetClose event: a request that the peer
// network drop a session.
type NetClose struct {
	Reason string
}

// PeerEvent is the closed tagged union over all peer-network event kinds.
// Exactly one of the payload fields is populated, selected by Kind.
type PeerEvent struct {
	Kind  Kind
	Nonce common.Nonce
	Fork  common.ForkId // zero value when !Kind.HasFork()

	Active      *Active
	Deactive    *Deactive
	Subscribe   *Subscribe
	Unsubscribe *Unsubscribe
	GetBlocks   *GetBlocks
	GetData     *GetData
	Inv         *Inv
	Tx          *Tx
	Block       *Block
	NetReward   *NetReward
	NetClose    *NetClose

	// Flow and Sender are annotations, never put on the wire: they exist
	// purely so a component can recognize and drop an event it just
	// produced itself (I3).
	Flow   Flow
	Sender string
}

// Equal reports deep equality of two PeerEvents, ignoring the Flow/Sender
// annotations (the codec round-trip property in spec.md §8 only concerns
// the wire-carried fields).
func (e *PeerEvent) Equal(o *PeerEvent) bool {
	if e == nil || o == nil {
		return e == o
	}
	if e.Kind != o.Kind || e.Nonce != o.Nonce || (e.Kind.HasFork() && e.Fork != o.Fork) {
		return false
	}
	switch e.Kind {
	case KindActive:
		return eqActive(e.Active, o.Active)
	case KindDeactive:
		return eqDeactive(e.Deactive, o.Deactive)
	case KindSubscribe:
		return eqForks(e.Subscribe.Forks, o.Subscribe.Forks)
	case KindUnsubscribe:
		return eqForks(e.Unsubscribe.Forks, o.Unsubscribe.Forks)
	case KindGetBlocks:
		return eqGetBlocks(e.GetBlocks, o.GetBlocks)
	case KindGetData:
		return eqHashes(e.GetData.Inv, o.GetData.Inv)
	case KindInv:
		return eqHashes(e.Inv.Hashes, o.Inv.Hashes)
	case KindTx:
		return eqData(e.Tx.Hash, e.Tx.Data, o.Tx.Hash, o.Tx.Data)
	case KindBlock:
		return eqData(e.Block.Hash, e.Block.Data, o.Block.Hash, o.Block.Data)
	case KindNetReward:
		return e.NetReward.Score == o.NetReward.Score && e.NetReward.Reason == o.NetReward.Reason
	case KindNetClose:
		return e.NetClose.Reason == o.NetClose.Reason
	default:
		return false
	}
}

func eqActive(a, b *Active) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Address == b.Address
}

func eqDeactive(a, b *Deactive) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Reason == b.Reason
}

func eqForks(a, b []common.ForkId) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func eqHashes(a, b []common.Hash256) bool { return eqForks(a, b) }

func eqGetBlocks(a, b *GetBlocks) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.HashStop == b.HashStop && eqHashes(a.Locator, b.Locator)
}

func eqData(ah common.Hash256, ad []byte, bh common.Hash256, bd []byte) bool {
	if ah != bh || len(ad) != len(bd) {
		return false
	}
	for i := range ad {
		if ad[i] != bd[i] {
			return false
		}
	}
	return true
}
