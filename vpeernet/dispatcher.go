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

// Package vpeernet implements the virtual peer-net dispatcher (spec §4.4):
// the in-process switchboard that accepts peer-events from the real peer
// network, from the tunnel, and from local producers, and re-emits them
// with flow/sender annotations that prevent loops.
package vpeernet

import (
	"github.com/probeum/superfork/common"
	"github.com/probeum/superfork/event"
	"github.com/probeum/superfork/ledger"
	"github.com/probeum/superfork/internal/xlog"
	"github.com/probeum/superfork/router"
	"github.com/probeum/superfork/wire"
)

// Role is the node's position in the super-node topology.
type Role uint8

const (
	RoleRoot Role = iota
	RoleFork
)

const senderDispatcher = "dispatcher"

// PeerNet is this node's directly attached consumer: the real wide-area
// peer network on a Root node, or the fork node's own local application
// consumer on a Fork node.
type PeerNet interface {
	Dispatch(e *event.PeerEvent) error
}

// Children is the set of this node's downstream tunnel attachments: a
// Root's attached fork nodes, or a mid-tree Fork node's attached
// sub-fork-nodes. A leaf Fork node has no Children.
type Children interface {
	// PushAll delivers env to every attached child.
	PushAll(env *event.VPeerEnvelope) error
	// PushOthers delivers env to every attached child except the one
	// identified by from.
	PushOthers(from common.Nonce, env *event.VPeerEnvelope) error
}

// Upstream is a Fork node's single tunnel toward its parent.
type Upstream interface {
	Send(env *event.VPeerEnvelope) error
}

// Dispatcher is the central switchboard described in spec §4.4.
type Dispatcher struct {
	role     Role
	peerNet  PeerNet
	children Children // nil if this node has none
	upstream Upstream // nil on a Root node
	router   *router.Router
	ledger   *ledger.Ledger
	cache    *PeerCache
	isMyFork func(common.ForkId) bool // only consulted on a Fork node
	height   HeightGate               // optional; nil disables height gating
	log      xlog.Logger
}

// Config wires a Dispatcher's collaborators. Children, Upstream and
// IsMyFork may be nil/unset depending on role and tree position.
type Config struct {
	Role     Role
	PeerNet  PeerNet
	Children Children
	Upstream Upstream
	Router   *router.Router
	Ledger   *ledger.Ledger
	Cache    *PeerCache
	IsMyFork func(common.ForkId) bool
	// Height optionally gates Block delivery on a Fork node by a per-fork
	// watermark (see HeightGate). Nil disables gating entirely.
	Height HeightGate
}

// New builds a Dispatcher from cfg.
func New(cfg Config) *Dispatcher {
	d := &Dispatcher{
		role:     cfg.Role,
		peerNet:  cfg.PeerNet,
		children: cfg.Children,
		upstream: cfg.Upstream,
		router:   cfg.Router,
		ledger:   cfg.Ledger,
		cache:    cfg.Cache,
		isMyFork: cfg.IsMyFork,
		height:   cfg.Height,
		log:      xlog.New("pkg", "vpeernet"),
	}
	if d.isMyFork == nil {
		d.isMyFork = func(common.ForkId) bool { return true }
	}
	return d
}

// isSelfEcho reports whether e is this dispatcher's own outbound event
// being handed back to it, which must be dropped rather than re-dispatched
// (I3).
func isSelfEcho(e *event.PeerEvent) bool {
	return e.Sender == senderDispatcher && e.Flow == event.FlowUp
}

func annotate(e *event.PeerEvent, flow event.Flow) *event.PeerEvent {
	cp := *e
	cp.Flow = flow
	cp.Sender = senderDispatcher
	return &cp
}

func envelopeOf(e *event.PeerEvent) (*event.VPeerEnvelope, error) {
	return wire.EnvelopeFromEvent(e)
}

// HandleLocal processes an event entering from this node's own primary
// source: the real peer network on a Root node, the node's own local
// producers/consumers on a Fork node. This implements the R/F columns of
// spec §4.4's routing table.
func (d *Dispatcher) HandleLocal(e *event.PeerEvent) error {
	if isSelfEcho(e) {
		return nil
	}
	if d.role == RoleRoot {
		return d.handleLocalRoot(e)
	}
	return d.handleLocalFork(e)
}

func (d *Dispatcher) handleLocalRoot(e *event.PeerEvent) error {
	switch e.Kind {
	case event.KindActive:
		env, err := envelopeOf(e)
		if err != nil {
			return err
		}
		if err := d.cache.Put(env); err != nil {
			return err
		}
		return d.pushAll(env)
	case event.KindDeactive:
		d.cache.Erase(e.Nonce)
		if d.ledger != nil {
			d.ledger.ForgetNonce(e.Nonce)
		}
		env, err := envelopeOf(e)
		if err != nil {
			return err
		}
		return d.pushAll(env)
	case event.KindNetReward, event.KindNetClose:
		down := annotate(e, event.FlowDown)
		return d.peerNet.Dispatch(down)
	default:
		env, err := envelopeOf(e)
		if err != nil {
			return err
		}
		return d.pushAll(env)
	}
}

func (d *Dispatcher) handleLocalFork(e *event.PeerEvent) error {
	switch e.Kind {
	case event.KindSubscribe:
		delta := d.router.FilterThisSubscribe(e.Nonce, e.Subscribe.Forks)
		if len(delta) == 0 {
			return nil
		}
		up := &event.PeerEvent{Kind: event.KindSubscribe, Nonce: e.Nonce, Subscribe: &event.Subscribe{Forks: delta}, Flow: event.FlowUp, Sender: senderDispatcher}
		return d.sendUpstream(up)
	case event.KindUnsubscribe:
		delta := d.router.FilterThisUnsubscribe(e.Nonce, e.Unsubscribe.Forks)
		if len(delta) == 0 {
			return nil
		}
		up := &event.PeerEvent{Kind: event.KindUnsubscribe, Nonce: e.Nonce, Unsubscribe: &event.Unsubscribe{Forks: delta}, Flow: event.FlowUp, Sender: senderDispatcher}
		return d.sendUpstream(up)
	case event.KindGetBlocks:
		return d.sendUpstream(annotate(e, event.FlowUp))
	case event.KindGetData:
		if d.ledger != nil {
			d.ledger.Record(e.Fork, e.Nonce, e.GetData.Inv)
		}
		return d.sendUpstream(annotate(e, event.FlowUp))
	case event.KindInv, event.KindTx, event.KindBlock:
		if e.Nonce.IsLocal() {
			env, err := envelopeOf(e)
			if err != nil {
				return err
			}
			return d.pushAll(env)
		}
		return d.sendUpstream(annotate(e, event.FlowUp))
	case event.KindNetReward, event.KindNetClose:
		return d.sendUpstream(annotate(e, event.FlowUp))
	case event.KindActive:
		env, err := envelopeOf(e)
		if err != nil {
			return err
		}
		if err := d.cache.Put(env); err != nil {
			return err
		}
		return d.peerNet.Dispatch(annotate(e, event.FlowDown))
	case event.KindDeactive:
		d.cache.Erase(e.Nonce)
		if d.ledger != nil {
			d.ledger.ForgetNonce(e.Nonce)
		}
		return d.peerNet.Dispatch(annotate(e, event.FlowDown))
	default:
		return nil
	}
}

// HandleEnvelopeFromParent processes an inbound tunnel envelope on a Fork
// node — delivered by its upstream tunnel from the parent. Implements the
// paragraph following spec §4.4's table.
func (d *Dispatcher) HandleEnvelopeFromParent(env *event.VPeerEnvelope) error {
	e, err := wire.EventFromEnvelope(env)
	if err != nil {
		return err
	}
	e = annotate(e, event.FlowDown)

	switch e.Kind {
	case event.KindActive:
		if err := d.cache.Put(env); err != nil {
			return err
		}
		if err := d.peerNet.Dispatch(e); err != nil {
			return err
		}
		return d.pushAll(env)
	case event.KindDeactive:
		d.cache.Erase(env.Nonce)
		if d.ledger != nil {
			d.ledger.ForgetNonce(env.Nonce)
		}
		if err := d.peerNet.Dispatch(e); err != nil {
			return err
		}
		return d.pushAll(env)

	case event.KindInv:
		if d.isMyFork(env.Fork) {
			if err := d.peerNet.Dispatch(e); err != nil {
				return err
			}
		}
		return d.pushAll(env)

	case event.KindSubscribe, event.KindUnsubscribe, event.KindGetBlocks, event.KindGetData:
		if d.isMyFork(env.Fork) {
			return d.peerNet.Dispatch(e)
		}
		return d.pushAll(env)

	case event.KindTx, event.KindBlock:
		if !d.isMyFork(env.Fork) {
			return d.pushAll(env)
		}
		hash := dataHash(e)
		solicited := env.Nonce.IsLocal()
		if !solicited && d.ledger != nil {
			solicited = d.ledger.Consume(env.Fork, env.Nonce, hash)
		}
		if !solicited {
			d.log.Debug("dropping unsolicited data", "fork", env.Fork.Hex(), "nonce", uint64(env.Nonce), "hash", hash.Hex())
			return nil
		}
		if e.Kind == event.KindBlock && d.height != nil && !d.height.Allow(env.Fork, hash) {
			d.log.Debug("dropping block that does not match the tracked watermark", "fork", env.Fork.Hex(), "hash", hash.Hex())
			return nil
		}
		return d.peerNet.Dispatch(e)

	case event.KindNetReward, event.KindNetClose:
		return d.peerNet.Dispatch(e)

	default:
		return nil
	}
}

// HandleEnvelopeFromChild processes an inbound tunnel envelope on a Root
// node (or a mid-tree Fork node) delivered by the attachment identified by
// child. Subscribe/Unsubscribe go through the downstream reference-counted
// table (§4.3, §3) and only the resulting delta is forwarded on to this
// node's own upstream sink (the real peer network on a Root node, the
// parent tunnel on a mid-tree Fork node) — this is the mechanism spec §8
// scenario 1 describes. Every other kind is relayed to the upstream sink and
// fanned out to this node's other children, since any of them may care
// about a fork-specific event one child just reported.
func (d *Dispatcher) HandleEnvelopeFromChild(child common.Nonce, env *event.VPeerEnvelope) error {
	e, err := wire.EventFromEnvelope(env)
	if err != nil {
		return err
	}

	switch e.Kind {
	case event.KindSubscribe:
		delta := d.router.FilterChildSubscribe(env.Nonce, e.Subscribe.Forks)
		if len(delta) == 0 {
			return nil
		}
		up := &event.PeerEvent{Kind: event.KindSubscribe, Nonce: env.Nonce, Subscribe: &event.Subscribe{Forks: delta}, Flow: event.FlowUp, Sender: senderDispatcher}
		return d.dispatchUp(up)
	case event.KindUnsubscribe:
		delta := d.router.FilterChildUnsubscribe(env.Nonce, e.Unsubscribe.Forks)
		if len(delta) == 0 {
			return nil
		}
		up := &event.PeerEvent{Kind: event.KindUnsubscribe, Nonce: env.Nonce, Unsubscribe: &event.Unsubscribe{Forks: delta}, Flow: event.FlowUp, Sender: senderDispatcher}
		return d.dispatchUp(up)
	default:
		up := annotate(e, event.FlowUp)
		if err := d.dispatchUp(up); err != nil {
			return err
		}
		if d.children == nil {
			return nil
		}
		return d.children.PushOthers(child, env)
	}
}

// dispatchUp delivers e to this node's upstream sink: the real peer network
// (peerNet) on a Root node, the single parent tunnel on a Fork node.
func (d *Dispatcher) dispatchUp(e *event.PeerEvent) error {
	if d.role == RoleRoot {
		return d.peerNet.Dispatch(e)
	}
	return d.sendUpstream(e)
}

func dataHash(e *event.PeerEvent) common.Hash256 {
	if e.Kind == event.KindTx {
		return e.Tx.Hash
	}
	return e.Block.Hash
}

func (d *Dispatcher) pushAll(env *event.VPeerEnvelope) error {
	if d.children == nil {
		return nil
	}
	return d.children.PushAll(env)
}

func (d *Dispatcher) sendUpstream(e *event.PeerEvent) error {
	if d.upstream == nil {
		return nil
	}
	env, err := envelopeOf(e)
	if err != nil {
		return err
	}
	return d.upstream.Send(env)
}
