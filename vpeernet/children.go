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

package vpeernet

import (
	"sync"

	"github.com/probeum/superfork/common"
	"github.com/probeum/superfork/event"
)

// ChildSink is the narrow interface a single attached child tunnel exposes
// to ChildSet: push one envelope, or one RPC frame addressed by nonce.
type ChildSink interface {
	Send(env *event.VPeerEnvelope) error
	SendRPC(frameType uint16, nonce common.Nonce, payload []byte) error
	// Shutdown closes the attachment for a local, intentional reason — the
	// effect a completed admin STOP command has on every attached child.
	Shutdown() error
}

// ChildSet is the default Children implementation: a concurrency-safe
// registry of attached children keyed by a per-attachment nonce the caller
// supplies (cmd/supernode derives it from the tunnel session id). It fans envelopes out the way les's peerSet
// fans requests out to connected server peers, one registry entry per
// live attachment.
type ChildSet struct {
	mu       sync.RWMutex
	children map[common.Nonce]ChildSink
}

// NewChildSet returns an empty ChildSet.
func NewChildSet() *ChildSet {
	return &ChildSet{children: make(map[common.Nonce]ChildSink)}
}

// Register attaches child under nonce, replacing any previous occupant of
// that slot (a reconnect under the same identity).
func (c *ChildSet) Register(nonce common.Nonce, child ChildSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.children[nonce] = child
}

// Unregister detaches the child identified by nonce, e.g. once its tunnel
// has closed.
func (c *ChildSet) Unregister(nonce common.Nonce) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.children, nonce)
}

// Lookup returns the child registered under nonce, if any.
func (c *ChildSet) Lookup(nonce common.Nonce) (ChildSink, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ch, ok := c.children[nonce]
	return ch, ok
}

// Len reports the number of currently attached children.
func (c *ChildSet) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.children)
}

// PushAll delivers env to every attached child, collecting the first error
// encountered but continuing to attempt delivery to the rest — one
// unreachable child must not starve its siblings.
func (c *ChildSet) PushAll(env *event.VPeerEnvelope) error {
	c.mu.RLock()
	targets := make([]ChildSink, 0, len(c.children))
	for _, ch := range c.children {
		targets = append(targets, ch)
	}
	c.mu.RUnlock()

	var first error
	for _, ch := range targets {
		if err := ch.Send(env); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// CloseAll shuts down every attached child, e.g. on a completed admin STOP
// command — collecting the first error but attempting every child so one
// unreachable attachment does not block the rest from closing.
func (c *ChildSet) CloseAll() error {
	c.mu.RLock()
	targets := make([]ChildSink, 0, len(c.children))
	for _, ch := range c.children {
		targets = append(targets, ch)
	}
	c.mu.RUnlock()

	var first error
	for _, ch := range targets {
		if err := ch.Shutdown(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// PushOthers delivers env to every attached child except the one
// identified by from — used to re-fan-out an envelope that arrived from
// one child without bouncing it straight back.
func (c *ChildSet) PushOthers(from common.Nonce, env *event.VPeerEnvelope) error {
	c.mu.RLock()
	targets := make([]ChildSink, 0, len(c.children))
	for nonce, ch := range c.children {
		if nonce == from {
			continue
		}
		targets = append(targets, ch)
	}
	c.mu.RUnlock()

	var first error
	for _, ch := range targets {
		if err := ch.Send(env); err != nil && first == nil {
			first = err
		}
	}
	return first
}
