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

package rpcfanout

import (
	"sync"

	mapset "github.com/deckarep/golang-set"
	lru "github.com/hashicorp/golang-lru"

	"github.com/probeum/superfork/common"
	"github.com/probeum/superfork/internal/xlog"
)

// pendingCapacity bounds the coordinator's in-flight table (I4): the
// oldest entry is evicted once the table would exceed this size, same as
// ledger.Bounded leans on hashicorp/golang-lru for its size cap.
const pendingCapacity = 100

// Continuation is the I/O completion the originating caller supplies; it
// fires at most once per Dispatch, with the final aggregated Result. It does
// not fire for a Dispatch rejected with ErrUnknownTopic, nor for an entry
// evicted from the pending table before it completed.
type Continuation func(Result)

// LocalCompute produces this node's own contribution to req — the part of
// the answer this node can compute without asking any child.
type LocalCompute func(req Request) Result

// Sender pushes req to one subscribed session over that session's tunnel.
type Sender func(session common.Nonce, req Request) error

type pendingEntry struct {
	mu           sync.Mutex
	req          Request
	result       Result
	remaining    mapset.Set
	continuation Continuation
	done         bool
}

// Coordinator implements spec §4.6's fan-out algorithm. The same type
// serves both a root node (fanning out to fork nodes) and a fork node
// mirroring the logic toward its own sub-fork children — which role it
// plays is entirely a function of which sessions are currently subscribed.
type Coordinator struct {
	mu       sync.Mutex
	sessions mapset.Set // common.Nonce session identifiers currently subscribed to RPC fan-out
	pending  *lru.Cache // common.Nonce -> *pendingEntry

	local LocalCompute
	send  Sender
	log   xlog.Logger
}

// New returns a Coordinator. local computes this node's own contribution;
// send pushes a request to one subscribed session's tunnel.
func New(local LocalCompute, send Sender) *Coordinator {
	c := &Coordinator{
		sessions: mapset.NewSet(),
		local:    local,
		send:     send,
		log:      xlog.New("pkg", "rpcfanout"),
	}
	cache, err := lru.NewWithEvict(pendingCapacity, c.onEvict)
	if err != nil {
		panic(err) // only returned for pendingCapacity <= 0, a compile-time constant
	}
	c.pending = cache
	return c
}

func (c *Coordinator) onEvict(key, value interface{}) {
	entry := value.(*pendingEntry)
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.done {
		return
	}
	entry.done = true
	c.log.Warn("rpc pending entry evicted before completion", "nonce", key)
}

// Subscribe adds session to the set of sessions this node fans RPC
// commands out to.
func (c *Coordinator) Subscribe(session common.Nonce) {
	c.sessions.Add(session)
}

// Unsubscribe removes session, e.g. on that tunnel's close — cancelling
// every pending reply routed through it (§4.6 Cancellation) and
// re-evaluating session_count for entries still waiting on it.
func (c *Coordinator) Unsubscribe(session common.Nonce) {
	c.sessions.Remove(session)

	c.mu.Lock()
	keys := c.pending.Keys()
	c.mu.Unlock()

	for _, k := range keys {
		c.mu.Lock()
		v, ok := c.pending.Peek(k)
		c.mu.Unlock()
		if !ok {
			continue
		}
		c.resolveSession(v.(*pendingEntry), k.(common.Nonce), session)
	}
}

// Dispatch runs the fan-out algorithm for req, invoking continuation at
// most once with the aggregated Result (never if the entry is evicted from
// the pending table first).
func (c *Coordinator) Dispatch(req Request, continuation Continuation) error {
	if !req.Type.known() {
		return common.ErrUnknownTopic
	}

	entry := &pendingEntry{
		req:          req,
		result:       Result{Type: req.Type},
		remaining:    c.sessions.Clone(),
		continuation: continuation,
	}

	c.mu.Lock()
	c.pending.Add(req.Nonce, entry)
	c.mu.Unlock()

	if entry.remaining.Cardinality() == 0 {
		c.completeLocally(entry, req.Nonce)
		return nil
	}

	var firstErr error
	for _, s := range entry.remaining.ToSlice() {
		if err := c.send(s.(common.Nonce), req); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Reply merges a fork node's response for nonce, completing the
// continuation once every subscribed session has answered.
func (c *Coordinator) Reply(nonce common.Nonce, session common.Nonce, result Result) {
	c.mu.Lock()
	v, ok := c.pending.Peek(nonce)
	c.mu.Unlock()
	if !ok {
		c.log.Debug("rpc reply for unknown nonce", "nonce", nonce, "err", common.ErrRpcNonceUnknown)
		return
	}
	entry := v.(*pendingEntry)

	entry.mu.Lock()
	if entry.done || !entry.remaining.Contains(session) {
		entry.mu.Unlock()
		return
	}
	entry.result = Merge(entry.result, result)
	entry.remaining.Remove(session)
	remaining := entry.remaining.Cardinality()
	shortCircuit := entry.req.Type == TypeGetBlockLocation && len(entry.result.BlockLocation) > 0
	entry.mu.Unlock()

	// GET_BLOCK_LOCATION stops waiting on the rest of entry.remaining the
	// moment any session answers with a non-empty location: the root does
	// not know in advance which fork node holds the block, but once one
	// says it does there is nothing left to learn from the others.
	if remaining == 0 || shortCircuit {
		c.completeLocally(entry, nonce)
	}
}

// resolveSession treats session as having vanished (tunnel closed) for
// entry: same bookkeeping as a (contribution-less) Reply.
func (c *Coordinator) resolveSession(entry *pendingEntry, nonce, session common.Nonce) {
	entry.mu.Lock()
	if entry.done || !entry.remaining.Contains(session) {
		entry.mu.Unlock()
		return
	}
	entry.remaining.Remove(session)
	remaining := entry.remaining.Cardinality()
	entry.mu.Unlock()

	if remaining == 0 {
		c.completeLocally(entry, nonce)
	}
}

// completeLocally merges this node's own contribution into entry and fires
// its continuation exactly once.
func (c *Coordinator) completeLocally(entry *pendingEntry, nonce common.Nonce) {
	entry.mu.Lock()
	if entry.done {
		entry.mu.Unlock()
		return
	}
	entry.done = true
	final := Merge(entry.result, c.local(entry.req))
	cont := entry.continuation
	entry.mu.Unlock()

	c.mu.Lock()
	c.pending.Remove(nonce)
	c.mu.Unlock()

	cont(final)
}
