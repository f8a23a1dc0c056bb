// Copyright 2017 The go-probeum Authors
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

// Package router implements the subscription router (spec §4.3): the
// per-direction reference-counted fork-subscription tables that decide
// whether an incoming subscribe/unsubscribe must be forwarded upstream.
// Whether an inbound block/tx/inv is delivered to the local peer network is
// decided by the vpeernet dispatcher, not by these tables.
//
// Two tables are kept deliberately separate rather than merged into one:
// the downstream table speaks for a root node's children, the local table
// speaks for a fork node's own consumers relative to its parent. Conflating
// them has historically caused forwarding loops.
package router

import (
	"sync"

	"github.com/probeum/superfork/common"
)

type key struct {
	fork  common.ForkId
	nonce common.Nonce
}

// Router owns the downstream-count table (used on a root node, counting
// distinct downstream fork nodes) and the local-count table (used on a fork
// node, counting the node's own local consumers), each keyed by
// (ForkId, Nonce) per the newer dbpservice semantics (spec §9 Open Question).
type Router struct {
	mu         sync.Mutex
	downstream map[key]int
	local      map[key]int
}

// New returns an empty Router.
func New() *Router {
	return &Router{
		downstream: make(map[key]int),
		local:      make(map[key]int),
	}
}

// FilterChildSubscribe increments the downstream count for (fork, nonce) for
// every fork in forks, and returns the subset that transitioned 0→1 — the
// forks that must be forwarded upstream as a new Subscribe. Iteration order
// over forks is preserved in the result. The empty slice (never nil) is
// returned when nothing needs forwarding; callers must not emit an upstream
// message with an empty fork list.
func (r *Router) FilterChildSubscribe(nonce common.Nonce, forks []common.ForkId) []common.ForkId {
	r.mu.Lock()
	defer r.mu.Unlock()
	return transition(r.downstream, nonce, forks, +1)
}

// FilterChildUnsubscribe is the symmetric decrement: it returns the forks
// whose downstream count transitioned 1→0, erasing their table entries.
// Unsubscribing an unknown (fork, nonce) is silently ignored — it never
// appears in the result and never goes negative.
func (r *Router) FilterChildUnsubscribe(nonce common.Nonce, forks []common.ForkId) []common.ForkId {
	r.mu.Lock()
	defer r.mu.Unlock()
	return transition(r.downstream, nonce, forks, -1)
}

// FilterThisSubscribe is FilterChildSubscribe against the local table.
func (r *Router) FilterThisSubscribe(nonce common.Nonce, forks []common.ForkId) []common.ForkId {
	r.mu.Lock()
	defer r.mu.Unlock()
	return transition(r.local, nonce, forks, +1)
}

// FilterThisUnsubscribe is FilterChildUnsubscribe against the local table.
func (r *Router) FilterThisUnsubscribe(nonce common.Nonce, forks []common.ForkId) []common.ForkId {
	r.mu.Lock()
	defer r.mu.Unlock()
	return transition(r.local, nonce, forks, -1)
}

// transition applies delta (+1 or -1) to tbl[(fork, nonce)] for each fork in
// forks and collects the forks whose count crossed the 0/1 boundary in the
// direction implied by delta.
func transition(tbl map[key]int, nonce common.Nonce, forks []common.ForkId, delta int) []common.ForkId {
	out := make([]common.ForkId, 0, len(forks))
	for _, f := range forks {
		k := key{fork: f, nonce: nonce}
		count := tbl[k]
		if delta > 0 {
			count++
			tbl[k] = count
			if count == 1 {
				out = append(out, f)
			}
		} else {
			if count == 0 {
				// Unsubscribe of an unknown key: never fatal, never
				// forwarded, never goes negative.
				continue
			}
			count--
			if count == 0 {
				delete(tbl, k)
				out = append(out, f)
			} else {
				tbl[k] = count
			}
		}
	}
	return out
}

// DownstreamCount returns the current reference count for (fork, nonce) in
// the downstream table, for tests and diagnostics.
func (r *Router) DownstreamCount(nonce common.Nonce, fork common.ForkId) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.downstream[key{fork: fork, nonce: nonce}]
}

// LocalCount returns the current reference count for (fork, nonce) in the
// local table, for tests and diagnostics.
func (r *Router) LocalCount(nonce common.Nonce, fork common.ForkId) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.local[key{fork: fork, nonce: nonce}]
}
