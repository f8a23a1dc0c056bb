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

// Package ledger implements the solicited-data ledger (spec §4.5): the
// per-(fork, origin-nonce) record of inventory hashes this node asked for,
// consumed one hash at a time as matching blocks/transactions arrive from
// upstream. The contract only forbids false positives (Consume must never
// report true for a hash that was never recorded); it never age-evicts on
// its own.
package ledger

import (
	"sync"

	"github.com/probeum/superfork/common"
)

type key struct {
	fork  common.ForkId
	nonce common.Nonce
}

// Ledger is the map (ForkId, Nonce) → set<Hash256> described in spec §3,
// mutated only by the component that issues GetData.
type Ledger struct {
	mu      sync.Mutex
	entries map[key]map[common.Hash256]struct{}
}

// New returns an empty Ledger.
func New() *Ledger {
	return &Ledger{entries: make(map[key]map[common.Hash256]struct{})}
}

// Record replaces the entire solicited set for (fork, nonce) with hashes.
// An empty hashes clears the entry outright.
func (l *Ledger) Record(fork common.ForkId, nonce common.Nonce, hashes []common.Hash256) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := key{fork: fork, nonce: nonce}
	if len(hashes) == 0 {
		delete(l.entries, k)
		return
	}
	set := make(map[common.Hash256]struct{}, len(hashes))
	for _, h := range hashes {
		set[h] = struct{}{}
	}
	l.entries[k] = set
}

// Consume reports whether hash was present in the solicited set for
// (fork, nonce); on true it removes hash from the set. A missing
// (fork, nonce) — including one that was never recorded — returns false.
// This is also the IsThisNodeData check spec §4.4/I5 requires before a fork
// node delivers an inbound Block/Tx to its local peer network: the check
// and the consumption are the same atomic operation, since a solicited hash
// is only ever expected to arrive once.
func (l *Ledger) Consume(fork common.ForkId, nonce common.Nonce, hash common.Hash256) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := key{fork: fork, nonce: nonce}
	set, ok := l.entries[k]
	if !ok {
		return false
	}
	if _, ok := set[hash]; !ok {
		return false
	}
	delete(set, hash)
	if len(set) == 0 {
		delete(l.entries, k)
	}
	return true
}

// Forget clears the entire entry for (fork, nonce). A peer session's
// Deactive is handled by ForgetNonce instead, which clears every fork.
func (l *Ledger) Forget(fork common.ForkId, nonce common.Nonce) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key{fork: fork, nonce: nonce})
}

// ForgetNonce clears every entry whose key nonce equals nonce, regardless of
// fork — used on a Deactive for that peer session (spec §5 Cancellation).
func (l *Ledger) ForgetNonce(nonce common.Nonce) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k := range l.entries {
		if k.nonce == nonce {
			delete(l.entries, k)
		}
	}
}

// Pending returns the still-outstanding hash set for (fork, nonce), for
// diagnostics and tests. The returned slice is a snapshot copy.
func (l *Ledger) Pending(fork common.ForkId, nonce common.Nonce) []common.Hash256 {
	l.mu.Lock()
	defer l.mu.Unlock()
	set, ok := l.entries[key{fork: fork, nonce: nonce}]
	if !ok {
		return nil
	}
	out := make([]common.Hash256, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	common.SortHashes(out)
	return out
}
