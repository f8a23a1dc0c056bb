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

package ledger

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/probeum/superfork/common"
)

// Bounded is the memory-pressure variant spec §4.5 calls out: "implementers
// may add a bounded LRU if memory pressure requires it — the contract only
// forbids false positives." Evicting a (fork, nonce) entry early can never
// produce a false positive (Consume on an evicted entry just returns false,
// as if it had never been recorded), so this is safe to swap in for Ledger
// wherever a size cap matters more than perfect recall.
type Bounded struct {
	mu    sync.Mutex
	cache *lru.Cache
}

// NewBounded returns a Bounded ledger holding at most size distinct
// (fork, nonce) entries.
func NewBounded(size int) *Bounded {
	c, err := lru.New(size)
	if err != nil {
		// Only returned for size <= 0; callers pass a compile-time constant.
		panic(err)
	}
	return &Bounded{cache: c}
}

func (b *Bounded) Record(fork common.ForkId, nonce common.Nonce, hashes []common.Hash256) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := key{fork: fork, nonce: nonce}
	if len(hashes) == 0 {
		b.cache.Remove(k)
		return
	}
	set := make(map[common.Hash256]struct{}, len(hashes))
	for _, h := range hashes {
		set[h] = struct{}{}
	}
	b.cache.Add(k, set)
}

func (b *Bounded) Consume(fork common.ForkId, nonce common.Nonce, hash common.Hash256) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := key{fork: fork, nonce: nonce}
	v, ok := b.cache.Get(k)
	if !ok {
		return false
	}
	set := v.(map[common.Hash256]struct{})
	if _, ok := set[hash]; !ok {
		return false
	}
	delete(set, hash)
	if len(set) == 0 {
		b.cache.Remove(k)
	}
	return true
}

func (b *Bounded) Forget(fork common.ForkId, nonce common.Nonce) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cache.Remove(key{fork: fork, nonce: nonce})
}
