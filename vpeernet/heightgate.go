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

package vpeernet

import (
	"sync"

	"github.com/probeum/superfork/common"
)

// HeightGate gates delivery of inbound Block data to the local peer net by
// a per-fork (height, hash) watermark, mirroring
// forkpseudopeernet.cpp's mapForkNodeHeight: a fork a gate has never seen
// passes through untouched, but once a watermark exists for a fork, only
// the block whose hash matches it is allowed through, and Advance moves the
// watermark to the block that follows.
//
// Installing a HeightGate is optional — a Dispatcher with none set performs
// no height gating at all, matching spec behavior before this hook existed.
type HeightGate interface {
	// Allow reports whether a block carrying hash may be delivered to the
	// peer net right now.
	Allow(fork common.ForkId, hash common.Hash256) bool
	// Advance moves the fork's watermark to hash, the next block hash Allow
	// accepts, recording height+1 as the watermark's height.
	Advance(fork common.ForkId, height uint64, hash common.Hash256)
}

type watermark struct {
	height uint64
	hash   common.Hash256
}

// WatermarkGate is the default HeightGate: an in-memory per-fork watermark
// table. A fork with no tracked watermark allows every block through,
// exactly as forkpseudopeernet.cpp's mapForkNodeHeight.find() miss does
// before the fork's first CFkEventNodeUpdateForkState.
type WatermarkGate struct {
	mu    sync.Mutex
	marks map[common.ForkId]watermark
}

// NewWatermarkGate returns an empty WatermarkGate; every fork passes
// through until Track establishes its first watermark.
func NewWatermarkGate() *WatermarkGate {
	return &WatermarkGate{marks: make(map[common.ForkId]watermark)}
}

// Track establishes or overwrites fork's watermark, e.g. on a
// CFkEventNodeUpdateForkState-equivalent report from the fork cluster of
// where it currently stands.
func (g *WatermarkGate) Track(fork common.ForkId, height uint64, hash common.Hash256) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.marks[fork] = watermark{height: height, hash: hash}
}

// Allow implements HeightGate.
func (g *WatermarkGate) Allow(fork common.ForkId, hash common.Hash256) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	w, tracked := g.marks[fork]
	if !tracked {
		return true
	}
	return w.hash == hash
}

// Advance implements HeightGate.
func (g *WatermarkGate) Advance(fork common.ForkId, height uint64, hash common.Hash256) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.marks[fork] = watermark{height: height + 1, hash: hash}
}
