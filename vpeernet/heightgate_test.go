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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/probeum/superfork/common"
)

func TestWatermarkGateAllowsUntrackedForksThrough(t *testing.T) {
	g := NewWatermarkGate()
	assert.True(t, g.Allow(forkN(1), forkN(9)))
}

func TestWatermarkGateAllowsOnlyTheTrackedHash(t *testing.T) {
	g := NewWatermarkGate()
	fork := forkN(1)
	g.Track(fork, 5, forkN(7))

	assert.True(t, g.Allow(fork, forkN(7)))
	assert.False(t, g.Allow(fork, forkN(8)))
}

func TestWatermarkGateAdvanceMovesToTheNextHash(t *testing.T) {
	g := NewWatermarkGate()
	fork := forkN(1)
	g.Track(fork, 5, forkN(7))

	g.Advance(fork, 6, forkN(8))

	assert.False(t, g.Allow(fork, forkN(7)), "the old watermark must no longer be accepted")
	assert.True(t, g.Allow(fork, forkN(8)))
}

func TestWatermarkGateTracksForksIndependently(t *testing.T) {
	g := NewWatermarkGate()
	var untracked common.ForkId
	g.Track(forkN(1), 1, forkN(100))

	assert.True(t, g.Allow(untracked, forkN(200)), "a different, untracked fork must pass through untouched")
}
