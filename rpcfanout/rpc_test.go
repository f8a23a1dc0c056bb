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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/probeum/superfork/common"
)

func forkN(b byte) common.ForkId {
	var f common.ForkId
	f[0] = b
	return f
}

func TestMergeGetForkCountSums(t *testing.T) {
	r := Merge(Result{Type: TypeGetForkCount, ForkCount: 2}, Result{Type: TypeGetForkCount, ForkCount: 3})
	assert.Equal(t, 5, r.ForkCount)
}

func TestMergeListForkDedupesRetainingFirst(t *testing.T) {
	a, b, c := forkN(1), forkN(2), forkN(1)
	r := Merge(Result{Type: TypeListFork, Forks: []common.ForkId{a, b}}, Result{Type: TypeListFork, Forks: []common.ForkId{c, forkN(3)}})
	assert.Equal(t, []common.ForkId{a, b, forkN(3)}, r.Forks)
}

func TestMergeGetBlockLocationFirstNonEmptyWins(t *testing.T) {
	loc := []byte("node-7")
	r := Merge(Result{Type: TypeGetBlockLocation}, Result{Type: TypeGetBlockLocation, BlockLocation: loc})
	assert.Equal(t, loc, r.BlockLocation)

	r2 := Merge(Result{Type: TypeGetBlockLocation, BlockLocation: loc}, Result{Type: TypeGetBlockLocation, BlockLocation: []byte("node-9")})
	assert.Equal(t, loc, r2.BlockLocation, "first non-empty answer must not be overwritten by a later one")
}

func TestMergeStopIsANoop(t *testing.T) {
	r := Merge(Result{Type: TypeStop}, Result{Type: TypeStop})
	assert.Equal(t, Result{Type: TypeStop}, r)
}

func TestTypeStringsMatchSpecNames(t *testing.T) {
	assert.Equal(t, "STOP", TypeStop.String())
	assert.Equal(t, "GET_FORK_COUNT", TypeGetForkCount.String())
	assert.Equal(t, "LIST_FORK", TypeListFork.String())
	assert.Equal(t, "GET_BLOCK_LOCATION", TypeGetBlockLocation.String())
}
