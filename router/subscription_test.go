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

package router

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

func TestFilterChildSubscribeForwardsOnFirstReference(t *testing.T) {
	r := New()
	forkA, forkB := forkN(1), forkN(2)

	got := r.FilterChildSubscribe(10, []common.ForkId{forkA, forkB})
	assert.ElementsMatch(t, []common.ForkId{forkA, forkB}, got)
	assert.Equal(t, 1, r.DownstreamCount(10, forkA))
}

func TestFilterChildSubscribeSuppressesRepeatReference(t *testing.T) {
	r := New()
	fork := forkN(1)

	r.FilterChildSubscribe(10, []common.ForkId{fork})
	got := r.FilterChildSubscribe(10, []common.ForkId{fork})
	assert.Empty(t, got, "a second subscribe under the same (fork, nonce) key must not re-forward")
}

func TestFilterChildUnsubscribeForwardsOnLastReference(t *testing.T) {
	r := New()
	fork := forkN(1)

	r.FilterChildSubscribe(10, []common.ForkId{fork})
	got := r.FilterChildUnsubscribe(10, []common.ForkId{fork})
	assert.ElementsMatch(t, []common.ForkId{fork}, got)
	assert.Equal(t, 0, r.DownstreamCount(10, fork))
}

func TestFilterChildUnsubscribeOfUnknownKeyIsIgnored(t *testing.T) {
	r := New()
	got := r.FilterChildUnsubscribe(10, []common.ForkId{forkN(9)})
	assert.Empty(t, got)
	assert.Equal(t, 0, r.DownstreamCount(10, forkN(9)))
}

func TestDownstreamAndLocalTablesAreIndependent(t *testing.T) {
	r := New()
	fork := forkN(1)

	r.FilterChildSubscribe(10, []common.ForkId{fork})
	r.FilterThisSubscribe(10, []common.ForkId{fork})

	assert.Equal(t, 1, r.DownstreamCount(10, fork))
	assert.Equal(t, 1, r.LocalCount(10, fork))

	r.FilterChildUnsubscribe(10, []common.ForkId{fork})
	assert.Equal(t, 0, r.DownstreamCount(10, fork))
	assert.Equal(t, 1, r.LocalCount(10, fork), "unsubscribing the downstream table must not affect the local table")
}

func TestDistinctNoncesKeepIndependentCounts(t *testing.T) {
	r := New()
	fork := forkN(1)

	got1 := r.FilterChildSubscribe(10, []common.ForkId{fork})
	got2 := r.FilterChildSubscribe(20, []common.ForkId{fork})

	assert.ElementsMatch(t, []common.ForkId{fork}, got1)
	assert.ElementsMatch(t, []common.ForkId{fork}, got2, "a distinct nonce is a distinct table key even for the same fork")
}
