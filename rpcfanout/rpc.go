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

// Package rpcfanout implements the distributed RPC fan-out coordinator
// (spec §4.6): administrative commands broadcast across every subscribed
// fork-node session and re-aggregated by a type-specific merge rule.
package rpcfanout

import "github.com/probeum/superfork/common"

// Type identifies an administrative RPC command.
type Type uint16

const (
	TypeStop             Type = 1
	TypeGetForkCount     Type = 2
	TypeListFork         Type = 3
	TypeGetBlockLocation Type = 4
)

// known reports whether t is one of the administrative RPC commands this
// fan-out understands. A frame naming anything else is a stale or
// forward-incompatible peer speaking a command set this build doesn't.
func (t Type) known() bool {
	switch t {
	case TypeStop, TypeGetForkCount, TypeListFork, TypeGetBlockLocation:
		return true
	default:
		return false
	}
}

func (t Type) String() string {
	switch t {
	case TypeStop:
		return "STOP"
	case TypeGetForkCount:
		return "GET_FORK_COUNT"
	case TypeListFork:
		return "LIST_FORK"
	case TypeGetBlockLocation:
		return "GET_BLOCK_LOCATION"
	default:
		return "UNKNOWN"
	}
}

// Request is one administrative RPC command.
type Request struct {
	Type    Type
	Nonce   common.Nonce
	Payload []byte
}

// Result is one node's (partial or final) contribution to a Request.
type Result struct {
	Type Type

	// ForkCount is TypeGetForkCount's contribution.
	ForkCount int

	// Forks is TypeListFork's contribution: fork ids this node (or one of
	// its descendants) currently serves.
	Forks []common.ForkId

	// BlockLocation is TypeGetBlockLocation's contribution; empty means
	// "this node doesn't have it".
	BlockLocation []byte
}

// Merge combines o into r according to the type-specific rule spec §4.6
// step 5 defines, returning the merged Result. r's own Type must match o's.
func Merge(r, o Result) Result {
	switch r.Type {
	case TypeGetForkCount:
		r.ForkCount += o.ForkCount
	case TypeListFork:
		r.Forks = dedupeForks(append(r.Forks, o.Forks...))
	case TypeGetBlockLocation:
		if len(r.BlockLocation) == 0 {
			r.BlockLocation = o.BlockLocation
		}
	case TypeStop:
		// No merge: STOP carries no payload worth combining, only the
		// session_count-reaches-zero signal to shut down.
	}
	return r
}

// dedupeForks concatenates-then-dedupes by fork hex, retaining the first
// occurrence, per spec §4.6's LIST_FORK rule.
func dedupeForks(forks []common.ForkId) []common.ForkId {
	seen := make(map[common.ForkId]struct{}, len(forks))
	out := make([]common.ForkId, 0, len(forks))
	for _, f := range forks {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
