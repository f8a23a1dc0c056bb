// Copyright 2014 The go-probeum Authors
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

package common

import (
	"encoding/hex"
	"sort"
)

// HashLength is the byte length of a Hash256 / ForkId.
const HashLength = 32

// Hash256 is an opaque 256-bit identifier, used both for inventory hashes
// and as the raw representation a ForkId is built from.
type Hash256 [HashLength]byte

// Hex returns the lowercase hex encoding of h, with no leading "0x".
func (h Hash256) Hex() string {
	return hex.EncodeToString(h[:])
}

func (h Hash256) String() string { return h.Hex() }

// IsZero reports whether h is the all-zero hash, used on the wire to mean
// "not applicable" for an optional ForkId field (§6).
func (h Hash256) IsZero() bool {
	return h == Hash256{}
}

// BytesToHash256 copies b (which must be HashLength bytes, shorter inputs
// are left-padded with zero) into a Hash256.
func BytesToHash256(b []byte) Hash256 {
	var h Hash256
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

// ForkId names a side-chain. It is equality-comparable, hashable (usable as
// a map key) and totally ordered via Less, which iteration over any
// ForkId-keyed collection should use when the spec requires deterministic
// order.
type ForkId = Hash256

// Less gives ForkId (and Hash256) a total order for deterministic iteration,
// e.g. when listing forks in an RPC result.
func Less(a, b Hash256) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// SortHashes sorts a slice of Hash256 in place using Less.
func SortHashes(hs []Hash256) {
	sort.Slice(hs, func(i, j int) bool { return Less(hs[i], hs[j]) })
}

// Nonce is the 64-bit origin identifier carried by every PeerEvent.
type Nonce uint64

// NonceLocal is the reserved nonce meaning "originated locally / destined
// for all"; any other value names a specific remote peer session.
const NonceLocal Nonce = ^Nonce(0)

// IsLocal reports whether n is the reserved local/broadcast nonce.
func (n Nonce) IsLocal() bool { return n == NonceLocal }
