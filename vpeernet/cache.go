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
	"bytes"
	"encoding/binary"
	"sync"

	"github.com/VictoriaMetrics/fastcache"

	"github.com/probeum/superfork/common"
	"github.com/probeum/superfork/event"
	"github.com/probeum/superfork/wire"
)

// defaultCacheBytes bounds the peer-event cache's byte store. Design notes
// §9 call for implementers to bound this "by the configured max-peer
// count"; a fixed byte budget is fastcache's native knob and comfortably
// covers a max-peer count in the low thousands.
const defaultCacheBytes = 8 << 20 // 8 MiB

// PeerCache retains the last Active envelope per connected peer nonce so a
// late-joining consumer (a reconnecting tunnel) can replay the current peer
// set (§3, scenario 6). The byte values live in a fastcache.Cache keyed by
// nonce; insertion order — which fastcache itself does not track, since it
// has no iteration API — is kept in a small side slice so ReplayInOrder can
// honor scenario 6's ordering requirement.
type PeerCache struct {
	mu    sync.Mutex
	bytes *fastcache.Cache
	order []common.Nonce
	have  map[common.Nonce]struct{}
}

// NewPeerCache returns an empty PeerCache.
func NewPeerCache() *PeerCache {
	return &PeerCache{
		bytes: fastcache.New(defaultCacheBytes),
		have:  make(map[common.Nonce]struct{}),
	}
}

func nonceKey(n common.Nonce) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(n))
	return b[:]
}

// Put stores env as the last-known Active envelope for its nonce.
func (c *PeerCache) Put(env *event.VPeerEnvelope) error {
	var buf bytes.Buffer
	if err := wire.WriteFrame(&buf, wire.Frame{Type: uint16(env.Type), Nonce: env.Nonce, Fork: env.Fork, Payload: env.Payload}); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bytes.Set(nonceKey(env.Nonce), buf.Bytes())
	if _, ok := c.have[env.Nonce]; !ok {
		c.have[env.Nonce] = struct{}{}
		c.order = append(c.order, env.Nonce)
	}
	return nil
}

// Erase removes the cached envelope for nonce, e.g. on that peer's Deactive.
func (c *PeerCache) Erase(nonce common.Nonce) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.have[nonce]; !ok {
		return
	}
	delete(c.have, nonce)
	c.bytes.Del(nonceKey(nonce))
	for i, n := range c.order {
		if n == nonce {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// ReplayInOrder returns every currently cached Active envelope in the order
// it was first inserted, as scenario 6 requires for a reconnecting tunnel.
func (c *PeerCache) ReplayInOrder() ([]*event.VPeerEnvelope, error) {
	c.mu.Lock()
	order := append([]common.Nonce(nil), c.order...)
	c.mu.Unlock()

	out := make([]*event.VPeerEnvelope, 0, len(order))
	for _, n := range order {
		raw := c.bytes.Get(nil, nonceKey(n))
		if raw == nil {
			continue
		}
		f, _, err := wire.DecodeFrameBuffer(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, &event.VPeerEnvelope{
			Type:    event.Kind(f.Type),
			Nonce:   f.Nonce,
			Fork:    f.Fork,
			Payload: f.Payload,
		})
	}
	return out, nil
}
