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

package vpeernet

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probeum/superfork/common"
	"github.com/probeum/superfork/event"
	"github.com/probeum/superfork/ledger"
	"github.com/probeum/superfork/router"
	"github.com/probeum/superfork/wire"
)

type recordingPeerNet struct {
	mu  sync.Mutex
	got []*event.PeerEvent
}

func (p *recordingPeerNet) Dispatch(e *event.PeerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, e)
	return nil
}

func (p *recordingPeerNet) events() []*event.PeerEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*event.PeerEvent(nil), p.got...)
}

type recordingChildren struct {
	mu       sync.Mutex
	pushAll  []*event.VPeerEnvelope
	pushedTo map[common.Nonce][]*event.VPeerEnvelope
}

func newRecordingChildren() *recordingChildren {
	return &recordingChildren{pushedTo: make(map[common.Nonce][]*event.VPeerEnvelope)}
}

func (c *recordingChildren) PushAll(env *event.VPeerEnvelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pushAll = append(c.pushAll, env)
	return nil
}

func (c *recordingChildren) PushOthers(from common.Nonce, env *event.VPeerEnvelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pushedTo[from] = append(c.pushedTo[from], env)
	return nil
}

type recordingUpstream struct {
	mu  sync.Mutex
	got []*event.VPeerEnvelope
}

func (u *recordingUpstream) Send(env *event.VPeerEnvelope) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.got = append(u.got, env)
	return nil
}

func (u *recordingUpstream) envelopes() []*event.VPeerEnvelope {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]*event.VPeerEnvelope(nil), u.got...)
}

func forkN(b byte) common.ForkId {
	var f common.ForkId
	f[0] = b
	return f
}

func newRootDispatcher() (*Dispatcher, *recordingPeerNet, *recordingChildren) {
	peerNet := &recordingPeerNet{}
	children := newRecordingChildren()
	d := New(Config{
		Role:     RoleRoot,
		PeerNet:  peerNet,
		Children: children,
		Router:   router.New(),
		Ledger:   ledger.New(),
		Cache:    NewPeerCache(),
	})
	return d, peerNet, children
}

func newForkDispatcher() (*Dispatcher, *recordingPeerNet, *recordingUpstream) {
	return newForkDispatcherWithGate(nil)
}

func newForkDispatcherWithGate(gate HeightGate) (*Dispatcher, *recordingPeerNet, *recordingUpstream) {
	peerNet := &recordingPeerNet{}
	upstream := &recordingUpstream{}
	d := New(Config{
		Role:     RoleFork,
		PeerNet:  peerNet,
		Upstream: upstream,
		Router:   router.New(),
		Ledger:   ledger.New(),
		Cache:    NewPeerCache(),
		Height:   gate,
	})
	return d, peerNet, upstream
}

func TestHandleLocalRootActiveFansOutToChildren(t *testing.T) {
	d, _, children := newRootDispatcher()
	e := &event.PeerEvent{Kind: event.KindActive, Nonce: 1, Active: &event.Active{Address: "1.2.3.4:1"}}

	require.NoError(t, d.HandleLocal(e))
	assert.Len(t, children.pushAll, 1)
	assert.Equal(t, event.KindActive, children.pushAll[0].Type)
}

func TestHandleLocalDropsSelfEcho(t *testing.T) {
	d, _, children := newRootDispatcher()
	e := &event.PeerEvent{Kind: event.KindActive, Nonce: 1, Active: &event.Active{Address: "x"}, Flow: event.FlowUp, Sender: "dispatcher"}

	require.NoError(t, d.HandleLocal(e))
	assert.Empty(t, children.pushAll, "an echo of this dispatcher's own outbound event must never be re-dispatched")
}

func TestHandleLocalForkSubscribeForwardsOnlyOnFirstReference(t *testing.T) {
	d, _, upstream := newForkDispatcher()
	fork := forkN(1)
	sub := &event.PeerEvent{Kind: event.KindSubscribe, Nonce: 5, Subscribe: &event.Subscribe{Forks: []common.ForkId{fork}}}

	require.NoError(t, d.HandleLocal(sub))
	require.NoError(t, d.HandleLocal(sub))

	assert.Len(t, upstream.envelopes(), 1, "a repeat subscribe under the same (fork, nonce) must not forward again")
}

func TestHandleEnvelopeFromParentDropsUnsolicitedData(t *testing.T) {
	d, peerNet, _ := newForkDispatcher()
	fork := forkN(1)
	tx := &event.PeerEvent{Kind: event.KindTx, Nonce: 99, Fork: fork, Tx: &event.Tx{Hash: forkN(7), Data: []byte("payload")}}
	env, err := wire.EnvelopeFromEvent(tx)
	require.NoError(t, err)

	require.NoError(t, d.HandleEnvelopeFromParent(env))
	assert.Empty(t, peerNet.events(), "a Tx never solicited via GetData must be dropped, not delivered locally")
}

func TestHandleEnvelopeFromParentDeliversSolicitedData(t *testing.T) {
	d, peerNet, _ := newForkDispatcher()
	fork := forkN(1)
	hash := forkN(7)

	getData := &event.PeerEvent{Kind: event.KindGetData, Nonce: 99, Fork: fork, GetData: &event.GetData{Inv: []common.Hash256{hash}}}
	require.NoError(t, d.HandleLocal(getData))

	tx := &event.PeerEvent{Kind: event.KindTx, Nonce: 99, Fork: fork, Tx: &event.Tx{Hash: hash, Data: []byte("payload")}}
	env, err := wire.EnvelopeFromEvent(tx)
	require.NoError(t, err)

	require.NoError(t, d.HandleEnvelopeFromParent(env))
	require.Len(t, peerNet.events(), 1)
	assert.Equal(t, event.KindTx, peerNet.events()[0].Kind)
}

func TestHandleEnvelopeFromParentDropsBlockThatMissesTheWatermark(t *testing.T) {
	gate := NewWatermarkGate()
	fork := forkN(1)
	expected := forkN(7)
	gate.Track(fork, 10, expected)

	d, peerNet, _ := newForkDispatcherWithGate(gate)
	getData := &event.PeerEvent{Kind: event.KindGetData, Nonce: 99, Fork: fork, GetData: &event.GetData{Inv: []common.Hash256{forkN(9)}}}
	require.NoError(t, d.HandleLocal(getData))

	block := &event.PeerEvent{Kind: event.KindBlock, Nonce: 99, Fork: fork, Block: &event.Block{Hash: forkN(9), Data: []byte("wrong block")}}
	env, err := wire.EnvelopeFromEvent(block)
	require.NoError(t, err)

	require.NoError(t, d.HandleEnvelopeFromParent(env))
	assert.Empty(t, peerNet.events(), "a block whose hash does not match the tracked watermark must be dropped even though it was solicited")
}

func TestHandleEnvelopeFromParentDeliversBlockMatchingTheWatermark(t *testing.T) {
	gate := NewWatermarkGate()
	fork := forkN(1)
	expected := forkN(7)
	gate.Track(fork, 10, expected)

	d, peerNet, _ := newForkDispatcherWithGate(gate)
	getData := &event.PeerEvent{Kind: event.KindGetData, Nonce: 99, Fork: fork, GetData: &event.GetData{Inv: []common.Hash256{expected}}}
	require.NoError(t, d.HandleLocal(getData))

	block := &event.PeerEvent{Kind: event.KindBlock, Nonce: 99, Fork: fork, Block: &event.Block{Hash: expected, Data: []byte("the expected block")}}
	env, err := wire.EnvelopeFromEvent(block)
	require.NoError(t, err)

	require.NoError(t, d.HandleEnvelopeFromParent(env))
	require.Len(t, peerNet.events(), 1)
	assert.Equal(t, event.KindBlock, peerNet.events()[0].Kind)
}

func TestHandleEnvelopeFromChildSubscribeForwardsDeltaUpstream(t *testing.T) {
	d, peerNet, children := newRootDispatcher()
	fork := forkN(1)
	sub := &event.PeerEvent{Kind: event.KindSubscribe, Nonce: 5, Subscribe: &event.Subscribe{Forks: []common.ForkId{fork}}}
	env, err := wire.EnvelopeFromEvent(sub)
	require.NoError(t, err)

	require.NoError(t, d.HandleEnvelopeFromChild(10, env))
	require.Len(t, peerNet.events(), 1)
	assert.Equal(t, event.KindSubscribe, peerNet.events()[0].Kind)
	assert.Empty(t, children.pushedTo, "subscribe traffic is not fanned out to siblings, only forwarded upstream")
}

func TestHandleEnvelopeFromChildInvIsRelayedToOtherChildren(t *testing.T) {
	d, peerNet, children := newRootDispatcher()
	inv := &event.PeerEvent{Kind: event.KindInv, Nonce: 1, Fork: forkN(1), Inv: &event.Inv{Hashes: []common.Hash256{forkN(9)}}}
	env, err := wire.EnvelopeFromEvent(inv)
	require.NoError(t, err)

	require.NoError(t, d.HandleEnvelopeFromChild(10, env))
	assert.Len(t, peerNet.events(), 1)
	assert.Len(t, children.pushedTo[10], 1, "an Inv from child 10 must be relayed to every other child, keyed by the reporting child")
}
