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

package wire

import (
	"bytes"
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probeum/superfork/common"
	"github.com/probeum/superfork/event"
)

func hashN(b byte) common.Hash256 {
	var h common.Hash256
	h[0] = b
	return h
}

func TestEncodeDecodeEventRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		e    *event.PeerEvent
	}{
		{"active", &event.PeerEvent{Kind: event.KindActive, Nonce: 1, Fork: hashN(1), Active: &event.Active{Address: "10.0.0.1:30900"}}},
		{"subscribe", &event.PeerEvent{Kind: event.KindSubscribe, Nonce: 2, Subscribe: &event.Subscribe{Forks: []common.ForkId{hashN(1), hashN(2)}}}},
		{"unsubscribe-empty", &event.PeerEvent{Kind: event.KindUnsubscribe, Nonce: 3, Unsubscribe: &event.Unsubscribe{}}},
		{"inv", &event.PeerEvent{Kind: event.KindInv, Nonce: 4, Fork: hashN(3), Inv: &event.Inv{Hashes: []common.Hash256{hashN(9)}}}},
		{"tx-small", &event.PeerEvent{Kind: event.KindTx, Nonce: 5, Fork: hashN(4), Tx: &event.Tx{Hash: hashN(5), Data: []byte("tiny")}}},
		{"tx-compressible", &event.PeerEvent{Kind: event.KindTx, Nonce: 6, Fork: hashN(4), Tx: &event.Tx{Hash: hashN(6), Data: bytes.Repeat([]byte{0x42}, 4096)}}},
		{"block", &event.PeerEvent{Kind: event.KindBlock, Nonce: 7, Fork: hashN(5), Block: &event.Block{Hash: hashN(7), Data: bytes.Repeat([]byte("abc"), 500)}}},
		{"net-reward", &event.PeerEvent{Kind: event.KindNetReward, Nonce: 8, Fork: hashN(6), NetReward: &event.NetReward{Score: -5, Reason: "slow"}}},
		{"net-close", &event.PeerEvent{Kind: event.KindNetClose, Nonce: 9, Fork: hashN(7), NetClose: &event.NetClose{Reason: "idle"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := EncodeEvent(tt.e)
			require.NoError(t, err)

			got, err := DecodeEvent(b)
			require.NoError(t, err)
			if !tt.e.Equal(got) {
				t.Fatalf("round trip mismatch for %s\nwant:\n%s\ngot:\n%s", tt.name, spew.Sdump(tt.e), spew.Sdump(got))
			}
		})
	}
}

func TestDecodeEventRejectsTruncatedFrame(t *testing.T) {
	e := &event.PeerEvent{Kind: event.KindTx, Nonce: 1, Fork: hashN(1), Tx: &event.Tx{Hash: hashN(2), Data: []byte("payload")}}
	b, err := EncodeEvent(e)
	require.NoError(t, err)

	_, err = DecodeEvent(b[:len(b)-3])
	assert.ErrorIs(t, err, common.ErrMalformedFrame)
}

func TestDecodeEventRejectsUnknownKind(t *testing.T) {
	b, err := EncodeEvent(&event.PeerEvent{Kind: event.KindActive, Nonce: 1, Active: &event.Active{Address: "x"}})
	require.NoError(t, err)
	b[1] = 0xff // corrupt the kind tag past the last known value

	_, err = DecodeEvent(b)
	assert.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unknown kind") || err == common.ErrMalformedFrame)
}

func TestWriteCompressedBytesShrinksRepetitiveData(t *testing.T) {
	var buf bytes.Buffer
	repetitive := bytes.Repeat([]byte{0x7}, 8192)
	writeCompressedBytes(&buf, repetitive)
	assert.Less(t, buf.Len(), len(repetitive))

	r := bytes.NewReader(buf.Bytes())
	got, err := readCompressedBytes(r)
	require.NoError(t, err)
	assert.Equal(t, repetitive, got)
}

func TestWriteCompressedBytesKeepsIncompressibleDataRaw(t *testing.T) {
	incompressible := []byte{0x01, 0x02, 0x03}
	var buf bytes.Buffer
	writeCompressedBytes(&buf, incompressible)
	assert.Equal(t, byte(0), buf.Bytes()[0], "short payload should not flip the compressed flag")
}

func TestFrameRoundTrip(t *testing.T) {
	f := Frame{Type: FrameTypeRpcRequest, Nonce: 42, Fork: hashN(1), Payload: []byte("hello")}
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, f))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(f, got); diff != "" {
		t.Fatalf("frame round trip mismatch (-want +got):\n%s", diff)
	}
}
