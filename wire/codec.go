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

// Package wire implements the length-prefixed binary encoding of peer
// events and tunnel envelopes described in spec §4.1/§6: fixed-width
// integers, varint-prefixed variable-length fields, and 32-byte raw hashes.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/golang/snappy"

	"github.com/probeum/superfork/common"
	"github.com/probeum/superfork/event"
)

// EncodeEvent serializes a PeerEvent into a self-contained byte slice: kind,
// nonce, fork (when carried) followed by the kind-specific payload. The
// result is suitable both as a VPeerEnvelope.Payload and as the round-trip
// subject of DecodeEvent.
func EncodeEvent(e *event.PeerEvent) ([]byte, error) {
	var buf bytes.Buffer
	writeUint16(&buf, uint16(e.Kind))
	writeUint64(&buf, uint64(e.Nonce))
	if e.Kind.HasFork() {
		buf.Write(e.Fork[:])
	}
	if err := encodePayload(&buf, e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeEvent is the inverse of EncodeEvent. It returns common.ErrMalformedFrame
// if b is truncated or names an unknown kind.
func DecodeEvent(b []byte) (*event.PeerEvent, error) {
	r := bytes.NewReader(b)
	kindRaw, err := readUint16(r)
	if err != nil {
		return nil, common.ErrMalformedFrame
	}
	kind := event.Kind(kindRaw)
	nonceRaw, err := readUint64(r)
	if err != nil {
		return nil, common.ErrMalformedFrame
	}
	e := &event.PeerEvent{Kind: kind, Nonce: common.Nonce(nonceRaw)}
	if kind.HasFork() {
		var fork common.ForkId
		if n, _ := r.Read(fork[:]); n != common.HashLength {
			return nil, common.ErrMalformedFrame
		}
		e.Fork = fork
	}
	if err := decodePayload(r, e); err != nil {
		return nil, err
	}
	return e, nil
}

func encodePayload(buf *bytes.Buffer, e *event.PeerEvent) error {
	switch e.Kind {
	case event.KindActive:
		writeString(buf, e.Active.Address)
	case event.KindDeactive:
		writeString(buf, e.Deactive.Reason)
	case event.KindSubscribe:
		writeHashList(buf, e.Subscribe.Forks)
	case event.KindUnsubscribe:
		writeHashList(buf, e.Unsubscribe.Forks)
	case event.KindGetBlocks:
		writeHashList(buf, e.GetBlocks.Locator)
		buf.Write(e.GetBlocks.HashStop[:])
	case event.KindGetData:
		writeHashList(buf, e.GetData.Inv)
	case event.KindInv:
		writeHashList(buf, e.Inv.Hashes)
	case event.KindTx:
		buf.Write(e.Tx.Hash[:])
		writeCompressedBytes(buf, e.Tx.Data)
	case event.KindBlock:
		buf.Write(e.Block.Hash[:])
		writeCompressedBytes(buf, e.Block.Data)
	case event.KindNetReward:
		writeUint32(buf, uint32(e.NetReward.Score))
		writeString(buf, e.NetReward.Reason)
	case event.KindNetClose:
		writeString(buf, e.NetClose.Reason)
	default:
		return fmt.Errorf("%w: unknown kind %d", common.ErrMalformedFrame, e.Kind)
	}
	return nil
}

func decodePayload(r *bytes.Reader, e *event.PeerEvent) error {
	switch e.Kind {
	case event.KindActive:
		s, err := readString(r)
		if err != nil {
			return err
		}
		e.Active = &event.Active{Address: s}
	case event.KindDeactive:
		s, err := readString(r)
		if err != nil {
			return err
		}
		e.Deactive = &event.Deactive{Reason: s}
	case event.KindSubscribe:
		hs, err := readHashList(r)
		if err != nil {
			return err
		}
		e.Subscribe = &event.Subscribe{Forks: hs}
	case event.KindUnsubscribe:
		hs, err := readHashList(r)
		if err != nil {
			return err
		}
		e.Unsubscribe = &event.Unsubscribe{Forks: hs}
	case event.KindGetBlocks:
		hs, err := readHashList(r)
		if err != nil {
			return err
		}
		var stop common.Hash256
		if n, _ := r.Read(stop[:]); n != common.HashLength {
			return common.ErrMalformedFrame
		}
		e.GetBlocks = &event.GetBlocks{Locator: hs, HashStop: stop}
	case event.KindGetData:
		hs, err := readHashList(r)
		if err != nil {
			return err
		}
		e.GetData = &event.GetData{Inv: hs}
	case event.KindInv:
		hs, err := readHashList(r)
		if err != nil {
			return err
		}
		e.Inv = &event.Inv{Hashes: hs}
	case event.KindTx:
		var h common.Hash256
		if n, _ := r.Read(h[:]); n != common.HashLength {
			return common.ErrMalformedFrame
		}
		data, err := readCompressedBytes(r)
		if err != nil {
			return err
		}
		e.Tx = &event.Tx{Hash: h, Data: data}
	case event.KindBlock:
		var h common.Hash256
		if n, _ := r.Read(h[:]); n != common.HashLength {
			return common.ErrMalformedFrame
		}
		data, err := readCompressedBytes(r)
		if err != nil {
			return err
		}
		e.Block = &event.Block{Hash: h, Data: data}
	case event.KindNetReward:
		score, err := readUint32(r)
		if err != nil {
			return err
		}
		reason, err := readString(r)
		if err != nil {
			return err
		}
		e.NetReward = &event.NetReward{Score: int32(score), Reason: reason}
	case event.KindNetClose:
		reason, err := readString(r)
		if err != nil {
			return err
		}
		e.NetClose = &event.NetClose{Reason: reason}
	default:
		return fmt.Errorf("%w: unknown kind %d", common.ErrMalformedFrame, e.Kind)
	}
	return nil
}

// --- primitive helpers ---

func writeUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	var vb [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(vb[:], uint64(len(b)))
	buf.Write(vb[:n])
	buf.Write(b)
}

func writeString(buf *bytes.Buffer, s string) {
	writeBytes(buf, []byte(s))
}

func writeHashList(buf *bytes.Buffer, hs []common.Hash256) {
	var vb [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(vb[:], uint64(len(hs)))
	buf.Write(vb[:n])
	for _, h := range hs {
		buf.Write(h[:])
	}
}

func readUint16(r *bytes.Reader) (uint16, error) {
	var b [2]byte
	if n, _ := r.Read(b[:]); n != 2 {
		return 0, common.ErrMalformedFrame
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if n, _ := r.Read(b[:]); n != 4 {
		return 0, common.ErrMalformedFrame
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if n, _ := r.Read(b[:]); n != 8 {
		return 0, common.ErrMalformedFrame
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	l, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, common.ErrMalformedFrame
	}
	if int64(l) > int64(r.Len()) {
		return nil, common.ErrMalformedFrame
	}
	b := make([]byte, l)
	if _, err := r.Read(b); err != nil && l > 0 {
		return nil, common.ErrMalformedFrame
	}
	return b, nil
}

func readString(r *bytes.Reader) (string, error) {
	b, err := readBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// writeCompressedBytes writes b snappy-compressed when that's smaller, a
// one-byte flag ahead of the payload says which it is — self-describing,
// so a decoder needs no out-of-band agreement; compression is not
// negotiated and is applied whenever it shrinks the data.
func writeCompressedBytes(buf *bytes.Buffer, b []byte) {
	compressed := snappy.Encode(nil, b)
	if len(compressed) < len(b) {
		buf.WriteByte(1)
		writeBytes(buf, compressed)
		return
	}
	buf.WriteByte(0)
	writeBytes(buf, b)
}

func readCompressedBytes(r *bytes.Reader) ([]byte, error) {
	flag, err := r.ReadByte()
	if err != nil {
		return nil, common.ErrMalformedFrame
	}
	b, err := readBytes(r)
	if err != nil {
		return nil, err
	}
	if flag == 0 {
		return b, nil
	}
	out, err := snappy.Decode(nil, b)
	if err != nil {
		return nil, common.ErrMalformedFrame
	}
	return out, nil
}

func readHashList(r *bytes.Reader) ([]common.Hash256, error) {
	l, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, common.ErrMalformedFrame
	}
	if int64(l)*int64(common.HashLength) > int64(r.Len()) {
		return nil, common.ErrMalformedFrame
	}
	hs := make([]common.Hash256, l)
	for i := range hs {
		if n, _ := r.Read(hs[i][:]); n != common.HashLength {
			return nil, common.ErrMalformedFrame
		}
	}
	return hs, nil
}
