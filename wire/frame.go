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
	"encoding/binary"
	"io"

	"github.com/probeum/superfork/common"
)

// Frame type tags on the wire (§6). 1-11 mirror event.Kind; 20/21 carry RPC
// request/response records, which the tunnel forwards without decoding.
// 30/31 are a tunnel-internal extension to the tag space for the idle
// ping/pong keepalive §4.2 describes; they carry no payload and never reach
// the dispatcher.
const (
	FrameTypeRpcRequest  uint16 = 20
	FrameTypeRpcResponse uint16 = 21
	FrameTypePing        uint16 = 30
	FrameTypePong        uint16 = 31
)

// frameHeaderLen is u32(length) + u16(type) + u64(nonce) + 32(fork) = 46,
// matching §6's "length-46" payload-size derivation.
const frameHeaderLen = 4 + 2 + 8 + common.HashLength

// MaxFramePayload bounds a single frame's payload to guard against a
// corrupt or hostile length field forcing an unbounded allocation.
const MaxFramePayload = 32 << 20 // 32 MiB

// Frame is one length-prefixed tunnel record (§6).
type Frame struct {
	Type    uint16
	Nonce   common.Nonce
	Fork    common.ForkId // zero means "not applicable"
	Payload []byte
}

// WriteFrame writes f to w in the exact layout of §6.
func WriteFrame(w io.Writer, f Frame) error {
	total := frameHeaderLen + len(f.Payload)
	var hdr [frameHeaderLen]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(total))
	binary.BigEndian.PutUint16(hdr[4:6], f.Type)
	binary.BigEndian.PutUint64(hdr[6:14], uint64(f.Nonce))
	copy(hdr[14:46], f.Fork[:])
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if len(f.Payload) > 0 {
		if _, err := w.Write(f.Payload); err != nil {
			return err
		}
	}
	return nil
}

// ReadFrame reads one frame from r. It returns common.ErrMalformedFrame if
// the declared length is smaller than the fixed header or exceeds
// MaxFramePayload.
func ReadFrame(r io.Reader) (Frame, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Frame{}, err
	}
	total := binary.BigEndian.Uint32(lenBuf[:])
	if total < frameHeaderLen {
		return Frame{}, common.ErrMalformedFrame
	}
	payloadLen := total - frameHeaderLen
	if payloadLen > MaxFramePayload {
		return Frame{}, common.ErrMalformedFrame
	}
	rest := make([]byte, total-4)
	if _, err := io.ReadFull(r, rest); err != nil {
		return Frame{}, err
	}
	f := Frame{
		Type:  binary.BigEndian.Uint16(rest[0:2]),
		Nonce: common.Nonce(binary.BigEndian.Uint64(rest[2:10])),
	}
	copy(f.Fork[:], rest[10:42])
	if payloadLen > 0 {
		f.Payload = rest[42:]
	}
	return f, nil
}

// DecodeFrameBuffer parses a single frame out of a fully-buffered byte
// slice, e.g. one WebSocket message or one peer-cache entry. It returns the
// number of bytes consumed.
func DecodeFrameBuffer(b []byte) (Frame, int, error) {
	if len(b) < 4 {
		return Frame{}, 0, common.ErrMalformedFrame
	}
	total := int(binary.BigEndian.Uint32(b[0:4]))
	if total < frameHeaderLen || total > len(b) {
		return Frame{}, 0, common.ErrMalformedFrame
	}
	f := Frame{
		Type:  binary.BigEndian.Uint16(b[4:6]),
		Nonce: common.Nonce(binary.BigEndian.Uint64(b[6:14])),
	}
	copy(f.Fork[:], b[14:46])
	if total > frameHeaderLen {
		f.Payload = append([]byte(nil), b[46:total]...)
	}
	return f, total, nil
}
