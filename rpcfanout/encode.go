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
	"encoding/binary"

	"github.com/probeum/superfork/common"
)

// EncodeRequest serializes req for an RPC record's payload. The tunnel
// never inspects this; only the coordinator on each side does.
func EncodeRequest(req Request) []byte {
	out := make([]byte, 2+len(req.Payload))
	binary.BigEndian.PutUint16(out[0:2], uint16(req.Type))
	copy(out[2:], req.Payload)
	return out
}

// DecodeRequest parses a Request from an RPC record's payload. nonce comes
// from the surrounding frame, not the payload itself.
func DecodeRequest(nonce common.Nonce, b []byte) (Request, error) {
	if len(b) < 2 {
		return Request{}, common.ErrMalformedFrame
	}
	return Request{
		Type:    Type(binary.BigEndian.Uint16(b[0:2])),
		Nonce:   nonce,
		Payload: append([]byte(nil), b[2:]...),
	}, nil
}

// EncodeResult serializes r for an RPC response record's payload.
func EncodeResult(r Result) []byte {
	switch r.Type {
	case TypeGetForkCount:
		out := make([]byte, 2+4)
		binary.BigEndian.PutUint16(out[0:2], uint16(r.Type))
		binary.BigEndian.PutUint32(out[2:6], uint32(r.ForkCount))
		return out
	case TypeListFork:
		out := make([]byte, 2+4+len(r.Forks)*common.HashLength)
		binary.BigEndian.PutUint16(out[0:2], uint16(r.Type))
		binary.BigEndian.PutUint32(out[2:6], uint32(len(r.Forks)))
		off := 6
		for _, f := range r.Forks {
			copy(out[off:off+common.HashLength], f[:])
			off += common.HashLength
		}
		return out
	case TypeGetBlockLocation:
		out := make([]byte, 2+4+len(r.BlockLocation))
		binary.BigEndian.PutUint16(out[0:2], uint16(r.Type))
		binary.BigEndian.PutUint32(out[2:6], uint32(len(r.BlockLocation)))
		copy(out[6:], r.BlockLocation)
		return out
	default: // TypeStop and anything else: tag only
		out := make([]byte, 2)
		binary.BigEndian.PutUint16(out[0:2], uint16(r.Type))
		return out
	}
}

// DecodeResult parses a Result from an RPC response record's payload.
func DecodeResult(b []byte) (Result, error) {
	if len(b) < 2 {
		return Result{}, common.ErrMalformedFrame
	}
	t := Type(binary.BigEndian.Uint16(b[0:2]))
	switch t {
	case TypeGetForkCount:
		if len(b) < 6 {
			return Result{}, common.ErrMalformedFrame
		}
		return Result{Type: t, ForkCount: int(binary.BigEndian.Uint32(b[2:6]))}, nil
	case TypeListFork:
		if len(b) < 6 {
			return Result{}, common.ErrMalformedFrame
		}
		n := int(binary.BigEndian.Uint32(b[2:6]))
		off := 6
		if len(b) < off+n*common.HashLength {
			return Result{}, common.ErrMalformedFrame
		}
		forks := make([]common.ForkId, n)
		for i := 0; i < n; i++ {
			copy(forks[i][:], b[off:off+common.HashLength])
			off += common.HashLength
		}
		return Result{Type: t, Forks: forks}, nil
	case TypeGetBlockLocation:
		if len(b) < 6 {
			return Result{}, common.ErrMalformedFrame
		}
		n := int(binary.BigEndian.Uint32(b[2:6]))
		if len(b) < 6+n {
			return Result{}, common.ErrMalformedFrame
		}
		return Result{Type: t, BlockLocation: append([]byte(nil), b[6:6+n]...)}, nil
	default:
		return Result{Type: t}, nil
	}
}
