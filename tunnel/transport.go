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

package tunnel

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/probeum/superfork/wire"
)

// Transport is the byte-stream abstraction a Tunnel drives. The framing
// server spec §1 calls out as an external collaborator ("the SSL-terminated
// framing server that delivers tunnel messages as opaque byte payloads") is
// one concrete Transport; streamTransport below is the plain-TCP adapter a
// standalone node uses by default, and wsTransport is the alternative a node
// selects when only an HTTP path exists between it and its peer.
type Transport interface {
	ReadFrame() (wire.Frame, error)
	WriteFrame(wire.Frame) error
	Close() error
}

// streamTransport drives the tunnel over any raw io.ReadWriteCloser using
// the §6 length-prefixed framing directly — e.g. a plain TCP dial.
type streamTransport struct {
	rwc io.ReadWriteCloser
}

// NewStreamTransport adapts rwc, an already-connected duplex byte stream,
// into a Transport.
func NewStreamTransport(rwc io.ReadWriteCloser) Transport {
	return &streamTransport{rwc: rwc}
}

func (t *streamTransport) ReadFrame() (wire.Frame, error)  { return wire.ReadFrame(t.rwc) }
func (t *streamTransport) WriteFrame(f wire.Frame) error   { return wire.WriteFrame(t.rwc, f) }
func (t *streamTransport) Close() error                    { return t.rwc.Close() }

// wsTransport adapts a gorilla/websocket connection: each tunnel frame
// travels as one binary WebSocket message whose payload is the frame's
// exact §6 byte layout, so DecodeFrameBuffer can parse it without
// buffering across message boundaries.
type wsTransport struct {
	conn *websocket.Conn
}

// NewWebsocketTransport wraps an established *websocket.Conn (from either
// websocket.Dial or an Upgrader.Upgrade) as a Transport.
func NewWebsocketTransport(conn *websocket.Conn) Transport {
	return &wsTransport{conn: conn}
}

var wsDialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}

// DialWebsocket connects to url and returns a Transport over the resulting
// connection. header carries any caller-supplied upgrade headers (auth
// tokens, etc).
func DialWebsocket(url string, header http.Header) (Transport, error) {
	conn, _, err := wsDialer.Dial(url, header)
	if err != nil {
		return nil, err
	}
	return NewWebsocketTransport(conn), nil
}

func (t *wsTransport) ReadFrame() (wire.Frame, error) {
	_, raw, err := t.conn.ReadMessage()
	if err != nil {
		return wire.Frame{}, err
	}
	f, _, err := wire.DecodeFrameBuffer(raw)
	return f, err
}

func (t *wsTransport) WriteFrame(f wire.Frame) error {
	var buf bytes.Buffer
	if err := wire.WriteFrame(&buf, f); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.BinaryMessage, buf.Bytes())
}

func (t *wsTransport) Close() error { return t.conn.Close() }
