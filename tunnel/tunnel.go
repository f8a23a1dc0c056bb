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
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/probeum/superfork/common"
	"github.com/probeum/superfork/event"
	"github.com/probeum/superfork/internal/xlog"
	"github.com/probeum/superfork/wire"
)

// EnvelopeHandler receives one decoded VPeerEnvelope read off the tunnel.
type EnvelopeHandler func(*event.VPeerEnvelope) error

// RPCHandler receives one undecoded RPC record (type is
// wire.FrameTypeRpcRequest or wire.FrameTypeRpcResponse) read off the
// tunnel. The tunnel never interprets RPC payloads — only rpcfanout does.
type RPCHandler func(frameType uint16, nonce common.Nonce, payload []byte) error

// Config configures one Tunnel instance.
type Config struct {
	// HighWaterMark bounds the outbound queue (§4.2: "send may suspend only
	// if the outbound queue exceeds a configured high-water mark").
	HighWaterMark int64
	// IdleTimeout is the window after which a missing frame triggers a
	// ping; two missed pings close the tunnel.
	IdleTimeout time.Duration
	// SendTimeout bounds how long Send/SendRPC suspend waiting for the
	// outbound queue to drain below HighWaterMark before giving up and
	// reporting common.ErrTransient. A genuinely congested-but-alive peer
	// is expected to drain eventually; this only guards against suspending
	// the caller forever on one that never will.
	SendTimeout time.Duration
}

const defaultHighWaterMark = 256
const defaultIdleTimeout = 30 * time.Second
const defaultSendTimeout = 10 * time.Second

// Tunnel is one logical bidirectional stream between a fork node and its
// parent root node (§4.2). Ordering is FIFO per direction; the two
// directions are otherwise independent.
type Tunnel struct {
	transport Transport
	session   SessionID
	reconnect bool

	cfg Config
	log xlog.Logger

	sendSem *semaphore.Weighted
	sendMu  sync.Mutex // serializes writes onto transport

	envHandler EnvelopeHandler
	rpcHandler RPCHandler

	lastRecv   time.Time
	lastRecvMu sync.Mutex
	missedPing int

	pingLimiter *rate.Limiter

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

func withDefaults(cfg Config) Config {
	if cfg.HighWaterMark <= 0 {
		cfg.HighWaterMark = defaultHighWaterMark
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	return cfg
}

// New wraps transport as a Tunnel identified by session, marking reconnect
// true when the handshake matched a session the peer had already seen.
func New(transport Transport, session SessionID, reconnect bool, cfg Config) *Tunnel {
	cfg = withDefaults(cfg)
	t := &Tunnel{
		transport:   transport,
		session:     session,
		reconnect:   reconnect,
		cfg:         cfg,
		log:         xlog.New("pkg", "tunnel", "session", session.String()),
		sendSem:     semaphore.NewWeighted(cfg.HighWaterMark),
		pingLimiter: rate.NewLimiter(rate.Every(cfg.IdleTimeout), 1),
		closed:      make(chan struct{}),
	}
	t.touch()
	return t
}

// Session reports the tunnel's session identifier.
func (t *Tunnel) Session() SessionID { return t.session }

// Reconnected reports whether this tunnel resumed a previously seen
// session, in which case the owner must replay its peer-event cache before
// any live traffic (§4.4 scenario 6).
func (t *Tunnel) Reconnected() bool { return t.reconnect }

// OnReceive installs the callbacks invoked from Run's receive loop. Must be
// called before Run.
func (t *Tunnel) OnReceive(env EnvelopeHandler, rpc RPCHandler) {
	t.envHandler = env
	t.rpcHandler = rpc
}

// Send enqueues env for delivery, suspending only while the outbound queue
// is at its configured high-water mark (§4.2).
func (t *Tunnel) Send(env *event.VPeerEnvelope) error {
	f := wire.Frame{Type: uint16(env.Type), Nonce: env.Nonce, Fork: env.Fork, Payload: env.Payload}
	return t.sendFrame(f)
}

// SendRPC enqueues an undecoded RPC record for delivery.
func (t *Tunnel) SendRPC(frameType uint16, nonce common.Nonce, payload []byte) error {
	return t.sendFrame(wire.Frame{Type: frameType, Nonce: nonce, Payload: payload})
}

func (t *Tunnel) sendFrame(f wire.Frame) error {
	ctx, cancel := context.WithTimeout(context.Background(), t.cfg.SendTimeout)
	defer cancel()
	if err := t.sendSem.Acquire(ctx, 1); err != nil {
		return common.ErrTransient
	}
	defer t.sendSem.Release(1)

	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	select {
	case <-t.closed:
		return t.closedError()
	default:
	}
	return t.transport.WriteFrame(f)
}

// closedError reports why sending is no longer possible, falling back to a
// generic closed error for a clean local shutdown that carried no cause.
func (t *Tunnel) closedError() error {
	if t.closeErr != nil {
		return t.closeErr
	}
	return common.ErrTunnelClosed
}

func (t *Tunnel) sendControl(frameType uint16) error {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	select {
	case <-t.closed:
		return t.closedError()
	default:
	}
	return t.transport.WriteFrame(wire.Frame{Type: frameType})
}

func (t *Tunnel) touch() {
	t.lastRecvMu.Lock()
	t.lastRecv = time.Now()
	t.missedPing = 0
	t.lastRecvMu.Unlock()
}

func (t *Tunnel) idleFor() time.Duration {
	t.lastRecvMu.Lock()
	defer t.lastRecvMu.Unlock()
	return time.Since(t.lastRecv)
}

// Run drives the tunnel's receive loop and idle-ping watchdog until Close
// is called or the transport errors. It blocks; callers run it in its own
// goroutine.
func (t *Tunnel) Run() error {
	done := make(chan struct{})
	go t.watchdog(done)
	defer close(done)

	for {
		f, err := t.transport.ReadFrame()
		if err != nil {
			t.closeLocked(ReasonRemoteClose, err)
			return err
		}
		t.touch()

		switch f.Type {
		case wire.FrameTypePing:
			_ = t.sendControl(wire.FrameTypePong)
			continue
		case wire.FrameTypePong:
			continue
		case wire.FrameTypeRpcRequest, wire.FrameTypeRpcResponse:
			if t.rpcHandler != nil {
				if err := t.rpcHandler(f.Type, f.Nonce, f.Payload); err != nil {
					t.log.Warn("rpc handler error", "err", err)
				}
			}
			continue
		}

		env := &event.VPeerEnvelope{Type: event.Kind(f.Type), Nonce: f.Nonce, Fork: f.Fork, Payload: f.Payload}
		if !validKind(env.Type) {
			t.closeLocked(ReasonMalformedFrame, common.ErrMalformedFrame)
			return common.ErrMalformedFrame
		}
		if t.envHandler != nil {
			if err := t.envHandler(env); err != nil {
				t.log.Warn("envelope handler error", "err", err)
			}
		}
	}
}

func validKind(k event.Kind) bool { return k >= event.KindActive && k <= event.KindNetClose }

// watchdog sends a ping once the idle window elapses without an inbound
// frame, and closes the tunnel after two consecutive missed pings.
func (t *Tunnel) watchdog(done chan struct{}) {
	ticker := time.NewTicker(t.cfg.IdleTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.closed:
			return
		case <-ticker.C:
			if t.idleFor() < t.cfg.IdleTimeout {
				continue
			}
			t.lastRecvMu.Lock()
			t.missedPing++
			missed := t.missedPing
			t.lastRecvMu.Unlock()
			if missed > 2 {
				t.closeLocked(ReasonTimeout, common.ErrSessionTimeout)
				return
			}
			if t.pingLimiter.Allow() {
				_ = t.sendControl(wire.FrameTypePing)
			}
		}
	}
}

// Close closes the tunnel with reason, unblocking Run and any pending Send.
func (t *Tunnel) Close(reason ReasonCode) error {
	t.closeLocked(reason, nil)
	return nil
}

func (t *Tunnel) closeLocked(reason ReasonCode, cause error) {
	t.closeOnce.Do(func() {
		t.closeErr = cause
		close(t.closed)
		_ = t.transport.Close()
		t.log.Info("tunnel closed", "reason", reason)
	})
}

// Done reports a channel closed once the tunnel has shut down.
func (t *Tunnel) Done() <-chan struct{} { return t.closed }

// Shutdown closes the tunnel for a local, intentional reason — the effect
// a completed admin STOP command has on each attached child tunnel.
func (t *Tunnel) Shutdown() error { return t.Close(ReasonLocalShutdown) }
