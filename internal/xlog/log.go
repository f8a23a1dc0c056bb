// Copyright 2016 The go-probeum Authors
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

// Package xlog is the structured, leveled logger every package in this
// module logs through instead of fmt.Println or the bare stdlib log
// package. It mirrors the log15-style API the rest of the ecosystem these
// examples come from (geth's "log" package) exposes: a Logger carries
// sticky key-value context, records capture the calling frame via
// go-stack/stack, and the default terminal handler colorizes by level when
// writing to a TTY.
package xlog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Lvl is a log severity level, ordered most to least severe (LvlCrit is 0).
type Lvl int

const (
	LvlCrit Lvl = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

func (l Lvl) String() string {
	switch l {
	case LvlCrit:
		return "CRIT"
	case LvlError:
		return "ERROR"
	case LvlWarn:
		return "WARN"
	case LvlInfo:
		return "INFO"
	case LvlDebug:
		return "DEBUG"
	case LvlTrace:
		return "TRACE"
	default:
		return "????"
	}
}

var levelColor = map[Lvl]*color.Color{
	LvlCrit:  color.New(color.FgMagenta, color.Bold),
	LvlError: color.New(color.FgRed),
	LvlWarn:  color.New(color.FgYellow),
	LvlInfo:  color.New(color.FgGreen),
	LvlDebug: color.New(color.FgCyan),
	LvlTrace: color.New(color.FgWhite),
}

// Record is one emitted log line.
type Record struct {
	Time  time.Time
	Lvl   Lvl
	Msg   string
	Ctx   []interface{}
	Call  stack.Call
}

// Handler consumes a Record, e.g. by writing it to a stream.
type Handler interface {
	Log(r *Record) error
}

// Logger emits Records at each severity, carrying a sticky key-value
// context inherited by every call and by every child created with New.
type Logger interface {
	New(ctx ...interface{}) Logger
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{})
}

type logger struct {
	ctx []interface{}
	h   *swapHandler
}

type swapHandler struct {
	mu sync.RWMutex
	h  Handler
}

func (s *swapHandler) Log(r *Record) error {
	s.mu.RLock()
	h := s.h
	s.mu.RUnlock()
	return h.Log(r)
}

func (s *swapHandler) Swap(h Handler) {
	s.mu.Lock()
	s.h = h
	s.mu.Unlock()
}

var root = &logger{h: new(swapHandler)}

func init() {
	root.h.Swap(StreamHandler(os.Stderr, TerminalFormat(isatty.IsTerminal(os.Stderr.Fd()))))
}

// New returns the root logger, or a child of it carrying ctx as additional
// sticky key-value pairs when ctx is non-empty.
func New(ctx ...interface{}) Logger {
	if len(ctx) == 0 {
		return root
	}
	return &logger{ctx: append(append([]interface{}{}, root.ctx...), ctx...), h: root.h}
}

// SetHandler replaces the root logger's handler — tests and cmd/supernode
// use this to redirect output.
func SetHandler(h Handler) { root.h.Swap(h) }

func (l *logger) New(ctx ...interface{}) Logger {
	return &logger{ctx: append(append([]interface{}{}, l.ctx...), ctx...), h: l.h}
}

func (l *logger) write(lvl Lvl, msg string, ctx []interface{}) {
	r := &Record{
		Time: time.Now(),
		Lvl:  lvl,
		Msg:  msg,
		Ctx:  append(append([]interface{}{}, l.ctx...), ctx...),
		Call: stack.Caller(2),
	}
	_ = l.h.Log(r)
}

func (l *logger) Trace(msg string, ctx ...interface{}) { l.write(LvlTrace, msg, ctx) }
func (l *logger) Debug(msg string, ctx ...interface{}) { l.write(LvlDebug, msg, ctx) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.write(LvlInfo, msg, ctx) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.write(LvlWarn, msg, ctx) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.write(LvlError, msg, ctx) }
func (l *logger) Crit(msg string, ctx ...interface{})  { l.write(LvlCrit, msg, ctx) }

// Package-level convenience wrappers logging through the root logger.
func Trace(msg string, ctx ...interface{}) { root.Trace(msg, ctx...) }
func Debug(msg string, ctx ...interface{}) { root.Debug(msg, ctx...) }
func Info(msg string, ctx ...interface{})  { root.Info(msg, ctx...) }
func Warn(msg string, ctx ...interface{})  { root.Warn(msg, ctx...) }
func Error(msg string, ctx ...interface{}) { root.Error(msg, ctx...) }
func Crit(msg string, ctx ...interface{})  { root.Crit(msg, ctx...) }

// StreamHandler returns a Handler that formats each Record with fmtr and
// writes it to wr. When wr is a terminal, writes go through go-colorable so
// ANSI sequences render correctly on Windows consoles too.
func StreamHandler(wr io.Writer, fmtr func(*Record) []byte) Handler {
	if f, ok := wr.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		wr = colorable.NewColorable(f)
	}
	return &streamHandler{wr: wr, fmtr: fmtr}
}

type streamHandler struct {
	mu   sync.Mutex
	wr   io.Writer
	fmtr func(*Record) []byte
}

func (h *streamHandler) Log(r *Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.wr.Write(h.fmtr(r))
	return err
}

// TerminalFormat returns a formatter producing one human-readable line per
// Record, colorized by level when color is true.
func TerminalFormat(useColor bool) func(*Record) []byte {
	return func(r *Record) []byte {
		level := r.Lvl.String()
		if useColor {
			level = levelColor[r.Lvl].Sprint(level)
		}
		line := fmt.Sprintf("%s [%-5s] %s", r.Time.Format("2006-01-02T15:04:05.000"), level, r.Msg)
		for i := 0; i+1 < len(r.Ctx); i += 2 {
			line += fmt.Sprintf(" %v=%v", r.Ctx[i], r.Ctx[i+1])
		}
		return append([]byte(line), '\n')
	}
}
