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

// Package config loads a supernode's TOML configuration file, in the shape
// of the teacher's node.Config/probeconfig.Config pair.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/naoina/toml"
)

// Role is the node's position in the super-node topology.
type Role string

const (
	RoleRoot Role = "root"
	RoleFork Role = "fork"
)

// Config is one supernode's full runtime configuration.
type Config struct {
	Role Role

	// ListenAddr is where a Root node's tunnel listener binds.
	ListenAddr string
	// ParentAddr is where a Fork node dials its upstream tunnel.
	ParentAddr string

	MaxPeers      int
	IdleTimeout   time.Duration
	HighWaterMark int64

	// SessionID is persisted across restarts so a reconnecting tunnel can
	// present the same session and trigger replay (§4.2).
	SessionID uuid.UUID

	// RPCListenAddr is the admin HTTP surface's bind address.
	RPCListenAddr string

	// HeightGate enables a Fork node's optional per-fork (height, hash)
	// watermark: a block that does not match the tracked watermark for its
	// fork is dropped rather than delivered to the peer net. Off by
	// default; a storage-layer collaborator opts in once it can report
	// fork state to advance the watermark.
	HeightGate bool

	// Transport selects the tunnel's byte-stream carrier: TransportStream
	// (default) dials/accepts a plain TCP connection framed directly per
	// §6; TransportWebsocket carries the same frames as binary WebSocket
	// messages, for a parent/child pair that only has an HTTP path between
	// them (e.g. behind a load balancer that does not pass raw TCP).
	Transport Transport
}

// Transport names one of tunnel's concrete Transport implementations.
type Transport string

const (
	TransportStream    Transport = "stream"
	TransportWebsocket Transport = "websocket"
)

// Default returns the configuration a fresh node starts from absent a
// config file or flag overrides.
func Default() Config {
	return Config{
		Role:          RoleFork,
		ListenAddr:    ":30900",
		MaxPeers:      64,
		IdleTimeout:   30 * time.Second,
		HighWaterMark: 256,
		SessionID:     uuid.New(),
		RPCListenAddr: ":8645",
		Transport:     TransportStream,
	}
}

// tomlSettings mirrors the teacher's convention of using TOML keys
// identical to the Go struct field names, with missing fields rejected
// rather than silently ignored.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		id := fmt.Sprintf("%s.%s", rt.String(), field)
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

// Load reads and decodes a TOML config file into cfg, overlaying it onto
// whatever cfg already held (normally the result of Default()).
func Load(file string, cfg *Config) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// Dump renders cfg back to TOML, e.g. for a dumpconfig-style diagnostic
// command.
func Dump(cfg Config) ([]byte, error) {
	return tomlSettings.Marshal(&cfg)
}
