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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsARootOrForkValue(t *testing.T) {
	cfg := Default()
	assert.Equal(t, RoleFork, cfg.Role)
	assert.NotEqual(t, cfg.SessionID.String(), "")
}

func TestLoadDumpRoundTrip(t *testing.T) {
	want := Default()
	want.Role = RoleRoot
	want.ListenAddr = ":40000"
	want.MaxPeers = 128

	b, err := Dump(want)
	require.NoError(t, err)

	dir := t.TempDir()
	file := filepath.Join(dir, "supernode.toml")
	require.NoError(t, os.WriteFile(file, b, 0644))

	got := Config{}
	require.NoError(t, Load(file, &got))

	assert.Equal(t, want.Role, got.Role)
	assert.Equal(t, want.ListenAddr, got.ListenAddr)
	assert.Equal(t, want.MaxPeers, got.MaxPeers)
	assert.Equal(t, want.SessionID, got.SessionID)
}

func TestLoadRejectsUnknownField(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(file, []byte("NotAField = 1\n"), 0644))

	cfg := Config{}
	err := Load(file, &cfg)
	assert.Error(t, err)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	cfg := Config{}
	err := Load(filepath.Join(t.TempDir(), "missing.toml"), &cfg)
	assert.Error(t, err)
}
