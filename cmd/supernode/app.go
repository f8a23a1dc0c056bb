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

package main

import (
	"os"

	"github.com/google/uuid"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/probeum/superfork/config"
	"github.com/probeum/superfork/internal/xlog"
)

var (
	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	roleFlag = cli.StringFlag{
		Name:  "role",
		Usage: "node role: root or fork",
	}
	listenFlag = cli.StringFlag{
		Name:  "listen",
		Usage: "tunnel listen address (root role)",
	}
	parentFlag = cli.StringFlag{
		Name:  "parent",
		Usage: "parent node address to dial (fork role)",
	}
	rpcListenFlag = cli.StringFlag{
		Name:  "rpclisten",
		Usage: "admin RPC HTTP listen address",
	}
	idleTimeoutFlag = cli.DurationFlag{
		Name:  "idletimeout",
		Usage: "tunnel idle timeout before a ping is sent",
	}
	transportFlag = cli.StringFlag{
		Name:  "transport",
		Usage: "tunnel carrier: stream or websocket",
	}
)

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "supernode"
	app.Usage = "run a super-node routing fabric root or fork node"
	app.Flags = []cli.Flag{
		configFileFlag,
		roleFlag,
		listenFlag,
		parentFlag,
		rpcListenFlag,
		idleTimeoutFlag,
		transportFlag,
	}
	app.Action = run
	return app
}

func run(ctx *cli.Context) error {
	cfg := config.Default()
	if file := ctx.String(configFileFlag.Name); file != "" {
		if err := config.Load(file, &cfg); err != nil {
			return err
		}
	}
	applyFlags(ctx, &cfg)

	n, err := New(cfg)
	if err != nil {
		return err
	}

	switch cfg.Role {
	case config.RoleRoot:
		go mustServe(n.StartAdminHTTP, "admin http")
		go mustServe(n.ListenAndServeRoot, "tunnel listener")
	case config.RoleFork:
		if err := n.DialParent(); err != nil {
			return err
		}
		go mustServe(n.StartAdminHTTP, "admin http")
	default:
		return errUnknownRole(cfg.Role)
	}

	// Blocks until a completed admin STOP command (or any other caller of
	// Shutdown) tears the node down; mustServe logs anything that made the
	// listeners above exit first.
	<-n.Done()
	return nil
}

func applyFlags(ctx *cli.Context, cfg *config.Config) {
	if v := ctx.String(roleFlag.Name); v != "" {
		cfg.Role = config.Role(v)
	}
	if v := ctx.String(listenFlag.Name); v != "" {
		cfg.ListenAddr = v
	}
	if v := ctx.String(parentFlag.Name); v != "" {
		cfg.ParentAddr = v
	}
	if v := ctx.String(rpcListenFlag.Name); v != "" {
		cfg.RPCListenAddr = v
	}
	if v := ctx.Duration(idleTimeoutFlag.Name); v != 0 {
		cfg.IdleTimeout = v
	}
	if v := ctx.String(transportFlag.Name); v != "" {
		cfg.Transport = config.Transport(v)
	}
	if cfg.SessionID == (uuid.UUID{}) {
		cfg.SessionID = uuid.New()
	}
}

// mustServe runs fn, which is expected to block until Shutdown makes it
// return nil; any other error means the listener died for a real reason
// (bind failure, transport error) rather than a completed STOP, so the
// process exits rather than hanging on run's <-n.Done() forever.
func mustServe(fn func() error, what string) {
	if err := fn(); err != nil {
		xlog.Crit("server exited", "server", what, "err", err)
		os.Exit(1)
	}
}

type errUnknownRole config.Role

func (e errUnknownRole) Error() string {
	return "unknown role: " + string(e)
}
