package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/viant/unchained"
)

// CLI defines the command-line interface.
type CLI struct {
	Config  string     `short:"c" type:"path" help:"Config file path (YAML)"`
	Env     string     `default:".env" help:"Dotenv file loaded before the config"`
	Serve   ServeCmd   `cmd:"" default:"withargs" help:"Serve the web UI"`
	Chat    ChatCmd    `cmd:"" help:"Converse in the terminal"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

// ServeCmd starts the HTTP front end.
type ServeCmd struct {
	Addr string `short:"a" help:"Listen address, overrides server.addr"`
}

// ChatCmd runs the console front end.
type ChatCmd struct{}

type VersionCmd struct{}

// runContext is bound into every command's Run.
type runContext struct {
	ctx    context.Context
	config *unchained.Config
}

func (c *ServeCmd) Run(rc *runContext) error {
	if c.Addr != "" {
		rc.config.Server.Addr = c.Addr
	}
	srv, err := unchained.New(rc.ctx, rc.config)
	if err != nil {
		return err
	}
	defer srv.Close(context.Background())
	srv.Logger().Info("serving " + rc.config.Server.Addr)
	return srv.Server().ListenAndServe(rc.ctx, rc.config.Server.Addr)
}

func (c *ChatCmd) Run(rc *runContext) error {
	srv, err := unchained.New(rc.ctx, rc.config)
	if err != nil {
		return err
	}
	defer srv.Close(context.Background())
	return srv.Console(os.Stdin, os.Stdout).Run(rc.ctx)
}

func (c *VersionCmd) Run(_ *runContext) error {
	fmt.Printf("unchained version %s\n", unchained.Version)
	return nil
}

func kongVars() kong.Vars {
	return kong.Vars{"version": unchained.Version}
}
