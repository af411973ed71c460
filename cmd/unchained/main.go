// Package main is the entry point for the unchained CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/viant/unchained"
)

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("unchained"),
		kong.Description("Approval-gated conversational code agent."),
		kong.UsageOnError(),
		kongVars(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx, &cli)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unchained: %v\n", err)
		os.Exit(1)
	}
	if err = kctx.Run(&runContext{ctx: ctx, config: cfg}); err != nil {
		fmt.Fprintf(os.Stderr, "unchained: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the dotenv file, when present, then the YAML config.
func loadConfig(ctx context.Context, cli *CLI) (*unchained.Config, error) {
	if cli.Env != "" {
		if _, err := os.Stat(cli.Env); err == nil {
			if err = godotenv.Load(cli.Env); err != nil {
				return nil, fmt.Errorf("failed to load %v: %w", cli.Env, err)
			}
		}
	}
	if cli.Config == "" {
		return unchained.DefaultConfig(), nil
	}
	return unchained.LoadConfig(ctx, cli.Config)
}
