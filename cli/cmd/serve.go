package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/stitch/cli/config"
	"github.com/pithecene-io/stitch/log"
	"github.com/pithecene-io/stitch/types"
)

// Exit codes for serve.
const (
	exitRuntimeError = 1
	exitConfigError  = 2
)

// ServeCommand returns the serve command.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Receive chunks over UDP, reassemble them and dispatch completed messages",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to stitch.yaml",
			},
			&cli.StringFlag{
				Name:  "listen",
				Usage: "UDP listen address (overrides config)",
			},
			&cli.IntFlag{
				Name:  "readers",
				Usage: "Number of reader goroutines (overrides config)",
			},
			&cli.StringFlag{
				Name:  "node-id",
				Usage: "Node identifier (overrides config; default hostname)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error (overrides config)",
			},
			&cli.StringFlag{
				Name:  "journal-backend",
				Usage: "Journal backend: fs, s3, or memory (overrides config)",
			},
			&cli.StringFlag{
				Name:  "journal-path",
				Usage: "Journal path (fs: directory, s3: bucket/prefix)",
			},
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	cfg, err := resolveServeConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	node, err := nodeMeta(cfg.Node)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	logger := log.NewLoggerWithLevel(&node, level)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := newServer(ctx, *cfg, logger)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	if err := srv.run(ctx); err != nil {
		return cli.Exit(fmt.Sprintf("serve failed: %v", err), exitRuntimeError)
	}
	return nil
}

// resolveServeConfig loads --config when given and applies flag overrides.
func resolveServeConfig(c *cli.Context) (*config.Config, error) {
	cfg := &config.Config{}
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if c.IsSet("listen") {
		cfg.Listen = c.String("listen")
	}
	if c.IsSet("readers") {
		cfg.Readers = c.Int("readers")
	}
	if c.IsSet("node-id") {
		cfg.Node.ID = c.String("node-id")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("journal-backend") {
		cfg.Journal.Backend = c.String("journal-backend")
	}
	if c.IsSet("journal-path") {
		cfg.Journal.Path = c.String("journal-path")
	}

	withDefaults := cfg.WithDefaults()
	if err := withDefaults.Validate(); err != nil {
		return nil, err
	}
	return &withDefaults, nil
}

// nodeMetaForCLI is the identity used by client-side commands.
func nodeMetaForCLI() *types.NodeMeta {
	return &types.NodeMeta{NodeID: "stitch-cli"}
}
