// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/whiteboard-relay/lib/config"
	"github.com/bureau-foundation/whiteboard-relay/lib/version"
	"github.com/bureau-foundation/whiteboard-relay/relay"
	"github.com/bureau-foundation/whiteboard-relay/server"
	"github.com/bureau-foundation/whiteboard-relay/session"
	"github.com/bureau-foundation/whiteboard-relay/store"
	"github.com/bureau-foundation/whiteboard-relay/whiteboard"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var listen string
	var logLevel string

	flagSet := pflag.NewFlagSet("whiteboard-relay", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to relay.yaml (default: $RELAY_CONFIG, else built-in defaults)")
	flagSet.StringVar(&listen, "listen", "", "listen address as host:port (overrides server.host and server.port)")
	flagSet.StringVar(&logLevel, "log-level", "", "debug, info, warn, or error (overrides logging.level)")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		version.Print("whiteboard-relay")
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", flagSet.Args())
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if listen != "" {
		host, port, err := net.SplitHostPort(listen)
		if err != nil {
			return fmt.Errorf("--listen: %w", err)
		}
		cfg.Server.Host = host
		if cfg.Server.Port, err = strconv.Atoi(port); err != nil {
			return fmt.Errorf("--listen: invalid port %q", port)
		}
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	handler, err := cfg.Logging.Handler(os.Stderr)
	if err != nil {
		return err
	}
	logger := slog.New(handler).With("version", version.Info())
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	feed, err := relay.NewRedisFeed(ctx, cfg.Upstream.RedisURL, logger)
	if err != nil {
		return err
	}
	defer feed.Close()

	return serve(ctx, cfg, feed, logger, nil)
}

// loadConfig reads the file named by --config, then RELAY_CONFIG, and
// falls back to the built-in defaults when neither is set.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	if os.Getenv("RELAY_CONFIG") != "" {
		return config.Load()
	}
	cfg := config.Default()
	cfg.Finish()
	return cfg, nil
}

// serve builds the store, the projections, the websocket server, and
// the upstream relay, and runs them until ctx is cancelled or the relay
// fails. onListening, when non-nil, receives the bound address.
func serve(ctx context.Context, cfg *config.Config, feed relay.Feed, logger *slog.Logger, onListening func(address string)) error {
	tree := store.NewTree(logger)
	retriever := whiteboard.NewRetriever(tree)

	upstream, err := relay.New(relay.Config{
		Feed:       feed,
		Intake:     tree,
		Pattern:    cfg.Upstream.Pattern,
		HeaderSize: cfg.Upstream.HeaderSize,
		Format:     relay.Format(cfg.Upstream.Format),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		Address:          cfg.Address(),
		WriteTimeout:     cfg.Server.WriteTimeout,
		CloseGracePeriod: cfg.Server.CloseGracePeriod,
		Logger:           logger,
		Hooks: &pageFeed{
			retriever:   retriever,
			logger:      logger,
			onListening: onListening,
		},
	}, session.NewRegistry())
	if err := srv.Start(); err != nil {
		return err
	}

	group, groupContext := errgroup.WithContext(ctx)
	group.Go(func() error {
		return upstream.Run(groupContext)
	})
	group.Go(func() error {
		<-groupContext.Done()
		srv.Stop()
		return nil
	})
	err = group.Wait()

	stats := upstream.Stats()
	logger.Info("relay stopped",
		"channel", stats.Channel,
		"forwarded", stats.Forwarded,
		"mismatched", stats.Mismatched,
		"decode_faults", stats.DecodeFaults,
	)
	return err
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `whiteboard-relay serves a collaborative whiteboard to websocket clients.

It subscribes to the upstream replication feed, applies remote
modifications to its in-memory store, and pushes the page list to
every connected client as it grows.

Configuration is read from --config, else $RELAY_CONFIG, else the
built-in defaults. The redis URL defaults to $REDIS_URL.

Usage:
  whiteboard-relay [flags]

Examples:
  # Run with defaults on localhost:8081
  whiteboard-relay

  # Listen on all interfaces with debug logging
  whiteboard-relay --listen 0.0.0.0:8081 --log-level debug

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
