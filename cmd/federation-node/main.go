// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/federation/lib/config"
	"github.com/bureau-foundation/federation/lib/integrity"
	"github.com/bureau-foundation/federation/lib/ref"
	"github.com/bureau-foundation/federation/lib/roomstore"
	"github.com/bureau-foundation/federation/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := pflag.String("config", "", "path to the node's YAML configuration (required)")
	printServerKeys := pflag.Bool("print-server-keys", false,
		"print the node's signed server keys document and exit")
	showVersion := pflag.Bool("version", false, "print version information and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Printf("federation-node %s\n", version.Info())
		return nil
	}
	if *configPath == "" {
		return fmt.Errorf("--config is required")
	}
	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Level(),
	}))
	slog.SetDefault(logger)

	server, err := ref.ParseServerName(cfg.ServerName)
	if err != nil {
		return err
	}

	identity, generated, err := integrity.LoadOrGenerateIdentity(cfg.KeyFile, server)
	if err != nil {
		return fmt.Errorf("loading signing keys: %w", err)
	}
	if generated {
		logger.Info("generated new signing keys", "path", cfg.KeyFile)
	}

	if *printServerKeys {
		document, err := integrity.RenderOwnServerKeys(identity, time.Now().Add(24*time.Hour))
		if err != nil {
			return fmt.Errorf("rendering server keys: %w", err)
		}
		fmt.Println(string(document))
		return nil
	}

	// Seed the key cache with the node's own keys so locally signed
	// events verify. Foreign servers' keys arrive as signed key
	// documents via KeyCache.AddDocument.
	keys := integrity.NewKeyCache()
	for keyID, key := range identity.Keys {
		keys.AddKey(server, keyID, key.Public().(ed25519.PublicKey),
			time.Now().Add(24*time.Hour))
	}

	store, err := roomstore.Open(roomstore.Options{
		DataDir: cfg.DataDir,
		Keys:    keys,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	rooms, err := config.LoadRooms(cfg.RoomsFile)
	if err != nil {
		return fmt.Errorf("loading room list: %w", err)
	}
	for _, roomID := range rooms {
		if err := store.AddRoom(roomID); err != nil {
			return err
		}
	}

	start := time.Now()
	if err := store.LoadAllRooms(); err != nil {
		return fmt.Errorf("replaying room logs: %w", err)
	}
	events := 0
	for _, roomID := range store.Rooms() {
		events += store.EventCount(roomID)
	}
	logger.Info("room replay complete",
		"rooms", len(rooms),
		"events", events,
		"elapsed", time.Since(start),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("federation node running",
		"server", server,
		"data_dir", cfg.DataDir,
	)
	<-ctx.Done()

	logger.Info("shutting down")
	return nil
}
