package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"docuquery/internal/util"
	"docuquery/pkg/session"
	"docuquery/services/docuquery/internal/app"
	"docuquery/services/docuquery/internal/config"
)

// consoleSecret signs nothing that leaves the process; it only satisfies the app.
const consoleSecret = "docuquery-console-local-secret"

func main() {
	configPath := flag.String("config", config.Path(), "config file; defaults apply when missing")
	dataDir := flag.String("data", "", "directory for the session file (overrides dataDir)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = config.FileConfig{LogLevel: "warn", JWTSecret: consoleSecret, DataDir: "data"}
	case err != nil:
		log.Fatalf("failed to load config: %v", err)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	util.InitLoggerTo(os.Stderr, cfg.LogLevel)

	appCfg, err := app.ConfigFromFile(cfg)
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	appCore, err := app.New(appCfg)
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}
	defer appCore.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	appCore.Start(ctx)

	slot, err := session.NewFileSlot(filepath.Join(cfg.DataDir, "session"), session.DefaultSlotKey)
	if err != nil {
		log.Fatalf("failed to open session slot: %v", err)
	}
	sess, err := appCore.SessionWithSlot(ctx, slot)
	if err != nil {
		log.Fatalf("failed to restore session: %v", err)
	}

	if err := newConsole(appCore, sess, os.Stdout).run(ctx, os.Stdin); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("console: %v", err)
	}
}
