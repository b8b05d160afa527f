package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yourorg/rulesweep/internal/ingest"
	"github.com/yourorg/rulesweep/internal/rate"
	"github.com/yourorg/rulesweep/internal/runtime"
	"github.com/yourorg/rulesweep/internal/store"
)

type syncConfig struct {
	cfgDir   string
	dbPath   string
	query    string
	max      int
	pageSize int
	rps      int
}

func main() {
	cfg := parseFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger().Error("rulesweep-sync failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags() syncConfig {
	cfgDir := flag.String("config", os.ExpandEnv("$HOME/.gmailctl"), "gmailctl auth directory")
	dbPath := flag.String("db", os.ExpandEnv("$HOME/.rulesweep/emails.db"), "snapshot database path")
	query := flag.String("query", "in:inbox", "Gmail search restricting which messages sync")
	maxMessages := flag.Int("max", 100, "maximum messages to sync (<=0 for no cap)")
	pageSize := flag.Int("page-size", 500, "Gmail list page size (<=500)")
	rps := flag.Int("rps", 4, "max requests per second")
	flag.Parse()

	return syncConfig{
		cfgDir:   *cfgDir,
		dbPath:   *dbPath,
		query:    *query,
		max:      *maxMessages,
		pageSize: *pageSize,
		rps:      *rps,
	}
}

func run(cfg syncConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := runtime.DefaultLogger()

	db, err := store.Open(cfg.dbPath)
	if err != nil {
		return fmt.Errorf("open snapshot database: %w", err)
	}
	defer func() { _ = db.Close() }()

	client, err := runtime.NewGmailClient(ctx, cfg.cfgDir, runtime.ScopeReadonly)
	if err != nil {
		return fmt.Errorf("create gmail client: %w", err)
	}

	var (
		limiter rate.Limiter
		bucket  *rate.TokenBucket
	)
	if cfg.rps > 0 {
		bucket = rate.NewTokenBucket(cfg.rps)
		limiter = bucket
		defer bucket.Stop()
	}

	svc := ingest.NewService(client, db, limiter, logger)
	opts := ingest.Options{Query: cfg.query, Max: cfg.max, PageSize: cfg.pageSize}
	if _, err := svc.Run(ctx, opts); err != nil {
		return fmt.Errorf("sync snapshot: %w", err)
	}
	return nil
}
