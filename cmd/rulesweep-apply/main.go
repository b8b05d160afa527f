package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yourorg/rulesweep/internal/rate"
	"github.com/yourorg/rulesweep/internal/rules"
	"github.com/yourorg/rulesweep/internal/runtime"
	"github.com/yourorg/rulesweep/internal/store"
	"github.com/yourorg/rulesweep/internal/triage"
)

type applyConfig struct {
	cfgDir    string
	dbPath    string
	rulesPath string
	rps       int
	dryRun    bool
	lenient   bool
}

func main() {
	cfg := parseFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger().Error("rulesweep-apply failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags() applyConfig {
	cfgDir := flag.String("config", os.ExpandEnv("$HOME/.gmailctl"), "gmailctl auth directory")
	dbPath := flag.String("db", os.ExpandEnv("$HOME/.rulesweep/emails.db"), "snapshot database path")
	rulesPath := flag.String("rules", os.ExpandEnv("$HOME/.rulesweep/rules.json"), "rules file path")
	rps := flag.Int("rps", 4, "max requests per second")
	dryRun := flag.Bool("dry-run", false, "report matches without touching the mailbox")
	lenient := flag.Bool("lenient", false, "apply despite rule validation findings")
	flag.Parse()

	return applyConfig{
		cfgDir:    *cfgDir,
		dbPath:    *dbPath,
		rulesPath: *rulesPath,
		rps:       *rps,
		dryRun:    *dryRun,
		lenient:   *lenient,
	}
}

func run(cfg applyConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := runtime.DefaultLogger()

	db, err := store.Open(cfg.dbPath)
	if err != nil {
		return fmt.Errorf("open snapshot database: %w", err)
	}
	defer func() { _ = db.Close() }()

	client, err := runtime.NewGmailClient(ctx, cfg.cfgDir, runtime.ScopeModify)
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

	src := rules.File{Path: cfg.rulesPath, Lenient: cfg.lenient}
	svc := triage.NewService(src, db, client, limiter, logger)
	if _, err := svc.Run(ctx, triage.Spec{DryRun: cfg.dryRun}); err != nil {
		return fmt.Errorf("apply rules: %w", err)
	}
	return nil
}
