package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yourorg/rulesweep/internal/gmail"
	"github.com/yourorg/rulesweep/internal/lint"
	"github.com/yourorg/rulesweep/internal/rate"
	"github.com/yourorg/rulesweep/internal/runtime"
)

type lintConfig struct {
	cfgDir      string
	rulesPath   string
	failOn      string
	checkLabels bool
	rps         int
}

func main() {
	cfg := parseFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger().Error("rulesweep-lint failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags() lintConfig {
	cfgDir := flag.String("config", os.ExpandEnv("$HOME/.gmailctl"), "gmailctl auth directory")
	rulesPath := flag.String("rules", os.ExpandEnv("$HOME/.rulesweep/rules.json"), "rules file path")
	failOn := flag.String("fail-on", "schema,empty-predicate,no-operations", "comma separated finding categories that fail the run")
	checkLabels := flag.Bool("check-labels", false, "verify Move destinations against Gmail labels")
	rps := flag.Int("rps", 4, "max requests per second")
	flag.Parse()

	return lintConfig{
		cfgDir:      *cfgDir,
		rulesPath:   *rulesPath,
		failOn:      *failOn,
		checkLabels: *checkLabels,
		rps:         *rps,
	}
}

func run(cfg lintConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := runtime.DefaultLogger()

	var client gmail.Client
	if cfg.checkLabels {
		var err error
		client, err = runtime.NewGmailClient(ctx, cfg.cfgDir, runtime.ScopeReadonly)
		if err != nil {
			return fmt.Errorf("create gmail client: %w", err)
		}
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

	svc := lint.NewService(client, limiter, logger)
	rep, err := svc.Run(ctx, lint.Options{RulesPath: cfg.rulesPath, CheckLabels: cfg.checkLabels})
	if err != nil {
		return fmt.Errorf("run lint: %w", err)
	}

	if _, writeErr := os.Stdout.WriteString(rep.HumanSummary()); writeErr != nil {
		return fmt.Errorf("write summary: %w", writeErr)
	}
	if rep.ShouldFail(lint.ParseFailOn(cfg.failOn)) {
		return fmt.Errorf("lint failures matched: %s", cfg.failOn)
	}
	return nil
}
