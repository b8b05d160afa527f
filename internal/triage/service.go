package triage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/yourorg/rulesweep/internal/gmail"
	"github.com/yourorg/rulesweep/internal/rate"
	"github.com/yourorg/rulesweep/internal/rules"
	"github.com/yourorg/rulesweep/internal/store"
)

// RuleSource yields the rule set to execute.
type RuleSource interface {
	Load() ([]rules.Rule, error)
}

// Store answers compiled predicates with snapshot rows.
type Store interface {
	Match(ctx context.Context, predicate string, values []any) ([]store.Email, error)
}

// Spec controls a single engine run.
type Spec struct {
	DryRun bool
}

// Service executes rule files against the snapshot and applies the
// bundled operations to matching messages through the mail service.
type Service struct {
	Rules   RuleSource
	Store   Store
	Mail    rules.Mailer
	Limiter rate.Limiter
	Logger  *slog.Logger
	Clock   func() time.Time
}

// NewService constructs a Service with sane defaults.
func NewService(src RuleSource, st Store, mail rules.Mailer, limiter rate.Limiter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Service{
		Rules:   src,
		Store:   st,
		Mail:    mail,
		Limiter: limiter,
		Logger:  logger,
		Clock:   time.Now,
	}
}

// Run executes every rule in order and returns how many emails had at
// least one operation succeed. A rule file that cannot be loaded is
// fatal; everything else is logged and the run continues.
func (s *Service) Run(ctx context.Context, spec Spec) (int, error) {
	ruleSet, err := s.Rules.Load()
	if err != nil {
		return 0, fmt.Errorf("load rules: %w", err)
	}
	s.Logger.InfoContext(ctx, "loaded rules", "count", len(ruleSet))

	now := s.Clock().UTC()
	total := 0
	for _, rule := range ruleSet {
		if err := ctx.Err(); err != nil {
			return total, fmt.Errorf("triage canceled: %w", err)
		}
		n, err := s.runRule(ctx, rule, now, spec.DryRun)
		total += n
		if err != nil {
			return total, err
		}
	}
	s.Logger.InfoContext(ctx, "triage complete", "rules", len(ruleSet), "updated", total)
	return total, nil
}

func (s *Service) runRule(ctx context.Context, rule rules.Rule, now time.Time, dryRun bool) (int, error) {
	name := rule.DisplayName()
	predicate, values := rules.Compile(rule, now)
	if predicate == "" {
		s.Logger.WarnContext(ctx, "no condition compiles, skipping rule", "rule", name)
		return 0, nil
	}
	matched, err := s.Store.Match(ctx, predicate, values)
	if err != nil {
		// Rules are independent; one bad query should not stop the rest.
		s.Logger.WarnContext(ctx, "snapshot query failed, skipping rule", "rule", name, "error", err)
		return 0, nil
	}
	if len(matched) == 0 {
		s.Logger.InfoContext(ctx, "no matching emails", "rule", name)
		return 0, nil
	}
	ops := rules.BundleOperations(rule.Operations)
	if len(ops) == 0 {
		s.Logger.WarnContext(ctx, "no executable operations, skipping rule", "rule", name)
		return 0, nil
	}
	if dryRun {
		s.Logger.InfoContext(ctx, "dry-run", "rule", name, "matched", len(matched), "operations", describeOps(ops))
		return 0, nil
	}

	updated := 0
	for _, email := range matched {
		if email.UniqueID == "" {
			s.Logger.WarnContext(ctx, "snapshot row missing unique_id, skipping", "rule", name, "subject", email.Subject)
			continue
		}
		ok, err := s.applyAll(ctx, ops, gmail.MessageID(email.UniqueID), name)
		if ok {
			updated++
		}
		if err != nil {
			return updated, err
		}
	}
	s.Logger.InfoContext(ctx, "rule applied", "rule", name, "matched", len(matched), "updated", updated)
	return updated, nil
}

// applyAll runs every operation against one message. The email counts as
// updated when at least one operation succeeds. Operation failures are
// logged and skipped; only cancellation stops the run.
func (s *Service) applyAll(ctx context.Context, ops []rules.Operation, id gmail.MessageID, ruleName string) (bool, error) {
	succeeded := false
	for _, op := range ops {
		if err := s.wait(ctx); err != nil {
			return succeeded, err
		}
		err := op.Apply(ctx, s.Mail, id)
		switch {
		case err == nil:
			succeeded = true
		case errors.Is(err, gmail.ErrNoChange):
			s.Logger.InfoContext(ctx, "no change needed", "rule", ruleName, "email", id, "operation", op.Describe())
		case ctx.Err() != nil:
			return succeeded, fmt.Errorf("triage canceled: %w", ctx.Err())
		default:
			s.Logger.WarnContext(ctx, "operation failed", "rule", ruleName, "email", id, "operation", op.Describe(), "error", err)
		}
	}
	return succeeded, nil
}

func (s *Service) wait(ctx context.Context) error {
	if s.Limiter == nil {
		return nil
	}
	if err := s.Limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit operations: %w", err)
	}
	return nil
}

func describeOps(ops []rules.Operation) string {
	parts := make([]string, 0, len(ops))
	for _, op := range ops {
		parts = append(parts, op.Describe())
	}
	return strings.Join(parts, ", ")
}
