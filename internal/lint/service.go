package lint

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
)

// Finding categories, in the order they appear in reports.
const (
	CategorySchema         = "schema"
	CategoryEmptyPredicate = "empty-predicate"
	CategoryNoOperations   = "no-operations"
	CategoryUnknownLabel   = "unknown-label"
)

// Finding is one problem detected in a rules file.
type Finding struct {
	Rule     string `json:"rule"`
	Category string `json:"category"`
	Detail   string `json:"detail"`
}

// Options controls a lint run.
type Options struct {
	RulesPath   string
	CheckLabels bool // verify Move destinations against Gmail labels
}

// Service checks rule files before they are let loose on a mailbox.
type Service struct {
	Client  gmail.Client // required only when Options.CheckLabels is set
	Limiter rate.Limiter
	Logger  *slog.Logger
	Clock   func() time.Time
}

// NewService constructs a Service with sane defaults.
func NewService(client gmail.Client, limiter rate.Limiter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Service{
		Client:  client,
		Limiter: limiter,
		Logger:  logger,
		Clock:   time.Now,
	}
}

// Report summarizes a lint run over one rules file.
type Report struct {
	Path      string    `json:"path"`
	CheckedAt time.Time `json:"checked_at"`
	Rules     int       `json:"rules"`
	Findings  []Finding `json:"findings"`
}

type moveTarget struct {
	rule  string
	label gmail.LabelID
}

// Run loads the rules file leniently and reports everything the strict
// loader, the compiler, and the bundler would reject at apply time.
func (s *Service) Run(ctx context.Context, opts Options) (Report, error) {
	if opts.CheckLabels && s.Client == nil {
		return Report{}, errors.New("label check requires a Gmail client")
	}

	loaded, err := rules.LoadFile(opts.RulesPath, true)
	if err != nil {
		return Report{}, err
	}

	s.Logger.Info("linting rules", "path", opts.RulesPath, "rules", len(loaded))

	now := s.Clock().UTC()
	rep := Report{Path: opts.RulesPath, CheckedAt: s.Clock(), Rules: len(loaded)}

	var targets []moveTarget
	for _, r := range loaded {
		name := r.DisplayName()
		for _, verr := range r.Validate() {
			rep.Findings = append(rep.Findings, Finding{
				Rule:     name,
				Category: CategorySchema,
				Detail:   verr.Error(),
			})
		}
		if predicate, _ := rules.Compile(r, now); predicate == "" {
			rep.Findings = append(rep.Findings, Finding{
				Rule:     name,
				Category: CategoryEmptyPredicate,
				Detail:   "no condition compiles to a query; the rule would match nothing",
			})
		}
		ops := rules.BundleOperations(r.Operations)
		if len(ops) == 0 {
			rep.Findings = append(rep.Findings, Finding{
				Rule:     name,
				Category: CategoryNoOperations,
				Detail:   "no operation can run; the rule would change nothing",
			})
		}
		for _, op := range ops {
			if mv, ok := op.(rules.MoveToLabel); ok {
				targets = append(targets, moveTarget{rule: name, label: mv.Label})
			}
		}
	}

	if opts.CheckLabels && len(targets) > 0 {
		findings, err := s.checkLabels(ctx, targets)
		if err != nil {
			return Report{}, err
		}
		rep.Findings = append(rep.Findings, findings...)
	}

	return rep, nil
}

func (s *Service) checkLabels(ctx context.Context, targets []moveTarget) ([]Finding, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	byName, byID, err := s.Client.ListLabels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}

	var findings []Finding
	seen := make(map[moveTarget]struct{}, len(targets))
	for _, target := range targets {
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}
		if labelKnown(target.label, byName, byID) {
			continue
		}
		findings = append(findings, Finding{
			Rule:     target.rule,
			Category: CategoryUnknownLabel,
			Detail:   fmt.Sprintf("destination %q does not match any Gmail label", target.label),
		})
	}
	return findings, nil
}

// labelKnown accepts either a label ID (system labels like INBOX are
// their own IDs) or a label name in any casing.
func labelKnown(label gmail.LabelID, byName map[string]gmail.LabelID, byID map[gmail.LabelID]string) bool {
	if _, ok := byID[label]; ok {
		return true
	}
	for name := range byName {
		if strings.EqualFold(name, string(label)) {
			return true
		}
	}
	return false
}

func (s *Service) wait(ctx context.Context) error {
	if s.Limiter == nil {
		return nil
	}
	if err := s.Limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit labels: %w", err)
	}
	return nil
}

// ShouldFail reports whether any finding falls into one of the
// requested categories.
func (r Report) ShouldFail(failOn []string) bool {
	present := make(map[string]bool, len(r.Findings))
	for _, f := range r.Findings {
		present[f.Category] = true
	}
	for _, cond := range failOn {
		cond = strings.TrimSpace(strings.ToLower(cond))
		if cond == "" {
			continue
		}
		if present[cond] {
			return true
		}
	}
	return false
}

// HumanSummary renders a concise CLI summary.
func (r Report) HumanSummary() string {
	builder := &strings.Builder{}
	fmt.Fprintf(builder, "rulesweep lint: %s (%d rules checked)\n", r.Path, r.Rules)
	if len(r.Findings) == 0 {
		builder.WriteString("no findings\n")
		return builder.String()
	}
	for _, f := range r.Findings {
		fmt.Fprintf(builder, "  [%s] %s: %s\n", f.Category, f.Rule, f.Detail)
	}
	return builder.String()
}

// ParseFailOn splits a comma separated list into canonical tokens.
func ParseFailOn(input string) []string {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(strings.ToLower(part))
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
