package lint

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yourorg/rulesweep/internal/gmail"
)

type fakeLabelClient struct {
	byName     map[string]gmail.LabelID
	byID       map[gmail.LabelID]string
	err        error
	labelCalls int
}

func (f *fakeLabelClient) List(
	ctx context.Context,
	q gmail.Query,
	pageToken string,
	pageSize int,
) (gmail.ListPage, error) {
	_, _, _, _ = ctx, q, pageToken, pageSize
	return gmail.ListPage{}, errors.New("not supported in lint")
}

func (f *fakeLabelClient) Get(ctx context.Context, id gmail.MessageID) (gmail.Message, error) {
	_, _ = ctx, id
	return gmail.Message{}, errors.New("not supported in lint")
}

func (f *fakeLabelClient) Modify(ctx context.Context, id gmail.MessageID, ops gmail.ModifyOps) error {
	_, _, _ = ctx, id, ops
	return errors.New("not supported in lint")
}

func (f *fakeLabelClient) ListLabels(
	ctx context.Context,
) (map[string]gmail.LabelID, map[gmail.LabelID]string, error) {
	_ = ctx
	f.labelCalls++
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.byName, f.byID, nil
}

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write rules file: %v", err)
	}
	return path
}

func newTestService(client gmail.Client) *Service {
	svc := NewService(client, nil, slogDiscard())
	svc.Clock = func() time.Time { return time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC) }
	return svc
}

const cleanRules = `[
  {
    "rule_name": "Receipts",
    "rule_collection_predicate": "all",
    "rules": [
      {"field_name": "from", "predicate": "contains", "value": "receipt"}
    ],
    "operations": [
      {"action": "Move message", "destination": "Receipts"}
    ]
  },
  {
    "rule_name": "Old mail",
    "rule_collection_predicate": "any",
    "rules": [
      {"field_name": "date received", "predicate": "is greater than", "value": "2", "unit": "months"}
    ],
    "operations": [
      {"action": "Mark as Read"}
    ]
  }
]`

func TestRunCleanFile(t *testing.T) {
	svc := newTestService(nil)
	rep, err := svc.Run(context.Background(), Options{RulesPath: writeRules(t, cleanRules)})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if rep.Rules != 2 {
		t.Fatalf("rules = %d, want 2", rep.Rules)
	}
	if len(rep.Findings) != 0 {
		t.Fatalf("unexpected findings: %+v", rep.Findings)
	}
	if rep.ShouldFail([]string{"schema", "empty-predicate", "no-operations"}) {
		t.Fatal("clean file should not fail")
	}
	if !strings.Contains(rep.HumanSummary(), "no findings") {
		t.Fatalf("summary = %q, want no findings", rep.HumanSummary())
	}
}

func TestRunReportsSchemaAndEmptyPredicate(t *testing.T) {
	content := `[
  {
    "rule_name": "Broken",
    "rule_collection_predicate": "all",
    "rules": [
      {"field_name": "recipient", "predicate": "contains", "value": "me"}
    ],
    "operations": [
      {"action": "Mark as Read"}
    ]
  }
]`
	svc := newTestService(nil)
	rep, err := svc.Run(context.Background(), Options{RulesPath: writeRules(t, content)})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	categories := make(map[string]int)
	for _, f := range rep.Findings {
		if f.Rule != "Broken" {
			t.Errorf("finding names rule %q, want Broken", f.Rule)
		}
		categories[f.Category]++
	}
	if categories[CategorySchema] == 0 {
		t.Error("expected a schema finding for the unknown field")
	}
	if categories[CategoryEmptyPredicate] != 1 {
		t.Errorf("empty-predicate findings = %d, want 1", categories[CategoryEmptyPredicate])
	}
	if categories[CategoryNoOperations] != 0 {
		t.Errorf("unexpected no-operations finding: %+v", rep.Findings)
	}
}

func TestRunReportsNoOperations(t *testing.T) {
	content := `[
  {
    "rule_name": "Snoozer",
    "rule_collection_predicate": "all",
    "rules": [
      {"field_name": "subject", "predicate": "contains", "value": "later"}
    ],
    "operations": [
      {"action": "Snooze"}
    ]
  }
]`
	svc := newTestService(nil)
	rep, err := svc.Run(context.Background(), Options{RulesPath: writeRules(t, content)})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !rep.ShouldFail([]string{"no-operations"}) {
		t.Fatalf("expected a no-operations finding, got %+v", rep.Findings)
	}
	if rep.ShouldFail([]string{"unknown-label"}) {
		t.Fatal("no label findings expected without -check-labels")
	}
}

func TestRunChecksLabels(t *testing.T) {
	content := `[
  {
    "rule_name": "Receipts",
    "rule_collection_predicate": "all",
    "rules": [
      {"field_name": "from", "predicate": "contains", "value": "receipt"}
    ],
    "operations": [
      {"action": "Move message", "destination": "Receipts"}
    ]
  },
  {
    "rule_name": "Mystery",
    "rule_collection_predicate": "all",
    "rules": [
      {"field_name": "subject", "predicate": "contains", "value": "ufo"}
    ],
    "operations": [
      {"action": "Move message", "destination": "Area51"}
    ]
  }
]`
	client := &fakeLabelClient{
		byName: map[string]gmail.LabelID{"Receipts": "Label_1"},
		byID:   map[gmail.LabelID]string{"INBOX": "INBOX", "Label_1": "Receipts"},
	}
	svc := newTestService(client)
	rep, err := svc.Run(context.Background(), Options{
		RulesPath:   writeRules(t, content),
		CheckLabels: true,
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if client.labelCalls != 1 {
		t.Fatalf("label calls = %d, want 1", client.labelCalls)
	}
	if len(rep.Findings) != 1 {
		t.Fatalf("findings = %+v, want one unknown-label", rep.Findings)
	}
	f := rep.Findings[0]
	if f.Category != CategoryUnknownLabel || f.Rule != "Mystery" {
		t.Fatalf("unexpected finding: %+v", f)
	}
	if !strings.Contains(f.Detail, "AREA51") {
		t.Fatalf("detail = %q, want the upper-cased destination", f.Detail)
	}
}

func TestRunCheckLabelsRequiresClient(t *testing.T) {
	svc := newTestService(nil)
	_, err := svc.Run(context.Background(), Options{
		RulesPath:   writeRules(t, cleanRules),
		CheckLabels: true,
	})
	if err == nil {
		t.Fatal("expected an error without a Gmail client")
	}
}

func TestRunCheckLabelsSkipsWithoutMoves(t *testing.T) {
	content := `[
  {
    "rule_name": "Read it",
    "rule_collection_predicate": "all",
    "rules": [
      {"field_name": "from", "predicate": "contains", "value": "bot"}
    ],
    "operations": [
      {"action": "Mark as Read"}
    ]
  }
]`
	client := &fakeLabelClient{}
	svc := newTestService(client)
	rep, err := svc.Run(context.Background(), Options{
		RulesPath:   writeRules(t, content),
		CheckLabels: true,
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if client.labelCalls != 0 {
		t.Fatalf("label calls = %d, want 0 when nothing moves", client.labelCalls)
	}
	if len(rep.Findings) != 0 {
		t.Fatalf("unexpected findings: %+v", rep.Findings)
	}
}

func TestRunMissingFileIsError(t *testing.T) {
	svc := newTestService(nil)
	path := filepath.Join(t.TempDir(), "absent.json")
	if _, err := svc.Run(context.Background(), Options{RulesPath: path}); err == nil {
		t.Fatal("expected an error for a missing rules file")
	}
}

func TestParseFailOn(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "empty", input: "", want: nil},
		{name: "spaces only", input: "  ", want: nil},
		{name: "simple", input: "schema,unknown-label", want: []string{"schema", "unknown-label"}},
		{name: "messy", input: " Schema , ,NO-OPERATIONS ", want: []string{"schema", "no-operations"}},
	}
	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			got := ParseFailOn(tc.input)
			if len(got) != len(tc.want) {
				t.Fatalf("ParseFailOn(%q) = %v, want %v", tc.input, got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("ParseFailOn(%q) = %v, want %v", tc.input, got, tc.want)
				}
			}
		})
	}
}

func TestHumanSummaryListsFindings(t *testing.T) {
	rep := Report{
		Path:  "rules.json",
		Rules: 1,
		Findings: []Finding{
			{Rule: "Broken", Category: CategorySchema, Detail: "condition 1: unknown field_name"},
		},
	}
	summary := rep.HumanSummary()
	if !strings.Contains(summary, "[schema] Broken") {
		t.Fatalf("summary = %q, want the schema finding", summary)
	}
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
