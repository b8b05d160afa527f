package rules

import (
	"context"
	"testing"

	"github.com/yourorg/rulesweep/internal/gmail"
)

type recordingMailer struct {
	ids []gmail.MessageID
	ops []gmail.ModifyOps
	err error
}

func (m *recordingMailer) Modify(ctx context.Context, id gmail.MessageID, ops gmail.ModifyOps) error {
	_ = ctx
	m.ids = append(m.ids, id)
	m.ops = append(m.ops, ops)
	return m.err
}

func TestBundleOperations(t *testing.T) {
	tests := []struct {
		name  string
		specs []OperationSpec
		want  []string
	}{
		{
			name: "both-actions",
			specs: []OperationSpec{
				{Action: "Mark as Read"},
				{Action: "Move message", Destination: "Archive"},
			},
			want: []string{"mark as read", "move to ARCHIVE"},
		},
		{
			name: "move-without-destination-dropped",
			specs: []OperationSpec{
				{Action: "Move message"},
				{Action: "Mark as Read"},
			},
			want: []string{"mark as read"},
		},
		{
			name: "unknown-action-dropped",
			specs: []OperationSpec{
				{Action: "Forward message", Destination: "me@example.com"},
			},
			want: nil,
		},
		{
			name:  "empty",
			specs: nil,
			want:  nil,
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			ops := BundleOperations(tc.specs)
			if len(ops) != len(tc.want) {
				t.Fatalf("bundled %d operations, want %d", len(ops), len(tc.want))
			}
			for i, op := range ops {
				if op.Describe() != tc.want[i] {
					t.Fatalf("operation %d = %q, want %q", i, op.Describe(), tc.want[i])
				}
			}
		})
	}
}

func TestMarkReadApply(t *testing.T) {
	mailer := &recordingMailer{}
	if err := (MarkRead{}).Apply(context.Background(), mailer, "msg-1"); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if len(mailer.ops) != 1 {
		t.Fatalf("expected 1 modify call, got %d", len(mailer.ops))
	}
	got := mailer.ops[0]
	if !got.MarkRead {
		t.Fatal("expected MarkRead to be set")
	}
	if got.Archive || len(got.AddLabels) != 0 || len(got.RemoveLabels) != 0 {
		t.Fatalf("unexpected extra modifications: %+v", got)
	}
}

func TestMoveToLabelApply(t *testing.T) {
	mailer := &recordingMailer{}
	op := NewMoveToLabel("receipts")
	if err := op.Apply(context.Background(), mailer, "msg-2"); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	got := mailer.ops[0]
	if len(got.AddLabels) != 1 || got.AddLabels[0] != "RECEIPTS" {
		t.Fatalf("add labels = %v, want [RECEIPTS]", got.AddLabels)
	}
	if !got.Archive {
		t.Fatal("moving out of the inbox should archive")
	}
}

func TestMoveToInboxDoesNotArchive(t *testing.T) {
	mailer := &recordingMailer{}
	op := NewMoveToLabel("inbox")
	if err := op.Apply(context.Background(), mailer, "msg-3"); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	got := mailer.ops[0]
	if got.AddLabels[0] != "INBOX" {
		t.Fatalf("add labels = %v, want [INBOX]", got.AddLabels)
	}
	if got.Archive {
		t.Fatal("moving to the inbox must not archive")
	}
}
