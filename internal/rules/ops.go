package rules

import (
	"context"
	"strings"

	"github.com/yourorg/rulesweep/internal/gmail"
)

// Mailer applies label changes to a single message.
type Mailer interface {
	Modify(ctx context.Context, id gmail.MessageID, ops gmail.ModifyOps) error
}

// Operation is one executable action bundled from a rule.
type Operation interface {
	Apply(ctx context.Context, mail Mailer, id gmail.MessageID) error
	Describe() string
}

// MarkRead clears the unread state of a message.
type MarkRead struct{}

func (MarkRead) Apply(ctx context.Context, mail Mailer, id gmail.MessageID) error {
	return mail.Modify(ctx, id, gmail.ModifyOps{MarkRead: true})
}

func (MarkRead) Describe() string { return "mark as read" }

// MoveToLabel files a message under a label. Moving anywhere but the
// inbox also archives the message.
type MoveToLabel struct {
	Label gmail.LabelID
}

// NewMoveToLabel upper-cases the destination the way Gmail spells its
// system labels.
func NewMoveToLabel(destination string) MoveToLabel {
	return MoveToLabel{Label: gmail.LabelID(strings.ToUpper(destination))}
}

func (o MoveToLabel) Apply(ctx context.Context, mail Mailer, id gmail.MessageID) error {
	return mail.Modify(ctx, id, gmail.ModifyOps{
		AddLabels: []gmail.LabelID{o.Label},
		Archive:   o.Label != "INBOX",
	})
}

func (o MoveToLabel) Describe() string { return "move to " + string(o.Label) }

// BundleOperations converts rule file operations into executable ones.
// Specs the bundler does not recognize are dropped.
func BundleOperations(specs []OperationSpec) []Operation {
	ops := make([]Operation, 0, len(specs))
	for _, spec := range specs {
		switch spec.Action {
		case ActionMarkAsRead:
			ops = append(ops, MarkRead{})
		case ActionMove:
			if spec.Destination == "" {
				continue
			}
			ops = append(ops, NewMoveToLabel(spec.Destination))
		}
	}
	return ops
}
