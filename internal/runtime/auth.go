package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mbrt/gmailctl/cmd/gmailctl/localcred"
	"google.golang.org/api/gmail/v1"

	gc "github.com/yourorg/rulesweep/internal/gmail"
)

// Scope selects how much mailbox access a binary requests.
type Scope int

const (
	ScopeReadonly Scope = iota
	ScopeModify
)

// NewGmailClient authenticates with the credentials cached under cfgDir
// and returns a ready client. First runs walk through the gmailctl
// browser flow and store the token in the same directory.
func NewGmailClient(ctx context.Context, cfgDir string, scope Scope) (gc.Client, error) {
	var apiScope string
	switch scope {
	case ScopeReadonly:
		apiScope = gmail.GmailReadonlyScope
	case ScopeModify:
		apiScope = gmail.GmailModifyScope
	default:
		return nil, fmt.Errorf("unknown scope %d", scope)
	}
	svc, err := (localcred.Provider{}).ServiceWithScopes(ctx, cfgDir, apiScope)
	if err != nil {
		return nil, fmt.Errorf("authenticate gmail: %w", err)
	}
	return NewGoogleAPIClient(svc), nil
}

// DefaultLogger returns the logger the binaries use when nothing else
// is configured.
func DefaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
