// Package gateway implements the LLM request/response boundary. A Client
// takes the dialogue context's role-tagged entries and returns the model's
// free-form text; everything above this package treats that text as opaque
// until plan extraction. No retries happen here - a failed call surfaces as
// an error and recovery is user-initiated.
package gateway

import (
	"context"

	"shellpilot/internal/types"
)

// Client defines the interface for LLM providers.
type Client interface {
	// Complete sends the dialogue entries (system entry first) and returns
	// the raw completion text.
	Complete(ctx context.Context, entries []types.DialogueEntry) (string, error)
}

// splitEntries separates the system instruction from the user entries.
// Providers differ on where the system prompt goes; both clients need this.
func splitEntries(entries []types.DialogueEntry) (system string, users []types.DialogueEntry) {
	for _, e := range entries {
		if e.Role == types.RoleSystem && system == "" {
			system = e.Content
			continue
		}
		users = append(users, e)
	}
	return system, users
}
