package assist

import (
	"context"

	"coachsync/pkg/models"
)

// Provider produces one assistant reply from the conversation history.
// history is chronological (oldest first); system carries the coaching
// persona and any profile context.
type Provider interface {
	Complete(ctx context.Context, system string, history []models.Message) (string, error)
}
