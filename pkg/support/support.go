// Package support relays in-app support requests to the operator.
package support

import "context"

// Messenger delivers one support message from a user to wherever the
// operator reads them. Delivery is best-effort from the caller's point of
// view; errors are surfaced so the bridge can tell the user to retry.
type Messenger interface {
	Relay(ctx context.Context, userID, text string) error
}

// Noop drops support messages. Used when no channel is configured.
type Noop struct{}

func (Noop) Relay(context.Context, string, string) error { return nil }
