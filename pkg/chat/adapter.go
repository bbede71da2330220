// Package chat is the engine core: the store adapter, the backward
// pagination controller, the typing-indicator state machine and the send
// coordinator that ties them together.
package chat

import (
	"context"
	"time"

	"coachsync/pkg/docstore"
	"coachsync/pkg/logger"
	"coachsync/pkg/metrics"
	"coachsync/pkg/models"
	"coachsync/pkg/retry"
)

const (
	// LiveWindowLimit is how many of the newest messages the live
	// subscription keeps in memory.
	LiveWindowLimit = 20

	fetchAttempts  = 3
	fetchBaseDelay = 500 * time.Millisecond
)

// Adapter binds the message store to one user's thread and implements the
// retried, degraded reads the controller consumes.
type Adapter struct {
	store    docstore.MessageStore
	userID   string
	threadID string
}

func NewAdapter(store docstore.MessageStore, userID, threadID string) *Adapter {
	return &Adapter{store: store, userID: userID, threadID: threadID}
}

// Watch subscribes to the newest LiveWindowLimit messages of the thread.
func (a *Adapter) Watch() *docstore.Subscription[[]models.Message] {
	return a.store.WatchMessages(a.userID, a.threadID, LiveWindowLimit)
}

// Append stores msg on the bound thread.
func (a *Adapter) Append(ctx context.Context, msg models.Message) (models.Message, error) {
	return a.store.AppendMessage(ctx, a.userID, a.threadID, msg)
}

// FetchOlder loads the page of batchSize messages strictly older than
// cursor, retrying transient failures. The store query is inclusive of the
// cursor itself, so one extra row is requested and the boundary row is
// stripped by key; a timestamp collision with a distinct message therefore
// never loses data. hasMore reports whether older messages remain.
//
// On retry exhaustion the error is returned and no result is fabricated:
// offline failures are logged at warn, anything else at error, and the
// caller leaves its pagination state untouched.
func (a *Adapter) FetchOlder(ctx context.Context, cursor string, batchSize int) ([]models.Message, bool, error) {
	raw, err := retry.Do(ctx, fetchAttempts, fetchBaseDelay, func(ctx context.Context) ([]models.Message, error) {
		return a.store.FetchPage(ctx, a.userID, a.threadID, cursor, batchSize+1)
	})
	if err != nil {
		metrics.PageFetchFailures.Inc()
		if retry.IsOffline(err) {
			logger.Warn("page_fetch_offline", "thread", a.threadID, "cursor", cursor, "error", err)
		} else {
			logger.Error("page_fetch_failed", "thread", a.threadID, "cursor", cursor, "error", err)
		}
		return nil, false, err
	}

	hasMore := len(raw) > batchSize
	msgs := make([]models.Message, 0, len(raw))
	stripped := false
	for _, m := range raw {
		if !stripped && m.Key() == cursor {
			stripped = true
			continue
		}
		msgs = append(msgs, m)
	}
	if len(msgs) > batchSize {
		msgs = msgs[:batchSize]
	}
	metrics.PagesFetched.Inc()
	return msgs, hasMore, nil
}
