// Package docstore abstracts the document database the engine syncs
// against: ordered message collections with descending timestamp queries,
// single-document get/set with last-write-wins semantics, and real-time
// subscriptions that redeliver full result sets on any matching change.
package docstore

import (
	"context"
	"errors"
	"sync"

	"coachsync/pkg/models"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("docstore: not found")

// MessageStore is the ordered, timestamped message collection of a thread.
type MessageStore interface {
	// AppendMessage stores msg and returns it with its assigned id and
	// sequence tie-breaker filled in. Messages are append-only.
	AppendMessage(ctx context.Context, userID, threadID string, msg models.Message) (models.Message, error)
	// FetchPage returns up to limit messages ordered descending by cursor
	// key. An empty before starts at the newest message; otherwise before
	// is an inclusive upper bound.
	FetchPage(ctx context.Context, userID, threadID, before string, limit int) ([]models.Message, error)
	// WatchMessages subscribes to the most-recent window of the thread.
	// The full current top-limit window is redelivered on every change;
	// callers replace their in-memory list wholesale.
	WatchMessages(userID, threadID string, limit int) *Subscription[[]models.Message]
}

// ThreadStore is the per-user thread metadata document.
type ThreadStore interface {
	GetThread(ctx context.Context, userID, threadID string) (models.Thread, error)
	PutThread(ctx context.Context, userID string, th models.Thread) error
	// UpdateThread reads the thread (creating an empty one if absent),
	// applies mutate and writes it back. This is a read-then-write, not a
	// transaction: concurrent writers race with last-write-wins, which is
	// accepted because only one device per user is assumed active.
	UpdateThread(ctx context.Context, userID, threadID string, mutate func(*models.Thread)) (models.Thread, error)
	WatchThread(userID, threadID string) *Subscription[models.Thread]
}

// ProfileStore holds the user and boss documents.
type ProfileStore interface {
	GetUserProfile(ctx context.Context, userID string) (models.UserProfile, error)
	PutUserProfile(ctx context.Context, p models.UserProfile) error
	GetBossProfile(ctx context.Context, userID string) (models.BossProfile, error)
	PutBossProfile(ctx context.Context, userID string, p models.BossProfile) error
	// ListUserIDs enumerates users that have a profile document.
	ListUserIDs(ctx context.Context) ([]string, error)
}

// TimelineStore holds the coaching timeline collection.
type TimelineStore interface {
	AddTimelineEntry(ctx context.Context, userID string, e models.TimelineEntry) (models.TimelineEntry, error)
	// ListTimeline returns entries ordered descending by occurrence time.
	ListTimeline(ctx context.Context, userID string, limit int) ([]models.TimelineEntry, error)
}

// NotifyStateStore persists engagement-notification cadence state.
type NotifyStateStore interface {
	GetNotificationState(ctx context.Context, userID string) (models.NotificationState, error)
	PutNotificationState(ctx context.Context, st models.NotificationState) error
}

// Client is the full document-store surface the engine consumes. It is
// constructed once per process and threaded through explicitly; nothing in
// this repo imports a shared database handle as ambient state.
type Client interface {
	MessageStore
	ThreadStore
	ProfileStore
	TimelineStore
	NotifyStateStore
	Close() error
}

// Subscription is a cancelable stream of updates. Updates are delivered
// latest-wins into a buffered channel: a slow consumer observes the most
// recent value rather than blocking the store.
type Subscription[T any] struct {
	ch     chan T
	once   sync.Once
	cancel func()
}

func newSubscription[T any](cancel func()) *Subscription[T] {
	return &Subscription[T]{ch: make(chan T, 1), cancel: cancel}
}

// Updates returns the update channel. It is closed by Cancel.
func (s *Subscription[T]) Updates() <-chan T { return s.ch }

// Cancel tears the subscription down. Safe to call more than once.
func (s *Subscription[T]) Cancel() {
	s.once.Do(s.cancel)
}

// deliver pushes v with latest-wins semantics: if the buffer is full the
// stale value is dropped first. Callers must hold the watcher registry
// lock so deliver never races Cancel's channel close.
func deliver[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
