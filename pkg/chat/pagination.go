package chat

import (
	"context"
	"sync"

	"coachsync/pkg/models"
)

const (
	// InitialBatchSize is the page size of the first backward fetch.
	InitialBatchSize = 50
	// EscalatedBatchSize is used for every fetch after the first one
	// succeeds with at least one message.
	EscalatedBatchSize = 100
)

// PageFetcher loads one page of messages older than cursor. It is
// implemented by Adapter.
type PageFetcher interface {
	FetchOlder(ctx context.Context, cursor string, batchSize int) ([]models.Message, bool, error)
}

// Controller merges the live message window with backward-paginated
// history and guards against overlapping fetches. All methods are safe for
// concurrent use.
//
// The live window and the older pages never overlap: the cursor is seeded
// from the oldest live message and every fetch returns rows strictly older
// than it, so Messages can concatenate the two slices without deduplication.
type Controller struct {
	fetcher PageFetcher

	mu       sync.Mutex
	live     []models.Message // newest-first, from the subscription
	older    []models.Message // newest-first, accumulated pages
	cursor   string
	hasMore  bool
	seeded   bool
	filled   bool // live window has reached its limit at least once
	fetching bool
	batch    int
}

func NewController(fetcher PageFetcher) *Controller {
	return &Controller{fetcher: fetcher, batch: InitialBatchSize}
}

// ApplyWindow replaces the live window with msgs (newest-first, as
// delivered by the subscription). The first non-empty window seeds the
// pagination cursor from its oldest element; hasMore starts true only when
// the window is full, since a short window already holds the whole thread.
//
// When the window later grows to its limit for the first time the cursor
// is re-seeded once: the original seed may have been taken from a partial
// window whose oldest element is not the true pagination boundary.
func (c *Controller) ApplyWindow(msgs []models.Message, limit int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.live = append(c.live[:0], msgs...)
	if len(msgs) == 0 {
		return
	}
	oldest := msgs[len(msgs)-1]
	if !c.seeded {
		c.seeded = true
		c.cursor = oldest.Key()
		c.hasMore = len(msgs) >= limit
		c.filled = len(msgs) >= limit
		return
	}
	if !c.filled && len(msgs) >= limit {
		c.filled = true
		// Re-seed only if no page has been fetched yet; otherwise the
		// cursor already points past the live window.
		if len(c.older) == 0 {
			c.cursor = oldest.Key()
			c.hasMore = true
		}
	}
}

// LoadOlder fetches the next older page. It is a no-op when no fetcher is
// wired, the cursor is not yet seeded, no more history exists, or a fetch
// is already in flight; concurrent callers collapse to one fetch.
func (c *Controller) LoadOlder(ctx context.Context) error {
	c.mu.Lock()
	if c.fetcher == nil || !c.seeded || !c.hasMore || c.fetching {
		c.mu.Unlock()
		return nil
	}
	c.fetching = true
	cursor, batch := c.cursor, c.batch
	c.mu.Unlock()

	msgs, hasMore, err := c.fetcher.FetchOlder(ctx, cursor, batch)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetching = false
	if err != nil {
		// State is left untouched so the user can retry by scrolling again.
		return err
	}
	c.batch = EscalatedBatchSize
	c.hasMore = hasMore
	if len(msgs) > 0 {
		c.older = append(c.older, msgs...)
		c.cursor = msgs[len(msgs)-1].Key()
	}
	return nil
}

// Messages returns the merged view, newest-first: the live window followed
// by all fetched history. The returned slice is a copy.
func (c *Controller) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Message, 0, len(c.live)+len(c.older))
	out = append(out, c.live...)
	out = append(out, c.older...)
	return out
}

// HasMore reports whether older history remains to fetch.
func (c *Controller) HasMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasMore
}

// Reset drops all pagination state, e.g. on sign-out.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.live = nil
	c.older = nil
	c.cursor = ""
	c.hasMore = false
	c.seeded = false
	c.filled = false
	c.fetching = false
	c.batch = InitialBatchSize
}
