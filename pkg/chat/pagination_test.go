package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"coachsync/pkg/models"
)

func msg(ts string, seq uint64) models.Message {
	return models.Message{
		ID:        fmt.Sprintf("m-%s-%d", ts, seq),
		Role:      models.RoleUser,
		Content:   []models.ContentItem{{Type: models.ContentTypeText, Text: "x"}},
		Timestamp: ts,
		Seq:       seq,
	}
}

// window builds n messages newest-first, one second apart, ending at the
// offset start seconds into the day.
func window(start, n int) []models.Message {
	out := make([]models.Message, 0, n)
	for i := 0; i < n; i++ {
		s := start - i
		out = append(out, msg(fmt.Sprintf("2026-01-01T00:%02d:%02d.000000000Z", s/60, s%60), 0))
	}
	return out
}

type scriptedFetcher struct {
	mu      sync.Mutex
	calls   []fetchCall
	pages   [][]models.Message
	hasMore []bool
	errs    []error
	block   chan struct{}
}

type fetchCall struct {
	cursor string
	batch  int
}

func (f *scriptedFetcher) FetchOlder(ctx context.Context, cursor string, batch int) ([]models.Message, bool, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.calls)
	f.calls = append(f.calls, fetchCall{cursor: cursor, batch: batch})
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, false, f.errs[i]
	}
	var page []models.Message
	if i < len(f.pages) {
		page = f.pages[i]
	}
	more := false
	if i < len(f.hasMore) {
		more = f.hasMore[i]
	}
	return page, more, nil
}

func (f *scriptedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestControllerSeedsFromFullWindow(t *testing.T) {
	f := &scriptedFetcher{}
	c := NewController(f)
	w := window(59, LiveWindowLimit)
	c.ApplyWindow(w, LiveWindowLimit)
	if !c.HasMore() {
		t.Fatalf("full window should assume more history")
	}
	c.mu.Lock()
	cursor := c.cursor
	c.mu.Unlock()
	if want := w[len(w)-1].Key(); cursor != want {
		t.Fatalf("cursor = %q, want oldest key %q", cursor, want)
	}
}

func TestControllerShortWindowHasNoMore(t *testing.T) {
	c := NewController(&scriptedFetcher{})
	c.ApplyWindow(window(5, 5), LiveWindowLimit)
	if c.HasMore() {
		t.Fatalf("window shorter than limit holds the whole thread")
	}
	if err := c.LoadOlder(context.Background()); err != nil {
		t.Fatalf("LoadOlder: %v", err)
	}
}

func TestControllerEmptyThreadIsNoop(t *testing.T) {
	f := &scriptedFetcher{}
	c := NewController(f)
	c.ApplyWindow(nil, LiveWindowLimit)
	if c.HasMore() {
		t.Fatalf("empty thread should not report more history")
	}
	if err := c.LoadOlder(context.Background()); err != nil {
		t.Fatalf("LoadOlder: %v", err)
	}
	if f.callCount() != 0 {
		t.Fatalf("LoadOlder fetched on an unseeded controller")
	}
}

func TestControllerBatchEscalation(t *testing.T) {
	f := &scriptedFetcher{
		pages:   [][]models.Message{window(100, 3), window(90, 3)},
		hasMore: []bool{true, true},
	}
	c := NewController(f)
	c.ApplyWindow(window(200, LiveWindowLimit), LiveWindowLimit)

	if err := c.LoadOlder(context.Background()); err != nil {
		t.Fatalf("first LoadOlder: %v", err)
	}
	if err := c.LoadOlder(context.Background()); err != nil {
		t.Fatalf("second LoadOlder: %v", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls[0].batch != InitialBatchSize {
		t.Fatalf("first fetch batch = %d, want %d", f.calls[0].batch, InitialBatchSize)
	}
	if f.calls[1].batch != EscalatedBatchSize {
		t.Fatalf("second fetch batch = %d, want %d", f.calls[1].batch, EscalatedBatchSize)
	}
}

func TestControllerCursorAdvancesMonotonically(t *testing.T) {
	pages := [][]models.Message{window(100, 4), window(80, 4)}
	f := &scriptedFetcher{pages: pages, hasMore: []bool{true, false}}
	c := NewController(f)
	c.ApplyWindow(window(200, LiveWindowLimit), LiveWindowLimit)

	var cursors []string
	for i := 0; i < 2; i++ {
		c.mu.Lock()
		cursors = append(cursors, c.cursor)
		c.mu.Unlock()
		if err := c.LoadOlder(context.Background()); err != nil {
			t.Fatalf("LoadOlder %d: %v", i, err)
		}
	}
	c.mu.Lock()
	cursors = append(cursors, c.cursor)
	c.mu.Unlock()

	for i := 1; i < len(cursors); i++ {
		if cursors[i] >= cursors[i-1] {
			t.Fatalf("cursor did not move strictly older: %q then %q", cursors[i-1], cursors[i])
		}
	}
	if c.HasMore() {
		t.Fatalf("hasMore should be false after final page")
	}
}

func TestControllerSingleFlightFetch(t *testing.T) {
	f := &scriptedFetcher{
		pages:   [][]models.Message{window(100, 2)},
		hasMore: []bool{true},
		block:   make(chan struct{}),
	}
	c := NewController(f)
	c.ApplyWindow(window(200, LiveWindowLimit), LiveWindowLimit)

	done := make(chan error, 1)
	go func() { done <- c.LoadOlder(context.Background()) }()

	// Wait until the first fetch is in flight.
	for {
		c.mu.Lock()
		inFlight := c.fetching
		c.mu.Unlock()
		if inFlight {
			break
		}
	}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.LoadOlder(context.Background()); err != nil {
				t.Errorf("concurrent LoadOlder: %v", err)
			}
		}()
	}
	wg.Wait()
	close(f.block)
	if err := <-done; err != nil {
		t.Fatalf("LoadOlder: %v", err)
	}
	if n := f.callCount(); n != 1 {
		t.Fatalf("fetch calls = %d, want 1", n)
	}
}

func TestControllerFetchErrorLeavesStateUntouched(t *testing.T) {
	f := &scriptedFetcher{errs: []error{fmt.Errorf("store: connection refused")}}
	c := NewController(f)
	c.ApplyWindow(window(200, LiveWindowLimit), LiveWindowLimit)

	c.mu.Lock()
	before := c.cursor
	c.mu.Unlock()

	if err := c.LoadOlder(context.Background()); err == nil {
		t.Fatalf("expected fetch error")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cursor != before {
		t.Fatalf("cursor changed on failed fetch")
	}
	if !c.hasMore {
		t.Fatalf("hasMore cleared on failed fetch")
	}
	if len(c.older) != 0 {
		t.Fatalf("older pages recorded on failed fetch")
	}
}

func TestControllerExactPageBoundary(t *testing.T) {
	// A thread with exactly limit messages fills the window, so hasMore
	// starts true; the first fetch comes back empty and corrects it.
	f := &scriptedFetcher{pages: [][]models.Message{nil}, hasMore: []bool{false}}
	c := NewController(f)
	c.ApplyWindow(window(30, LiveWindowLimit), LiveWindowLimit)
	if !c.HasMore() {
		t.Fatalf("full window should start with hasMore=true")
	}
	if err := c.LoadOlder(context.Background()); err != nil {
		t.Fatalf("LoadOlder: %v", err)
	}
	if c.HasMore() {
		t.Fatalf("empty page did not correct hasMore to false")
	}
	if err := c.LoadOlder(context.Background()); err != nil {
		t.Fatalf("LoadOlder after correction: %v", err)
	}
	if n := f.callCount(); n != 1 {
		t.Fatalf("fetch calls = %d, want no fetch after hasMore=false", n)
	}
}

func TestControllerReseedsWhenWindowFills(t *testing.T) {
	f := &scriptedFetcher{}
	c := NewController(f)
	// Thread starts short, then grows past the live limit.
	c.ApplyWindow(window(5, 5), LiveWindowLimit)
	if c.HasMore() {
		t.Fatalf("short window should not report more")
	}
	full := window(30, LiveWindowLimit)
	c.ApplyWindow(full, LiveWindowLimit)
	if !c.HasMore() {
		t.Fatalf("filled window should report more history")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if want := full[len(full)-1].Key(); c.cursor != want {
		t.Fatalf("cursor = %q, want re-seeded %q", c.cursor, want)
	}
}

func TestControllerMessagesMergeAndReset(t *testing.T) {
	f := &scriptedFetcher{pages: [][]models.Message{window(100, 3)}, hasMore: []bool{false}}
	c := NewController(f)
	live := window(200, LiveWindowLimit)
	c.ApplyWindow(live, LiveWindowLimit)
	if err := c.LoadOlder(context.Background()); err != nil {
		t.Fatalf("LoadOlder: %v", err)
	}
	got := c.Messages()
	if len(got) != LiveWindowLimit+3 {
		t.Fatalf("merged length = %d, want %d", len(got), LiveWindowLimit+3)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Key() >= got[i-1].Key() {
			t.Fatalf("merged view not newest-first at %d", i)
		}
	}
	c.Reset()
	if len(c.Messages()) != 0 || c.HasMore() {
		t.Fatalf("Reset did not clear state")
	}
}
