package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"coachsync/pkg/docstore"
	"coachsync/pkg/models"
)

type fakeMessageStore struct {
	mu       sync.Mutex
	fetchErr error
	fetches  int
	rows     []models.Message // returned from FetchPage, already windowed
	appended []models.Message
}

func (s *fakeMessageStore) AppendMessage(ctx context.Context, userID, threadID string, m models.Message) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = fmt.Sprintf("msg_%d", len(s.appended)+1)
	m.Seq = uint64(len(s.appended) + 1)
	s.appended = append(s.appended, m)
	return m, nil
}

func (s *fakeMessageStore) FetchPage(ctx context.Context, userID, threadID, before string, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	rows := s.rows
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return append([]models.Message(nil), rows...), nil
}

func (s *fakeMessageStore) WatchMessages(userID, threadID string, limit int) *docstore.Subscription[[]models.Message] {
	return nil
}

func TestAdapterRetriesThenReturnsOfflineError(t *testing.T) {
	store := &fakeMessageStore{fetchErr: errors.New("rpc: client is offline")}
	a := NewAdapter(store, "u1", models.DefaultThreadID)

	msgs, hasMore, err := a.FetchOlder(context.Background(), "", 50)
	if err == nil {
		t.Fatalf("expected error after retry exhaustion")
	}
	if msgs != nil || hasMore {
		t.Fatalf("degraded result should be empty, got %d msgs hasMore=%v", len(msgs), hasMore)
	}
	if store.fetches != fetchAttempts {
		t.Fatalf("fetch attempts = %d, want %d", store.fetches, fetchAttempts)
	}
}

func TestAdapterStripsCursorBoundary(t *testing.T) {
	// The store query is inclusive of the cursor row; the adapter must
	// strip exactly that row, even when another message shares its
	// timestamp with a different sequence number.
	ts := "2026-01-01T00:00:10.000000000Z"
	boundary := models.Message{ID: "b", Role: models.RoleUser, Timestamp: ts, Seq: 2}
	twin := models.Message{ID: "twin", Role: models.RoleUser, Timestamp: ts, Seq: 1}
	older := models.Message{ID: "o", Role: models.RoleUser, Timestamp: "2026-01-01T00:00:05.000000000Z", Seq: 1}
	store := &fakeMessageStore{rows: []models.Message{boundary, twin, older}}
	a := NewAdapter(store, "u1", models.DefaultThreadID)

	msgs, hasMore, err := a.FetchOlder(context.Background(), boundary.Key(), 2)
	if err != nil {
		t.Fatalf("FetchOlder: %v", err)
	}
	if hasMore {
		t.Fatalf("hasMore = true with exactly batch rows after the boundary")
	}
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2", len(msgs))
	}
	if msgs[0].ID != "twin" || msgs[1].ID != "o" {
		t.Fatalf("wrong rows survived the boundary strip: %q, %q", msgs[0].ID, msgs[1].ID)
	}
}

func TestAdapterReportsMoreWhenOverfull(t *testing.T) {
	rows := window(100, 4) // batch+1 rows, none matching the cursor
	store := &fakeMessageStore{rows: rows}
	a := NewAdapter(store, "u1", models.DefaultThreadID)

	msgs, hasMore, err := a.FetchOlder(context.Background(), "zzz", 3)
	if err != nil {
		t.Fatalf("FetchOlder: %v", err)
	}
	if !hasMore {
		t.Fatalf("hasMore = false with an overfull page")
	}
	if len(msgs) != 3 {
		t.Fatalf("len = %d, want batch size 3", len(msgs))
	}
}
