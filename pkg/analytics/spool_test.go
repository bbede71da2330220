package analytics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func openTestSpool(t *testing.T) *Spool {
	t.Helper()
	s, err := OpenSpool(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("open spool: %v", err)
	}
	return s
}

func TestSpoolPutPeekTrim(t *testing.T) {
	s := openTestSpool(t)
	defer s.Close()

	for i := 0; i < 3; i++ {
		if err := s.Put(NewEvent("u1", "message_sent", map[string]any{"n": i})); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	events, upto, err := s.Peek(2)
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if len(events) != 2 || upto == 0 {
		t.Fatalf("peeked %d events upto=%d", len(events), upto)
	}
	if events[0].Type != "message_sent" || events[0].UserID != "u1" {
		t.Fatalf("event wrong: %+v", events[0])
	}
	if err := s.Trim(upto); err != nil {
		t.Fatalf("Trim: %v", err)
	}
	n, err := s.Len()
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if n != 1 {
		t.Fatalf("len after trim = %d, want 1", n)
	}
}

func TestAmplitudeUploadsSpooledEvents(t *testing.T) {
	var (
		mu       sync.Mutex
		received []Event
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			APIKey string  `json:"api_key"`
			Events []Event `json:"events"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode upload: %v", err)
		}
		if body.APIKey != "key123" {
			t.Errorf("api key = %q", body.APIKey)
		}
		mu.Lock()
		received = append(received, body.Events...)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewAmplitude("key123", srv.URL, openTestSpool(t), 20*time.Millisecond)
	a.Track(NewEvent("u1", "app_opened", nil))
	a.Track(NewEvent("u1", "message_sent", map[string]any{"length": 5}))

	deadline := time.Now().Add(3 * time.Second)
	for {
		mu.Lock()
		n := len(received)
		mu.Unlock()
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("events never uploaded, got %d", n)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestAmplitudeKeepsEventsOnUploadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "events.db")
	spool, err := OpenSpool(path)
	if err != nil {
		t.Fatalf("open spool: %v", err)
	}
	a := NewAmplitude("key123", srv.URL, spool, 20*time.Millisecond)
	a.Track(NewEvent("u1", "app_opened", nil))

	// Let at least one flush attempt happen and fail.
	time.Sleep(150 * time.Millisecond)
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenSpool(path)
	if err != nil {
		t.Fatalf("reopen spool: %v", err)
	}
	defer reopened.Close()
	n, err := reopened.Len()
	if err != nil {
		t.Fatalf("Len: %v", err)
	}
	if n != 1 {
		t.Fatalf("spool len = %d, want failed event retained", n)
	}
}
