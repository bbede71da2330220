package assist

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"coachsync/pkg/docstore"
	"coachsync/pkg/models"
)

type fakeProvider struct {
	mu      sync.Mutex
	systems []string
	reply   string
	err     error
	// onComplete runs inside Complete, before returning; used to simulate
	// a user message arriving mid-generation.
	onComplete func()
}

func (f *fakeProvider) Complete(ctx context.Context, system string, history []models.Message) (string, error) {
	f.mu.Lock()
	f.systems = append(f.systems, system)
	f.mu.Unlock()
	if f.onComplete != nil {
		f.onComplete()
	}
	return f.reply, f.err
}

func openStore(t *testing.T) *docstore.Pebble {
	t.Helper()
	p, err := docstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func sendUser(t *testing.T, store *docstore.Pebble, user, text string) models.Message {
	t.Helper()
	m, err := store.AppendMessage(context.Background(), user, models.DefaultThreadID, models.NewMessage(models.RoleUser, text))
	if err != nil {
		t.Fatalf("append user message: %v", err)
	}
	return m
}

func TestResponderAppendsReplyAndUpdatesThread(t *testing.T) {
	store := openStore(t)
	msg := sendUser(t, store, "u1", "my boss keeps moving deadlines")
	provider := &fakeProvider{reply: "Try agreeing the priority order explicitly."}
	r := NewResponder(store, provider, 0)

	res, err := r.Generate(context.Background(), Request{
		UserID: "u1", ThreadID: models.DefaultThreadID, MessageID: msg.ID,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !res.Success || res.MessageID == "" {
		t.Fatalf("result = %+v, want success with message id", res)
	}

	page, err := store.FetchPage(context.Background(), "u1", models.DefaultThreadID, "", 2)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if page[0].Role != models.RoleAssistant || page[0].Text() != provider.reply {
		t.Fatalf("assistant reply not appended: %+v", page[0])
	}

	th, err := store.GetThread(context.Background(), "u1", models.DefaultThreadID)
	if err != nil {
		t.Fatalf("GetThread: %v", err)
	}
	if th.AssistantIsTyping {
		t.Fatalf("typing flag left on after success")
	}
	if th.UnreadCount != 1 || th.LastMessageRole != models.RoleAssistant {
		t.Fatalf("thread counters wrong: %+v", th)
	}
}

func TestResponderCancelledBySupersedingMessage(t *testing.T) {
	store := openStore(t)
	msg := sendUser(t, store, "u1", "first question")
	provider := &fakeProvider{reply: "stale answer"}
	provider.onComplete = func() {
		sendUser(t, store, "u1", "actually, a different question")
	}
	r := NewResponder(store, provider, 0)

	res, err := r.Generate(context.Background(), Request{
		UserID: "u1", ThreadID: models.DefaultThreadID, MessageID: msg.ID,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Success || res.ErrorCode != CodeGenerationCancelled {
		t.Fatalf("result = %+v, want cancelled", res)
	}

	// The stale answer must not have been appended; the newest message is
	// still the superseding user one.
	page, err := store.FetchPage(context.Background(), "u1", models.DefaultThreadID, "", 1)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if page[0].Role != models.RoleUser {
		t.Fatalf("stale reply was appended: %+v", page[0])
	}

	// Cancelled runs leave the typing flag for the successor to manage.
	th, err := store.GetThread(context.Background(), "u1", models.DefaultThreadID)
	if err != nil {
		t.Fatalf("GetThread: %v", err)
	}
	if !th.AssistantIsTyping {
		t.Fatalf("cancelled run cleared the typing flag")
	}
}

func TestResponderProviderErrorClearsTyping(t *testing.T) {
	store := openStore(t)
	msg := sendUser(t, store, "u1", "hello")
	provider := &fakeProvider{err: errors.New("provider: rate limited")}
	r := NewResponder(store, provider, 0)

	if _, err := r.Generate(context.Background(), Request{
		UserID: "u1", ThreadID: models.DefaultThreadID, MessageID: msg.ID,
	}); err == nil {
		t.Fatalf("expected provider error")
	}
	th, err := store.GetThread(context.Background(), "u1", models.DefaultThreadID)
	if err != nil {
		t.Fatalf("GetThread: %v", err)
	}
	if th.AssistantIsTyping {
		t.Fatalf("typing flag left on after provider failure")
	}
}

func TestResponderSystemPromptIncludesBossProfile(t *testing.T) {
	store := openStore(t)
	if err := store.PutBossProfile(context.Background(), "u1", models.BossProfile{
		Name: "Dana", RoleTitle: "VP Engineering", Style: "hands-off",
	}); err != nil {
		t.Fatalf("PutBossProfile: %v", err)
	}
	msg := sendUser(t, store, "u1", "how do I get feedback?")
	provider := &fakeProvider{reply: "Ask for a recurring 1:1."}
	r := NewResponder(store, provider, 0)

	if _, err := r.Generate(context.Background(), Request{
		UserID: "u1", ThreadID: models.DefaultThreadID, MessageID: msg.ID,
	}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	provider.mu.Lock()
	defer provider.mu.Unlock()
	if len(provider.systems) != 1 {
		t.Fatalf("provider called %d times, want 1", len(provider.systems))
	}
	sys := provider.systems[0]
	if !strings.Contains(sys, "Dana") || !strings.Contains(sys, "hands-off") {
		t.Fatalf("system prompt missing boss profile: %q", sys)
	}
}
