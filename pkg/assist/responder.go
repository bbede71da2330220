package assist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"coachsync/pkg/docstore"
	"coachsync/pkg/logger"
	"coachsync/pkg/models"
)

// ResponderStore is the store surface the responder needs.
type ResponderStore interface {
	docstore.MessageStore
	docstore.ThreadStore
	docstore.ProfileStore
}

// Responder performs generation locally: it plays the role of the remote
// cloud function against the same document store. It sets the thread's
// assistantIsTyping flag, produces a reply via a Provider, appends the
// assistant message and maintains the server-owned thread fields
// (unreadCount, lastMessageRole).
type Responder struct {
	store        ResponderStore
	provider     Provider
	historyLimit int
}

// NewResponder wires a responder. historyLimit bounds how much of the
// conversation is replayed to the provider; <=0 means 40.
func NewResponder(store ResponderStore, provider Provider, historyLimit int) *Responder {
	if historyLimit <= 0 {
		historyLimit = 40
	}
	return &Responder{store: store, provider: provider, historyLimit: historyLimit}
}

var _ Generator = (*Responder)(nil)

func (r *Responder) Generate(ctx context.Context, req Request) (Result, error) {
	now := models.FormatTimestamp(time.Now())
	if _, err := r.store.UpdateThread(ctx, req.UserID, req.ThreadID, func(th *models.Thread) {
		th.AssistantIsTyping = true
		th.UpdatedAt = now
	}); err != nil {
		return Result{}, fmt.Errorf("set typing flag: %w", err)
	}

	history, err := r.store.FetchPage(ctx, req.UserID, req.ThreadID, "", r.historyLimit)
	if err != nil {
		r.clearTyping(ctx, req)
		return Result{}, fmt.Errorf("load history: %w", err)
	}
	// FetchPage is newest-first; providers want chronological order.
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}

	if cancelled := r.superseded(ctx, req); cancelled {
		// A newer user message owns the typing flag now; leave it alone.
		return Result{Success: false, ErrorCode: CodeGenerationCancelled}, nil
	}

	text, err := r.provider.Complete(ctx, r.systemPrompt(ctx, req), history)
	if err != nil {
		r.clearTyping(ctx, req)
		return Result{}, err
	}
	if r.superseded(ctx, req) {
		return Result{Success: false, ErrorCode: CodeGenerationCancelled}, nil
	}

	reply := models.NewMessage(models.RoleAssistant, text)
	stored, err := r.store.AppendMessage(ctx, req.UserID, req.ThreadID, reply)
	if err != nil {
		r.clearTyping(ctx, req)
		return Result{}, fmt.Errorf("append assistant message: %w", err)
	}
	if _, err := r.store.UpdateThread(ctx, req.UserID, req.ThreadID, func(th *models.Thread) {
		th.MessageCount++
		th.UnreadCount++
		th.UpdatedAt = stored.Timestamp
		th.LastMessageAt = stored.Timestamp
		th.LastMessageRole = models.RoleAssistant
		th.AssistantIsTyping = false
	}); err != nil {
		logger.Error("responder_thread_update_failed", "user", req.UserID, "error", err)
	}
	logger.Info("assistant_message_added", "user", req.UserID, "thread", req.ThreadID, "id", stored.ID)
	return Result{Success: true, MessageID: stored.ID}, nil
}

// superseded reports whether a user message newer than the triggering one
// has arrived, in which case this run is cancelled.
func (r *Responder) superseded(ctx context.Context, req Request) bool {
	latest, err := r.store.FetchPage(ctx, req.UserID, req.ThreadID, "", 1)
	if err != nil || len(latest) == 0 {
		return false
	}
	m := latest[0]
	return m.Role == models.RoleUser && m.ID != req.MessageID
}

func (r *Responder) clearTyping(ctx context.Context, req Request) {
	if _, err := r.store.UpdateThread(ctx, req.UserID, req.ThreadID, func(th *models.Thread) {
		th.AssistantIsTyping = false
	}); err != nil {
		logger.Error("clear_typing_failed", "user", req.UserID, "error", err)
	}
}

// systemPrompt assembles the coaching persona plus whatever profile
// context exists. Profile reads are best-effort.
func (r *Responder) systemPrompt(ctx context.Context, req Request) string {
	var b strings.Builder
	b.WriteString("You are a pragmatic workplace coach helping the user manage their relationship with their boss. ")
	b.WriteString("Be concrete, concise and kind. Ask one good follow-up question when it helps.")

	if boss, err := r.store.GetBossProfile(ctx, req.UserID); err == nil {
		if boss.Name != "" {
			fmt.Fprintf(&b, "\nThe user's boss is %s", boss.Name)
			if boss.RoleTitle != "" {
				fmt.Fprintf(&b, " (%s)", boss.RoleTitle)
			}
			b.WriteString(".")
		}
		if boss.Style != "" {
			fmt.Fprintf(&b, "\nManagement style: %s.", boss.Style)
		}
		if len(boss.Challenges) > 0 {
			fmt.Fprintf(&b, "\nKnown challenges: %s.", strings.Join(boss.Challenges, ", "))
		}
	} else if !errors.Is(err, docstore.ErrNotFound) {
		logger.Warn("boss_profile_read_failed", "user", req.UserID, "error", err)
	}
	if req.ClientTime != "" {
		fmt.Fprintf(&b, "\nThe user's local time is %s (%s).", req.ClientTime, req.Timezone)
	}
	return b.String()
}
