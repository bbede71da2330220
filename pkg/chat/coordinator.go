package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"coachsync/pkg/analytics"
	"coachsync/pkg/assist"
	"coachsync/pkg/auth"
	"coachsync/pkg/docstore"
	"coachsync/pkg/logger"
	"coachsync/pkg/metrics"
	"coachsync/pkg/models"
)

var (
	ErrEmptyMessage = errors.New("chat: message is empty")
	ErrNoSession    = errors.New("chat: no signed-in session")
	ErrRateLimited  = errors.New("chat: rate limited")
)

// Coordinator owns the send path: validate, append, update thread
// bookkeeping, start the typing indicator and fire generation. Generation
// is fire-and-forget; its outcome never reaches the sender.
type Coordinator struct {
	threads  docstore.ThreadStore
	adapter  *Adapter
	typing   *TypingIndicator
	gen      assist.Generator
	tracker  analytics.Tracker
	limiter  *auth.LimiterPool
	sess     *auth.Session
	threadID string

	// restoreInput is called with the original text when a send fails so
	// the UI can put it back in the compose box. May be nil.
	restoreInput func(text string)
}

func NewCoordinator(
	threads docstore.ThreadStore,
	adapter *Adapter,
	typing *TypingIndicator,
	gen assist.Generator,
	tracker analytics.Tracker,
	limiter *auth.LimiterPool,
	sess *auth.Session,
	threadID string,
	restoreInput func(string),
) *Coordinator {
	if tracker == nil {
		tracker = analytics.Noop{}
	}
	return &Coordinator{
		threads:      threads,
		adapter:      adapter,
		typing:       typing,
		gen:          gen,
		tracker:      tracker,
		limiter:      limiter,
		sess:         sess,
		threadID:     threadID,
		restoreInput: restoreInput,
	}
}

// Send appends the user's message and kicks off a response. On failure the
// typing indicator is reset and the trimmed text is handed back through
// restoreInput; the error tells the caller what went wrong.
func (c *Coordinator) Send(ctx context.Context, text string) (models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, ErrEmptyMessage
	}
	if c.sess == nil {
		return models.Message{}, ErrNoSession
	}
	if c.limiter != nil && !c.limiter.Allow(c.sess.UserID) {
		return models.Message{}, ErrRateLimited
	}

	msg := models.NewMessage(models.RoleUser, text)
	stored, err := c.adapter.Append(ctx, msg)
	if err != nil {
		metrics.SendFailures.Inc()
		logger.Error("send_failed", "thread", c.threadID, "error", err)
		c.typing.Fail()
		if c.restoreInput != nil {
			c.restoreInput(text)
		}
		return models.Message{}, err
	}

	// Thread bookkeeping is best-effort; the message is already durable.
	if _, err := c.threads.UpdateThread(ctx, c.sess.UserID, c.threadID, func(th *models.Thread) {
		th.MessageCount++
		th.UpdatedAt = stored.Timestamp
		th.LastMessageAt = stored.Timestamp
		th.LastMessageRole = models.RoleUser
	}); err != nil {
		logger.Warn("thread_update_failed", "thread", c.threadID, "error", err)
	}

	c.typing.Begin()
	metrics.MessagesSent.Inc()
	c.tracker.Track(analytics.NewEvent(c.sess.UserID, "message_sent", map[string]any{
		"threadId": c.threadID,
		"length":   len(text),
	}))

	go c.triggerGeneration(stored.ID)
	return stored, nil
}

// triggerGeneration runs the generator detached from the send call. A
// cancelled generation is a normal outcome (the user sent another message);
// everything else is logged and counted but never surfaced.
func (c *Coordinator) triggerGeneration(messageID string) {
	start := time.Now()
	res, err := c.gen.Generate(context.Background(), assist.Request{
		UserID:     c.sess.UserID,
		ThreadID:   c.threadID,
		MessageID:  messageID,
		SessionID:  c.sess.SessionID,
		ClientTime: c.sess.NowLocal(),
		Timezone:   c.sess.Timezone(),
	})
	metrics.GenerationSeconds.Observe(time.Since(start).Seconds())
	switch {
	case err != nil:
		metrics.GenerationErrors.Inc()
		logger.Error("generation_failed", "message", messageID, "error", err)
	case res.ErrorCode == assist.CodeGenerationCancelled:
		logger.Info("generation_cancelled", "message", messageID)
	case !res.Success:
		metrics.GenerationErrors.Inc()
		logger.Error("generation_unsuccessful", "message", messageID, "error", res.Error)
	}
}

// MarkRead clears the unread counter and records the read time.
func (c *Coordinator) MarkRead(ctx context.Context) error {
	if c.sess == nil {
		return ErrNoSession
	}
	_, err := c.threads.UpdateThread(ctx, c.sess.UserID, c.threadID, func(th *models.Thread) {
		th.UnreadCount = 0
		th.LastReadAt = c.sess.NowStamp()
	})
	return err
}
