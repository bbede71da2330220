// Package notify sweeps user threads on a cron schedule and pushes
// engagement reminders on a progressive cadence: unread assistant replies
// nudge the user back quickly and then back off.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/adhocore/gronx"

	"coachsync/pkg/docstore"
	"coachsync/pkg/logger"
	"coachsync/pkg/metrics"
	"coachsync/pkg/models"
)

// DefaultCron sweeps every 15 minutes.
const DefaultCron = "*/15 * * * *"

// Notification is one push handed to the Pusher.
type Notification struct {
	UserID   string `json:"userId"`
	Category string `json:"category"`
	Title    string `json:"title"`
	Body     string `json:"body"`
}

// Pusher delivers a notification to the device.
type Pusher interface {
	Push(ctx context.Context, n Notification) error
}

// Webhook POSTs notifications to a configured URL, e.g. a local ntfy or
// gotify instance.
type Webhook struct {
	url    string
	client *http.Client
}

func NewWebhook(url string) *Webhook {
	return &Webhook{url: url, client: &http.Client{Timeout: 10 * time.Second}}
}

var _ Pusher = (*Webhook)(nil)

func (w *Webhook) Push(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("push notification: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push notification: status %d", resp.StatusCode)
	}
	return nil
}

// Store is the document surface the sweeper reads and advances.
type Store interface {
	docstore.ThreadStore
	docstore.ProfileStore
	docstore.NotifyStateStore
}

// Sweeper runs the reminder sweep.
type Sweeper struct {
	store  Store
	pusher Pusher
	nowFn  func() time.Time
}

func NewSweeper(store Store, pusher Pusher) *Sweeper {
	return &Sweeper{store: store, pusher: pusher, nowFn: time.Now}
}

// Start launches the cron-driven sweep loop. It validates the expression
// up front and returns a cancel func.
func (s *Sweeper) Start(ctx context.Context, cronExpr string) (context.CancelFunc, error) {
	if cronExpr == "" {
		cronExpr = DefaultCron
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("notify_invalid_cron", "cron", cronExpr)
		return nil, fmt.Errorf("invalid notify cron expression: %s", cronExpr)
	}
	ctx2, cancel := context.WithCancel(ctx)
	go s.runScheduler(ctx2, cronExpr)
	logger.Info("notify_scheduler_started", "cron", cronExpr)
	return cancel, nil
}

// runScheduler computes the next cron tick and sleeps until it.
func (s *Sweeper) runScheduler(ctx context.Context, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("notify_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("notify_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			if err := s.SweepOnce(ctx); err != nil {
				logger.Error("notify_sweep_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("notify_scheduler_stopping")
			return
		}
	}
}

// SweepOnce evaluates every known user against the reminder schedules and
// pushes whatever is due. Per-user failures are logged and skipped.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	ids, err := s.store.ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	for _, userID := range ids {
		if err := s.sweepUser(ctx, userID); err != nil {
			logger.Warn("notify_user_sweep_failed", "user", userID, "error", err)
		}
	}
	return nil
}

func (s *Sweeper) sweepUser(ctx context.Context, userID string) error {
	th, err := s.store.GetThread(ctx, userID, models.DefaultThreadID)
	if err == docstore.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	if th.UnreadCount == 0 {
		return nil
	}
	sched := Schedules["unread_reply"]
	now := s.nowFn().UTC()

	st, err := s.store.GetNotificationState(ctx, userID)
	if err == docstore.ErrNotFound {
		st = models.NotificationState{UserID: userID}
	} else if err != nil {
		return err
	}
	// A read since the last reminder restarts the cadence: this unread
	// episode is a new one.
	if st.Category != sched.Category || readSince(th, st) {
		st = models.NotificationState{UserID: userID, Category: sched.Category}
	}

	base := parseStamp(st.LastSentAt)
	if base.IsZero() {
		base = parseStamp(th.LastMessageAt)
	}
	if !sched.Due(now, base, st.SentCount) {
		return nil
	}

	n := Notification{
		UserID:   userID,
		Category: sched.Category,
		Title:    "Your coach replied",
		Body:     fmt.Sprintf("You have %d unread coaching messages.", th.UnreadCount),
	}
	if err := s.pusher.Push(ctx, n); err != nil {
		return err
	}
	metrics.NotificationsPushed.Inc()
	logger.Info("notification_pushed", "user", userID, "category", sched.Category, "nth", st.SentCount+1)

	st.SentCount++
	st.LastSentAt = models.FormatTimestamp(now)
	return s.store.PutNotificationState(ctx, st)
}

// readSince reports whether the user read the thread after the last
// reminder went out.
func readSince(th models.Thread, st models.NotificationState) bool {
	if st.LastSentAt == "" || th.LastReadAt == "" {
		return false
	}
	return th.LastReadAt > st.LastSentAt
}

func parseStamp(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse(models.TimestampLayout, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
