package chat

import (
	"context"
	"sync"
	"time"

	"coachsync/pkg/analytics"
	"coachsync/pkg/assist"
	"coachsync/pkg/auth"
	"coachsync/pkg/docstore"
	"coachsync/pkg/models"
)

// Service is the assembled chat engine for one signed-in user: live
// window subscription, pagination, typing state and the send path, behind
// one handle the bridge layer can serve.
type Service struct {
	store   docstore.Client
	sess    *auth.Session
	adapter *Adapter
	ctrl    *Controller
	typing  *TypingIndicator
	coord   *Coordinator

	threadID string

	mu     sync.Mutex
	thread models.Thread
	msgSub *docstore.Subscription[[]models.Message]
	thSub  *docstore.Subscription[models.Thread]
	wg     sync.WaitGroup
}

// Config carries the service's collaborators. Tracker and Limiter may be
// nil; TypingFallback <=0 uses the default.
type Config struct {
	Store          docstore.Client
	Session        *auth.Session
	Generator      assist.Generator
	Tracker        analytics.Tracker
	Limiter        *auth.LimiterPool
	ThreadID       string
	TypingFallback int64 // seconds
	// OnTyping is invoked whenever the visible typing state flips.
	OnTyping func(bool)
	// RestoreInput receives the original text of a failed send.
	RestoreInput func(string)
}

func NewService(cfg Config) *Service {
	if cfg.ThreadID == "" {
		cfg.ThreadID = models.DefaultThreadID
	}
	adapter := NewAdapter(cfg.Store, cfg.Session.UserID, cfg.ThreadID)
	typing := NewTypingIndicator(secondsToDuration(cfg.TypingFallback), cfg.OnTyping)
	return &Service{
		store:    cfg.Store,
		sess:     cfg.Session,
		adapter:  adapter,
		ctrl:     NewController(adapter),
		typing:   typing,
		coord: NewCoordinator(
			cfg.Store, adapter, typing, cfg.Generator, cfg.Tracker,
			cfg.Limiter, cfg.Session, cfg.ThreadID, cfg.RestoreInput,
		),
		threadID: cfg.ThreadID,
	}
}

// Start subscribes to the live message window and the thread document and
// pumps updates into the controller and typing indicator until Stop.
func (s *Service) Start(ctx context.Context) {
	s.msgSub = s.adapter.Watch()
	s.thSub = s.store.WatchThread(s.sess.UserID, s.threadID)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case msgs, ok := <-s.msgSub.Updates():
				if !ok {
					return
				}
				s.ctrl.ApplyWindow(msgs, LiveWindowLimit)
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		defer s.wg.Done()
		for {
			select {
			case th, ok := <-s.thSub.Updates():
				if !ok {
					return
				}
				s.mu.Lock()
				s.thread = th
				s.mu.Unlock()
				s.typing.Observe(th.AssistantIsTyping)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels the subscriptions and the typing timer. The controller's
// state is kept; Reset clears it explicitly on sign-out.
func (s *Service) Stop() {
	if s.msgSub != nil {
		s.msgSub.Cancel()
	}
	if s.thSub != nil {
		s.thSub.Cancel()
	}
	s.wg.Wait()
	s.typing.Stop()
}

// Messages returns the merged live+history view, newest-first.
func (s *Service) Messages() []models.Message { return s.ctrl.Messages() }

// Thread returns the last observed thread document.
func (s *Service) Thread() models.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thread
}

// Typing reports whether the assistant-is-typing indicator is visible.
func (s *Service) Typing() bool { return s.typing.Typing() }

// HasMore reports whether older history remains to page in.
func (s *Service) HasMore() bool { return s.ctrl.HasMore() }

// Send appends a user message and triggers a response.
func (s *Service) Send(ctx context.Context, text string) (models.Message, error) {
	return s.coord.Send(ctx, text)
}

// LoadOlder pages one batch of older history into the view.
func (s *Service) LoadOlder(ctx context.Context) error { return s.ctrl.LoadOlder(ctx) }

// MarkRead clears the thread's unread counter.
func (s *Service) MarkRead(ctx context.Context) error { return s.coord.MarkRead(ctx) }

// Reset drops pagination state, e.g. on sign-out.
func (s *Service) Reset() { s.ctrl.Reset() }

func secondsToDuration(secs int64) time.Duration {
	if secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
