package chat

import (
	"sync"
	"time"

	"coachsync/pkg/logger"
	"coachsync/pkg/metrics"
)

// DefaultTypingFallback clears a typing indicator that the remote flag
// never cleared, covering a hung or crashed generation.
const DefaultTypingFallback = 60 * time.Second

// TypingIndicator tracks the assistant-is-typing state shown in the UI.
// Local sends set it optimistically; the remote thread flag confirms or
// clears it; a fallback timer bounds how long it can stay on. Each typing
// session carries a generation token so a stale timer or late remote flag
// can never clobber a newer session.
type TypingIndicator struct {
	mu       sync.Mutex
	gen      uint64
	typing   bool
	timer    *time.Timer
	fallback time.Duration
	onChange func(bool)
}

// NewTypingIndicator builds an indicator with the given fallback duration
// (<=0 means DefaultTypingFallback). onChange is invoked outside the lock
// whenever the visible state flips; it may be nil.
func NewTypingIndicator(fallback time.Duration, onChange func(bool)) *TypingIndicator {
	if fallback <= 0 {
		fallback = DefaultTypingFallback
	}
	return &TypingIndicator{fallback: fallback, onChange: onChange}
}

// Typing reports the current visible state.
func (t *TypingIndicator) Typing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.typing
}

// Begin starts a typing session after a successful local send. Any prior
// session's fallback timer is invalidated.
func (t *TypingIndicator) Begin() {
	t.mu.Lock()
	t.gen++
	gen := t.gen
	changed := !t.typing
	t.typing = true
	t.armLocked(gen)
	t.mu.Unlock()
	t.notify(changed, true)
}

// Observe applies the remote assistantIsTyping flag. A true flag while the
// indicator is idle starts a session (another device or the responder set
// it); a false flag ends the current session. A late false arriving when
// already idle is a no-op.
func (t *TypingIndicator) Observe(remote bool) {
	t.mu.Lock()
	if remote == t.typing {
		t.mu.Unlock()
		return
	}
	t.gen++
	if remote {
		t.typing = true
		t.armLocked(t.gen)
		t.mu.Unlock()
		t.notify(true, true)
		return
	}
	t.typing = false
	t.stopTimerLocked()
	t.mu.Unlock()
	t.notify(true, false)
}

// Fail clears the indicator immediately after a failed send; no generation
// was triggered, so there is nothing to wait for.
func (t *TypingIndicator) Fail() {
	t.mu.Lock()
	t.gen++
	changed := t.typing
	t.typing = false
	t.stopTimerLocked()
	t.mu.Unlock()
	t.notify(changed, false)
}

// Stop tears the indicator down.
func (t *TypingIndicator) Stop() {
	t.mu.Lock()
	t.gen++
	t.typing = false
	t.stopTimerLocked()
	t.mu.Unlock()
}

func (t *TypingIndicator) armLocked(gen uint64) {
	t.stopTimerLocked()
	t.timer = time.AfterFunc(t.fallback, func() { t.fire(gen) })
}

func (t *TypingIndicator) stopTimerLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *TypingIndicator) fire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || !t.typing {
		t.mu.Unlock()
		return
	}
	t.typing = false
	t.timer = nil
	t.mu.Unlock()
	metrics.TypingFallbacks.Inc()
	logger.Warn("typing_fallback_fired", "after", t.fallback.String())
	t.notify(true, false)
}

func (t *TypingIndicator) notify(changed, state bool) {
	if changed && t.onChange != nil {
		t.onChange(state)
	}
}
