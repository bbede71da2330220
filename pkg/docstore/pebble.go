package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"coachsync/pkg/logger"
	"coachsync/pkg/models"
	"coachsync/pkg/utils"
)

// Pebble is the local replica of the user's documents, backed by a Pebble
// database. Key layout:
//
//	user:<uid>:profile
//	user:<uid>:boss
//	user:<uid>:notify
//	user:<uid>:thread:<tid>                    thread metadata document
//	user:<uid>:thread:<tid>:msg:<ts>-<seq>     message, sortable cursor key
//	user:<uid>:timeline:<occurredAt>-<id>      timeline entry
//
// The <ts>-<seq> suffix is the message cursor key: a fixed-width UTC
// timestamp plus a monotonic sequence so two messages written in the same
// instant still get distinct, ordered keys.
type Pebble struct {
	db   *pebble.DB
	path string
	seq  atomic.Uint64

	mu       sync.Mutex
	closed   bool
	msgWatch map[string]map[*msgWatcher]struct{}
	thWatch  map[string]map[*threadWatcher]struct{}
}

type msgWatcher struct {
	limit int
	sub   *Subscription[[]models.Message]
}

type threadWatcher struct {
	sub *Subscription[models.Thread]
}

var _ Client = (*Pebble)(nil)

// Open opens (or creates) the local store at path.
func Open(path string) (*Pebble, error) {
	logger.Info("opening_store", "path", path)
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("store_open_failed", "path", path, "error", err)
		return nil, err
	}
	return &Pebble{
		db:       db,
		path:     path,
		msgWatch: map[string]map[*msgWatcher]struct{}{},
		thWatch:  map[string]map[*threadWatcher]struct{}{},
	}, nil
}

// Close cancels all subscriptions and closes the database.
func (p *Pebble) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	for _, ws := range p.msgWatch {
		for w := range ws {
			close(w.sub.ch)
		}
	}
	for _, ws := range p.thWatch {
		for w := range ws {
			close(w.sub.ch)
		}
	}
	p.msgWatch = map[string]map[*msgWatcher]struct{}{}
	p.thWatch = map[string]map[*threadWatcher]struct{}{}
	p.mu.Unlock()
	if err := p.db.Close(); err != nil {
		return err
	}
	logger.Info("store_closed", "path", p.path)
	return nil
}

func threadKey(userID, threadID string) []byte {
	return []byte("user:" + userID + ":thread:" + threadID)
}

func msgPrefix(userID, threadID string) []byte {
	return []byte("user:" + userID + ":thread:" + threadID + ":msg:")
}

func profileKey(userID string) []byte  { return []byte("user:" + userID + ":profile") }
func bossKey(userID string) []byte     { return []byte("user:" + userID + ":boss") }
func notifyKey(userID string) []byte   { return []byte("user:" + userID + ":notify") }
func timelinePrefix(userID string) []byte {
	return []byte("user:" + userID + ":timeline:")
}

// keyUpperBound returns the smallest key greater than every key with
// prefix b, for use as an exclusive iterator bound.
func keyUpperBound(b []byte) []byte {
	end := append([]byte(nil), b...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil // no upper bound
}

func watchKey(userID, threadID string) string { return userID + "|" + threadID }

// --- MessageStore ---

// AppendMessage stores msg under a fresh cursor key and fans the new
// top-N window out to every live subscription on the thread.
func (p *Pebble) AppendMessage(ctx context.Context, userID, threadID string, msg models.Message) (models.Message, error) {
	if msg.ID == "" {
		msg.ID = utils.GenMessageID()
	}
	if msg.Timestamp == "" {
		msg.Timestamp = models.FormatTimestamp(time.Now())
	}
	msg.Seq = p.seq.Add(1)

	data, err := json.Marshal(msg)
	if err != nil {
		return models.Message{}, fmt.Errorf("marshal message: %w", err)
	}
	key := append(msgPrefix(userID, threadID), []byte(msg.Key())...)
	if err := p.db.Set(key, data, pebble.Sync); err != nil {
		logger.Error("append_message_failed", "user", userID, "thread", threadID, "error", err)
		return models.Message{}, err
	}
	logger.Debug("message_saved", "user", userID, "thread", threadID, "id", msg.ID, "role", msg.Role)
	p.notifyMessages(userID, threadID)
	return msg, nil
}

// FetchPage reads up to limit messages descending by cursor key. before is
// an inclusive upper bound; empty means "from the newest".
func (p *Pebble) FetchPage(ctx context.Context, userID, threadID, before string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		return []models.Message{}, nil
	}
	prefix := msgPrefix(userID, threadID)
	upper := keyUpperBound(prefix)
	if before != "" {
		// exclusive iterator bound; trailing zero byte keeps before itself in range
		upper = append(append(append([]byte(nil), prefix...), []byte(before)...), 0)
	}
	iter, err := p.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	out := make([]models.Message, 0, limit)
	for ok := iter.Last(); ok && len(out) < limit; ok = iter.Prev() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			logger.Error("fetch_page_bad_message", "user", userID, "thread", threadID, "error", err)
			continue
		}
		out = append(out, m)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return out, nil
}

// WatchMessages registers a live window subscription and immediately
// delivers the current window.
func (p *Pebble) WatchMessages(userID, threadID string, limit int) *Subscription[[]models.Message] {
	w := &msgWatcher{limit: limit}
	wk := watchKey(userID, threadID)
	w.sub = newSubscription[[]models.Message](func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if ws, ok := p.msgWatch[wk]; ok {
			if _, live := ws[w]; live {
				delete(ws, w)
				close(w.sub.ch)
			}
		}
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		close(w.sub.ch)
		return w.sub
	}
	if p.msgWatch[wk] == nil {
		p.msgWatch[wk] = map[*msgWatcher]struct{}{}
	}
	p.msgWatch[wk][w] = struct{}{}
	if win, err := p.FetchPage(context.Background(), userID, threadID, "", limit); err == nil {
		deliver(w.sub.ch, win)
	} else {
		logger.Error("watch_initial_window_failed", "user", userID, "thread", threadID, "error", err)
	}
	return w.sub
}

// notifyMessages recomputes and redelivers the full window for every
// watcher of the thread. Errors are logged; the watcher simply receives no
// update and keeps its last known state.
func (p *Pebble) notifyMessages(userID, threadID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ws := p.msgWatch[watchKey(userID, threadID)]
	for w := range ws {
		win, err := p.FetchPage(context.Background(), userID, threadID, "", w.limit)
		if err != nil {
			logger.Error("watch_window_failed", "user", userID, "thread", threadID, "error", err)
			continue
		}
		deliver(w.sub.ch, win)
	}
}

// --- ThreadStore ---

func (p *Pebble) GetThread(ctx context.Context, userID, threadID string) (models.Thread, error) {
	var th models.Thread
	if err := p.getJSON(threadKey(userID, threadID), &th); err != nil {
		return models.Thread{}, err
	}
	return th, nil
}

func (p *Pebble) PutThread(ctx context.Context, userID string, th models.Thread) error {
	if err := p.setJSON(threadKey(userID, th.ID), th); err != nil {
		return err
	}
	p.notifyThread(userID, th)
	return nil
}

func (p *Pebble) UpdateThread(ctx context.Context, userID, threadID string, mutate func(*models.Thread)) (models.Thread, error) {
	th, err := p.GetThread(ctx, userID, threadID)
	if errors.Is(err, ErrNotFound) {
		th = models.NewThread(threadID, models.FormatTimestamp(time.Now()))
	} else if err != nil {
		return models.Thread{}, err
	}
	mutate(&th)
	if err := p.setJSON(threadKey(userID, threadID), th); err != nil {
		return models.Thread{}, err
	}
	p.notifyThread(userID, th)
	return th, nil
}

func (p *Pebble) WatchThread(userID, threadID string) *Subscription[models.Thread] {
	w := &threadWatcher{}
	wk := watchKey(userID, threadID)
	w.sub = newSubscription[models.Thread](func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if ws, ok := p.thWatch[wk]; ok {
			if _, live := ws[w]; live {
				delete(ws, w)
				close(w.sub.ch)
			}
		}
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		close(w.sub.ch)
		return w.sub
	}
	if p.thWatch[wk] == nil {
		p.thWatch[wk] = map[*threadWatcher]struct{}{}
	}
	p.thWatch[wk][w] = struct{}{}
	if th, err := p.GetThread(context.Background(), userID, threadID); err == nil {
		deliver(w.sub.ch, th)
	}
	return w.sub
}

func (p *Pebble) notifyThread(userID string, th models.Thread) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for w := range p.thWatch[watchKey(userID, th.ID)] {
		deliver(w.sub.ch, th)
	}
}

// --- ProfileStore ---

func (p *Pebble) GetUserProfile(ctx context.Context, userID string) (models.UserProfile, error) {
	var u models.UserProfile
	if err := p.getJSON(profileKey(userID), &u); err != nil {
		return models.UserProfile{}, err
	}
	return u, nil
}

func (p *Pebble) PutUserProfile(ctx context.Context, u models.UserProfile) error {
	return p.setJSON(profileKey(u.ID), u)
}

func (p *Pebble) GetBossProfile(ctx context.Context, userID string) (models.BossProfile, error) {
	var b models.BossProfile
	if err := p.getJSON(bossKey(userID), &b); err != nil {
		return models.BossProfile{}, err
	}
	return b, nil
}

func (p *Pebble) PutBossProfile(ctx context.Context, userID string, b models.BossProfile) error {
	return p.setJSON(bossKey(userID), b)
}

func (p *Pebble) ListUserIDs(ctx context.Context) ([]string, error) {
	prefix := []byte("user:")
	iter, err := p.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: keyUpperBound(prefix)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	for ok := iter.First(); ok; ok = iter.Next() {
		k := string(iter.Key())
		if strings.HasSuffix(k, ":profile") {
			id := strings.TrimSuffix(strings.TrimPrefix(k, "user:"), ":profile")
			out = append(out, id)
		}
	}
	return out, iter.Error()
}

// --- TimelineStore ---

func (p *Pebble) AddTimelineEntry(ctx context.Context, userID string, e models.TimelineEntry) (models.TimelineEntry, error) {
	if e.ID == "" {
		e.ID = utils.GenEntryID()
	}
	now := models.FormatTimestamp(time.Now())
	if e.OccurredAt == "" {
		e.OccurredAt = now
	}
	if e.CreatedAt == "" {
		e.CreatedAt = now
	}
	key := append(timelinePrefix(userID), []byte(e.OccurredAt+"-"+e.ID)...)
	data, err := json.Marshal(e)
	if err != nil {
		return models.TimelineEntry{}, fmt.Errorf("marshal timeline entry: %w", err)
	}
	if err := p.db.Set(key, data, pebble.Sync); err != nil {
		return models.TimelineEntry{}, err
	}
	return e, nil
}

func (p *Pebble) ListTimeline(ctx context.Context, userID string, limit int) ([]models.TimelineEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	prefix := timelinePrefix(userID)
	iter, err := p.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: keyUpperBound(prefix)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	out := make([]models.TimelineEntry, 0, limit)
	for ok := iter.Last(); ok && len(out) < limit; ok = iter.Prev() {
		var e models.TimelineEntry
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, iter.Error()
}

// --- NotifyStateStore ---

func (p *Pebble) GetNotificationState(ctx context.Context, userID string) (models.NotificationState, error) {
	var st models.NotificationState
	if err := p.getJSON(notifyKey(userID), &st); err != nil {
		return models.NotificationState{}, err
	}
	return st, nil
}

func (p *Pebble) PutNotificationState(ctx context.Context, st models.NotificationState) error {
	return p.setJSON(notifyKey(st.UserID), st)
}

// --- helpers ---

func (p *Pebble) getJSON(key []byte, v any) error {
	data, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	defer closer.Close()
	return json.Unmarshal(data, v)
}

func (p *Pebble) setJSON(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	return p.db.Set(key, data, pebble.Sync)
}
