package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"coachsync/pkg/logger"
	"coachsync/pkg/metrics"
	"coachsync/pkg/retry"
)

// DefaultEndpoint is the Amplitude HTTP API v2 batch endpoint.
const DefaultEndpoint = "https://api2.amplitude.com/2/httpapi"

const (
	queueSize      = 256
	uploadBatch    = 50
	uploadAttempts = 3
)

// Amplitude spools events to disk and uploads them in batches on a timer.
// Track never blocks: a full queue drops the event and bumps a counter.
type Amplitude struct {
	apiKey   string
	endpoint string
	spool    *Spool
	client   *http.Client
	interval time.Duration

	queue  chan Event
	done   chan struct{}
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewAmplitude builds a tracker uploading with apiKey to endpoint (empty
// means DefaultEndpoint) and flushing every interval (<=0 means 30s).
func NewAmplitude(apiKey, endpoint string, spool *Spool, interval time.Duration) *Amplitude {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &Amplitude{
		apiKey:   apiKey,
		endpoint: endpoint,
		spool:    spool,
		client:   &http.Client{Timeout: 10 * time.Second},
		interval: interval,
		queue:    make(chan Event, queueSize),
		done:     make(chan struct{}),
		cancel:   cancel,
	}
	a.wg.Add(1)
	go a.run(ctx)
	return a
}

var _ Tracker = (*Amplitude)(nil)

func (a *Amplitude) Track(e Event) {
	select {
	case a.queue <- e:
	case <-a.done:
	default:
		metrics.AnalyticsDropped.Inc()
		logger.Warn("analytics_event_dropped", "type", e.Type)
	}
}

// Close stops the uploader after one final flush attempt.
func (a *Amplitude) Close() error {
	close(a.done)
	a.wg.Wait()
	a.cancel()
	return a.spool.Close()
}

func (a *Amplitude) run(ctx context.Context) {
	defer a.wg.Done()
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case e := <-a.queue:
			if err := a.spool.Put(e); err != nil {
				logger.Error("analytics_spool_write_failed", "error", err)
			}
		case <-ticker.C:
			a.flush(ctx)
		case <-a.done:
			a.drain()
			a.flush(ctx)
			return
		}
	}
}

func (a *Amplitude) drain() {
	for {
		select {
		case e := <-a.queue:
			if err := a.spool.Put(e); err != nil {
				logger.Error("analytics_spool_write_failed", "error", err)
			}
		default:
			return
		}
	}
}

// flush uploads spooled events in batches until the spool is empty or an
// upload fails. Failures leave events spooled for the next tick.
func (a *Amplitude) flush(ctx context.Context) {
	for {
		events, upto, err := a.spool.Peek(uploadBatch)
		if err != nil {
			logger.Error("analytics_spool_read_failed", "error", err)
			return
		}
		if upto == 0 {
			return
		}
		if len(events) > 0 {
			if err := a.upload(ctx, events); err != nil {
				logger.Warn("analytics_upload_failed", "events", len(events), "error", err)
				return
			}
		}
		if err := a.spool.Trim(upto); err != nil {
			logger.Error("analytics_spool_trim_failed", "error", err)
			return
		}
		if len(events) < uploadBatch {
			return
		}
	}
}

func (a *Amplitude) upload(ctx context.Context, events []Event) error {
	body, err := json.Marshal(map[string]any{
		"api_key": a.apiKey,
		"events":  events,
	})
	if err != nil {
		return err
	}
	_, err = retry.Do(ctx, uploadAttempts, time.Second, func(ctx context.Context) (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
		if err != nil {
			return struct{}{}, err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := a.client.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return struct{}{}, fmt.Errorf("amplitude status %d", resp.StatusCode)
		}
		return struct{}{}, nil
	})
	return err
}
