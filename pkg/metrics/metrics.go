// Package metrics exposes the engine's Prometheus collectors. Everything is
// registered on the default registry and served by promhttp on the bridge.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coachsync_messages_sent_total",
		Help: "User messages successfully appended to the thread.",
	})
	SendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coachsync_send_failures_total",
		Help: "Sends that failed and were rolled back.",
	})
	PagesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coachsync_pages_fetched_total",
		Help: "Successful backward page fetches.",
	})
	PageFetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coachsync_page_fetch_failures_total",
		Help: "Backward page fetches that exhausted retries.",
	})
	TypingFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coachsync_typing_fallbacks_total",
		Help: "Typing sessions cleared by the client-side fallback timer.",
	})
	GenerationErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coachsync_generation_errors_total",
		Help: "AI response generations that failed (cancelled generations excluded).",
	})
	GenerationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "coachsync_generation_seconds",
		Help:    "Latency of AI response generation calls.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	})
	AnalyticsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coachsync_analytics_dropped_total",
		Help: "Analytics events dropped because the spool queue was full.",
	})
	NotificationsPushed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coachsync_notifications_pushed_total",
		Help: "Engagement notifications handed to the pusher.",
	})
)
