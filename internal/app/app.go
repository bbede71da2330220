// Package app wires the engine together: store, session, generation
// backend, analytics, notification sweeper and the bridge HTTP server.
package app

import (
	"context"
	"fmt"
	"net/http"

	"coachsync/pkg/analytics"
	"coachsync/pkg/assist"
	"coachsync/pkg/auth"
	"coachsync/pkg/chat"
	"coachsync/pkg/config"
	"coachsync/pkg/docstore"
	"coachsync/pkg/logger"
	"coachsync/pkg/notify"
	"coachsync/pkg/purchase"
	"coachsync/pkg/support"
)

// App owns the engine components and their lifecycle.
type App struct {
	cfg   config.Config
	store *docstore.Pebble
	sess  *auth.Session

	chat    *chat.Service
	tracker analytics.Tracker
	sweeper *notify.Sweeper

	purchases *purchase.Service
	support   support.Messenger
	verifier  *auth.Verifier
	limiter   *auth.LimiterPool

	srv     *http.Server
	cancels []context.CancelFunc
}

// New opens the store, verifies the session token and builds every
// component. It does not start goroutines; Run does.
func New(cfg config.Config) (*App, error) {
	if cfg.Auth.TokenSecret == "" {
		return nil, fmt.Errorf("auth.token_secret is required")
	}
	if cfg.Auth.Token == "" {
		return nil, fmt.Errorf("no session token configured (set COACHSYNC_TOKEN)")
	}

	verifier := auth.NewVerifier(cfg.Auth.TokenSecret, cfg.Auth.Issuer, cfg.Auth.Audience)
	claims, err := verifier.Verify(cfg.Auth.Token)
	if err != nil {
		return nil, fmt.Errorf("session token invalid: %w", err)
	}
	sess := auth.NewSession(claims.Subject, cfg.Auth.Timezone)
	logger.Info("session_established", "user", sess.UserID, "tz", sess.Timezone())

	store, err := docstore.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", cfg.Storage.DBPath, err)
	}

	a := &App{cfg: cfg, store: store, sess: sess, verifier: verifier, support: support.Noop{}}
	a.limiter = auth.NewLimiterPool(cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	a.tracker, err = buildTracker(cfg.Analytics)
	if err != nil {
		store.Close()
		return nil, err
	}

	gen, err := buildGenerator(cfg.Assistant, store)
	if err != nil {
		a.tracker.Close()
		store.Close()
		return nil, err
	}

	a.chat = chat.NewService(chat.Config{
		Store:          store,
		Session:        sess,
		Generator:      gen,
		Tracker:        a.tracker,
		Limiter:        a.limiter,
		TypingFallback: cfg.Assistant.TypingFallbackSecs,
	})

	if cfg.Support.TelegramToken != "" {
		tg, err := support.NewTelegram(cfg.Support.TelegramToken, cfg.Support.TelegramChatID)
		if err != nil {
			logger.Warn("telegram_support_unavailable", "error", err)
		} else {
			a.support = tg
		}
	}

	if cfg.Purchases.VerifyURL != "" {
		a.purchases = purchase.NewService(
			purchase.NewHTTPVerifier(cfg.Purchases.VerifyURL, cfg.Purchases.Token), store)
	}

	if cfg.Notifications.Enabled {
		var pusher notify.Pusher
		if cfg.Notifications.WebhookURL != "" {
			pusher = notify.NewWebhook(cfg.Notifications.WebhookURL)
		}
		if pusher == nil {
			logger.Warn("notifications_enabled_without_webhook")
		} else {
			a.sweeper = notify.NewSweeper(store, pusher)
		}
	}

	return a, nil
}

func buildTracker(cfg config.AnalyticsConfig) (analytics.Tracker, error) {
	if !cfg.Enabled || cfg.APIKey == "" {
		return analytics.Noop{}, nil
	}
	spoolPath := cfg.SpoolPath
	if spoolPath == "" {
		spoolPath = "./data/analytics.db"
	}
	spool, err := analytics.OpenSpool(spoolPath)
	if err != nil {
		return nil, fmt.Errorf("open analytics spool: %w", err)
	}
	return analytics.NewAmplitude(cfg.APIKey, cfg.Endpoint, spool, cfg.FlushInterval.Duration()), nil
}

// buildGenerator picks the generation backend. "remote" POSTs to the
// deployed function; "openai"/"anthropic" run the responder locally
// against the same store.
func buildGenerator(cfg config.AssistantConfig, store *docstore.Pebble) (assist.Generator, error) {
	switch cfg.Provider {
	case "remote":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("assistant.endpoint is required for the remote provider")
		}
		return assist.NewRemoteTrigger(cfg.Endpoint, cfg.EndpointToken, 0), nil
	case "openai":
		p, err := assist.NewOpenAIProvider(cfg.APIKey, cfg.Model, cfg.MaxTokens, cfg.Temperature)
		if err != nil {
			return nil, err
		}
		return assist.NewResponder(store, p, cfg.HistoryLimit), nil
	case "anthropic", "":
		p, err := assist.NewAnthropicProvider(cfg.BaseURL, cfg.APIKey, cfg.Model, int64(cfg.MaxTokens))
		if err != nil {
			return nil, err
		}
		return assist.NewResponder(store, p, cfg.HistoryLimit), nil
	default:
		return nil, fmt.Errorf("unknown assistant provider %q", cfg.Provider)
	}
}

// Run starts the engine and blocks until ctx is canceled or the HTTP
// server fails.
func (a *App) Run(ctx context.Context) error {
	engineCtx, cancel := context.WithCancel(ctx)
	a.cancels = append(a.cancels, cancel)
	a.chat.Start(engineCtx)

	if a.sweeper != nil {
		stop, err := a.sweeper.Start(engineCtx, a.cfg.Notifications.Cron)
		if err != nil {
			return err
		}
		a.cancels = append(a.cancels, stop)
	}

	errCh := a.startHTTP(ctx)

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Close tears everything down in reverse dependency order.
func (a *App) Close() {
	a.shutdownHTTP()
	for i := len(a.cancels) - 1; i >= 0; i-- {
		a.cancels[i]()
	}
	if a.chat != nil {
		a.chat.Stop()
	}
	if a.tracker != nil {
		if err := a.tracker.Close(); err != nil {
			logger.Warn("tracker_close_failed", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warn("store_close_failed", "error", err)
		}
	}
	logger.Info("engine_stopped")
}
