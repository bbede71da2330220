package app

import (
	"context"
	"net/http"
	"time"

	"coachsync/pkg/api"
	"coachsync/pkg/logger"
)

var srvShutdownTimeout = 5 * time.Second

// startHTTP builds the bridge server, starts it in a goroutine and returns
// a channel carrying any fatal server error.
func (a *App) startHTTP(_ context.Context) <-chan error {
	server := &api.Server{
		Chat:      a.chat,
		Store:     a.store,
		Purchases: a.purchases,
		Support:   a.support,
		Verifier:  a.verifier,
		Limiter:   a.limiter,
	}
	a.srv = &http.Server{
		Addr:         a.cfg.Server.Addr(),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE connections stay open
	}
	logger.Info("bridge_listening", "addr", a.srv.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

func (a *App) shutdownHTTP() {
	if a.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), srvShutdownTimeout)
	defer cancel()
	if err := a.srv.Shutdown(ctx); err != nil {
		logger.Warn("bridge_shutdown_forced", "error", err)
	}
}
