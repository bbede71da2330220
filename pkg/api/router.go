// Package api is the localhost bridge the UI talks to: a small REST
// surface over the chat engine plus an SSE stream that mirrors the live
// message window.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"coachsync/pkg/auth"
	"coachsync/pkg/chat"
	"coachsync/pkg/docstore"
	"coachsync/pkg/logger"
	"coachsync/pkg/purchase"
	"coachsync/pkg/support"
	"coachsync/pkg/utils"
)

// Server bundles the handlers' collaborators.
type Server struct {
	Chat      *chat.Service
	Store     docstore.Client
	Purchases *purchase.Service
	Support   support.Messenger
	Verifier  *auth.Verifier
	Limiter   *auth.LimiterPool
}

// Router builds the full route table. Everything under /v1 requires a
// valid bearer token; health and metrics do not.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestLogger)

	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReadyz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(auth.Middleware(s.Verifier))
	v1.Use(s.rateLimit)

	v1.HandleFunc("/chat/thread", s.handleGetThread).Methods(http.MethodGet)
	v1.HandleFunc("/chat/messages", s.handleListMessages).Methods(http.MethodGet)
	v1.HandleFunc("/chat/messages", s.handleSendMessage).Methods(http.MethodPost)
	v1.HandleFunc("/chat/messages/older", s.handleLoadOlder).Methods(http.MethodPost)
	v1.HandleFunc("/chat/read", s.handleMarkRead).Methods(http.MethodPost)
	v1.HandleFunc("/chat/stream", s.handleStream).Methods(http.MethodGet)

	v1.HandleFunc("/profile", s.handleGetProfile).Methods(http.MethodGet)
	v1.HandleFunc("/profile", s.handlePutProfile).Methods(http.MethodPut)
	v1.HandleFunc("/boss", s.handleGetBoss).Methods(http.MethodGet)
	v1.HandleFunc("/boss", s.handlePutBoss).Methods(http.MethodPut)

	v1.HandleFunc("/timeline", s.handleListTimeline).Methods(http.MethodGet)
	v1.HandleFunc("/timeline", s.handleAddTimeline).Methods(http.MethodPost)

	v1.HandleFunc("/purchases/verify", s.handleVerifyPurchase).Methods(http.MethodPost)
	v1.HandleFunc("/support/message", s.handleSupportMessage).Methods(http.MethodPost)

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.LogRequest(r)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Limiter != nil {
			uid := auth.UserIDFromContext(r.Context())
			if !s.Limiter.Allow(uid) {
				utils.JSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		utils.JSONError(w, http.StatusServiceUnavailable, "store not ready")
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ready"})
}
