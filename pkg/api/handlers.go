package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"coachsync/pkg/auth"
	"coachsync/pkg/chat"
	"coachsync/pkg/docstore"
	"coachsync/pkg/logger"
	"coachsync/pkg/models"
	"coachsync/pkg/utils"
)

const maxBodyBytes = 64 * 1024

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// --- chat ---

func (s *Server) handleGetThread(w http.ResponseWriter, r *http.Request) {
	utils.JSONWrite(w, http.StatusOK, s.Chat.Thread())
}

type messagesResponse struct {
	Messages []models.Message `json:"messages"`
	HasMore  bool             `json:"hasMore"`
	Typing   bool             `json:"assistantIsTyping"`
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	utils.JSONWrite(w, http.StatusOK, messagesResponse{
		Messages: s.Chat.Messages(),
		HasMore:  s.Chat.HasMore(),
		Typing:   s.Chat.Typing(),
	})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	msg, err := s.Chat.Send(r.Context(), req.Text)
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		utils.JSONError(w, http.StatusBadRequest, "message is empty")
	case errors.Is(err, chat.ErrRateLimited):
		utils.JSONError(w, http.StatusTooManyRequests, "slow down")
	case err != nil:
		utils.JSONError(w, http.StatusBadGateway, "message could not be sent")
	default:
		utils.JSONWrite(w, http.StatusCreated, msg)
	}
}

func (s *Server) handleLoadOlder(w http.ResponseWriter, r *http.Request) {
	// A failed page load is not surfaced: the list stays as it is and the
	// user retries by scrolling again.
	if err := s.Chat.LoadOlder(r.Context()); err != nil {
		logger.Warn("load_older_failed", "error", err)
	}
	utils.JSONWrite(w, http.StatusOK, messagesResponse{
		Messages: s.Chat.Messages(),
		HasMore:  s.Chat.HasMore(),
		Typing:   s.Chat.Typing(),
	})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	if err := s.Chat.MarkRead(r.Context()); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "could not mark thread read")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- profile ---

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	uid := auth.UserIDFromContext(r.Context())
	p, err := s.Store.GetUserProfile(r.Context(), uid)
	if errors.Is(err, docstore.ErrNotFound) {
		utils.JSONError(w, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "profile read failed")
		return
	}
	utils.JSONWrite(w, http.StatusOK, p)
}

func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	uid := auth.UserIDFromContext(r.Context())
	var p models.UserProfile
	if !decodeBody(w, r, &p) {
		return
	}
	p.ID = uid
	if err := s.Store.PutUserProfile(r.Context(), p); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "profile write failed")
		return
	}
	utils.JSONWrite(w, http.StatusOK, p)
}

func (s *Server) handleGetBoss(w http.ResponseWriter, r *http.Request) {
	uid := auth.UserIDFromContext(r.Context())
	b, err := s.Store.GetBossProfile(r.Context(), uid)
	if errors.Is(err, docstore.ErrNotFound) {
		utils.JSONError(w, http.StatusNotFound, "boss profile not found")
		return
	}
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "boss profile read failed")
		return
	}
	utils.JSONWrite(w, http.StatusOK, b)
}

func (s *Server) handlePutBoss(w http.ResponseWriter, r *http.Request) {
	uid := auth.UserIDFromContext(r.Context())
	var b models.BossProfile
	if !decodeBody(w, r, &b) {
		return
	}
	if err := s.Store.PutBossProfile(r.Context(), uid, b); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "boss profile write failed")
		return
	}
	utils.JSONWrite(w, http.StatusOK, b)
}

// --- timeline ---

func (s *Server) handleListTimeline(w http.ResponseWriter, r *http.Request) {
	uid := auth.UserIDFromContext(r.Context())
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	entries, err := s.Store.ListTimeline(r.Context(), uid, limit)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "timeline read failed")
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleAddTimeline(w http.ResponseWriter, r *http.Request) {
	uid := auth.UserIDFromContext(r.Context())
	var e models.TimelineEntry
	if !decodeBody(w, r, &e) {
		return
	}
	if e.Title == "" {
		utils.JSONError(w, http.StatusBadRequest, "title is required")
		return
	}
	stored, err := s.Store.AddTimelineEntry(r.Context(), uid, e)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "timeline write failed")
		return
	}
	utils.JSONWrite(w, http.StatusCreated, stored)
}

// --- purchases, support ---

func (s *Server) handleVerifyPurchase(w http.ResponseWriter, r *http.Request) {
	if s.Purchases == nil {
		utils.JSONError(w, http.StatusNotImplemented, "purchases not configured")
		return
	}
	uid := auth.UserIDFromContext(r.Context())
	var receipt models.Receipt
	if !decodeBody(w, r, &receipt) {
		return
	}
	ent, err := s.Purchases.Apply(r.Context(), uid, receipt)
	if err != nil {
		logger.Warn("purchase_verify_failed", "user", uid, "error", err)
		utils.JSONError(w, http.StatusBadGateway, "receipt verification failed")
		return
	}
	utils.JSONWrite(w, http.StatusOK, ent)
}

func (s *Server) handleSupportMessage(w http.ResponseWriter, r *http.Request) {
	uid := auth.UserIDFromContext(r.Context())
	var req struct {
		Text string `json:"text"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Text == "" {
		utils.JSONError(w, http.StatusBadRequest, "text is required")
		return
	}
	if err := s.Support.Relay(r.Context(), uid, req.Text); err != nil {
		utils.JSONError(w, http.StatusBadGateway, "support message could not be delivered")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
