package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"coachsync/pkg/auth"
	"coachsync/pkg/chat"
	"coachsync/pkg/logger"
	"coachsync/pkg/models"
	"coachsync/pkg/utils"
)

// handleStream serves the live view over SSE. Every change redelivers the
// full window as a "messages" event and typing flips as "thread" events;
// the UI replaces its state wholesale on each event.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.JSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	uid := auth.UserIDFromContext(r.Context())
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	msgSub := s.Store.WatchMessages(uid, models.DefaultThreadID, chat.LiveWindowLimit)
	defer msgSub.Cancel()
	thSub := s.Store.WatchThread(uid, models.DefaultThreadID)
	defer thSub.Cancel()

	logger.Info("stream_opened", "user", uid)
	for {
		select {
		case win, open := <-msgSub.Updates():
			if !open {
				return
			}
			writeEvent(w, flusher, "messages", win)
		case th, open := <-thSub.Updates():
			if !open {
				return
			}
			writeEvent(w, flusher, "thread", th)
		case <-r.Context().Done():
			logger.Info("stream_closed", "user", uid)
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Error("stream_marshal_failed", "event", event, "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}
