package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/c360studio/sparqlpad/assistant"
)

type chatRequest struct {
	// SessionID may be empty on the first turn; a session is created and
	// returned in the response.
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	// CurrentQuery carries the editor's text so hand edits made since the
	// last turn are what the assistant operates on. A pointer so a cleared
	// editor ("") is distinguishable from the field being absent.
	CurrentQuery *string `json:"current_query"`
}

// handleChat processes one assistant turn.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = s.engine.Store().Create()
	}

	ctx := r.Context()
	if s.cfg.AI.Timeout > 0 {
		var cancel func()
		ctx, cancel = context.WithTimeout(ctx, s.cfg.AI.Timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := s.engine.HandleTurn(ctx, sessionID, req.Message, req.CurrentQuery)
	s.metrics.ChatDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, assistant.ErrInvalidSession) {
			writeError(w, http.StatusNotFound, "unknown session")
			return
		}
		if errors.Is(err, context.Canceled) {
			// Client disconnected; there is nobody to answer.
			return
		}
		s.logger.Error("Chat turn failed", "error", err)
		writeError(w, http.StatusInternalServerError, "chat turn failed")
		return
	}

	s.metrics.ChatTurnsTotal.WithLabelValues(string(out.AssistantTurn.Intent)).Inc()
	writeJSON(w, http.StatusOK, out)
}

// handleSessionCreate starts a fresh chat session.
func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	id := s.engine.Store().Create()
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": id})
}

type resetRequest struct {
	SessionID string `json:"session_id"`
}

// handleChatReset clears a session's transcript and bound query.
func (s *Server) handleChatReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	if err := s.engine.Store().Reset(req.SessionID); err != nil {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleAIStatus reports whether the assistant is configured and with what.
func (s *Server) handleAIStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"enabled": s.engine.Enabled()}
	if s.engine.Enabled() {
		resp["provider"] = s.aiProvider
		resp["model"] = s.aiModel
	}
	writeJSON(w, http.StatusOK, resp)
}
