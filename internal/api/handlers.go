package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/astralhq/astral-assist/internal/ai"
	"github.com/astralhq/astral-assist/internal/router"
)

// maxBodyBytes caps inbound request bodies at 1 MiB.
const maxBodyBytes = 1 << 20

// queryRequest is the inbound JSON contract.
type queryRequest struct {
	Query   string `json:"query"`
	History []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"history,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body", s.logger)
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "query is required", s.logger)
		return
	}

	history := make([]ai.Message, len(req.History))
	for i, t := range req.History {
		history[i] = ai.Message{Role: t.Role, Content: t.Content}
	}

	envelope, err := s.handler.Handle(r.Context(), router.Request{
		Query:     req.Query,
		History:   history,
		SessionID: req.SessionID,
	})
	if err != nil {
		if errors.Is(err, router.ErrServiceUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "service_unavailable", "retrieval service is not configured", s.logger)
			return
		}
		s.logger.Error("handling query", "error", err, "request_id", RequestID(r.Context()))
		writeError(w, http.StatusInternalServerError, "internal", "internal server error", s.logger)
		return
	}

	writeJSON(w, http.StatusOK, envelope, s.logger)
}

func (s *Server) handleHello(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Astral Assist is running"}, s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

// handleReady reports readiness; it checks storage when a pinger is wired.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "not_ready", "storage unavailable", s.logger)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"}, s.logger)
}

// handleReset wipes the configured namespace and clears session memory.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if s.resetter == nil {
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", "vector index is not configured", s.logger)
		return
	}

	namespace := r.URL.Query().Get("namespace")
	if namespace == "" {
		namespace = s.cfg.Namespace
	}
	if err := s.resetter.DeleteNamespace(r.Context(), namespace); err != nil {
		s.logger.Error("resetting namespace", "namespace", namespace, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "reset failed", s.logger)
		return
	}
	if s.sessions != nil {
		s.sessions.Reset()
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "namespace": namespace}, s.logger)
}
