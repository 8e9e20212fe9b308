package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
)

const maxHistoryPayload = 20

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	// History is accepted for wire compatibility but never trusted: the
	// server rebuilds context from its own store.
	History []json.RawMessage `json:"history,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&payload); err != nil {
		s.writeValidationError(w, []string{"request body must be valid JSON"})
		return
	}

	if details := validateChatRequest(payload, s.cfg.MaxMessageLength); len(details) > 0 {
		s.writeValidationError(w, details)
		return
	}

	reply, err := s.chat.Send(r.Context(), payload.SessionID, payload.Message)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, reply)
}

func validateChatRequest(payload chatRequest, maxMessageLength int) []string {
	var details []string

	switch {
	case payload.Message == "":
		details = append(details, "Message is required")
	case strings.TrimSpace(payload.Message) == "":
		details = append(details, "Message cannot be empty")
	case len(payload.Message) > maxMessageLength:
		details = append(details, fmt.Sprintf("Message too long. Maximum %d characters allowed", maxMessageLength))
	}

	switch {
	case payload.SessionID == "":
		details = append(details, "SessionId is required")
	case uuid.Validate(payload.SessionID) != nil:
		details = append(details, "SessionId must be a valid UUID")
	}

	if len(payload.History) > maxHistoryPayload {
		details = append(details, fmt.Sprintf("History array too large. Maximum %d messages allowed", maxHistoryPayload))
	}

	return details
}

func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("sessionId")
	if uuid.Validate(id) != nil {
		s.writeValidationError(w, []string{"SessionId must be a valid UUID"})
		return "", false
	}
	return id, true
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	history := s.store.GetHistory(id, 0)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"sessionId": id,
		"history":   history,
		"count":     len(history),
		"timestamp": nowISO(),
	})
	s.log.Info("history retrieved", "session_id", id, "messages", len(history))
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	deleted := s.store.DeleteConversation(id)
	message := "Conversation not found"
	if deleted {
		message = "Conversation deleted successfully"
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"message":   message,
		"sessionId": id,
		"deleted":   deleted,
		"timestamp": nowISO(),
	})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := s.sessionID(w, r)
	if !ok {
		return
	}
	s.store.ClearHistory(id)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Conversation history cleared",
		"sessionId": id,
		"timestamp": nowISO(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	services := map[string]string{
		"openrouter": "not configured",
		"model":      s.cfg.ModelName,
	}
	if s.cfg.OpenRouterAPIKey != "" {
		services["openrouter"] = "configured"
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"uptime":    time.Since(s.started).Seconds(),
		"message":   "OK",
		"timestamp": nowISO(),
		"env":       s.cfg.Env,
		"version":   Version,
		"services":  services,
	})
}

func (s *Server) handleHealthDetailed(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	services := map[string]string{"api": "healthy", "openrouter": "unknown"}
	status := http.StatusOK
	var probeErrs []string

	if s.prober != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		if err := s.prober.TestConnection(ctx); err != nil {
			services["openrouter"] = "unhealthy"
			probeErrs = append(probeErrs, err.Error())
			status = http.StatusServiceUnavailable
		} else {
			services["openrouter"] = "healthy"
		}
	}

	body := map[string]any{
		"uptime":      time.Since(s.started).Seconds(),
		"timestamp":   nowISO(),
		"version":     Version,
		"environment": s.cfg.Env,
		"memory": map[string]uint64{
			"alloc":      mem.Alloc,
			"totalAlloc": mem.TotalAlloc,
			"sys":        mem.Sys,
			"numGC":      uint64(mem.NumGC),
		},
		"sessions": s.store.Stats(),
		"services": services,
	}
	if len(probeErrs) > 0 {
		body["errors"] = probeErrs
	}
	s.writeJSON(w, status, body)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeJSON(w, http.StatusNotFound, map[string]any{
			"error":   "Route not found",
			"message": fmt.Sprintf("Cannot %s %s", r.Method, r.URL.Path),
			"availableRoutes": []string{
				"/api/health",
				"/api/chat",
				"/api/conversations",
			},
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"name":      "Parley Chatbot API",
		"version":   Version,
		"status":    "running",
		"timestamp": nowISO(),
		"endpoints": map[string]string{
			"health":        "/api/health",
			"chat":          "/api/chat",
			"conversations": "/api/conversations",
		},
	})
}
