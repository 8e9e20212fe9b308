package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/shillcollin/parley/internal/core"
)

type errorResponse struct {
	Error      string   `json:"error"`
	Code       string   `json:"code,omitempty"`
	Details    []string `json:"details,omitempty"`
	RetryAfter int64    `json:"retryAfter,omitempty"`
	Timestamp  string   `json:"timestamp"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encode response failed", "error", err)
	}
}

// writeError maps a classified error to its HTTP response. Internal
// details are included only in development builds.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var ce *core.ChatError
	if !errors.As(err, &ce) {
		ce = core.NewError(core.ErrInternal, "internal server error", core.WithWrapped(err))
	}

	resp := errorResponse{
		Error:     ce.Message,
		Code:      string(ce.Code),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if ce.RetryAfter > 0 {
		resp.RetryAfter = ce.RetryAfter
		w.Header().Set("Retry-After", strconv.FormatInt(ce.RetryAfter, 10))
	}
	if s.cfg.IsDevelopment() {
		if wrapped := errors.Unwrap(ce); wrapped != nil {
			resp.Details = []string{wrapped.Error()}
		}
	}
	s.writeJSON(w, ce.HTTPStatus(), resp)
}

func (s *Server) writeValidationError(w http.ResponseWriter, details []string) {
	s.writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:     "Validation failed",
		Code:      string(core.ErrValidation),
		Details:   details,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}
