// Package chat glues the conversation store, context builder, and the
// upstream model into one request/response cycle.
package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/shillcollin/parley/internal/conversation"
	"github.com/shillcollin/parley/internal/core"
)

// Reply is the shaped outcome of one successful chat turn.
type Reply struct {
	Message   string      `json:"message"`
	Reasoning string      `json:"reasoning,omitempty"`
	Usage     *core.Usage `json:"usage,omitempty"`
	Model     string      `json:"model"`
	SessionID string      `json:"sessionId"`
	Timestamp time.Time   `json:"timestamp"`
}

// Service orchestrates chat turns.
type Service struct {
	store     *conversation.Store
	completer core.Completer
	timeout   time.Duration
	log       *slog.Logger
}

// NewService builds a Service. timeout bounds each upstream model call.
func NewService(store *conversation.Store, completer core.Completer, timeout time.Duration, logger *slog.Logger) *Service {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, completer: completer, timeout: timeout, log: logger}
}

// Send runs one chat turn for sessionID. The store is the authoritative
// history source; any history the client supplied in the request payload
// is ignored. Failed upstream calls persist nothing.
func (s *Service) Send(ctx context.Context, sessionID, message string) (*Reply, error) {
	s.log.Info("processing chat message", "session_id", sessionID)

	history := s.store.GetHistory(sessionID, 0)
	contextMessages := BuildContext(history, message)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.completer.Complete(ctx, contextMessages)
	if err != nil {
		s.log.Error("model call failed", "session_id", sessionID, "error", err)
		return nil, err
	}

	entry := s.store.AddMessage(sessionID, conversation.Exchange{
		UserMessage: message,
		BotResponse: result.Message,
		Reasoning:   result.Reasoning,
		Usage:       result.Usage,
	})

	s.log.Info("chat response ready",
		"session_id", sessionID,
		"model", result.Model,
		"history_length", len(history)+1,
	)

	return &Reply{
		Message:   result.Message,
		Reasoning: result.Reasoning,
		Usage:     result.Usage,
		Model:     result.Model,
		SessionID: sessionID,
		Timestamp: entry.Timestamp,
	}, nil
}
