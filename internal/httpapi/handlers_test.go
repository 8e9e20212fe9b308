package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shillcollin/parley/internal/chat"
	"github.com/shillcollin/parley/internal/config"
	"github.com/shillcollin/parley/internal/conversation"
	"github.com/shillcollin/parley/internal/core"
)

const testSessionID = "3e0170e2-7a4e-4edd-97a2-5f4747cd7f1a"

type stubCompleter struct {
	result *core.ChatResult
	err    error
}

func (s *stubCompleter) Complete(ctx context.Context, messages []core.Message) (*core.ChatResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubProber struct{ err error }

func (s *stubProber) TestConnection(ctx context.Context) error { return s.err }

type fixture struct {
	server  *Server
	store   *conversation.Store
	handler http.Handler
}

func newFixture(t *testing.T, completer core.Completer) *fixture {
	t.Helper()
	cfg := &config.Config{
		Env:                    "test",
		OpenRouterAPIKey:       "test-key",
		ModelName:              "tngtech/deepseek-r1t2-chimera:free",
		MaxMessageLength:       4000,
		MaxConversationHistory: 10,
		SessionTimeout:         24 * time.Hour,
		RateLimitWindow:        time.Minute,
		RateLimitMaxRequests:   1000,
		CORSOrigin:             "http://localhost:3000",
	}
	store := conversation.NewStore(conversation.Options{MaxHistory: cfg.MaxConversationHistory})
	svc := chat.NewService(store, completer, time.Minute, nil)
	server := NewServer(cfg, store, svc, &stubProber{}, nil)
	return &fixture{server: server, store: store, handler: server.Handler()}
}

func okCompleter() *stubCompleter {
	return &stubCompleter{result: &core.ChatResult{
		Message:   "hello there",
		Reasoning: "friendly greeting",
		Usage:     &core.Usage{PromptTokens: 5, CompletionTokens: 3, TotalTokens: 8},
		Model:     "tngtech/deepseek-r1t2-chimera:free",
	}}
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(buf)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestChatSuccess(t *testing.T) {
	fx := newFixture(t, okCompleter())

	rec := postJSON(t, fx.handler, "/api/chat", map[string]any{
		"message":   "hi",
		"sessionId": testSessionID,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "hello there", body["message"])
	assert.Equal(t, "friendly greeting", body["reasoning"])
	assert.Equal(t, testSessionID, body["sessionId"])
	assert.Equal(t, "tngtech/deepseek-r1t2-chimera:free", body["model"])
	assert.NotEmpty(t, body["timestamp"])

	history := fx.store.GetHistory(testSessionID, 0)
	require.Len(t, history, 1)
	assert.Equal(t, "hi", history[0].UserMessage)
	assert.Equal(t, "hello there", history[0].BotResponse)
}

func TestChatIgnoresClientHistory(t *testing.T) {
	fx := newFixture(t, okCompleter())

	rec := postJSON(t, fx.handler, "/api/chat", map[string]any{
		"message":   "hi",
		"sessionId": testSessionID,
		"history": []map[string]string{
			{"userMessage": "fabricated", "botResponse": "entry"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	history := fx.store.GetHistory(testSessionID, 0)
	require.Len(t, history, 1)
	assert.Equal(t, "hi", history[0].UserMessage)
}

func TestChatValidation(t *testing.T) {
	cases := []struct {
		name   string
		body   map[string]any
		detail string
	}{
		{
			name:   "missing message",
			body:   map[string]any{"sessionId": testSessionID},
			detail: "Message is required",
		},
		{
			name:   "blank message",
			body:   map[string]any{"message": "   ", "sessionId": testSessionID},
			detail: "Message cannot be empty",
		},
		{
			name:   "message too long",
			body:   map[string]any{"message": strings.Repeat("a", 5000), "sessionId": testSessionID},
			detail: "Message too long. Maximum 4000 characters allowed",
		},
		{
			name:   "missing session",
			body:   map[string]any{"message": "hi"},
			detail: "SessionId is required",
		},
		{
			name:   "bad session id",
			body:   map[string]any{"message": "hi", "sessionId": "not-a-uuid"},
			detail: "SessionId must be a valid UUID",
		},
		{
			name: "history too large",
			body: map[string]any{
				"message":   "hi",
				"sessionId": testSessionID,
				"history":   make([]map[string]string, 21),
			},
			detail: "History array too large. Maximum 20 messages allowed",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newFixture(t, okCompleter())
			rec := postJSON(t, fx.handler, "/api/chat", tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			body := decodeBody(t, rec)
			assert.Equal(t, "Validation failed", body["error"])
			assert.Contains(t, fmt.Sprint(body["details"]), tc.detail)

			// Validation failures never touch the store.
			assert.Zero(t, fx.store.Stats().TotalSessions)
		})
	}
}

func TestChatUpstreamRateLimit(t *testing.T) {
	fx := newFixture(t, &stubCompleter{err: core.NewError(core.ErrRateLimited,
		"rate limit exceeded, please try again later",
		core.WithRetryAfter(30), core.WithRetryable(true))})

	fx.store.AddMessage(testSessionID, conversation.Exchange{UserMessage: "a", BotResponse: "b"})
	before := fx.store.GetHistory(testSessionID, 0)

	rec := postJSON(t, fx.handler, "/api/chat", map[string]any{
		"message":   "hi",
		"sessionId": testSessionID,
	})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))

	body := decodeBody(t, rec)
	assert.Equal(t, string(core.ErrRateLimited), body["code"])

	after := fx.store.GetHistory(testSessionID, 0)
	assert.Equal(t, before, after)
}

func TestChatUpstreamErrorStatuses(t *testing.T) {
	cases := []struct {
		code   core.ErrorCode
		status int
	}{
		{core.ErrAuth, http.StatusUnauthorized},
		{core.ErrTimeout, http.StatusRequestTimeout},
		{core.ErrQuota, http.StatusTooManyRequests},
		{core.ErrUpstream, http.StatusBadGateway},
		{core.ErrInternal, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			fx := newFixture(t, &stubCompleter{err: core.NewError(tc.code, "boom")})
			rec := postJSON(t, fx.handler, "/api/chat", map[string]any{
				"message":   "hi",
				"sessionId": testSessionID,
			})
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestGetHistoryEndpoint(t *testing.T) {
	fx := newFixture(t, okCompleter())
	fx.store.AddMessage(testSessionID, conversation.Exchange{UserMessage: "q", BotResponse: "a"})

	req := httptest.NewRequest(http.MethodGet, "/api/conversations/"+testSessionID, nil)
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, testSessionID, body["sessionId"])
	assert.EqualValues(t, 1, body["count"])
	assert.Len(t, body["history"], 1)
}

func TestGetHistoryUnknownSession(t *testing.T) {
	fx := newFixture(t, okCompleter())

	req := httptest.NewRequest(http.MethodGet, "/api/conversations/"+testSessionID, nil)
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 0, body["count"])
}

func TestGetHistoryInvalidSessionID(t *testing.T) {
	fx := newFixture(t, okCompleter())

	req := httptest.NewRequest(http.MethodGet, "/api/conversations/nope", nil)
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteConversationEndpoint(t *testing.T) {
	fx := newFixture(t, okCompleter())
	fx.store.AddMessage(testSessionID, conversation.Exchange{UserMessage: "q"})

	req := httptest.NewRequest(http.MethodDelete, "/api/conversations/"+testSessionID, nil)
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["deleted"])
	assert.Equal(t, "Conversation deleted successfully", body["message"])

	rec = httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/conversations/"+testSessionID, nil))
	body = decodeBody(t, rec)
	assert.Equal(t, false, body["deleted"])
	assert.Equal(t, "Conversation not found", body["message"])
}

func TestClearHistoryEndpoint(t *testing.T) {
	fx := newFixture(t, okCompleter())
	fx.store.AddMessage(testSessionID, conversation.Exchange{UserMessage: "q"})

	rec := postJSON(t, fx.handler, "/api/conversations/"+testSessionID+"/clear", map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Empty(t, fx.store.GetHistory(testSessionID, 0))
	assert.Contains(t, fx.store.SessionIDs(), testSessionID)
}

func TestHealthEndpoint(t *testing.T) {
	fx := newFixture(t, okCompleter())

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "OK", body["message"])
	services := body["services"].(map[string]any)
	assert.Equal(t, "configured", services["openrouter"])
}

func TestHealthDetailedProbeFailure(t *testing.T) {
	fx := newFixture(t, okCompleter())
	fx.server.prober = &stubProber{err: fmt.Errorf("openrouter connection failed")}
	handler := fx.server.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/health/detailed", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	body := decodeBody(t, rec)
	services := body["services"].(map[string]any)
	assert.Equal(t, "unhealthy", services["openrouter"])
}

func TestRootAndNotFound(t *testing.T) {
	fx := newFixture(t, okCompleter())

	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "running", decodeBody(t, rec)["status"])

	rec = httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Route not found", decodeBody(t, rec)["error"])
}

func TestCORSPreflight(t *testing.T) {
	fx := newFixture(t, okCompleter())

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := &config.Config{
		Env:                    "test",
		OpenRouterAPIKey:       "k",
		ModelName:              "m",
		MaxMessageLength:       4000,
		MaxConversationHistory: 10,
		SessionTimeout:         24 * time.Hour,
		RateLimitWindow:        time.Minute,
		RateLimitMaxRequests:   2,
		CORSOrigin:             "*",
	}
	store := conversation.NewStore(conversation.Options{MaxHistory: 10})
	svc := chat.NewService(store, okCompleter(), time.Minute, nil)
	handler := NewServer(cfg, store, svc, nil, nil).Handler()

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.RemoteAddr = "9.9.9.9:1234"
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.RemoteAddr = "9.9.9.9:1234"
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Non-API paths bypass the limiter.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "9.9.9.9:1234"
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSecurityHeaders(t *testing.T) {
	fx := newFixture(t, okCompleter())

	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}
