// Package openrouter implements the core.Completer capability against the
// OpenRouter chat-completions API.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/shillcollin/parley/internal/core"
	"github.com/shillcollin/parley/internal/httpclient"
	"github.com/shillcollin/parley/internal/obs"
)

// Generation parameters the original deployment pins for every request.
const (
	maxCompletionTokens = 4000
	temperature         = 0.7
	topP                = 0.9
)

// Client talks to OpenRouter's chat completions endpoint.
type Client struct {
	httpClient *http.Client
	opts       options
}

// New constructs an OpenRouter client.
func New(opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = httpclient.New(httpclient.WithTimeout(o.timeout))
	}
	return &Client{httpClient: o.httpClient, opts: o}
}

// Model returns the model name requests default to.
func (c *Client) Model() string { return c.opts.model }

// Complete sends the context window and returns the finished response.
// Failures come back as *core.ChatError classified by upstream status.
func (c *Client) Complete(ctx context.Context, messages []core.Message) (_ *core.ChatResult, err error) {
	ctx, recorder := obs.StartRequest(ctx, "providers.openrouter.Complete",
		attribute.String("ai.provider", "openrouter"),
		attribute.String("ai.model", c.opts.model),
	)
	var usageTokens obs.UsageTokens
	defer func() { recorder.End(err, usageTokens) }()

	payload := &chatCompletionRequest{
		Model:       c.opts.model,
		Messages:    convertMessages(messages),
		MaxTokens:   maxCompletionTokens,
		Temperature: temperature,
		TopP:        topP,
		Stream:      false,
	}

	body, err := c.doRequest(ctx, http.MethodPost, "/chat/completions", payload)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp chatCompletionResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, core.WrapError(fmt.Errorf("decode openrouter response: %w", err), core.ErrUpstream)
	}
	if len(resp.Choices) == 0 {
		return nil, core.NewError(core.ErrUpstream, "no response choices received from OpenRouter")
	}

	choice := resp.Choices[0]
	usage := resp.Usage.toCore()
	if usage != nil {
		usageTokens = obs.UsageTokens{
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
			TotalTokens:      usage.TotalTokens,
		}
	}

	model := resp.Model
	if model == "" {
		model = c.opts.model
	}

	return &core.ChatResult{
		Message:      choice.Message.Content,
		Reasoning:    choice.Message.Reasoning,
		Usage:        usage,
		Model:        model,
		FinishReason: choice.FinishReason,
	}, nil
}

// TestConnection sends a minimal probe request. Used by the detailed
// health check.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.Complete(ctx, []core.Message{core.UserMessage("Hello, this is a connection test.")})
	if err != nil {
		return fmt.Errorf("openrouter connection failed: %w", err)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, payload any) (io.ReadCloser, error) {
	buf := &bytes.Buffer{}
	if payload != nil {
		if err := json.NewEncoder(buf).Encode(payload); err != nil {
			return nil, core.WrapError(fmt.Errorf("marshal payload: %w", err), core.ErrInternal)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.opts.baseURL, "/")+path, buf)
	if err != nil {
		return nil, core.WrapError(err, core.ErrInternal)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.opts.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.apiKey)
	}
	if c.opts.referer != "" {
		req.Header.Set("HTTP-Referer", c.opts.referer)
	}
	if c.opts.title != "" {
		req.Header.Set("X-Title", c.opts.title)
	}
	for k, v := range c.opts.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, classifyStatusError(resp)
	}
	return resp.Body, nil
}

func classifyStatusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	detail := upstreamMessage(data)

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return core.NewError(core.ErrAuth, "invalid OpenRouter API key or unauthorized access",
			core.WithStatus(http.StatusUnauthorized))
	case http.StatusTooManyRequests:
		return core.NewError(core.ErrRateLimited, "rate limit exceeded, please try again later",
			core.WithStatus(http.StatusTooManyRequests),
			core.WithRetryable(true),
			core.WithRetryAfter(retryAfterSeconds(resp)))
	case http.StatusPaymentRequired:
		return core.NewError(core.ErrQuota, "insufficient credits or quota exceeded",
			core.WithStatus(http.StatusTooManyRequests))
	case http.StatusServiceUnavailable:
		return core.NewError(core.ErrUpstream, "OpenRouter service temporarily unavailable",
			core.WithRetryable(true))
	default:
		msg := detail
		if msg == "" {
			msg = fmt.Sprintf("OpenRouter API error: %d", resp.StatusCode)
		}
		return core.NewError(core.ErrUpstream, msg)
	}
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return core.NewError(core.ErrTimeout, "request timeout, the model is taking too long to respond",
			core.WithWrapped(err), core.WithRetryable(true))
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return core.NewError(core.ErrTimeout, "request timeout, the model is taking too long to respond",
			core.WithWrapped(err), core.WithRetryable(true))
	}
	if errors.Is(err, context.Canceled) {
		return core.WrapError(err, core.ErrInternal)
	}
	return core.NewError(core.ErrUpstream, "cannot connect to OpenRouter API",
		core.WithWrapped(err), core.WithRetryable(true))
}

func upstreamMessage(data []byte) string {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}
	return ""
}

func retryAfterSeconds(resp *http.Response) int64 {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 60
	}
	if secs, err := strconv.ParseInt(header, 10, 64); err == nil && secs > 0 {
		return secs
	}
	return 60
}

func convertMessages(messages []core.Message) []openRouterMessage {
	out := make([]openRouterMessage, 0, len(messages))
	for _, msg := range messages {
		out = append(out, openRouterMessage{Role: string(msg.Role), Content: msg.Content})
	}
	return out
}
