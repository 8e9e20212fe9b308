package openrouter

import (
	"net/http"
	"time"
)

type Option func(*options)

type options struct {
	apiKey     string
	baseURL    string
	model      string
	referer    string
	title      string
	httpClient *http.Client
	headers    map[string]string
	timeout    time.Duration
}

func defaultOptions() options {
	return options{
		baseURL: "https://openrouter.ai/api/v1",
		model:   "tngtech/deepseek-r1t2-chimera:free",
		title:   "DeepSeek R1T2 Chimera Chatbot",
		timeout: 60 * time.Second,
		headers: map[string]string{},
	}
}

// WithAPIKey configures the API key.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithModel sets the default model.
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

// WithReferer sets the HTTP-Referer header OpenRouter uses for app
// attribution.
func WithReferer(referer string) Option {
	return func(o *options) { o.referer = referer }
}

// WithTitle sets the X-Title attribution header.
func WithTitle(title string) Option {
	return func(o *options) { o.title = title }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithHeader adds a static request header.
func WithHeader(key, value string) Option {
	return func(o *options) {
		if o.headers == nil {
			o.headers = map[string]string{}
		}
		o.headers[key] = value
	}
}

// WithTimeout customizes the client timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}
