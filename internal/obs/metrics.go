package obs

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	metricsOnce      sync.Once
	requestCounter   metric.Int64Counter
	latencyHistogram metric.Float64Histogram
	promptTokensHist metric.Int64Histogram
	outputTokensHist metric.Int64Histogram
	totalTokensHist  metric.Int64Histogram
)

func installMetrics(m metric.Meter) {
	metricsOnce.Do(func() {
		requestCounter, _ = m.Int64Counter("parley.model.requests", metric.WithDescription("Total upstream model requests"))
		latencyHistogram, _ = m.Float64Histogram("parley.model.latency_ms", metric.WithDescription("Upstream model latency (ms)"))
		promptTokensHist, _ = m.Int64Histogram("parley.tokens.prompt", metric.WithDescription("Prompt tokens"))
		outputTokensHist, _ = m.Int64Histogram("parley.tokens.completion", metric.WithDescription("Completion tokens"))
		totalTokensHist, _ = m.Int64Histogram("parley.tokens.total", metric.WithDescription("Total tokens"))
	})
}

func recordRequest(attrs ...attribute.KeyValue) {
	if requestCounter != nil {
		requestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	}
}

func recordLatency(ms float64, attrs ...attribute.KeyValue) {
	if latencyHistogram != nil {
		latencyHistogram.Record(context.Background(), ms, metric.WithAttributes(attrs...))
	}
}

func recordUsage(usage UsageTokens, attrs ...attribute.KeyValue) {
	ctx := context.Background()
	if promptTokensHist != nil {
		promptTokensHist.Record(ctx, int64(usage.PromptTokens), metric.WithAttributes(attrs...))
	}
	if outputTokensHist != nil {
		outputTokensHist.Record(ctx, int64(usage.CompletionTokens), metric.WithAttributes(attrs...))
	}
	if totalTokensHist != nil {
		totalTokensHist.Record(ctx, int64(usage.TotalTokens), metric.WithAttributes(attrs...))
	}
}
