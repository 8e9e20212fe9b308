package obs

import (
	"context"
	"errors"
	"testing"
)

func TestInitWithNoExporter(t *testing.T) {
	shutdown, err := Init(context.Background(), Options{Exporter: ExporterNone})
	if err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	if shutdown == nil {
		t.Fatalf("expected shutdown func")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestStartRequestBeforeInit(t *testing.T) {
	ctx, recorder := StartRequest(context.Background(), "test.operation")
	if ctx == nil || recorder == nil {
		t.Fatalf("expected usable context and recorder")
	}
	recorder.End(errors.New("boom"), UsageTokens{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3})

	var nilRecorder *RequestRecorder
	nilRecorder.End(nil, UsageTokens{})
	nilRecorder.AddAttributes()
}
