package server

import (
	"net/http"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"cheerpup/apps/backend/internal/logger"
)

func TestRequestSpanParentsIntakeSpansAndLogsTraceID(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = provider.Shutdown(t.Context())
	})

	log, logs := logger.NewObserved()
	ta := newTestAppWithLogger(t, newTestConfig(), log, lowMoodReply)
	user := ta.seedUser(t, "asha@example.com", nil)

	rec := performRequest(t, ta.router, http.MethodPost, "/api/v1/openai/chat", signToken(t, user.ID, nil), map[string]any{
		"feelingText": "I feel overwhelmed",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	var requestSpan, submitSpan sdktrace.ReadOnlySpan
	for _, span := range recorder.Ended() {
		switch span.Name() {
		case "intake.Submit":
			submitSpan = span
		case "/api/v1/openai/chat", "POST /api/v1/openai/chat":
			requestSpan = span
		}
	}
	if requestSpan == nil || submitSpan == nil {
		t.Fatalf("expected request and intake spans, got %d spans", len(recorder.Ended()))
	}
	if submitSpan.Parent().SpanID() != requestSpan.SpanContext().SpanID() {
		t.Fatalf("expected intake span to be a child of the request span")
	}

	entries := logs.FilterMessage("HTTP request").All()
	if len(entries) != 1 {
		t.Fatalf("expected one access log entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["trace_id"]; got != requestSpan.SpanContext().TraceID().String() {
		t.Fatalf("expected trace_id %s in access log, got %v", requestSpan.SpanContext().TraceID(), got)
	}
}
