package requestctx

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestLoggerDefaultsToNoop(t *testing.T) {
	if Logger(context.Background()) != NoopLogger() {
		t.Fatalf("expected noop logger")
	}
	logger := zap.NewExample()
	ctx := WithLogger(context.Background(), logger)
	if Logger(ctx) != logger {
		t.Fatalf("expected stored logger")
	}
	if Logger(WithLogger(context.Background(), nil)) != NoopLogger() {
		t.Fatalf("expected nil logger to be replaced with noop")
	}
}

func TestTraceAndSession(t *testing.T) {
	ctx := WithTrace(context.Background(), TraceInfo{TraceID: "abc", SpanID: "def"})
	ctx = WithSessionID(ctx, "sess-1")
	if TraceID(ctx) != "abc" {
		t.Fatalf("expected trace id abc, got %q", TraceID(ctx))
	}
	if SessionID(ctx) != "sess-1" {
		t.Fatalf("expected session id sess-1, got %q", SessionID(ctx))
	}
	if SessionID(context.Background()) != "" || TraceID(context.Background()) != "" {
		t.Fatalf("expected empty values without metadata")
	}
}
