package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/EdgeAdaptics/triage/internal/config"
)

func TestTraceHandlerAddsSpanIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(config.Config{Env: "production"}, &buf))

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	logger.InfoContext(ctx, "issue created", slog.String("issue_id", "1"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "issue created", rec["msg"])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", rec["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", rec["span_id"])
}

func TestTraceHandlerWithoutSpan(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(config.Config{Env: "development"}, &buf)).With(slog.String("component", "sweeper"))

	logger.Debug("tick")

	out := buf.String()
	assert.Contains(t, out, "msg=tick")
	assert.Contains(t, out, "component=sweeper")
	assert.NotContains(t, out, "trace_id")
}
