package log

import (
	"context"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/trace"

	"github.com/EdgeAdaptics/triage/internal/config"
)

// New returns the process logger: text on stdout in development, JSON in
// production, and the OTLP bridge when production telemetry is configured.
func New(cfg config.Config) *slog.Logger {
	return slog.New(newHandler(cfg, os.Stdout))
}

func newHandler(cfg config.Config, w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.IsDevelopment() {
		opts.Level = slog.LevelDebug
	}

	switch {
	case cfg.IsProduction() && cfg.OTel.Enabled():
		return otelslog.NewHandler(
			cfg.OTel.ServiceName,
			otelslog.WithLoggerProvider(global.GetLoggerProvider()),
		)
	case cfg.IsProduction():
		return NewTraceHandler(slog.NewJSONHandler(w, opts))
	default:
		return NewTraceHandler(slog.NewTextHandler(w, opts))
	}
}

// TraceHandler stamps records with the trace and span of their context.
type TraceHandler struct {
	slog.Handler
}

func NewTraceHandler(h slog.Handler) *TraceHandler {
	return &TraceHandler{Handler: h}
}

func (h *TraceHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *TraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TraceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *TraceHandler) WithGroup(name string) slog.Handler {
	return &TraceHandler{Handler: h.Handler.WithGroup(name)}
}
