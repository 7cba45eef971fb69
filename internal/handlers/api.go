package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/EdgeAdaptics/triage/internal/events"
	"github.com/EdgeAdaptics/triage/internal/triage"
)

const (
	maxBodyBytes     = 1 << 20
	actionTimeout    = 60 * time.Second
	defaultHeartbeat = 30 * time.Second
)

// Subscriber hands out event subscriptions for the stream endpoint. Now is the
// clock published events are stamped with, so stream-only frames agree with it.
type Subscriber interface {
	Subscribe(types ...events.Type) *events.Subscription
	Now() time.Time
}

// API wires HTTP handlers for the triage board.
type API struct {
	log       *slog.Logger
	board     *triage.Service
	events    Subscriber
	heartbeat time.Duration
	tracer    trace.Tracer
	actions   map[string]actionFunc
}

// Option mutates the API during construction.
type Option func(*API)

// WithHeartbeat sets the interval of keep-alive frames on the event stream.
func WithHeartbeat(d time.Duration) Option {
	return func(a *API) {
		if d > 0 {
			a.heartbeat = d
		}
	}
}

// New constructs the API.
func New(log *slog.Logger, board *triage.Service, bus Subscriber, opts ...Option) *API {
	a := &API{
		log:       log,
		board:     board,
		events:    bus,
		heartbeat: defaultHeartbeat,
		tracer:    otel.Tracer("github.com/EdgeAdaptics/triage/internal/handlers"),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.actions = a.actionTable()
	return a
}

// Routes configures the router with v1 endpoints.
func (a *API) Routes(r chi.Router) {
	r.Get("/healthz", a.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Use(allowCORS)
		r.With(middleware.Timeout(actionTimeout)).Post("/triage", a.handleAction)
		r.Get("/triage/stream", a.handleEventsStream)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleAction(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var envelope struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	run, ok := a.actions[envelope.Action]
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid action")
		return
	}

	ctx, span := a.tracer.Start(r.Context(), "triage."+envelope.Action,
		trace.WithAttributes(attribute.String("triage.action", envelope.Action)))
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("panic: %v", rec)
			span.RecordError(err)
			span.SetStatus(codes.Error, "panic")
			a.log.ErrorContext(ctx, "action panicked", slog.String("action", envelope.Action), slog.String("err", err.Error()))
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}
	}()

	resp, err := run(ctx, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.writeServiceError(w, r.WithContext(ctx), envelope.Action, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, action string, err error) {
	var inputErr *triage.InputError
	switch {
	case errors.As(err, &inputErr):
		writeError(w, http.StatusBadRequest, inputErr.Message)
	case errors.Is(err, triage.ErrNotFound):
		writeError(w, http.StatusNotFound, "Issue not found")
	default:
		a.log.ErrorContext(r.Context(), "action failed",
			slog.String("action", action),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("err", err.Error()))
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func allowCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Cache-Control")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
