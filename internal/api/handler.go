package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

const healthCheckTimeout = 2 * time.Second

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// Handler serves the health endpoint.
type Handler struct {
	clock    func() time.Time
	database Pinger
	broker   Pinger
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithDatabase makes the health check fail while the database is unreachable.
func WithDatabase(db Pinger) HandlerOption {
	return func(h *Handler) {
		h.database = db
	}
}

// WithBroker reports the task broker state. A broker outage degrades the
// service but does not fail the check.
func WithBroker(broker Pinger) HandlerOption {
	return func(h *Handler) {
		h.broker = broker
	}
}

// NewHandler constructs a Handler.
func NewHandler(opts ...HandlerOption) *Handler {
	h := &Handler{
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
		Checks:    map[string]string{},
	}
	status := http.StatusOK

	if h.database != nil {
		if err := h.database.PingContext(ctx); err != nil {
			resp.Checks["database"] = "unavailable"
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			resp.Checks["database"] = "ok"
		}
	}
	if h.broker != nil {
		if err := h.broker.PingContext(ctx); err != nil {
			resp.Checks["broker"] = "unavailable"
			if status == http.StatusOK {
				resp.Status = "degraded"
			}
		} else {
			resp.Checks["broker"] = "ok"
		}
	}

	writeJSON(w, status, resp)
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type healthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

func writeInternalError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, "A server error occurred.")
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "Not found.")
}
