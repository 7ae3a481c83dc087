package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type controllableClock struct {
	mu  sync.RWMutex
	now time.Time
}

func newControllableClock(initial time.Time) *controllableClock {
	return &controllableClock{now: initial}
}

func (c *controllableClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

func (c *controllableClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestHealthEndpoint(t *testing.T) {
	clock := newControllableClock(time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC))
	deps := testDependencies(t)
	deps.Health = NewHandler(WithClock(clock.Now))
	router := newTestRouter(t, deps)

	resp := getHealth(t, router, http.StatusOK)
	if resp.Status != "ok" {
		t.Fatalf("expected ok status, got %s", resp.Status)
	}
	if !resp.Timestamp.Equal(clock.Now()) {
		t.Fatalf("expected timestamp %v, got %v", clock.Now(), resp.Timestamp)
	}

	clock.Advance(time.Minute)
	resp = getHealth(t, router, http.StatusOK)
	if !resp.Timestamp.Equal(clock.Now()) {
		t.Fatalf("expected advanced timestamp, got %v", resp.Timestamp)
	}
}

func TestHealthReportsDependencies(t *testing.T) {
	down := PingFunc(func(context.Context) error { return errors.New("connection refused") })
	up := PingFunc(func(context.Context) error { return nil })

	tests := []struct {
		name       string
		opts       []HandlerOption
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name:       "all up",
			opts:       []HandlerOption{WithDatabase(up), WithBroker(up)},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantChecks: map[string]string{"database": "ok", "broker": "ok"},
		},
		{
			name:       "broker down",
			opts:       []HandlerOption{WithDatabase(up), WithBroker(down)},
			wantCode:   http.StatusOK,
			wantStatus: "degraded",
			wantChecks: map[string]string{"database": "ok", "broker": "unavailable"},
		},
		{
			name:       "database down",
			opts:       []HandlerOption{WithDatabase(down), WithBroker(down)},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unavailable",
			wantChecks: map[string]string{"database": "unavailable", "broker": "unavailable"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler(tc.opts...)
			rec := httptest.NewRecorder()
			h.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			if rec.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, rec.Code)
			}
			var resp healthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tc.wantStatus {
				t.Fatalf("expected status %s, got %s", tc.wantStatus, resp.Status)
			}
			for k, v := range tc.wantChecks {
				if resp.Checks[k] != v {
					t.Fatalf("check %s: expected %s, got %s", k, v, resp.Checks[k])
				}
			}
		})
	}
}

func TestHealthOnlyServesGet(t *testing.T) {
	router := newTestRouter(t, testDependencies(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected POST to fall through to 404, got %d", rec.Code)
	}
}

func TestWriteInternalErrorHidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	writeInternalError(rec)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 status, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON content type, got %s", ct)
	}
}

func getHealth(t *testing.T, router http.Handler, wantCode int) healthResponse {
	t.Helper()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != wantCode {
		t.Fatalf("expected status %d, got %d", wantCode, rec.Code)
	}

	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}
