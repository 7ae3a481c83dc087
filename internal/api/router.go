package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/eugenenazirov/alx-travel/internal/auth"
	"github.com/eugenenazirov/alx-travel/internal/config"
	"github.com/eugenenazirov/alx-travel/internal/middleware"
	"github.com/eugenenazirov/alx-travel/internal/storage"
)

// ErrMissingHandler is returned when a mandatory handler group is nil.
var ErrMissingHandler = errors.New("handler group missing")

// Dependencies are the handler groups and shared services the router mounts.
type Dependencies struct {
	Settings config.Settings
	Sessions *scs.SessionManager
	Users    storage.UserStore
	Origins  *http.CrossOriginProtection

	Admin    http.Handler
	Listings http.Handler
	Docs     http.Handler
	Health   *Handler

	Logger *zap.Logger
}

// RouterOption configures the behaviour of NewRouter.
type RouterOption func(*routerConfig)

// WithLogging controls whether access logs are emitted.
func WithLogging(enabled bool) RouterOption {
	return func(cfg *routerConfig) {
		cfg.enableLogging = enabled
	}
}

// WithRateLimit configures the per-client token buckets guarding /api/.
// A non-positive rate disables limiting.
func WithRateLimit(rps float64, burst int) RouterOption {
	return func(cfg *routerConfig) {
		if rps <= 0 {
			cfg.rateLimiter = nil
			return
		}
		cfg.rateLimiter = newClientLimiter(rps, burst)
	}
}

// WithRateLimiter overrides the default request rate limiter (primarily for tests).
func WithRateLimiter(limiter rateLimiter) RouterOption {
	return func(cfg *routerConfig) {
		cfg.rateLimiter = limiter
	}
}

type routerConfig struct {
	enableLogging bool
	rateLimiter   rateLimiter
}

// router is a ServeMux that remembers its patterns so the common middleware
// can ask whether a path resolves.
type router struct {
	mux      *http.ServeMux
	exact    []string
	prefixes []string
}

func newMux() *router {
	return &router{mux: http.NewServeMux()}
}

func (rt *router) handle(pattern string, h http.Handler) {
	rt.mux.Handle(pattern, h)
	path := pattern
	if i := strings.IndexByte(pattern, ' '); i >= 0 {
		path = pattern[i+1:]
	}
	if strings.HasSuffix(path, "/") {
		rt.prefixes = append(rt.prefixes, path)
		return
	}
	rt.exact = append(rt.exact, path)
}

// Resolves reports whether path matches a mounted route.
func (rt *router) Resolves(path string) bool {
	for _, p := range rt.exact {
		if p == path {
			return true
		}
	}
	for _, p := range rt.prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// NewRouter mounts the handler groups in priority order (/admin/, /api/,
// /swagger/), the ambient routes, and wraps everything in the configured
// middleware chain.
func NewRouter(deps Dependencies, opts ...RouterOption) (http.Handler, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Admin == nil || deps.Docs == nil {
		return nil, ErrMissingHandler
	}
	if deps.Listings == nil {
		deps.Listings = http.HandlerFunc(notFound)
	}
	if deps.Health == nil {
		deps.Health = NewHandler()
	}

	server := deps.Settings.Server
	cfg := routerConfig{enableLogging: server.EnableRequestLogging}
	WithRateLimit(server.RateLimitRPS, server.RateLimitBurst)(&cfg)
	for _, opt := range opts {
		opt(&cfg)
	}

	policy, err := newRESTPolicy(deps.Settings.RESTFramework, auth.PolicyDeps{
		Sessions: deps.Sessions,
		Users:    deps.Users,
		Origins:  deps.Origins,
	}, deps.Logger)
	if err != nil {
		return nil, err
	}

	rt := newMux()
	rt.handle("/admin/", deps.Admin)
	rt.handle("/api/", rateLimitMiddleware(cfg.rateLimiter, policy.middleware(deps.Listings)))
	rt.handle("/swagger/", deps.Docs)
	if deps.Settings.Debug {
		prefix := staticPrefix(deps.Settings.StaticURL)
		dir := http.Dir(filepath.Join(deps.Settings.BaseDir, "static"))
		rt.handle(prefix, http.StripPrefix(prefix, http.FileServer(dir)))
	}
	rt.handle("GET /healthz", http.HandlerFunc(deps.Health.handleHealth))
	rt.handle("GET /metrics", promhttp.Handler())
	rt.mux.HandleFunc("/", notFound)

	mws, err := middleware.Build(deps.Settings.Middleware, middleware.Deps{
		Settings: deps.Settings,
		Sessions: deps.Sessions,
		Users:    deps.Users,
		Origins:  deps.Origins,
		Resolver: rt,
		Logger:   deps.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build middleware chain: %w", err)
	}

	root := middleware.Chain(rt.mux, mws)
	root = recoveryMiddleware(deps.Logger, root)
	if cfg.enableLogging {
		root = loggingMiddleware(deps.Logger, root)
	}
	root = metricsMiddleware(root)
	root = requestIDMiddleware(root)

	return root, nil
}

func staticPrefix(staticURL string) string {
	trimmed := strings.Trim(staticURL, "/")
	if trimmed == "" {
		trimmed = "static"
	}
	return "/" + trimmed + "/"
}

func loggingMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		requestID := requestIDFromContext(r.Context())
		logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", duration),
			zap.String("request_id", requestID),
		)
	})
}

func recoveryMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("panic recovered",
					zap.Any("error", rec),
					zap.String("request_id", requestIDFromContext(r.Context())),
				)
				writeInternalError(w)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = generateRequestID()
		}
		ctx := r.Context()
		ctx = contextWithRequestID(ctx, requestID)

		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func generateRequestID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	return hex.EncodeToString(buf)
}

func contextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
