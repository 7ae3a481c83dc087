package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/eugenenazirov/alx-travel/internal/admin"
	"github.com/eugenenazirov/alx-travel/internal/api"
	"github.com/eugenenazirov/alx-travel/internal/checks"
	"github.com/eugenenazirov/alx-travel/internal/config"
	"github.com/eugenenazirov/alx-travel/internal/database"
	"github.com/eugenenazirov/alx-travel/internal/docs"
	"github.com/eugenenazirov/alx-travel/internal/middleware"
	"github.com/eugenenazirov/alx-travel/internal/storage"
	"github.com/eugenenazirov/alx-travel/internal/tasks"
)

// ErrChecksFailed is returned when the settings fail an error-level check.
var ErrChecksFailed = errors.New("system checks failed")

const (
	sessionCookieName      = "sessionid"
	sessionLifetime        = 14 * 24 * time.Hour
	sessionCleanupInterval = 5 * time.Minute
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	settings   config.Settings
	logger     *zap.Logger
	db         *sqlx.DB
	users      storage.UserStore
	sessions   *scs.SessionManager
	cleanup    *storage.SessionStore
	dispatcher tasks.Dispatcher
	router     http.Handler
	server     *http.Server

	stop     context.CancelFunc
	stopOnce sync.Once
}

// Option customizes New.
type Option func(*options)

type options struct {
	listings     http.Handler
	users        storage.UserStore
	sessionStore scs.Store
	dispatcher   tasks.Dispatcher
	skipBroker   bool
}

// WithListings mounts the listings handler group under /api/.
func WithListings(h http.Handler) Option {
	return func(o *options) { o.listings = h }
}

// WithUserStore replaces the database-backed user store. No database is
// opened unless a session store is still needed.
func WithUserStore(users storage.UserStore) Option {
	return func(o *options) { o.users = users }
}

// WithSessionStore replaces the database-backed session store.
func WithSessionStore(store scs.Store) Option {
	return func(o *options) { o.sessionStore = store }
}

// WithDispatcher uses the given task dispatcher instead of dialing the broker.
func WithDispatcher(d tasks.Dispatcher) Option {
	return func(o *options) { o.dispatcher = d }
}

// WithoutBroker skips the task broker connection.
func WithoutBroker() Option {
	return func(o *options) { o.skipBroker = true }
}

// New initializes the application with all dependencies from the provided settings.
func New(ctx context.Context, cfg config.Settings, logger *zap.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	findings := checks.Run(cfg)
	for _, msg := range findings {
		logger.Warn("system check", zap.String("id", msg.ID), zap.String("level", msg.Level.String()), zap.String("message", msg.Text))
	}
	if checks.HasErrors(findings) {
		return nil, ErrChecksFailed
	}

	app := &App{settings: cfg, logger: logger, users: o.users}

	if o.users == nil || o.sessionStore == nil {
		db, err := database.Open(ctx, cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := database.Migrate(ctx, db, cfg.Database.Engine); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		app.db = db
		if app.users == nil {
			app.users = storage.NewSQLStorage(db)
		}
		if o.sessionStore == nil {
			app.cleanup = storage.NewSessionStore(db)
			o.sessionStore = app.cleanup
		}
	}

	app.sessions = newSessionManager(cfg, o.sessionStore)

	origins, err := middleware.NewOriginProtection(cfg.CSRFTrustedOrigins)
	if err != nil {
		app.closeResources()
		return nil, fmt.Errorf("failed to configure CSRF origins: %w", err)
	}

	app.dispatcher = o.dispatcher
	if app.dispatcher == nil && !o.skipBroker {
		d, err := tasks.New(cfg.Celery, logger)
		if err != nil {
			logger.Warn("task broker unavailable, continuing without background tasks", zap.Error(err))
		} else {
			app.dispatcher = d
		}
	}

	router, err := app.buildRouter(o.listings, origins)
	if err != nil {
		app.closeResources()
		return nil, fmt.Errorf("failed to build HTTP handler: %w", err)
	}
	app.router = router

	var handler http.Handler = router
	if cfg.Server.EnableH2C {
		handler = h2c.NewHandler(router, &http2.Server{})
	}
	app.server = NewServer(cfg, handler)

	return app, nil
}

func newSessionManager(cfg config.Settings, store scs.Store) *scs.SessionManager {
	sessions := scs.New()
	if store != nil {
		sessions.Store = store
	}
	sessions.Lifetime = sessionLifetime
	sessions.Cookie.Name = sessionCookieName
	sessions.Cookie.HttpOnly = true
	sessions.Cookie.SameSite = http.SameSiteLaxMode
	sessions.Cookie.Secure = !cfg.Debug
	return sessions
}

func (a *App) buildRouter(listings http.Handler, origins *http.CrossOriginProtection) (http.Handler, error) {
	site, err := admin.New(a.settings, a.sessions, a.users, a.logger)
	if err != nil {
		return nil, err
	}

	var mounts []docs.Mount
	if provider, ok := listings.(docs.PathProvider); ok {
		mounts = append(mounts, docs.Mount{Prefix: "/api/", Provider: provider})
	}
	schema, err := docs.New(a.settings.Swagger, a.logger, mounts...)
	if err != nil {
		return nil, err
	}

	var healthOpts []api.HandlerOption
	if a.db != nil {
		healthOpts = append(healthOpts, api.WithDatabase(a.db))
	}
	if a.dispatcher != nil {
		healthOpts = append(healthOpts, api.WithBroker(a.dispatcher))
	}

	return api.NewRouter(api.Dependencies{
		Settings: a.settings,
		Sessions: a.sessions,
		Users:    a.users,
		Origins:  origins,
		Admin:    site,
		Listings: listings,
		Docs:     schema,
		Health:   api.NewHandler(healthOpts...),
		Logger:   a.logger,
	})
}

// NewServer creates and configures an HTTP server from the provided settings.
func NewServer(cfg config.Settings, handler http.Handler) *http.Server {
	addr := cfg.Server.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

// Start starts the HTTP server and the expired-session sweeper in goroutines.
func (a *App) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.stop = cancel
	if a.cleanup != nil {
		go a.cleanup.RunCleanup(ctx, sessionCleanupInterval, a.logger)
	}

	go func() {
		a.logger.Info("server listening",
			zap.String("addr", a.server.Addr),
			zap.String("profile", string(a.settings.Profile)),
			zap.String("database", string(a.settings.Database.Engine)),
			zap.Bool("h2c", a.settings.Server.EnableH2C),
		)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Handler returns the fully wrapped root handler.
func (a *App) Handler() http.Handler {
	return a.router
}

// Users returns the user store the admin and REST policies read.
func (a *App) Users() storage.UserStore {
	return a.users
}

// Tasks returns the broker dispatcher, or nil when no broker is connected.
func (a *App) Tasks() tasks.Dispatcher {
	return a.dispatcher
}

// Close stops background work and releases the broker and database.
func (a *App) Close() error {
	var err error
	a.stopOnce.Do(func() {
		if a.stop != nil {
			a.stop()
		}
		err = a.closeResources()
	})
	return err
}

func (a *App) closeResources() error {
	var errs []error
	if a.dispatcher != nil {
		if err := a.dispatcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close task broker: %w", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
