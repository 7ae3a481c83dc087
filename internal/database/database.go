// Package database opens the single active database described by the
// settings and applies the tables the service shell owns.
package database

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/eugenenazirov/alx-travel/internal/config"
)

// ErrUnsupportedEngine is returned for descriptors with an unknown engine.
var ErrUnsupportedEngine = errors.New("unsupported database engine")

const (
	driverMySQL  = "mysql"
	driverSQLite = "sqlite"

	defaultWaitTimeout = 30 * time.Second
)

// OpenOption configures Open.
type OpenOption func(*openConfig)

type openConfig struct {
	waitTimeout time.Duration
}

// WithWaitTimeout bounds how long Open retries the initial ping.
func WithWaitTimeout(d time.Duration) OpenOption {
	return func(cfg *openConfig) {
		cfg.waitTimeout = d
	}
}

// DSN returns the driver name and data source name for the descriptor.
func DSN(db config.Database) (driver, dsn string, err error) {
	switch db.Engine {
	case config.EngineMySQL:
		cfg := mysql.NewConfig()
		cfg.User = db.User
		cfg.Passwd = db.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(db.Host, db.Port)
		cfg.DBName = db.Name
		cfg.ParseTime = true
		if db.SQLMode != "" {
			cfg.Params = map[string]string{"sql_mode": db.SQLMode}
		}
		return driverMySQL, cfg.FormatDSN(), nil
	case config.EngineSQLite:
		u := url.URL{
			Scheme:   "file",
			Path:     db.Name,
			RawQuery: "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		}
		return driverSQLite, u.String(), nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedEngine, db.Engine)
	}
}

// Open connects to the configured database and waits until it answers a
// ping, retrying with exponential backoff.
func Open(ctx context.Context, db config.Database, logger *zap.Logger, opts ...OpenOption) (*sqlx.DB, error) {
	cfg := openConfig{waitTimeout: defaultWaitTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	driver, dsn, err := DSN(db)
	if err != nil {
		return nil, err
	}

	conn, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if db.Engine == config.EngineSQLite {
		// sqlite serializes writers
		conn.SetMaxOpenConns(1)
	}

	if err := waitForDB(ctx, conn, cfg.waitTimeout, logger); err != nil {
		_ = conn.Close()
		return nil, err
	}

	logger.Info("database ready",
		zap.String("engine", string(db.Engine)),
		zap.String("name", db.Name),
	)
	return conn, nil
}

func waitForDB(ctx context.Context, conn *sqlx.DB, timeout time.Duration, logger *zap.Logger) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	policy.MaxElapsedTime = timeout

	ping := func() error {
		return conn.PingContext(ctx)
	}
	notify := func(err error, next time.Duration) {
		logger.Warn("database not ready yet", zap.Error(err), zap.Duration("retry_in", next))
	}

	if err := backoff.RetryNotify(ping, backoff.WithContext(policy, ctx), notify); err != nil {
		return fmt.Errorf("database did not become ready within %s: %w", timeout, err)
	}
	return nil
}
