package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// SessionStore implements scs.Store on top of the sessions table.
type SessionStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSessionStore wraps an open database handle.
func NewSessionStore(db *sqlx.DB) *SessionStore {
	return &SessionStore{
		db:  db,
		now: time.Now,
	}
}

// Find returns the data for a session token. Expired sessions are not found.
func (s *SessionStore) Find(token string) ([]byte, bool, error) {
	var data []byte
	query := s.db.Rebind(`SELECT data FROM sessions WHERE token = ? AND expiry > ?`)
	err := s.db.QueryRowx(query, token, s.now().Unix()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find session: %w", err)
	}
	return data, true, nil
}

// Commit stores or replaces the session data.
func (s *SessionStore) Commit(token string, b []byte, expiry time.Time) error {
	query := s.db.Rebind(`REPLACE INTO sessions (token, data, expiry) VALUES (?, ?, ?)`)
	if _, err := s.db.Exec(query, token, b, expiry.Unix()); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	return nil
}

// Delete removes the session.
func (s *SessionStore) Delete(token string) error {
	query := s.db.Rebind(`DELETE FROM sessions WHERE token = ?`)
	if _, err := s.db.Exec(query, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpired purges expired sessions and reports how many were removed.
func (s *SessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	query := s.db.Rebind(`DELETE FROM sessions WHERE expiry <= ?`)
	res, err := s.db.ExecContext(ctx, query, s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// RunCleanup purges expired sessions every interval until ctx is done.
func (s *SessionStore) RunCleanup(ctx context.Context, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.DeleteExpired(ctx)
			if err != nil {
				logger.Warn("session cleanup failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Debug("expired sessions removed", zap.Int64("count", n))
			}
		}
	}
}
