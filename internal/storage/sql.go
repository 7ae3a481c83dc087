package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// userRow mirrors the auth_user table. Timestamps are unix seconds so the
// same schema works on MySQL and SQLite.
type userRow struct {
	ID          int64         `db:"id"`
	Username    string        `db:"username"`
	Email       string        `db:"email"`
	Password    string        `db:"password"`
	IsStaff     bool          `db:"is_staff"`
	IsSuperuser bool          `db:"is_superuser"`
	IsActive    bool          `db:"is_active"`
	DateJoined  int64         `db:"date_joined"`
	LastLogin   sql.NullInt64 `db:"last_login"`
}

const userColumns = `id, username, email, password, is_staff, is_superuser, is_active, date_joined, last_login`

// SQLStorage persists users in the auth_user table.
type SQLStorage struct {
	db *sqlx.DB
}

// NewSQLStorage wraps an open database handle.
func NewSQLStorage(db *sqlx.DB) *SQLStorage {
	return &SQLStorage{db: db}
}

// GetUserByID loads a user by primary key.
func (s *SQLStorage) GetUserByID(ctx context.Context, id int64) (User, error) {
	var row userRow
	query := s.db.Rebind(`SELECT ` + userColumns + ` FROM auth_user WHERE id = ?`)
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		return User{}, mapNotFound(err)
	}
	return row.toUser(), nil
}

// GetUserByUsername loads a user by username.
func (s *SQLStorage) GetUserByUsername(ctx context.Context, username string) (User, error) {
	var row userRow
	query := s.db.Rebind(`SELECT ` + userColumns + ` FROM auth_user WHERE username = ?`)
	if err := s.db.GetContext(ctx, &row, query, username); err != nil {
		return User{}, mapNotFound(err)
	}
	return row.toUser(), nil
}

// CreateUser inserts the user and returns it with its assigned id.
func (s *SQLStorage) CreateUser(ctx context.Context, user User) (User, error) {
	normalized, err := normalizeUser(user)
	if err != nil {
		return User{}, err
	}

	if _, err := s.GetUserByUsername(ctx, normalized.Username); err == nil {
		return User{}, ErrDuplicateUsername
	} else if !errors.Is(err, ErrUserNotFound) {
		return User{}, err
	}

	row := fromUser(normalized)
	query := s.db.Rebind(`INSERT INTO auth_user
		(username, email, password, is_staff, is_superuser, is_active, date_joined, last_login)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	res, err := s.db.ExecContext(ctx, query,
		row.Username, row.Email, row.Password,
		row.IsStaff, row.IsSuperuser, row.IsActive,
		row.DateJoined, row.LastLogin,
	)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return User{}, fmt.Errorf("read user id: %w", err)
	}
	normalized.ID = id
	return normalized, nil
}

// TouchLastLogin records a successful sign-in.
func (s *SQLStorage) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	query := s.db.Rebind(`UPDATE auth_user SET last_login = ? WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, at.UTC().Unix(), id)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ListUsers returns every user ordered by id.
func (s *SQLStorage) ListUsers(ctx context.Context) ([]User, error) {
	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+userColumns+` FROM auth_user ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]User, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toUser())
	}
	return out, nil
}

func (r userRow) toUser() User {
	u := User{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.Password,
		IsStaff:      r.IsStaff,
		IsSuperuser:  r.IsSuperuser,
		IsActive:     r.IsActive,
		DateJoined:   time.Unix(r.DateJoined, 0).UTC(),
	}
	if r.LastLogin.Valid {
		at := time.Unix(r.LastLogin.Int64, 0).UTC()
		u.LastLogin = &at
	}
	return u
}

func fromUser(u User) userRow {
	row := userRow{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Password:    u.PasswordHash,
		IsStaff:     u.IsStaff,
		IsSuperuser: u.IsSuperuser,
		IsActive:    u.IsActive,
		DateJoined:  u.DateJoined.Unix(),
	}
	if u.LastLogin != nil {
		row.LastLogin = sql.NullInt64{Int64: u.LastLogin.Unix(), Valid: true}
	}
	return row
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	return err
}
