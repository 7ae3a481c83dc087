package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/alexedwards/scs/v2"

	"github.com/eugenenazirov/alx-travel/internal/storage"
)

// SessionUserKey is the session key holding the signed-in user id.
const SessionUserKey = "_auth_user_id"

type contextKey string

const userContextKey contextKey = "user"

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, user *storage.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext returns the authenticated user, or nil for anonymous requests.
func UserFromContext(ctx context.Context) *storage.User {
	if u, ok := ctx.Value(userContextKey).(*storage.User); ok {
		return u
	}
	return nil
}

// Authenticate checks a username/password pair against the store.
// Inactive users never authenticate.
func Authenticate(ctx context.Context, users storage.UserStore, username, password string) (storage.User, error) {
	user, err := users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return storage.User{}, ErrInvalidCredentials
		}
		return storage.User{}, err
	}
	if !user.IsActive || !CheckPassword(user.PasswordHash, password) {
		return storage.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// Login binds the user to the current session, rotating the token.
func Login(ctx context.Context, sessions *scs.SessionManager, user storage.User) error {
	if err := sessions.RenewToken(ctx); err != nil {
		return fmt.Errorf("renew session token: %w", err)
	}
	sessions.Put(ctx, SessionUserKey, user.ID)
	return nil
}

// Logout discards the session entirely.
func Logout(ctx context.Context, sessions *scs.SessionManager) error {
	if err := sessions.Destroy(ctx); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}

// SessionUser resolves the user bound to the session, if any.
func SessionUser(r *http.Request, sessions *scs.SessionManager, users storage.UserStore) (*storage.User, error) {
	ctx := r.Context()
	if !sessions.Exists(ctx, SessionUserKey) {
		return nil, nil
	}
	id := sessions.GetInt64(ctx, SessionUserKey)
	user, err := users.GetUserByID(ctx, id)
	if errors.Is(err, storage.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, nil
	}
	return &user, nil
}
