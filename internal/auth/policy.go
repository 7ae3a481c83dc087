package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/alexedwards/scs/v2"

	"github.com/eugenenazirov/alx-travel/internal/config"
	"github.com/eugenenazirov/alx-travel/internal/storage"
)

var (
	// ErrAuthenticationFailed means credentials were supplied but rejected.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrCSRFFailed means a session-authenticated unsafe request came cross-origin.
	ErrCSRFFailed = errors.New("CSRF failed")
)

// Authenticator extracts a user from a request. It returns (nil, nil) when
// the request carries no credentials for this scheme.
type Authenticator interface {
	Authenticate(r *http.Request) (*storage.User, error)
	// Challenge is the WWW-Authenticate value, or "" when the scheme has none.
	Challenge() string
}

// Permission decides whether a request may proceed.
type Permission interface {
	HasPermission(r *http.Request, user *storage.User) bool
}

// OriginChecker rejects cross-origin unsafe requests.
type OriginChecker interface {
	Check(r *http.Request) error
}

// PolicyDeps carries what the named policies need.
type PolicyDeps struct {
	Sessions *scs.SessionManager
	Users    storage.UserStore
	Origins  OriginChecker
}

// NewAuthenticators maps configured names to authenticators, in order.
func NewAuthenticators(names []string, deps PolicyDeps) ([]Authenticator, error) {
	out := make([]Authenticator, 0, len(names))
	for _, name := range names {
		switch name {
		case config.AuthenticationSession:
			if deps.Sessions == nil {
				return nil, fmt.Errorf("authentication class %q requires the sessions middleware", name)
			}
			out = append(out, SessionAuthenticator{sessions: deps.Sessions, users: deps.Users, origins: deps.Origins})
		case config.AuthenticationBasic:
			out = append(out, BasicAuthenticator{users: deps.Users, realm: "api"})
		default:
			return nil, fmt.Errorf("unknown authentication class %q", name)
		}
	}
	return out, nil
}

// NewPermissions maps configured names to permissions, in order.
func NewPermissions(names []string) ([]Permission, error) {
	out := make([]Permission, 0, len(names))
	for _, name := range names {
		switch name {
		case config.PermissionAllowAny:
			out = append(out, AllowAny{})
		case config.PermissionIsAuthenticated:
			out = append(out, IsAuthenticated{})
		case config.PermissionIsAdminUser:
			out = append(out, IsAdminUser{})
		case config.PermissionIsAuthenticatedOrReadOnly:
			out = append(out, IsAuthenticatedOrReadOnly{})
		default:
			return nil, fmt.Errorf("unknown permission class %q", name)
		}
	}
	return out, nil
}

// SessionAuthenticator trusts the user bound to the session cookie. Unsafe
// methods must also pass the origin check.
type SessionAuthenticator struct {
	sessions *scs.SessionManager
	users    storage.UserStore
	origins  OriginChecker
}

func (a SessionAuthenticator) Authenticate(r *http.Request) (*storage.User, error) {
	user, err := SessionUser(r, a.sessions, a.users)
	if err != nil || user == nil {
		return nil, err
	}
	if a.origins != nil {
		if err := a.origins.Check(r); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCSRFFailed, err)
		}
	}
	return user, nil
}

func (SessionAuthenticator) Challenge() string { return "" }

// BasicAuthenticator reads HTTP Basic credentials.
type BasicAuthenticator struct {
	users storage.UserStore
	realm string
}

func (a BasicAuthenticator) Authenticate(r *http.Request) (*storage.User, error) {
	username, password, ok := r.BasicAuth()
	if !ok {
		return nil, nil
	}
	user, err := Authenticate(r.Context(), a.users, username, password)
	if errors.Is(err, ErrInvalidCredentials) {
		return nil, fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (a BasicAuthenticator) Challenge() string {
	return fmt.Sprintf("Basic realm=%q", a.realm)
}

// AllowAny lets every request through.
type AllowAny struct{}

func (AllowAny) HasPermission(*http.Request, *storage.User) bool { return true }

// IsAuthenticated requires a signed-in user.
type IsAuthenticated struct{}

func (IsAuthenticated) HasPermission(_ *http.Request, user *storage.User) bool {
	return user != nil
}

// IsAdminUser requires a staff user.
type IsAdminUser struct{}

func (IsAdminUser) HasPermission(_ *http.Request, user *storage.User) bool {
	return user != nil && user.IsStaff
}

// IsAuthenticatedOrReadOnly allows safe methods to anyone.
type IsAuthenticatedOrReadOnly struct{}

func (IsAuthenticatedOrReadOnly) HasPermission(r *http.Request, user *storage.User) bool {
	return isSafeMethod(r.Method) || user != nil
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}
