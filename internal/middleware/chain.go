// Package middleware turns the ordered middleware names from the settings
// into nested http.Handlers. The first name wraps outermost: requests pass
// the chain in declared order and responses unwind in reverse.
package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/alx-travel/internal/config"
	"github.com/eugenenazirov/alx-travel/internal/storage"
)

// ErrMissingDependency is returned when a named middleware cannot be built
// from the supplied dependencies.
var ErrMissingDependency = errors.New("middleware dependency missing")

var errUnknownMiddleware = errors.New("unknown middleware")

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// Resolver reports whether a path is routed by the application.
type Resolver interface {
	Resolves(path string) bool
}

// Deps carries everything the named middleware may need.
type Deps struct {
	Settings config.Settings
	Sessions *scs.SessionManager
	Users    storage.UserStore
	Origins  *http.CrossOriginProtection
	Resolver Resolver
	Logger   *zap.Logger
}

// Build returns the middleware for each name, preserving order.
func Build(names []string, deps Deps) ([]Middleware, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	out := make([]Middleware, 0, len(names))
	for _, name := range names {
		mw, err := build(name, deps)
		if err != nil {
			return nil, fmt.Errorf("middleware %q: %w", name, err)
		}
		out = append(out, mw)
	}
	return out, nil
}

func build(name string, deps Deps) (Middleware, error) {
	switch name {
	case config.MiddlewareSecurity:
		return Security, nil
	case config.MiddlewareSessions:
		if deps.Sessions == nil {
			return nil, ErrMissingDependency
		}
		return deps.Sessions.LoadAndSave, nil
	case config.MiddlewareCORS:
		return CORS(deps.Settings.CORSAllowedOrigins, deps.Settings.CORSAllowCredentials), nil
	case config.MiddlewareCommon:
		return Common(allowedHosts(deps.Settings), deps.Resolver), nil
	case config.MiddlewareCSRF:
		if deps.Origins == nil {
			return nil, ErrMissingDependency
		}
		return CSRF(deps.Origins, CSRFExemptPrefixes...), nil
	case config.MiddlewareAuthentication:
		if deps.Sessions == nil || deps.Users == nil {
			return nil, ErrMissingDependency
		}
		return Authentication(deps.Sessions, deps.Users, deps.Logger), nil
	case config.MiddlewareMessages:
		if deps.Sessions == nil {
			return nil, ErrMissingDependency
		}
		return Messages(deps.Sessions), nil
	case config.MiddlewareClickjacking:
		return Clickjacking, nil
	default:
		return nil, errUnknownMiddleware
	}
}

// Chain wraps h so that mws[0] sees the request first.
func Chain(h http.Handler, mws []Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// NewOriginProtection builds the cross-origin guard with the trusted origins.
func NewOriginProtection(trusted []string) (*http.CrossOriginProtection, error) {
	p := http.NewCrossOriginProtection()
	for _, origin := range trusted {
		if err := p.AddTrustedOrigin(origin); err != nil {
			return nil, fmt.Errorf("trusted origin %q: %w", origin, err)
		}
	}
	return p, nil
}
