package api

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/eugenenazirov/alx-travel/internal/auth"
	"github.com/eugenenazirov/alx-travel/internal/config"
	"github.com/eugenenazirov/alx-travel/internal/storage"
)

const (
	detailNotAuthenticated = "Authentication credentials were not provided."
	detailInvalidLogin     = "Invalid username/password."
	detailCSRFFailed       = "CSRF Failed: Origin checking failed - request is cross-origin."
	detailPermissionDenied = "You do not have permission to perform this action."
)

// restPolicy applies the configured REST authentication and permission
// classes to every request under /api/.
type restPolicy struct {
	authenticators []auth.Authenticator
	permissions    []auth.Permission
	challenge      string
	logger         *zap.Logger
}

func newRESTPolicy(cfg config.RESTFramework, deps auth.PolicyDeps, logger *zap.Logger) (*restPolicy, error) {
	authenticators, err := auth.NewAuthenticators(cfg.DefaultAuthenticationClasses, deps)
	if err != nil {
		return nil, fmt.Errorf("rest authentication: %w", err)
	}
	permissions, err := auth.NewPermissions(cfg.DefaultPermissionClasses)
	if err != nil {
		return nil, fmt.Errorf("rest permissions: %w", err)
	}

	p := &restPolicy{
		authenticators: authenticators,
		permissions:    permissions,
		logger:         logger,
	}
	// Only the first authenticator decides between a 401 challenge and a 403.
	if len(authenticators) > 0 {
		p.challenge = authenticators[0].Challenge()
	}
	return p, nil
}

func (p *restPolicy) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := p.authenticate(r)
		if err != nil {
			p.reject(w, err)
			return
		}
		if user != nil {
			r = r.WithContext(auth.WithUser(r.Context(), user))
		}

		for _, perm := range p.permissions {
			if perm.HasPermission(r, user) {
				continue
			}
			if user == nil {
				p.unauthorized(w, detailNotAuthenticated)
				return
			}
			writeError(w, http.StatusForbidden, detailPermissionDenied)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authenticate returns the first user any authenticator accepts. An
// authenticator that finds bad credentials ends the search.
func (p *restPolicy) authenticate(r *http.Request) (*storage.User, error) {
	for _, a := range p.authenticators {
		user, err := a.Authenticate(r)
		if err != nil {
			return nil, err
		}
		if user != nil {
			return user, nil
		}
	}
	return nil, nil
}

func (p *restPolicy) reject(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrAuthenticationFailed):
		p.unauthorized(w, detailInvalidLogin)
	case errors.Is(err, auth.ErrCSRFFailed):
		writeError(w, http.StatusForbidden, detailCSRFFailed)
	default:
		p.logger.Error("rest authentication failed", zap.Error(err))
		writeInternalError(w)
	}
}

func (p *restPolicy) unauthorized(w http.ResponseWriter, detail string) {
	if p.challenge == "" {
		writeError(w, http.StatusForbidden, detail)
		return
	}
	w.Header().Set("WWW-Authenticate", p.challenge)
	writeError(w, http.StatusUnauthorized, detail)
}
