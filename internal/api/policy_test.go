package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/alx-travel/internal/auth"
	"github.com/eugenenazirov/alx-travel/internal/config"
	"github.com/eugenenazirov/alx-travel/internal/storage"
)

func seedUser(t *testing.T, users storage.UserStore, username, password string, staff bool) {
	t.Helper()

	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if _, err := users.CreateUser(context.Background(), storage.User{
		Username:     username,
		PasswordHash: hash,
		IsActive:     true,
		IsStaff:      staff,
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}
}

func TestRESTPolicyAllowAnyPassesAnonymous(t *testing.T) {
	router := newTestRouter(t, testDependencies(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/listings/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected anonymous request to pass, got %d", rec.Code)
	}
}

func TestRESTPolicyForbidsAnonymousWithSessionFirst(t *testing.T) {
	deps := testDependencies(t)
	deps.Settings.RESTFramework.DefaultPermissionClasses = []string{config.PermissionIsAuthenticated}
	deps.Settings.RESTFramework.DefaultAuthenticationClasses = []string{config.AuthenticationSession, config.AuthenticationBasic}
	router := newTestRouter(t, deps)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/listings/", nil))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if got := rec.Header().Get("WWW-Authenticate"); got != "" {
		t.Fatalf("expected no challenge header, got %q", got)
	}
	if got := decodeDetail(t, rec); got != detailNotAuthenticated {
		t.Fatalf("unexpected detail %q", got)
	}
}

func TestRESTPolicyChallengesAnonymousWithBasicFirst(t *testing.T) {
	deps := testDependencies(t)
	deps.Settings.RESTFramework.DefaultPermissionClasses = []string{config.PermissionIsAuthenticated}
	deps.Settings.RESTFramework.DefaultAuthenticationClasses = []string{config.AuthenticationBasic, config.AuthenticationSession}
	router := newTestRouter(t, deps)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/listings/", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if got := rec.Header().Get("WWW-Authenticate"); got != `Basic realm="api"` {
		t.Fatalf("unexpected challenge %q", got)
	}
	if got := decodeDetail(t, rec); got != detailNotAuthenticated {
		t.Fatalf("unexpected detail %q", got)
	}
}

func TestRESTPolicyForbidsAnonymousWithoutChallenge(t *testing.T) {
	deps := testDependencies(t)
	deps.Settings.RESTFramework.DefaultPermissionClasses = []string{config.PermissionIsAuthenticated}
	deps.Settings.RESTFramework.DefaultAuthenticationClasses = []string{config.AuthenticationSession}
	router := newTestRouter(t, deps)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/listings/", nil))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") != "" {
		t.Fatalf("expected no challenge header")
	}
}

func TestRESTPolicyBasicCredentials(t *testing.T) {
	deps := testDependencies(t)
	deps.Settings.RESTFramework.DefaultPermissionClasses = []string{config.PermissionIsAuthenticated}
	seedUser(t, deps.Users, "traveller", "s3cure-passphrase", false)
	router := newTestRouter(t, deps)

	req := httptest.NewRequest(http.MethodGet, "/api/listings/", nil)
	req.SetBasicAuth("traveller", "s3cure-passphrase")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.HasSuffix(rec.Body.String(), "as traveller") {
		t.Fatalf("expected user in listings context, got %q", rec.Body.String())
	}

	bad := httptest.NewRequest(http.MethodGet, "/api/listings/", nil)
	bad.SetBasicAuth("traveller", "wrong")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, bad)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for bad credentials, got %d", rec.Code)
	}
	if got := decodeDetail(t, rec); got != detailInvalidLogin {
		t.Fatalf("unexpected detail %q", got)
	}
}

func TestRESTPolicyBadCredentialsFailEvenWhenAllowAny(t *testing.T) {
	deps := testDependencies(t)
	router := newTestRouter(t, deps)

	req := httptest.NewRequest(http.MethodGet, "/api/listings/", nil)
	req.SetBasicAuth("ghost", "whatever")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRESTPolicyAdminOnly(t *testing.T) {
	deps := testDependencies(t)
	deps.Settings.RESTFramework.DefaultPermissionClasses = []string{config.PermissionIsAdminUser}
	seedUser(t, deps.Users, "guest", "s3cure-passphrase", false)
	seedUser(t, deps.Users, "staff", "s3cure-passphrase", true)
	router := newTestRouter(t, deps)

	for user, want := range map[string]int{"guest": http.StatusForbidden, "staff": http.StatusOK} {
		req := httptest.NewRequest(http.MethodGet, "/api/listings/", nil)
		req.SetBasicAuth(user, "s3cure-passphrase")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != want {
			t.Fatalf("%s: expected %d, got %d", user, want, rec.Code)
		}
	}
}

func TestRESTPolicyReadOnlyForAnonymous(t *testing.T) {
	deps := testDependencies(t)
	deps.Settings.RESTFramework.DefaultPermissionClasses = []string{config.PermissionIsAuthenticatedOrReadOnly}
	router := newTestRouter(t, deps)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/listings/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected GET to pass, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/listings/", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected POST to be rejected, got %d", rec.Code)
	}
}

type stubAuthenticator struct {
	user *storage.User
	err  error
}

func (s stubAuthenticator) Authenticate(*http.Request) (*storage.User, error) { return s.user, s.err }
func (stubAuthenticator) Challenge() string                                   { return "" }

func TestRESTPolicyMapsAuthenticationErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   int
		wantDetail string
	}{
		{name: "csrf", err: auth.ErrCSRFFailed, wantCode: http.StatusForbidden, wantDetail: detailCSRFFailed},
		{name: "bad login", err: auth.ErrAuthenticationFailed, wantCode: http.StatusForbidden, wantDetail: detailInvalidLogin},
		{name: "store failure", err: context.DeadlineExceeded, wantCode: http.StatusInternalServerError, wantDetail: "A server error occurred."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := &restPolicy{
				authenticators: []auth.Authenticator{stubAuthenticator{err: tc.err}},
				permissions:    []auth.Permission{auth.AllowAny{}},
				logger:         zaptest.NewLogger(t),
			}
			h := p.middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				t.Fatalf("handler must not run")
			}))

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/listings/", nil))

			if rec.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, rec.Code)
			}
			if got := decodeDetail(t, rec); got != tc.wantDetail {
				t.Fatalf("unexpected detail %q", got)
			}
		})
	}
}

func TestRESTPolicyFirstAuthenticatorWins(t *testing.T) {
	p := &restPolicy{
		authenticators: []auth.Authenticator{
			stubAuthenticator{},
			stubAuthenticator{user: &storage.User{Username: "second"}},
			stubAuthenticator{err: auth.ErrAuthenticationFailed},
		},
		logger: zaptest.NewLogger(t),
	}

	user, err := p.authenticate(httptest.NewRequest(http.MethodGet, "/api/", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user == nil || user.Username != "second" {
		t.Fatalf("expected second authenticator's user, got %+v", user)
	}
}

func TestNewRESTPolicyRejectsUnknownNames(t *testing.T) {
	_, err := newRESTPolicy(config.RESTFramework{DefaultPermissionClasses: []string{"nobody"}}, auth.PolicyDeps{}, zaptest.NewLogger(t))
	if err == nil {
		t.Fatalf("expected error for unknown permission")
	}
}
