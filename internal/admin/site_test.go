package admin

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/alx-travel/internal/auth"
	"github.com/eugenenazirov/alx-travel/internal/config"
	"github.com/eugenenazirov/alx-travel/internal/middleware"
	"github.com/eugenenazirov/alx-travel/internal/storage"
)

const password = "correct-horse-battery"

type fixture struct {
	server *httptest.Server
	client *http.Client
	users  *storage.MemoryStorage
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	sessions := scs.New()
	users := storage.NewMemoryStorage()
	logger := zaptest.NewLogger(t)
	settings := config.Defaults(config.ProfileUnified, t.TempDir())

	site, err := New(settings, sessions, users, logger)
	require.NoError(t, err)
	site.now = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }

	h := middleware.Chain(site, []middleware.Middleware{
		sessions.LoadAndSave,
		middleware.Authentication(sessions, users, logger),
		middleware.Messages(sessions),
	})
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &fixture{server: server, client: client, users: users}
}

func (f *fixture) createUser(t *testing.T, username string, staff, superuser bool) storage.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	u, err := f.users.CreateUser(context.Background(), storage.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		IsActive:     true,
		IsStaff:      staff,
		IsSuperuser:  superuser,
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := f.client.Get(f.server.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func (f *fixture) login(t *testing.T, username, pass, next string) (*http.Response, string) {
	t.Helper()
	resp, err := f.client.PostForm(f.server.URL+loginPath, url.Values{
		"username": {username},
		"password": {pass},
		"next":     {next},
	})
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestIndexRedirectsAnonymousToLogin(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.get(t, "/admin/")

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/admin/login/?next=/admin/", resp.Header.Get("Location"))
}

func TestLoginFormRenders(t *testing.T) {
	f := newFixture(t)

	resp, body := f.get(t, "/admin/login/?next=/admin/")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, body, `name="username"`)
	assert.Contains(t, body, `<html lang="en-us">`)
}

func TestLoginRejectsBadCredentialsAndNonStaff(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "guest", false, false)
	f.createUser(t, "staff", true, false)

	for name, creds := range map[string][2]string{
		"wrong password": {"staff", "nope"},
		"unknown user":   {"ghost", password},
		"not staff":      {"guest", password},
	} {
		t.Run(name, func(t *testing.T) {
			resp, body := f.login(t, creds[0], creds[1], "/admin/")
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Contains(t, body, "Please enter the correct username and password for a staff account.")
		})
	}
}

func TestLoginLogoutRoundTrip(t *testing.T) {
	f := newFixture(t)
	staff := f.createUser(t, "staff", true, false)

	resp, _ := f.login(t, "staff", password, "/admin/")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/admin/", resp.Header.Get("Location"))

	resp, body := f.get(t, "/admin/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "<strong>staff</strong>")
	assert.Contains(t, body, "Welcome back, staff.")
	assert.Contains(t, body, "<li>listings</li>")
	assert.NotContains(t, body, `id="users"`)

	_, body = f.get(t, "/admin/")
	assert.NotContains(t, body, "Welcome back, staff.")

	stored, err := f.users.GetUserByID(context.Background(), staff.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLogin)
	assert.True(t, stored.LastLogin.Equal(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)))

	logout, err := f.client.Post(f.server.URL+logoutPath, "application/x-www-form-urlencoded", nil)
	require.NoError(t, err)
	body2, _ := io.ReadAll(logout.Body)
	logout.Body.Close()
	assert.Equal(t, http.StatusOK, logout.StatusCode)
	assert.Contains(t, string(body2), "Logged out")

	resp, _ = f.get(t, "/admin/")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestLoggedInStaffSkipsLoginForm(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "staff", true, false)

	resp, _ := f.login(t, "staff", password, "/admin/")
	require.Equal(t, http.StatusFound, resp.StatusCode)

	resp, _ = f.get(t, "/admin/login/?next=/admin/")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/admin/", resp.Header.Get("Location"))
}

func TestSuperuserSeesUsers(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "root", true, true)
	f.createUser(t, "guest", false, false)

	resp, _ := f.login(t, "root", password, "")
	require.Equal(t, http.StatusFound, resp.StatusCode)

	_, body := f.get(t, "/admin/")
	assert.Contains(t, body, `id="users"`)
	assert.Contains(t, body, "guest@example.com")
}

func TestUnknownAdminPath(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "staff", true, false)

	resp, _ := f.get(t, "/admin/listings/listing/")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), "/admin/login/?next=/admin/listings/listing/"))

	_, _ = f.login(t, "staff", password, "/admin/")
	resp, _ = f.get(t, "/admin/listings/listing/")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSafeNext(t *testing.T) {
	cases := map[string]string{
		"":                     "/admin/",
		"/admin/":              "/admin/",
		"/swagger/":            "/swagger/",
		"https://evil.example": "/admin/",
		"//evil.example":       "/admin/",
		`/\evil.example`:       "/admin/",
	}
	for in, want := range cases {
		assert.Equal(t, want, safeNext(in), in)
	}
}

func TestNewRequiresStores(t *testing.T) {
	_, err := New(config.Settings{}, nil, storage.NewMemoryStorage(), nil)
	require.Error(t, err)
}
