// Package admin serves the staff-only administration pages under /admin/.
package admin

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/alx-travel/internal/auth"
	"github.com/eugenenazirov/alx-travel/internal/config"
	"github.com/eugenenazirov/alx-travel/internal/middleware"
	"github.com/eugenenazirov/alx-travel/internal/storage"
)

const (
	loginPath  = "/admin/login/"
	logoutPath = "/admin/logout/"
	indexPath  = "/admin/"

	siteTitle  = "Travel site admin"
	siteHeader = "Travel administration"

	invalidLogin = "Please enter the correct username and password for a staff account. Note that both fields may be case-sensitive."
)

// Site is the admin handler group.
type Site struct {
	sessions  *scs.SessionManager
	users     storage.UserStore
	settings  config.Settings
	logger    *zap.Logger
	templates map[string]*template.Template
	mux       *http.ServeMux
	now       func() time.Time
}

// New builds the admin site. The sessions and users stores are required.
func New(settings config.Settings, sessions *scs.SessionManager, users storage.UserStore, logger *zap.Logger) (*Site, error) {
	if sessions == nil || users == nil {
		return nil, errors.New("admin requires a session manager and a user store")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	templates, err := newTemplateCache()
	if err != nil {
		return nil, fmt.Errorf("parse admin templates: %w", err)
	}

	s := &Site{
		sessions:  sessions,
		users:     users,
		settings:  settings,
		logger:    logger,
		templates: templates,
		mux:       http.NewServeMux(),
		now:       time.Now,
	}
	s.mux.HandleFunc("GET "+loginPath, s.handleLoginForm)
	s.mux.HandleFunc("POST "+loginPath, s.handleLogin)
	s.mux.HandleFunc(logoutPath, s.handleLogout)
	s.mux.HandleFunc("GET "+indexPath+"{$}", s.requireStaff(s.handleIndex))
	s.mux.HandleFunc(indexPath, s.requireStaff(http.NotFound))
	return s, nil
}

func (s *Site) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type pageData struct {
	Lang       string
	SiteTitle  string
	SiteHeader string
	User       *storage.User
	Messages   []middleware.Message

	Error    string
	Next     string
	Username string
	Apps     []string
	Users    []storage.User
}

func (s *Site) page(r *http.Request) pageData {
	return pageData{
		Lang:       s.settings.LanguageCode,
		SiteTitle:  siteTitle,
		SiteHeader: siteHeader,
		User:       auth.UserFromContext(r.Context()),
		Messages:   middleware.PopMessages(r),
	}
}

func (s *Site) render(w http.ResponseWriter, status int, name string, data pageData) {
	var buf bytes.Buffer
	if err := s.templates[name].ExecuteTemplate(&buf, "base", data); err != nil {
		s.logger.Error("admin template failed", zap.String("template", name), zap.Error(err))
		http.Error(w, "A server error occurred.", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// requireStaff redirects anonymous and non-staff users to the login page.
func (s *Site) requireStaff(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := auth.UserFromContext(r.Context())
		if user == nil || !user.IsActive || !user.IsStaff {
			target := loginPath + "?next=" + strings.ReplaceAll(url.QueryEscape(r.URL.RequestURI()), "%2F", "/")
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
		next(w, r)
	}
}

func (s *Site) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	next := safeNext(r.URL.Query().Get("next"))
	if user := auth.UserFromContext(r.Context()); user != nil && user.IsStaff {
		http.Redirect(w, r, next, http.StatusFound)
		return
	}
	data := s.page(r)
	data.Next = next
	s.render(w, http.StatusOK, "login", data)
}

func (s *Site) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request (400)", http.StatusBadRequest)
		return
	}
	username := strings.TrimSpace(r.PostForm.Get("username"))
	next := safeNext(r.PostForm.Get("next"))

	user, err := auth.Authenticate(r.Context(), s.users, username, r.PostForm.Get("password"))
	if err == nil && !user.IsStaff {
		err = auth.ErrInvalidCredentials
	}
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			s.logger.Error("admin login failed", zap.Error(err))
			http.Error(w, "A server error occurred.", http.StatusInternalServerError)
			return
		}
		data := s.page(r)
		data.Error = invalidLogin
		data.Next = next
		data.Username = username
		s.render(w, http.StatusOK, "login", data)
		return
	}

	if err := auth.Login(r.Context(), s.sessions, user); err != nil {
		s.logger.Error("admin session login failed", zap.Error(err))
		http.Error(w, "A server error occurred.", http.StatusInternalServerError)
		return
	}
	if err := s.users.TouchLastLogin(r.Context(), user.ID, s.now().UTC()); err != nil {
		s.logger.Warn("record last login", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	if err := middleware.AddMessage(r, middleware.LevelSuccess, "Welcome back, "+user.Username+"."); err != nil {
		s.logger.Debug("login message dropped", zap.Error(err))
	}
	s.logger.Info("admin login", zap.String("username", user.Username))
	http.Redirect(w, r, next, http.StatusFound)
}

func (s *Site) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := auth.Logout(r.Context(), s.sessions); err != nil {
		s.logger.Error("admin logout failed", zap.Error(err))
		http.Error(w, "A server error occurred.", http.StatusInternalServerError)
		return
	}
	s.render(w, http.StatusOK, "logged_out", pageData{
		Lang:       s.settings.LanguageCode,
		SiteTitle:  siteTitle,
		SiteHeader: siteHeader,
	})
}

func (s *Site) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := s.page(r)
	data.Apps = s.settings.InstalledApps
	if data.User.IsSuperuser {
		users, err := s.users.ListUsers(r.Context())
		if err != nil {
			s.logger.Error("list users", zap.Error(err))
			http.Error(w, "A server error occurred.", http.StatusInternalServerError)
			return
		}
		data.Users = users
	}
	s.render(w, http.StatusOK, "index", data)
}

// safeNext only follows local absolute paths.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return indexPath
	}
	return next
}
