// Package checks inspects loaded settings for combinations that load fine
// but cannot work at runtime, such as an admin without sessions or a
// middleware order the request pipeline depends on.
package checks

import (
	"fmt"
	"strings"

	"github.com/eugenenazirov/alx-travel/internal/config"
	"github.com/eugenenazirov/alx-travel/internal/tasks"
)

// Level ranks a check message.
type Level int

const (
	Warning Level = iota + 1
	Error
)

func (l Level) String() string {
	switch l {
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Message is one finding.
type Message struct {
	Level Level
	ID    string
	Text  string
	Hint  string
}

func (m Message) String() string {
	out := fmt.Sprintf("%s: (%s) %s", m.Level, m.ID, m.Text)
	if m.Hint != "" {
		out += "\n\tHINT: " + m.Hint
	}
	return out
}

// HasErrors reports whether any message is an error.
func HasErrors(msgs []Message) bool {
	for _, m := range msgs {
		if m.Level >= Error {
			return true
		}
	}
	return false
}

const minSecretKeyLength = 50

var insecureSecretKeys = map[string]struct{}{
	"your-secret-key-here":      {},
	"django-insecure-change-me": {},
}

// Run executes every check. Deployment checks are included when DEBUG is off.
func Run(s config.Settings) []Message {
	var msgs []Message
	msgs = append(msgs, checkAdmin(s)...)
	msgs = append(msgs, checkMiddlewareOrder(s)...)
	msgs = append(msgs, checkREST(s)...)
	msgs = append(msgs, checkTasks(s)...)
	if !s.Debug {
		msgs = append(msgs, Deploy(s)...)
	}
	return msgs
}

func checkAdmin(s config.Settings) []Message {
	if !s.HasApp(config.AppAdmin) {
		return nil
	}

	var msgs []Message
	for _, dep := range []struct{ app, id string }{
		{config.AppContentTypes, "admin.E401"},
		{config.AppAuth, "admin.E405"},
		{config.AppMessages, "admin.E406"},
		{config.AppSessions, "admin.E407"},
	} {
		if !s.HasApp(dep.app) {
			msgs = append(msgs, Message{
				Level: Error,
				ID:    dep.id,
				Text:  fmt.Sprintf("%q must be in installed apps in order to use the admin application.", dep.app),
			})
		}
	}
	for _, dep := range []struct{ mw, id string }{
		{config.MiddlewareAuthentication, "admin.E408"},
		{config.MiddlewareMessages, "admin.E409"},
		{config.MiddlewareSessions, "admin.E410"},
	} {
		if s.MiddlewareIndex(dep.mw) < 0 {
			msgs = append(msgs, Message{
				Level: Error,
				ID:    dep.id,
				Text:  fmt.Sprintf("%q must be in the middleware chain in order to use the admin application.", dep.mw),
			})
		}
	}
	return msgs
}

// before reports a violation when both names are present and first comes after second.
func before(s config.Settings, first, second, id string, level Level) []Message {
	i, j := s.MiddlewareIndex(first), s.MiddlewareIndex(second)
	if i < 0 || j < 0 || i < j {
		return nil
	}
	return []Message{{
		Level: level,
		ID:    id,
		Text:  fmt.Sprintf("%q middleware must come before %q.", first, second),
		Hint:  "Requests pass the middleware chain in declared order.",
	}}
}

func checkMiddlewareOrder(s config.Settings) []Message {
	var msgs []Message
	msgs = append(msgs, before(s, config.MiddlewareSecurity, config.MiddlewareSessions, "security.W030", Warning)...)
	msgs = append(msgs, before(s, config.MiddlewareCORS, config.MiddlewareCommon, "corsheaders.W001", Warning)...)
	msgs = append(msgs, before(s, config.MiddlewareSessions, config.MiddlewareAuthentication, "auth.E001", Error)...)
	msgs = append(msgs, before(s, config.MiddlewareSessions, config.MiddlewareMessages, "messages.E001", Error)...)
	return msgs
}

func checkREST(s config.Settings) []Message {
	var msgs []Message
	for _, name := range s.RESTFramework.DefaultAuthenticationClasses {
		if name == config.AuthenticationSession && s.MiddlewareIndex(config.MiddlewareSessions) < 0 {
			msgs = append(msgs, Message{
				Level: Error,
				ID:    "rest.E001",
				Text:  "Session authentication is enabled but the sessions middleware is not installed.",
			})
		}
	}
	if s.Swagger.UseSessionAuth && s.MiddlewareIndex(config.MiddlewareSessions) < 0 {
		msgs = append(msgs, Message{
			Level: Warning,
			ID:    "swagger.W001",
			Text:  "Schema UI session login is enabled but sessions are not.",
		})
	}
	if s.HasApp(config.AppStaticFiles) && strings.TrimSpace(s.StaticURL) == "" {
		msgs = append(msgs, Message{
			Level: Error,
			ID:    "staticfiles.E001",
			Text:  "STATIC_URL must be set when static files are enabled.",
		})
	}
	return msgs
}

func checkTasks(s config.Settings) []Message {
	if err := tasks.Validate(s.Celery); err != nil {
		return []Message{{
			Level: Warning,
			ID:    "tasks.W001",
			Text:  fmt.Sprintf("Task queue is unusable: %v.", err),
			Hint:  "The service runs without background tasks.",
		}}
	}
	return nil
}

// Deploy returns the checks that only matter in production.
func Deploy(s config.Settings) []Message {
	var msgs []Message
	if insecureSecretKey(s.SecretKey) {
		msgs = append(msgs, Message{
			Level: Warning,
			ID:    "security.W009",
			Text:  "SECRET_KEY is a placeholder or too weak to sign sessions securely.",
			Hint:  fmt.Sprintf("Use a random value of at least %d characters.", minSecretKeyLength),
		})
	}
	if s.Debug {
		msgs = append(msgs, Message{
			Level: Warning,
			ID:    "security.W018",
			Text:  "DEBUG must not be enabled in deployment.",
		})
	}
	if len(s.AllowedHosts) == 0 {
		msgs = append(msgs, Message{
			Level: Warning,
			ID:    "security.W020",
			Text:  "ALLOWED_HOSTS must not be empty in deployment.",
		})
	}
	return msgs
}

func insecureSecretKey(key string) bool {
	if _, ok := insecureSecretKeys[key]; ok {
		return true
	}
	if strings.HasPrefix(key, "django-insecure-") {
		return true
	}
	unique := map[rune]struct{}{}
	for _, r := range key {
		unique[r] = struct{}{}
	}
	return len(key) < minSecretKeyLength || len(unique) < 5
}
