package middleware

import (
	"context"
	"encoding/gob"
	"errors"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/alx-travel/internal/auth"
	"github.com/eugenenazirov/alx-travel/internal/storage"
)

// Authentication resolves the session user into the request context.
func Authentication(sessions *scs.SessionManager, users storage.UserStore, logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := auth.SessionUser(r, sessions, users)
			if err != nil {
				logger.Warn("session user lookup failed", zap.Error(err))
			}
			if user != nil {
				r = r.WithContext(auth.WithUser(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Level classifies a flash message.
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Message is a one-shot notice shown on the next rendered page.
type Message struct {
	Level Level
	Text  string
}

// ErrMessagesDisabled is returned when the messages middleware is not installed.
var ErrMessagesDisabled = errors.New("messages middleware is not installed")

const messagesSessionKey = "_messages"

type messagesKey struct{}

func init() {
	gob.Register([]Message{})
}

// Messages enables flash messages for downstream handlers.
func Messages(sessions *scs.SessionManager) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), messagesKey{}, sessions)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AddMessage queues a message for the next page the client renders.
func AddMessage(r *http.Request, level Level, text string) error {
	sessions, ok := r.Context().Value(messagesKey{}).(*scs.SessionManager)
	if !ok {
		return ErrMessagesDisabled
	}
	queued, _ := sessions.Get(r.Context(), messagesSessionKey).([]Message)
	queued = append(queued, Message{Level: level, Text: text})
	sessions.Put(r.Context(), messagesSessionKey, queued)
	return nil
}

// PopMessages returns and clears the queued messages.
func PopMessages(r *http.Request) []Message {
	sessions, ok := r.Context().Value(messagesKey{}).(*scs.SessionManager)
	if !ok {
		return nil
	}
	queued, _ := sessions.Pop(r.Context(), messagesSessionKey).([]Message)
	return queued
}
