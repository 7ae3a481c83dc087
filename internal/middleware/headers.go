package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// Security sets the baseline hardening headers.
func Security(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "same-origin")
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}

// Clickjacking forbids framing unless a handler already chose a policy.
func Clickjacking(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if w.Header().Get("X-Frame-Options") == "" {
			w.Header().Set("X-Frame-Options", "DENY")
		}
		next.ServeHTTP(w, r)
	})
}

// CORS answers preflight requests and tags responses for allowed origins.
// Access-Control-Allow-Credentials is only sent when allowCredentials is set.
// An empty allow-list admits no origin.
func CORS(allowedOrigins []string, allowCredentials bool) Middleware {
	var allowNone func(string) bool
	if len(allowedOrigins) == 0 {
		allowNone = func(string) bool { return false }
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowOriginFunc:  allowNone,
		AllowCredentials: allowCredentials,
		AllowedMethods: []string{
			http.MethodDelete,
			http.MethodGet,
			http.MethodOptions,
			http.MethodPatch,
			http.MethodPost,
			http.MethodPut,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"User-Agent",
			"X-CSRFToken",
			"X-Requested-With",
		},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         86400,
	})
	return c.Handler
}
