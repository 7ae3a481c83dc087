package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/eugenenazirov/alx-travel/internal/config"
)

// CSRFExemptPrefixes are served without the cross-origin guard; the REST
// layer applies its own check to session-authenticated requests.
var CSRFExemptPrefixes = []string{"/api/"}

// debugHosts are accepted when DEBUG is on and no hosts are configured.
var debugHosts = []string{".localhost", "127.0.0.1", "[::1]"}

func allowedHosts(s config.Settings) []string {
	if len(s.AllowedHosts) == 0 && s.Debug {
		return debugHosts
	}
	return s.AllowedHosts
}

// Common validates the Host header and redirects to the slash-terminated
// path when only that form is routed.
func Common(hosts []string, resolver Resolver) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !HostAllowed(r.Host, hosts) {
				http.Error(w, "Bad Request (400)", http.StatusBadRequest)
				return
			}

			if target, ok := appendSlash(r, resolver); ok {
				http.Redirect(w, r, target, http.StatusMovedPermanently)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// HostAllowed matches host against the allow-list. Patterns are "*", an
// exact host, or ".domain" matching the domain and all its subdomains.
// Ports are ignored.
func HostAllowed(hostport string, patterns []string) bool {
	host := hostname(hostport)
	if host == "" {
		return false
	}
	for _, pattern := range patterns {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		switch {
		case pattern == "*":
			return true
		case strings.HasPrefix(pattern, "."):
			if host == pattern[1:] || strings.HasSuffix(host, pattern) {
				return true
			}
		case strings.Trim(pattern, "[]") == host:
			return true
		}
	}
	return false
}

func hostname(hostport string) string {
	host := strings.ToLower(strings.TrimSpace(hostport))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	return strings.TrimSuffix(host, ".")
}

func appendSlash(r *http.Request, resolver Resolver) (string, bool) {
	if resolver == nil {
		return "", false
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return "", false
	}
	path := r.URL.Path
	if strings.HasSuffix(path, "/") || resolver.Resolves(path) || !resolver.Resolves(path+"/") {
		return "", false
	}
	target := path + "/"
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	return target, true
}

// CSRF applies the cross-origin guard except under the exempt prefixes.
func CSRF(origins *http.CrossOriginProtection, exempt ...string) Middleware {
	return func(next http.Handler) http.Handler {
		guarded := origins.Handler(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range exempt {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}
			guarded.ServeHTTP(w, r)
		})
	}
}
