// access.go - Origin guard and CORS policy for the browser-facing routes.
package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/cors"
)

// AccessConfig restricts browser access to one allow-listed domain.
//
// By default a request passes when its Origin (or, failing that, Referer)
// header contains AllowedDomain anywhere in the string. That is permissive:
// "https://evil.test/?x=example.ge" passes for "example.ge". Strict
// compares the parsed host against the domain and its subdomains instead.
type AccessConfig struct {
	AllowedDomain string
	CORSOrigin    string
	Strict        bool
}

func (a AccessConfig) originAllowed(r *http.Request) bool {
	declared := r.Header.Get("Origin")
	if declared == "" {
		declared = r.Header.Get("Referer")
	}
	if declared == "" || a.AllowedDomain == "" {
		return false
	}
	if !a.Strict {
		return strings.Contains(declared, a.AllowedDomain)
	}

	u, err := url.Parse(declared)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	domain := strings.ToLower(a.AllowedDomain)
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// originGuard rejects requests from other origins before next runs.
func (a AccessConfig) originGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.originAllowed(r) {
			Warn("origin rejected", map[string]interface{}{
				"rid":     RequestIDFromContext(r.Context()),
				"path":    r.URL.Path,
				"origin":  r.Header.Get("Origin"),
				"referer": r.Referer(),
			})
			writeError(w, http.StatusForbidden, "Access denied")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// corsPolicy answers preflights with 200 and only echoes the configured origin.
func (a AccessConfig) corsPolicy() *cors.Cors {
	origin := a.CORSOrigin
	if origin == "" && a.AllowedDomain != "" {
		origin = "https://" + a.AllowedDomain
	}
	return cors.New(cors.Options{
		AllowedOrigins:       []string{origin},
		AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:       []string{"Content-Type", "X-Request-Id"},
		ExposedHeaders:       []string{"X-Request-Id"},
		OptionsSuccessStatus: http.StatusOK,
	})
}
