// Package api implements the bridge between the editor page and the controller.
package api

import (
	"crypto/subtle"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// TokenCookie carries the auth token for requests that cannot set headers,
// such as EventSource streams.
const TokenCookie = "ansuz_token"

// AuthMiddleware returns middleware that validates a Bearer token.
// If enabled is false, all requests pass through (disabled mode).
// If enabled is true, requests must carry "Authorization: Bearer <token>" or
// the TokenCookie cookie.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			if !ValidToken(r, token) {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ValidToken reports whether r carries token in its Authorization header or
// auth cookie.
func ValidToken(r *http.Request, token string) bool {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return tokenEqual(strings.TrimPrefix(auth, "Bearer "), token)
	}
	if c, err := r.Cookie(TokenCookie); err == nil {
		return tokenEqual(c.Value, token)
	}
	return false
}

func tokenEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// HostGuard rejects requests whose Host header is not a loopback name or
// one of allowed. Pages served from a rebound DNS name never match.
func HostGuard(allowed ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !hostAllowed(r.Host, allowed) {
				writeJSON(w, http.StatusForbidden, errorBody("forbidden host"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hostAllowed(hostport string, allowed []string) bool {
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		host = hostport
	}
	host = strings.Trim(host, "[]")
	if strings.EqualFold(host, "localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return true
	}
	for _, a := range allowed {
		if strings.EqualFold(host, a) {
			return true
		}
	}
	return false
}

// SameOrigin rejects requests sent by pages of another origin, judged by
// the Sec-Fetch-Site and Origin headers when the browser supplies them.
func SameOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Sec-Fetch-Site") {
		case "", "same-origin", "none":
		default:
			writeJSON(w, http.StatusForbidden, errorBody("cross-origin request"))
			return
		}
		if origin := r.Header.Get("Origin"); origin != "" {
			u, err := url.Parse(origin)
			if err != nil || !strings.EqualFold(u.Host, r.Host) {
				writeJSON(w, http.StatusForbidden, errorBody("cross-origin request"))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireJSON answers 415 to state-changing requests that are not
// application/json. Browsers cannot send JSON across origins without a
// preflight, which this server never grants.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead && !isJSON(r) {
			writeJSON(w, http.StatusUnsupportedMediaType, errorBody(errUnsupportedMedia.Error()))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}
