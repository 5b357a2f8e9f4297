package middleware

import (
	"net/http"
	"strings"
)

// DefaultMaxRequestSize bounds request bodies. Chat messages are capped far below it.
const DefaultMaxRequestSize int64 = 1 << 20

// SecurityHeaders sets the API's security headers. HSTS is only sent over TLS.
func SecurityHeaders(enableHSTS bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Content-Security-Policy", "default-src 'none'")
			if enableHSTS && r.TLS != nil {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MaxRequestSize rejects bodies over maxBytes
func MaxRequestSize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestSize
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				respondError(w, http.StatusRequestEntityTooLarge, "Request body too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// ContentType requires JSON on requests that carry a body.
// Bodyless POSTs such as the digest trigger pass through.
func ContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPatch, http.MethodPut:
			if r.ContentLength == 0 {
				break
			}
			if msg := checkJSON(r.Header.Get("Content-Type")); msg != "" {
				respondError(w, http.StatusUnsupportedMediaType, msg)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// checkJSON returns a client message when contentType is not JSON.
func checkJSON(contentType string) string {
	if contentType == "" {
		return "Content-Type header is required"
	}
	if !strings.HasPrefix(strings.ToLower(contentType), "application/json") {
		return "Content-Type must be application/json"
	}
	return ""
}
