// security.go - Security headers for served files and JSON.
package server

import "net/http"

// securityHeadersMiddleware adds security headers to all responses.
// Stored files are user supplied, so browsers must not sniff them into
// something executable.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()

		// Prevent MIME sniffing
		h.Set("X-Content-Type-Options", "nosniff")

		// Prevent clickjacking
		h.Set("X-Frame-Options", "DENY")

		// Referrer Policy - don't leak URLs
		h.Set("Referrer-Policy", "no-referrer")

		// Nothing served here is a document; images opened directly still render.
		h.Set("Content-Security-Policy", "default-src 'none'; img-src 'self'; frame-ancestors 'none'")

		next.ServeHTTP(w, r)
	})
}
