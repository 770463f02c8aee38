// internal/middleware/security.go
//
// Security-header middleware for the JSON API.
//
// Injects a small set of headers on every response:
//
//   - Strict-Transport-Security  –  forces HTTPS (2 years)
//   - X-Content-Type-Options     –  MIME-sniffing defence
//   - Cache-Control              –  tenant data is never cached by proxies
//   - Referrer-Policy            –  drops Referer entirely
//
// Notes
// -----
//   - Headers are set before next.ServeHTTP because they cannot be added
//     once the status line is written.  Handlers may still override them.
//   - Oxford commas, two spaces after periods.

package middleware

import "net/http"

// Security sets security headers for every response.
func Security(next http.Handler) http.Handler {
	const (
		hsts  = "max-age=63072000; includeSubDomains"
		nosn  = "nosniff"
		cache = "no-store"
		refer = "no-referrer"
	)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := w.Header()
		hdr.Set("Strict-Transport-Security", hsts)
		hdr.Set("X-Content-Type-Options", nosn)
		hdr.Set("Cache-Control", cache)
		hdr.Set("Referrer-Policy", refer)
		next.ServeHTTP(w, r)
	})
}
