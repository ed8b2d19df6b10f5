package middleware

import "net/http"

// securityHeaders is the fixed set of response headers attached to every
// response, error responses included.
var securityHeaders = map[string]string{
	"X-Content-Type-Options":    "nosniff",
	"X-Frame-Options":           "DENY",
	"X-XSS-Protection":          "1; mode=block",
	"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
	"Content-Security-Policy":   "default-src 'none'",
	"Referrer-Policy":           "no-referrer",
}

// SecurityHeaders sets hardening headers before the handler runs, so they
// are present even when the handler writes an error status.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for name, value := range securityHeaders {
			w.Header().Set(name, value)
		}
		next.ServeHTTP(w, r)
	})
}
