package httpmw

import "net/http"

// CSRF protection is not needed: edits require a bearer token in the
// Authorization header, which browsers never attach on their own.

// SecurityHeaders adds headers suited to a JSON API that also serves
// uploaded images to a frontend on another origin.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")

		// Nothing served here is a document: block scripts, frames and
		// plugins outright, including inside an opened upload.
		h.Set("Content-Security-Policy", "default-src 'none'; img-src 'self'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'")

		// Uploads are sniffed server side; the browser must not re-sniff.
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("X-Permitted-Cross-Domain-Policies", "none")
		h.Set("Cross-Origin-Opener-Policy", "same-origin")

		// The frontend embeds uploaded images from this origin.
		h.Set("Cross-Origin-Resource-Policy", "cross-origin")

		next.ServeHTTP(w, r)
	})
}
