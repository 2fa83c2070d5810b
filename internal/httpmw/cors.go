package httpmw

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSOptions configures cross-origin access for the admin frontend.
type CORSOptions struct {
	// AllowedOrigin is a single origin such as "https://admin.example.com",
	// or "*" to allow any origin.
	AllowedOrigin string
	// AllowedMethods defaults to GET, POST, PATCH.
	AllowedMethods []string
	// AllowedHeaders defaults to Content-Type, Authorization.
	AllowedHeaders []string
	// ExposedHeaders lists response headers the browser may read, such as
	// the request and trace ids. Empty omits the header.
	ExposedHeaders []string
	// MaxAge of a cached preflight. Zero omits the header.
	MaxAge time.Duration
}

// CORS answers preflight requests with 204 and adds the allow headers to
// requests from the configured origin. Requests from other origins pass
// through without CORS headers, leaving the browser to block them.
func CORS(opts CORSOptions) func(http.Handler) http.Handler {
	methods := opts.AllowedMethods
	if len(methods) == 0 {
		methods = []string{http.MethodGet, http.MethodPost, http.MethodPatch}
	}
	headers := opts.AllowedHeaders
	if len(headers) == 0 {
		headers = []string{"Content-Type", "Authorization"}
	}
	allowMethods := strings.Join(methods, ", ")
	allowHeaders := strings.Join(headers, ", ")
	exposeHeaders := strings.Join(opts.ExposedHeaders, ", ")
	maxAge := ""
	if opts.MaxAge > 0 {
		maxAge = strconv.Itoa(int(opts.MaxAge.Seconds()))
	}
	wildcard := opts.AllowedOrigin == "*"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			h := w.Header()
			h.Add("Vary", "Origin")

			allowed := origin != "" && (wildcard || origin == opts.AllowedOrigin)
			if allowed {
				if wildcard {
					h.Set("Access-Control-Allow-Origin", "*")
				} else {
					h.Set("Access-Control-Allow-Origin", origin)
				}
				if exposeHeaders != "" {
					h.Set("Access-Control-Expose-Headers", exposeHeaders)
				}
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				if allowed {
					h.Set("Access-Control-Allow-Methods", allowMethods)
					h.Set("Access-Control-Allow-Headers", allowHeaders)
					if maxAge != "" {
						h.Set("Access-Control-Max-Age", maxAge)
					}
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
