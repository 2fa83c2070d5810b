package httpmw

import (
	"cmp"
	"net/http"

	"go.opentelemetry.io/otel/trace"
)

// TraceResponseHeaders echoes the current trace and span ids so a failed
// save reported from the admin UI can be found in the tracing backend.
// Empty names default to X-Trace-Id and X-Span-Id. Nothing is set when the
// request is not traced.
func TraceResponseHeaders(traceHeader, spanHeader string) Middleware {
	traceHeader = cmp.Or(traceHeader, "X-Trace-Id")
	spanHeader = cmp.Or(spanHeader, "X-Span-Id")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
				h := w.Header()
				h.Set(traceHeader, sc.TraceID().String())
				h.Set(spanHeader, sc.SpanID().String())
			}
			next.ServeHTTP(w, r)
		})
	}
}
