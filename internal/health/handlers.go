package health

import "net/http"

// Handler answers 200 with body when p passes and 503 with the failure
// reason otherwise. A nil probe always passes.
func Handler(p Probe, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p != nil {
			if err := p.Check(r.Context()); err != nil {
				w.Header().Set("Cache-Control", "no-store")
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body + "\n"))
	}
}

// HealthzHandler serves liveness.
func HealthzHandler(p Probe) http.HandlerFunc { return Handler(p, "ok") }

// ReadyzHandler serves readiness.
func ReadyzHandler(p Probe) http.HandlerFunc { return Handler(p, "ready") }
