package opshttp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RegisterPprof mounts the runtime profiler under /debug/pprof/.
func RegisterPprof(r chi.Router) {
	r.Mount("/debug", middleware.Profiler())
}

// shadowPprof answers 404 for the pprof tree so the paths never fall through
// to another handler while profiling is off.
func shadowPprof(r chi.Router) {
	r.HandleFunc("/debug/*", http.NotFound)
}
