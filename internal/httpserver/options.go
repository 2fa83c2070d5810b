package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/linnemanlabs-cms/internal/health"
	"github.com/keithlinneman/linnemanlabs-cms/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-cms/internal/log"
)

type Options struct {
	Logger log.Logger
	Port   int

	// APIRoutes registers the application routes on the public router.
	APIRoutes func(chi.Router)

	UseRecoverMW bool
	// OnPanic runs after a recovered panic is logged.
	OnPanic func()

	MetricsMW   func(http.Handler) http.Handler
	RateLimitMW func(http.Handler) http.Handler

	ClientIPOpts httpmw.ClientIPOptions
	// CORS is skipped when AllowedOrigin is empty.
	CORS httpmw.CORSOptions

	// Health and Readiness are also served on the public port for the load balancer.
	Health    health.Probe
	Readiness health.Probe

	// Zero values use the Default* timeouts.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}
