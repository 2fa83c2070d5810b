package opshttp

import (
	"net/http"

	"github.com/keithlinneman/linnemanlabs-cms/internal/health"
)

type Options struct {
	Port        int
	Metrics     http.Handler
	EnablePprof bool
	Health      health.Probe
	Readiness   health.Probe
	// OnPanic runs after a recovered panic is logged, e.g. to bump the panic counter.
	OnPanic func()
	// AllowPublic disables the non-public network guard. Tests and local runs only.
	AllowPublic bool
}
