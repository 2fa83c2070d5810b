// Package prof pushes continuous profiles to a Pyroscope server.
package prof

import (
	"context"
	"fmt"
	"net/url"
	"runtime"
	"sync"

	"github.com/grafana/pyroscope-go"

	"github.com/keithlinneman/linnemanlabs-cms/internal/log"
	"github.com/keithlinneman/linnemanlabs-cms/internal/xerrors"
)

type Options struct {
	Enabled              bool
	AppName              string
	ServerAddress        string
	AuthToken            string
	TenantID             string
	Tags                 map[string]string
	ProfileMutexFraction int
	BlockProfileRate     int
}

var profileTypes = []pyroscope.ProfileType{
	pyroscope.ProfileCPU,
	pyroscope.ProfileAllocObjects,
	pyroscope.ProfileAllocSpace,
	pyroscope.ProfileInuseObjects,
	pyroscope.ProfileInuseSpace,
	pyroscope.ProfileGoroutines,
	pyroscope.ProfileMutexCount,
	pyroscope.ProfileMutexDuration,
	pyroscope.ProfileBlockCount,
	pyroscope.ProfileBlockDuration,
}

// buildConfig validates opts and maps them onto the agent config.
func buildConfig(opts Options, L log.Logger) (pyroscope.Config, error) {
	if opts.ServerAddress == "" {
		return pyroscope.Config{}, xerrors.Newf("invalid server address (%q)", opts.ServerAddress)
	}
	if u, err := url.Parse(opts.ServerAddress); err != nil || u.Scheme == "" || u.Host == "" {
		return pyroscope.Config{}, xerrors.Newf("invalid server address (%q)", opts.ServerAddress)
	}
	if opts.AppName == "" {
		return pyroscope.Config{}, xerrors.New("app name is required")
	}
	return pyroscope.Config{
		ApplicationName: opts.AppName,
		ServerAddress:   opts.ServerAddress,
		AuthToken:       opts.AuthToken,
		TenantID:        opts.TenantID,
		Tags:            opts.Tags,
		ProfileTypes:    profileTypes,
		Logger:          agentLogger{L: L.With("component", "pyroscope")},
	}, nil
}

// Start launches the agent. The returned stop func is always non-nil and safe
// to call more than once, including after an error.
func Start(ctx context.Context, opts Options) (func(), error) {
	L := log.FromContext(ctx)
	noop := func() {}

	if !opts.Enabled {
		L.Info(ctx, "pyroscope disabled")
		return noop, nil
	}

	cfg, err := buildConfig(opts, L)
	if err != nil {
		L.Error(ctx, err, "pyroscope options")
		return noop, err
	}

	if opts.ProfileMutexFraction > 0 {
		runtime.SetMutexProfileFraction(opts.ProfileMutexFraction)
	}
	if opts.BlockProfileRate > 0 {
		runtime.SetBlockProfileRate(opts.BlockProfileRate)
	}

	profiler, err := pyroscope.Start(cfg)
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed",
			"server_address", opts.ServerAddress,
			"app_name", opts.AppName,
		)
		return noop, xerrors.Wrap(err, "pyroscope start")
	}

	L.Info(ctx, "pyroscope started",
		"server_address", opts.ServerAddress,
		"app_name", opts.AppName,
	)

	var once sync.Once
	return func() {
		once.Do(func() {
			profiler.Stop()
			L.Info(context.Background(), "pyroscope stopped", "app_name", opts.AppName)
		})
	}, nil
}

// agentLogger routes the agent's printf logging into the service logger.
type agentLogger struct{ L log.Logger }

func (a agentLogger) Infof(format string, args ...any) {
	a.L.Info(context.Background(), fmt.Sprintf(format, args...))
}

func (a agentLogger) Debugf(format string, args ...any) {
	a.L.Debug(context.Background(), fmt.Sprintf(format, args...))
}

func (a agentLogger) Errorf(format string, args ...any) {
	a.L.Error(context.Background(), fmt.Errorf(format, args...), "pyroscope agent error")
}
