package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"gorm.io/gorm"

	"github.com/keithlinneman/linnemanlabs-cms/internal/auth"
	"github.com/keithlinneman/linnemanlabs-cms/internal/cfg"
	"github.com/keithlinneman/linnemanlabs-cms/internal/cmsapi"
	"github.com/keithlinneman/linnemanlabs-cms/internal/content"
	"github.com/keithlinneman/linnemanlabs-cms/internal/cryptoutil"
	"github.com/keithlinneman/linnemanlabs-cms/internal/health"
	"github.com/keithlinneman/linnemanlabs-cms/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-cms/internal/httpserver"
	"github.com/keithlinneman/linnemanlabs-cms/internal/log"
	"github.com/keithlinneman/linnemanlabs-cms/internal/metrics"
	"github.com/keithlinneman/linnemanlabs-cms/internal/opshttp"
	"github.com/keithlinneman/linnemanlabs-cms/internal/otelx"
	"github.com/keithlinneman/linnemanlabs-cms/internal/prof"
	"github.com/keithlinneman/linnemanlabs-cms/internal/ratelimit"
	"github.com/keithlinneman/linnemanlabs-cms/internal/sqlstore"
	"github.com/keithlinneman/linnemanlabs-cms/internal/upload"
	v "github.com/keithlinneman/linnemanlabs-cms/internal/version"
)

const envPrefix = "CMS_"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vi := v.Get()

	var conf cfg.App
	var showVersion bool

	cfg.Register(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(vi.String())
		os.Exit(0)
	}

	stderrf := func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
	cfg.FillFromEnv(flag.CommandLine, envPrefix, stderrf)
	if err := cfg.FillFromFile(flag.CommandLine, conf.ConfigFile, envPrefix, stderrf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}
	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	// Setup logging
	lvl, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %s: %v\n", conf.LogLevel, err)
		os.Exit(1)
	}
	stackLvl, err := log.ParseLevel(conf.StacktraceLevel)
	if err != nil {
		stackLvl = lvl
	}
	lg, err := log.New(log.Options{
		App:               v.AppName,
		Version:           vi.Version,
		Level:             lvl,
		StacktraceLevel:   stackLvl,
		JSONFormat:        conf.LogJSON,
		MaxErrorLinks:     conf.MaxErrorLinks,
		IncludeErrorLinks: conf.IncludeErrorLinks,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		os.Exit(1)
	}
	defer lg.Sync()
	L := lg.With("component", "server")
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_id", vi.BuildId,
		"go_version", vi.GoVersion,
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"db_path", conf.DBPath,
		"upload_dir", conf.UploadDir,
		"upload_s3_bucket", conf.UploadS3Bucket,
		"base_url", conf.BaseURL,
		"cors_origin", conf.CORSOrigin,
		"enable_pprof", conf.EnablePprof,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_tracing", conf.EnableTracing,
		"trace_sample", conf.TraceSample,
	)

	m := metrics.New()
	m.SetBuildInfoFromVersion("server", vi)

	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       v.AppName,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags: map[string]string{
			"app":       v.AppName,
			"component": "server",
			"version":   vi.Version,
			"commit":    vi.Commit,
		},
	})
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	m.SetProfilingActive(err == nil && conf.EnablePyroscope)
	defer stopProf()

	// Insecure because the collector runs on localhost
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:   conf.EnableTracing,
		Endpoint:  conf.OTLPEndpoint,
		Insecure:  true,
		Sample:    conf.TraceSample,
		Service:   v.AppName,
		Component: "server",
		Version:   vi.Version,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed, tracing disabled")
		shutdownOTEL = func(context.Context) error { return nil }
	}
	defer func() { _ = shutdownOTEL(context.Background()) }()

	// storage
	db, err := sqlstore.Open(ctx, sqlstore.Options{
		Path:      conf.DBPath,
		Logger:    L.With("component", "sqlstore"),
		SlowQuery: 200 * time.Millisecond,
	})
	if err != nil {
		L.Error(ctx, err, "failed to open database", "db_path", conf.DBPath)
		os.Exit(1)
	}

	store := content.New(db, content.WithLogger(L.With("component", "content")), content.WithRecorder(m))
	if err := store.Migrate(ctx); err != nil {
		L.Error(ctx, err, "content migration failed")
		os.Exit(1)
	}
	users, err := auth.NewUsers(db)
	if err != nil {
		L.Error(ctx, err, "failed to create user store")
		os.Exit(1)
	}
	if err := users.Migrate(ctx); err != nil {
		L.Error(ctx, err, "users migration failed")
		os.Exit(1)
	}

	// AWS is only needed for an SSM or KMS secret or the S3 upload backend
	var awsCfg *aws.Config
	if conf.JWTSecret == "" || conf.UploadS3Bucket != "" {
		c, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			L.Error(ctx, err, "failed to load AWS config")
			os.Exit(1)
		}
		awsCfg = &c
	}

	secret := []byte(conf.JWTSecret)
	switch {
	case len(secret) > 0:
	case conf.JWTSecretKMSBlob != "":
		dec := cryptoutil.NewKMSDecrypter(kms.NewFromConfig(*awsCfg), conf.JWTSecretKMSKey)
		secret, err = auth.LoadSecretFromKMS(ctx, dec, conf.JWTSecretKMSBlob)
		if err != nil {
			L.Error(ctx, err, "failed to decrypt token secret", "kms_key", conf.JWTSecretKMSKey)
			os.Exit(1)
		}
		L.Info(ctx, "decrypted token secret with KMS", "kms_key", conf.JWTSecretKMSKey)
	default:
		secret, err = auth.LoadSecretFromSSM(ctx, ssm.NewFromConfig(*awsCfg), conf.JWTSecretSSMParam)
		if err != nil {
			L.Error(ctx, err, "failed to load token secret", "ssm_param", conf.JWTSecretSSMParam)
			os.Exit(1)
		}
		L.Info(ctx, "loaded token secret from SSM", "ssm_param", conf.JWTSecretSSMParam)
	}
	tokens, err := auth.NewTokens(secret, conf.TokenTTL, conf.TokenIssuer)
	if err != nil {
		L.Error(ctx, err, "invalid token configuration")
		os.Exit(1)
	}

	var blobs upload.Store
	if conf.UploadS3Bucket != "" {
		blobs = upload.NewS3Store(s3.NewFromConfig(*awsCfg), conf.UploadS3Bucket, conf.UploadS3Prefix)
	} else {
		blobs = upload.NewDiskStore(conf.UploadDir)
	}
	uploader := &upload.Uploader{
		Store:    blobs,
		BaseURL:  conf.BaseURL,
		MaxBytes: conf.MaxUploadBytes,
		Recorder: m,
	}

	// authenticate gets its own strict per-ip limiter
	loginLimiter := ratelimit.New(ctx,
		ratelimit.WithRate(conf.AuthRate, conf.AuthBurst),
		ratelimit.WithOnDenied(func(ip string) {
			m.IncRateLimitDenied()
		}),
		// log once per visitor until it is evicted
		ratelimit.WithOnFirstDenied(func(ip string) {
			L.Warn(ctx, "authenticate rate limit triggered", "ip", ip)
		}),
		ratelimit.WithOnCapacity(func() {
			m.IncRateLimitCapacity()
			L.Warn(ctx, "rate limit capacity reached, new clients share the overflow limiter")
		}),
	)

	api := cmsapi.NewAPI(cmsapi.Options{
		Content:        store,
		Users:          users,
		Tokens:         tokens,
		Images:         uploader,
		Blobs:          blobs,
		Logger:         L.With("component", "cmsapi"),
		Recorder:       m,
		LoginLimit:     loginLimiter.Middleware,
		MaxBodyBytes:   conf.MaxBodyBytes,
		MaxUploadBytes: conf.MaxUploadBytes,
	})

	var gate health.ShutdownGate
	readiness := health.All(
		gate.Probe(),
		health.Timeout(2*time.Second, dbProbe(db)),
	)

	siteHTTPStop, err := httpserver.Start(ctx, &httpserver.Options{
		Logger:       L,
		Port:         conf.HTTPPort,
		APIRoutes:    api.RegisterRoutes,
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
		MetricsMW:    m.Middleware,
		ClientIPOpts: httpmw.ClientIPOptions{TrustedHops: conf.TrustedHops},
		CORS:         httpmw.CORSOptions{AllowedOrigin: conf.CORSOrigin, MaxAge: 10 * time.Minute},
		Health:       health.Fixed(true, ""),
		Readiness:    readiness,
		// uploads of max-upload-bytes on slow links need more than the default
		ReadTimeout: 2 * time.Minute,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start http listener")
		os.Exit(1)
	}
	defer func() { _ = siteHTTPStop(context.Background()) }()

	// the ops listener rejects public peers and forwarded requests itself,
	// in case the security group is ever misconfigured
	opsHTTPStop, err := opshttp.Start(ctx, L, &opshttp.Options{
		Port:        conf.AdminPort,
		Metrics:     m.Handler(),
		EnablePprof: conf.EnablePprof,
		Health:      health.Fixed(true, ""),
		Readiness:   readiness,
		OnPanic:     m.IncHttpPanic,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		os.Exit(1)
	}
	defer func() { _ = opsHTTPStop(context.Background()) }()

	if err := notifySystemd(); err != nil {
		// worst case systemd kills us after its start timeout
		L.Warn(ctx, "failed to notify systemd of readiness", "error", err)
	}

	<-ctx.Done()
	stop()
	bg := context.Background()
	L.Info(bg, "shutdown signal received")

	// fail readiness so the load balancer stops routing to us
	gate.Set("draining")
	L.Info(bg, "shutdown gate closed, draining", "drain_delay", conf.DrainDelay)

	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-time.After(conf.DrainDelay):
		L.Info(bg, "drain period complete")
	case <-forceCh:
		L.Warn(bg, "second signal received, skipping drain")
	}
	signal.Stop(forceCh)

	shutdownCtx, cancel := context.WithTimeout(bg, 10*time.Second)
	defer cancel()

	if err := siteHTTPStop(shutdownCtx); err != nil {
		L.Error(bg, err, "app http server shutdown")
	}
	if err := opsHTTPStop(shutdownCtx); err != nil {
		L.Error(bg, err, "ops http server shutdown")
	}
	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(bg, err, "otel shutdown")
	}
	stopProf()
	if err := sqlstore.Close(db); err != nil {
		L.Error(bg, err, "database close")
	}

	L.Info(bg, "shutdown complete")
}

func dbProbe(db *gorm.DB) health.Probe {
	return health.CheckFunc(func(ctx context.Context) error {
		return sqlstore.Ping(ctx, db)
	})
}

func notifySystemd() error {
	// set when started under systemd with Type=notify
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return fmt.Errorf("NOTIFY_SOCKET not set, skipping systemd notify")
	}
	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		return fmt.Errorf("systemd notify failed: dial failed: %w", err)
	}
	if _, err := conn.Write([]byte("READY=1")); err != nil {
		conn.Close()
		return fmt.Errorf("systemd notify failed: write failed: %w", err)
	}
	if err := conn.Close(); err != nil {
		return fmt.Errorf("systemd notify failed: close failed: %w", err)
	}
	return nil
}
