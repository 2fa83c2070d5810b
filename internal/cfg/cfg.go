package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/keithlinneman/linnemanlabs-cms/internal/log"
)

type App struct {
	ConfigFile        string
	LogJSON           bool
	LogLevel          string
	StacktraceLevel   string
	IncludeErrorLinks bool
	MaxErrorLinks     int
	HTTPPort          int
	AdminPort         int
	EnablePprof       bool
	EnablePyroscope   bool
	PyroServer        string
	PyroTenantID      string
	EnableTracing     bool
	OTLPEndpoint      string
	TraceSample       float64

	DBPath            string
	JWTSecret         string
	JWTSecretSSMParam string
	JWTSecretKMSBlob  string
	JWTSecretKMSKey   string
	TokenTTL          time.Duration
	TokenIssuer       string
	UploadDir         string
	UploadS3Bucket    string
	UploadS3Prefix    string
	BaseURL           string
	CORSOrigin        string
	MaxUploadBytes    int64
	MaxBodyBytes      int64
	AuthRate          float64
	AuthBurst         int
	TrustedHops       int
	DrainDelay        time.Duration
}

// Register binds all config fields to the given FlagSet with defaults inline
func Register(fs *flag.FlagSet, c *App) {
	fs.StringVar(&c.ConfigFile, "config", "", "optional YAML file with flag values (keys are flag names)")
	fs.BoolVar(&c.LogJSON, "log-json", true, "JSON logs (true) or human readable text (false)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug|info|warn|error")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", "error", "debug|info|warn|error")
	fs.BoolVar(&c.IncludeErrorLinks, "include-error-links", true, "Include error links in log messages")
	fs.IntVar(&c.MaxErrorLinks, "max-error-links", 5, "max error chain depth (1..64)")
	fs.IntVar(&c.HTTPPort, "http-port", 3000, "listen TCP port (1..65535)")
	fs.IntVar(&c.AdminPort, "admin-port", 9000, "admin listen TCP port (1..65535)")
	fs.BoolVar(&c.EnablePprof, "enable-pprof", true, "Enable pprof profiling (on admin port only)")
	fs.BoolVar(&c.EnablePyroscope, "enable-pyroscope", false, "Enable pushing Pyroscope data to server set in -pyro-server")
	fs.StringVar(&c.PyroServer, "pyro-server", "", "pyroscope server url to push to")
	fs.StringVar(&c.PyroTenantID, "pyro-tenant", "", "tenant (x-scope-orgid) to use for pyro-server")
	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "Enable OTLP tracing and push to otlp-endpoint")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP endpoint to push to (gRPC) (host:port)")
	fs.Float64Var(&c.TraceSample, "trace-sample", 0.0, "trace sampling ratio (0..1)")

	fs.StringVar(&c.DBPath, "db-path", "data/cms.sqlite", "sqlite database file")
	fs.StringVar(&c.JWTSecret, "jwt-secret", "", "HMAC secret used to sign bearer tokens")
	fs.StringVar(&c.JWTSecretSSMParam, "jwt-secret-ssm-param", "", "SSM parameter holding the token secret (used when -jwt-secret is empty)")
	fs.StringVar(&c.JWTSecretKMSBlob, "jwt-secret-kms-ciphertext", "", "base64 KMS ciphertext of the token secret (used when -jwt-secret is empty)")
	fs.StringVar(&c.JWTSecretKMSKey, "jwt-secret-kms-key", "", "optional KMS key id or alias to pin for -jwt-secret-kms-ciphertext")
	fs.DurationVar(&c.TokenTTL, "token-ttl", 24*time.Hour, "lifetime of issued bearer tokens")
	fs.StringVar(&c.TokenIssuer, "token-issuer", "linnemanlabs-cms", "iss claim of issued tokens")
	fs.StringVar(&c.UploadDir, "upload-dir", "uploads", "directory for uploaded images (disk backend)")
	fs.StringVar(&c.UploadS3Bucket, "upload-s3-bucket", "", "store uploads in this S3 bucket instead of upload-dir")
	fs.StringVar(&c.UploadS3Prefix, "upload-s3-prefix", "uploads", "key prefix for uploads in upload-s3-bucket")
	fs.StringVar(&c.BaseURL, "base-url", "http://localhost:3000", "public base url used to build upload links")
	fs.StringVar(&c.CORSOrigin, "cors-origin", "http://localhost:5173", "allowed CORS origin (empty disables CORS headers)")
	fs.Int64Var(&c.MaxUploadBytes, "max-upload-bytes", 10<<20, "max accepted image size in bytes")
	fs.Int64Var(&c.MaxBodyBytes, "max-body-bytes", 1<<20, "max JSON request body size in bytes")
	fs.Float64Var(&c.AuthRate, "auth-rate", 0.2, "authenticate attempts per second per client ip")
	fs.IntVar(&c.AuthBurst, "auth-burst", 5, "authenticate burst per client ip")
	fs.IntVar(&c.TrustedHops, "trusted-hops", 0, "number of trusted reverse proxies in front of the server")
	fs.DurationVar(&c.DrainDelay, "drain-delay", 15*time.Second, "time readiness reports draining before listeners close")
}

// FillFromEnv sets any flag not explicitly passed on the CLI from
// environment variables. Flag "foo-bar" maps to PREFIX_FOO_BAR.
// Precedence: cli flag > env var > config file > default.
func FillFromEnv(fs *flag.FlagSet, prefix string, logf func(string, ...any)) {
	explicit := explicitFlags(fs)

	fs.VisitAll(func(f *flag.Flag) {
		key := prefix + strings.ReplaceAll(strings.ToUpper(f.Name), "-", "_")
		envVal, envSet := os.LookupEnv(key)
		if !envSet {
			return
		}
		if explicit[f.Name] {
			if logf != nil {
				logf("flag -%s: cli value %q overrides env %s", f.Name, f.Value.String(), key)
			}
			return
		}
		setOrRestore(fs, f, envVal, "env "+key, logf)
	})
}

// FillFromFile applies a flat YAML mapping of flag name to value for flags
// that were neither passed on the CLI nor set in the environment. Call it
// after FillFromEnv: fs.Set marks env-filled flags as set, so they are kept.
func FillFromFile(fs *flag.FlagSet, path, envPrefix string, logf func(string, ...any)) error {
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	explicit := explicitFlags(fs)
	var errs []error
	for name, v := range values {
		f := fs.Lookup(name)
		if f == nil {
			errs = append(errs, fmt.Errorf("config file %s: unknown key %q", path, name))
			continue
		}
		if explicit[name] {
			continue
		}
		if _, inEnv := os.LookupEnv(envPrefix + strings.ReplaceAll(strings.ToUpper(name), "-", "_")); inEnv {
			continue
		}
		setOrRestore(fs, f, fmt.Sprint(v), "config "+path, logf)
	}
	return errors.Join(errs...)
}

func explicitFlags(fs *flag.FlagSet) map[string]bool {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	return explicit
}

func setOrRestore(fs *flag.FlagSet, f *flag.Flag, val, source string, logf func(string, ...any)) {
	prev := f.Value.String()
	if err := fs.Set(f.Name, val); err != nil {
		_ = fs.Set(f.Name, prev)
		if logf != nil {
			logf("flag -%s: ignoring invalid value from %s: %v", f.Name, source, err)
		}
	}
}

// Validate checks that config values are within expected ranges and formats.
// Returns an error describing all invalid fields, or nil if all valid.
func Validate(c App) error {
	var errs []error

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.HTTPPort))
	}
	if c.AdminPort < 1 || c.AdminPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid ADMIN_PORT %d (must be 1..65535)", c.AdminPort))
	}
	if c.AdminPort == c.HTTPPort {
		errs = append(errs, fmt.Errorf("ADMIN_PORT and HTTP_PORT must differ (both %d)", c.HTTPPort))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err))
	}
	if c.StacktraceLevel != "" {
		if _, err := log.ParseLevel(c.StacktraceLevel); err != nil {
			errs = append(errs, fmt.Errorf("invalid STACKTRACE_LEVEL %q: %w", c.StacktraceLevel, err))
		}
	}
	if c.IncludeErrorLinks && (c.MaxErrorLinks < 1 || c.MaxErrorLinks > 64) {
		errs = append(errs, fmt.Errorf("MAX_ERROR_LINKS must be 1..64 (got %d)", c.MaxErrorLinks))
	}

	if c.TraceSample < 0 || c.TraceSample > 1 {
		errs = append(errs, fmt.Errorf("invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample))
	}
	if c.EnablePyroscope {
		if c.PyroServer == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER required when ENABLE_PYROSCOPE=true"))
		} else if u, err := url.Parse(c.PyroServer); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER must be a URL (got %q)", c.PyroServer))
		}
		if c.PyroTenantID == "" {
			errs = append(errs, fmt.Errorf("PYRO_TENANT required when ENABLE_PYROSCOPE=true"))
		}
	}
	// grpc exporter wants host:port, no scheme
	if c.EnableTracing {
		if c.OTLPEndpoint == "" {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT required when ENABLE_TRACING=true"))
		} else if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err))
		}
	}

	if strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, fmt.Errorf("DB_PATH is required"))
	}
	switch sources := countSet(c.JWTSecret, c.JWTSecretSSMParam, c.JWTSecretKMSBlob); {
	case sources == 0:
		errs = append(errs, fmt.Errorf("one of JWT_SECRET, JWT_SECRET_SSM_PARAM or JWT_SECRET_KMS_CIPHERTEXT is required"))
	case sources > 1:
		errs = append(errs, fmt.Errorf("only one of JWT_SECRET, JWT_SECRET_SSM_PARAM or JWT_SECRET_KMS_CIPHERTEXT may be set"))
	}
	if c.JWTSecretKMSKey != "" && c.JWTSecretKMSBlob == "" {
		errs = append(errs, fmt.Errorf("JWT_SECRET_KMS_KEY requires JWT_SECRET_KMS_CIPHERTEXT"))
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < 16 {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least 16 bytes"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("TOKEN_TTL must be positive (got %s)", c.TokenTTL))
	}
	if c.UploadS3Bucket == "" && strings.TrimSpace(c.UploadDir) == "" {
		errs = append(errs, fmt.Errorf("UPLOAD_DIR is required when UPLOAD_S3_BUCKET is not set"))
	}
	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("BASE_URL must be an absolute URL (got %q)", c.BaseURL))
	}
	if c.CORSOrigin != "" && c.CORSOrigin != "*" {
		if u, err := url.Parse(c.CORSOrigin); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("CORS_ORIGIN must be an origin like https://example.com or * (got %q)", c.CORSOrigin))
		}
	}
	if c.MaxUploadBytes < 1 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_BYTES must be positive"))
	}
	if c.MaxBodyBytes < 1 {
		errs = append(errs, fmt.Errorf("MAX_BODY_BYTES must be positive"))
	}
	if c.AuthRate <= 0 || c.AuthBurst < 1 {
		errs = append(errs, fmt.Errorf("AUTH_RATE must be > 0 and AUTH_BURST >= 1 (got %.3f/%d)", c.AuthRate, c.AuthBurst))
	}
	if c.TrustedHops < 0 {
		errs = append(errs, fmt.Errorf("TRUSTED_HOPS must be >= 0"))
	}
	if c.DrainDelay < 0 {
		errs = append(errs, fmt.Errorf("DRAIN_DELAY must be >= 0 (got %s)", c.DrainDelay))
	}

	return errors.Join(errs...)
}

func countSet(vals ...string) int {
	n := 0
	for _, v := range vals {
		if v != "" {
			n++
		}
	}
	return n
}
