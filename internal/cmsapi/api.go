package cmsapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/linnemanlabs-cms/internal/auth"
	"github.com/keithlinneman/linnemanlabs-cms/internal/content"
	"github.com/keithlinneman/linnemanlabs-cms/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-cms/internal/log"
	"github.com/keithlinneman/linnemanlabs-cms/internal/upload"
)

// ContentStore is satisfied by *content.Store.
type ContentStore interface {
	ApplyBatch(ctx context.Context, batch content.Batch) (content.BatchResult, error)
	PageContent(ctx context.Context, page string) (map[string]json.RawMessage, error)
	History(ctx context.Context, page, field string) ([]content.Row, error)
}

// Authenticator is satisfied by *auth.Users.
type Authenticator interface {
	Verify(ctx context.Context, username, password string) (auth.User, error)
}

// TokenService is satisfied by *auth.Tokens.
type TokenService interface {
	auth.Validator
	Issue(username string) (string, time.Time, error)
}

// ImageSaver is satisfied by *upload.Uploader.
type ImageSaver interface {
	Save(ctx context.Context, filename string, body io.Reader) (upload.Saved, error)
}

// BlobOpener is satisfied by any upload.Store.
type BlobOpener interface {
	Open(ctx context.Context, name string) (io.ReadCloser, upload.Info, error)
}

// AuthRecorder counts login attempts by result.
type AuthRecorder interface {
	IncAuthAttempt(result string)
}

type nopRecorder struct{}

func (nopRecorder) IncAuthAttempt(string) {}

// Login attempt results.
const (
	AuthOK        = "ok"
	AuthInvalid   = "invalid"
	AuthMalformed = "malformed"
	AuthError     = "error"
)

// multipartOverhead is added to the upload limit for part headers and boundaries.
const multipartOverhead = 64 << 10

type Options struct {
	Content ContentStore
	Users   Authenticator
	Tokens  TokenService
	Images  ImageSaver
	Blobs   BlobOpener
	Logger  log.Logger

	Recorder AuthRecorder
	// LoginLimit wraps POST /api/authenticate, typically a per-IP limiter.
	LoginLimit func(http.Handler) http.Handler

	MaxBodyBytes   int64
	MaxUploadBytes int64
}

// API implements the content endpoints.
type API struct {
	content ContentStore
	users   Authenticator
	tokens  TokenService
	images  ImageSaver
	blobs   BlobOpener
	logger  log.Logger
	rec     AuthRecorder

	loginLimit     func(http.Handler) http.Handler
	maxBodyBytes   int64
	maxUploadBytes int64
}

func NewAPI(opts Options) *API {
	api := &API{
		content:        opts.Content,
		users:          opts.Users,
		tokens:         opts.Tokens,
		images:         opts.Images,
		blobs:          opts.Blobs,
		logger:         opts.Logger,
		rec:            opts.Recorder,
		loginLimit:     opts.LoginLimit,
		maxBodyBytes:   opts.MaxBodyBytes,
		maxUploadBytes: opts.MaxUploadBytes,
	}
	if api.logger == nil {
		api.logger = log.Nop()
	}
	if api.rec == nil {
		api.rec = nopRecorder{}
	}
	if api.maxBodyBytes <= 0 {
		api.maxBodyBytes = 1 << 20
	}
	if api.maxUploadBytes <= 0 {
		api.maxUploadBytes = 10 << 20
	}
	return api
}

// RegisterRoutes attaches the content endpoints to the router.
func (api *API) RegisterRoutes(r chi.Router) {
	jsonBody := httpmw.MaxBody(api.maxBodyBytes)

	r.With(httpmw.Scope("content")).Get("/api/content/{page}", api.HandleGetPage)
	r.With(httpmw.Scope("uploads")).Get("/uploads/*", api.HandleServeUpload)
	r.With(httpmw.Scope("uploads")).Head("/uploads/*", api.HandleServeUpload)

	login := r.With(httpmw.Scope("authenticate"))
	if api.loginLimit != nil {
		login = login.With(api.loginLimit)
	}
	login.With(jsonBody).Post("/api/authenticate", api.HandleAuthenticate)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireBearer(api.tokens))
		r.With(httpmw.Scope("content"), jsonBody).Patch("/api/content", api.HandlePatchContent)
		r.With(httpmw.Scope("content")).Get("/api/content/{page}/history/*", api.HandleHistory)
		r.With(httpmw.Scope("upload"), httpmw.MaxBody(api.maxUploadBytes+multipartOverhead)).
			Post("/api/upload-image", api.HandleUploadImage)
	})
}

func (api *API) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if w.Header().Get("Cache-Control") == "" {
		w.Header().Set("Cache-Control", "no-cache")
	}
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		api.logger.Warn(ctx, "failed to encode JSON response", "error", err)
	}
}

func (api *API) writeError(ctx context.Context, w http.ResponseWriter, status int, msg string) {
	api.writeJSON(ctx, w, status, ErrorResponse{Error: msg})
}

// plain writes the short text bodies the admin frontend matches on.
func plain(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg)
}
