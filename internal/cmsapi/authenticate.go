package cmsapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/keithlinneman/linnemanlabs-cms/internal/auth"
	"github.com/keithlinneman/linnemanlabs-cms/internal/httpmw"
)

// HandleAuthenticate exchanges a username and password for a bearer token.
// Unknown users and wrong passwords get the same 401.
func (api *API) HandleAuthenticate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req AuthRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		api.rec.IncAuthAttempt(AuthMalformed)
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			api.writeError(ctx, w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		api.writeError(ctx, w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := api.users.Verify(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			api.rec.IncAuthAttempt(AuthInvalid)
			api.logger.Info(ctx, "authentication failed", "username", req.Username)
			plain(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		api.rec.IncAuthAttempt(AuthError)
		api.logger.Error(ctx, err, "credential lookup failed")
		api.writeError(ctx, w, http.StatusInternalServerError, "authentication unavailable")
		return
	}

	token, exp, err := api.tokens.Issue(user.Username)
	if err != nil {
		api.rec.IncAuthAttempt(AuthError)
		api.logger.Error(ctx, err, "token issue failed", "username", user.Username)
		api.writeError(ctx, w, http.StatusInternalServerError, "authentication unavailable")
		return
	}

	api.rec.IncAuthAttempt(AuthOK)
	httpmw.Annotate(ctx, "user", user.Username)
	api.logger.Info(ctx, "authenticated", "username", user.Username, "expires_at", exp)
	w.Header().Set("Cache-Control", "no-store")
	api.writeJSON(ctx, w, http.StatusOK, AuthResponse{
		Username:  user.Username,
		Token:     token,
		ExpiresAt: exp,
	})
}
