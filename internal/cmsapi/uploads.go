package cmsapi

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/linnemanlabs-cms/internal/pathutil"
	"github.com/keithlinneman/linnemanlabs-cms/internal/upload"
)

const imageField = "image"

// nextImagePart scans the multipart stream for the image field. It returns
// nil when the request is not multipart or has no file in that field.
func nextImagePart(r *http.Request) (*multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, nil
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == imageField && part.FileName() != "" {
			return part, nil
		}
		part.Close()
	}
}

// HandleUploadImage stores the "image" file of a multipart form and returns
// its public URL.
func (api *API) HandleUploadImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	part, err := nextImagePart(r)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			plain(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		plain(w, http.StatusBadRequest, "Malformed multipart body")
		return
	}
	if part == nil {
		plain(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer part.Close()

	saved, err := api.images.Save(ctx, part.FileName(), part)
	if err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.Is(err, upload.ErrTooLarge), errors.As(err, &tooBig):
			plain(w, http.StatusRequestEntityTooLarge, "File too large")
		case errors.Is(err, upload.ErrNotImage):
			plain(w, http.StatusUnsupportedMediaType, "Only image uploads are allowed")
		case errors.Is(err, upload.ErrEmpty):
			plain(w, http.StatusBadRequest, "No file uploaded")
		default:
			api.logger.Error(ctx, err, "upload store failed", "filename", part.FileName())
			api.writeError(ctx, w, http.StatusInternalServerError, "upload failed")
		}
		return
	}

	api.logger.Info(ctx, "image uploaded",
		"name", saved.Name,
		"size", saved.Size,
		"content_type", saved.ContentType,
		"sha256", saved.SHA256,
	)
	api.writeJSON(ctx, w, http.StatusOK, UploadResponse{URL: saved.URL})
}

// HandleServeUpload streams a stored upload. Names are immutable, so
// responses are cacheable forever.
func (api *API) HandleServeUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "*")
	if pathutil.HasDotSegments(name) || !upload.ValidName(name) {
		http.NotFound(w, r)
		return
	}

	body, info, err := api.blobs.Open(ctx, name)
	if err != nil {
		if !errors.Is(err, upload.ErrNotFound) {
			api.logger.Error(ctx, err, "upload open failed", "name", name)
		}
		http.NotFound(w, r)
		return
	}
	defer body.Close()

	// only images were accepted; anything else is served as opaque bytes
	ctype := info.ContentType
	if !strings.HasPrefix(ctype, "image/") {
		ctype = "application/octet-stream"
	}
	h := w.Header()
	h.Set("Content-Type", ctype)
	h.Set("Cache-Control", "public, max-age=31536000, immutable")
	h.Set("Content-Disposition", "inline")

	if rs, ok := body.(io.ReadSeeker); ok {
		http.ServeContent(w, r, name, info.ModTime, rs)
		return
	}

	if info.Size > 0 {
		h.Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	if !info.ModTime.IsZero() {
		h.Set("Last-Modified", info.ModTime.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, body); err != nil {
		api.logger.Debug(ctx, "upload stream interrupted", "name", name, "error", err)
	}
}
