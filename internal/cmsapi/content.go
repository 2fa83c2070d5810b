package cmsapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/linnemanlabs-cms/internal/content"
)

// pathParam returns the decoded URL parameter. chi hands back the escaped
// form when the request carries a RawPath, so "a%2Fb" must become "a/b".
func pathParam(r *http.Request, name string) (string, bool) {
	v, err := url.PathUnescape(chi.URLParam(r, name))
	return v, err == nil
}

// HandleGetPage serves the current view of one page. Unknown pages get an
// empty content object, never a 404.
func (api *API) HandleGetPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, ok := pathParam(r, "page")
	if !ok {
		api.writeError(ctx, w, http.StatusBadRequest, "invalid page name")
		return
	}

	fields, err := api.content.PageContent(ctx, page)
	if err != nil {
		api.logger.Error(ctx, err, "page content read failed", "page", page)
		api.writeError(ctx, w, http.StatusInternalServerError, "content unavailable")
		return
	}

	api.writeJSON(ctx, w, http.StatusOK, PageResponse{
		Status:  "ok",
		Page:    page,
		Content: fields,
	})
}

// HandlePatchContent appends every "page.key" entry of a JSON object.
func (api *API) HandlePatchContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	batch, err := content.DecodeBatch(r.Body)
	if err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			api.writeError(ctx, w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, content.ErrNotObject):
			api.writeError(ctx, w, http.StatusBadRequest, "request body must be a JSON object")
		default:
			api.writeError(ctx, w, http.StatusBadRequest, "invalid JSON body")
		}
		return
	}

	res, err := api.content.ApplyBatch(ctx, batch)
	if err != nil {
		api.logger.Error(ctx, err, "content batch failed",
			"pages_written", res.UpdatedPages,
			"entries", len(batch),
		)
		api.writeError(ctx, w, http.StatusInternalServerError, "content update failed")
		return
	}

	api.logger.Info(ctx, "content updated",
		"pages", res.UpdatedPages,
		"keys", len(res.Keys),
		"skipped", len(res.Skipped),
	)
	api.writeJSON(ctx, w, http.StatusOK, UpdateResponse{
		Status:  "updated",
		Pages:   res.UpdatedPages,
		Keys:    res.Keys,
		Skipped: res.Skipped,
	})
}

// HandleHistory lists every stored value of one field. The key is the part
// after the page, so "/api/content/home/history/hero.title" reads home.hero.title.
func (api *API) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, okPage := pathParam(r, "page")
	key, okKey := pathParam(r, "*")
	if !okPage || !okKey {
		api.writeError(ctx, w, http.StatusBadRequest, "invalid page or key")
		return
	}
	if page == "" || key == "" {
		api.writeError(ctx, w, http.StatusBadRequest, "page and key are required")
		return
	}

	rows, err := api.content.History(ctx, page, key)
	if err != nil {
		api.logger.Error(ctx, err, "content history read failed", "page", page, "key", key)
		api.writeError(ctx, w, http.StatusInternalServerError, "content unavailable")
		return
	}

	out := HistoryResponse{Status: "ok", Page: page, Key: key, History: make([]HistoryEntry, 0, len(rows))}
	for _, row := range rows {
		v := json.RawMessage(row.Value)
		if !json.Valid(v) {
			// keep the entry visible; the raw text is still useful to an admin
			b, _ := json.Marshal(row.Value)
			v = b
		}
		out.History = append(out.History, HistoryEntry{ID: row.ID, Value: v, Timestamp: row.Timestamp})
	}
	api.writeJSON(ctx, w, http.StatusOK, out)
}
