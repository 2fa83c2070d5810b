package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/keithlinneman/linnemanlabs-cms/internal/cryptoutil"
	"github.com/keithlinneman/linnemanlabs-cms/internal/xerrors"
)

// Recorder receives upload outcomes for metrics.
type Recorder interface {
	ObserveUpload(result string, bytes int64)
}

type nopRecorder struct{}

func (nopRecorder) ObserveUpload(string, int64) {}

// Upload results reported to the Recorder.
const (
	ResultStored   = "stored"
	ResultNotImage = "not_image"
	ResultTooLarge = "too_large"
	ResultEmpty    = "empty"
	ResultError    = "error"
)

// Saved is the outcome of a successful upload.
type Saved struct {
	Object
	URL string `json:"url"`
}

// Uploader validates uploads and writes them to a Store.
type Uploader struct {
	Store    Store
	BaseURL  string
	MaxBytes int64
	Recorder Recorder
}

func (u *Uploader) recorder() Recorder {
	if u.Recorder == nil {
		return nopRecorder{}
	}
	return u.Recorder
}

// URL is the public address of a stored object.
func (u *Uploader) URL(name string) string {
	return strings.TrimRight(u.BaseURL, "/") + "/uploads/" + name
}

// Save reads at most MaxBytes from body, checks the content is an image by
// sniffing it, and stores it under a fresh name derived from filename.
func (u *Uploader) Save(ctx context.Context, filename string, body io.Reader) (Saved, error) {
	data, err := io.ReadAll(io.LimitReader(body, u.MaxBytes+1))
	if err != nil {
		u.recorder().ObserveUpload(ResultError, 0)
		return Saved{}, xerrors.Wrap(err, "read upload")
	}
	size := int64(len(data))
	switch {
	case size > u.MaxBytes:
		u.recorder().ObserveUpload(ResultTooLarge, 0)
		return Saved{}, fmt.Errorf("%w: limit %d bytes", ErrTooLarge, u.MaxBytes)
	case size == 0:
		u.recorder().ObserveUpload(ResultEmpty, 0)
		return Saved{}, ErrEmpty
	}

	ctype := http.DetectContentType(data)
	if !strings.HasPrefix(ctype, "image/") {
		u.recorder().ObserveUpload(ResultNotImage, 0)
		return Saved{}, fmt.Errorf("%w: detected %s", ErrNotImage, ctype)
	}

	name := NewName(filename)
	obj, err := u.Store.Put(ctx, name, ctype, bytes.NewReader(data))
	if err != nil {
		u.recorder().ObserveUpload(ResultError, 0)
		return Saved{}, err
	}
	if obj.SHA256 == "" {
		obj.SHA256 = cryptoutil.SHA256Hex(data)
	}
	u.recorder().ObserveUpload(ResultStored, size)
	return Saved{Object: obj, URL: u.URL(name)}, nil
}
