package upload

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrNotImage    = errors.New("upload is not an image")
	ErrTooLarge    = errors.New("upload exceeds size limit")
	ErrEmpty       = errors.New("upload is empty")
	ErrNotFound    = errors.New("upload not found")
	ErrInvalidName = errors.New("invalid upload name")
)

// Object describes a stored upload.
type Object struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	SHA256      string `json:"sha256"`
}

// Info is returned with an opened object.
type Info struct {
	ContentType string
	Size        int64
	ModTime     time.Time
}

// Store is a flat namespace of immutable blobs. Names come from NewName
// and never contain path separators.
type Store interface {
	Put(ctx context.Context, name, contentType string, body io.Reader) (Object, error)
	Open(ctx context.Context, name string) (io.ReadCloser, Info, error)
}
