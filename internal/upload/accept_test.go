package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type memStore struct {
	mu   sync.Mutex
	objs map[string][]byte
	err  error
}

func (m *memStore) Put(_ context.Context, name, ctype string, body io.Reader) (Object, error) {
	if m.err != nil {
		return Object{}, m.err
	}
	b, _ := io.ReadAll(body)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objs == nil {
		m.objs = map[string][]byte{}
	}
	m.objs[name] = b
	return Object{Name: name, ContentType: ctype, Size: int64(len(b))}, nil
}

func (m *memStore) Open(_ context.Context, name string) (io.ReadCloser, Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objs[name]
	if !ok {
		return nil, Info{}, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), Info{Size: int64(len(b))}, nil
}

type resultRecorder struct{ results []string }

func (r *resultRecorder) ObserveUpload(result string, _ int64) { r.results = append(r.results, result) }

func TestUploader_SaveImage(t *testing.T) {
	store := &memStore{}
	rec := &resultRecorder{}
	u := &Uploader{Store: store, BaseURL: "http://cms.example/", MaxBytes: 1024, Recorder: rec}

	saved, err := u.Save(context.Background(), "hero.png", bytes.NewReader(pngHeader))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasSuffix(saved.Name, "_hero.png") {
		t.Fatalf("name = %q", saved.Name)
	}
	if saved.URL != "http://cms.example/uploads/"+saved.Name {
		t.Fatalf("url = %q", saved.URL)
	}
	if saved.ContentType != "image/png" || saved.Size != int64(len(pngHeader)) || len(saved.SHA256) != 64 {
		t.Fatalf("saved = %+v", saved)
	}
	if !bytes.Equal(store.objs[saved.Name], pngHeader) {
		t.Fatal("stored bytes differ")
	}
	if len(rec.results) != 1 || rec.results[0] != ResultStored {
		t.Fatalf("results = %v", rec.results)
	}
}

func TestUploader_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		body   []byte
		max    int64
		want   error
		result string
	}{
		{"not image", []byte("<html><script>alert(1)</script>"), 1024, ErrNotImage, ResultNotImage},
		{"too large", append(append([]byte{}, pngHeader...), make([]byte, 100)...), 32, ErrTooLarge, ResultTooLarge},
		{"empty", nil, 1024, ErrEmpty, ResultEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memStore{}
			rec := &resultRecorder{}
			u := &Uploader{Store: store, BaseURL: "http://x", MaxBytes: tt.max, Recorder: rec}
			if _, err := u.Save(context.Background(), "a.png", bytes.NewReader(tt.body)); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if len(store.objs) != 0 {
				t.Fatal("rejected upload was stored")
			}
			if len(rec.results) != 1 || rec.results[0] != tt.result {
				t.Fatalf("results = %v", rec.results)
			}
		})
	}
}

func TestUploader_StoreError(t *testing.T) {
	boom := errors.New("disk full")
	u := &Uploader{Store: &memStore{err: boom}, MaxBytes: 1024}
	if _, err := u.Save(context.Background(), "a.png", bytes.NewReader(pngHeader)); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}
