package upload

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"

	"github.com/keithlinneman/linnemanlabs-cms/internal/cryptoutil"
	"github.com/keithlinneman/linnemanlabs-cms/internal/xerrors"
)

// DiskStore keeps uploads as files in Dir.
type DiskStore struct {
	Dir string
}

func NewDiskStore(dir string) *DiskStore { return &DiskStore{Dir: dir} }

// Put writes to a temp file in Dir and renames it into place, so readers
// never see a partial file.
func (d *DiskStore) Put(_ context.Context, name, contentType string, body io.Reader) (Object, error) {
	if !ValidName(name) {
		return Object{}, ErrInvalidName
	}
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return Object{}, xerrors.Wrapf(err, "create upload dir %s", d.Dir)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return Object{}, xerrors.Wrap(err, "read upload body")
	}

	tmp, err := os.CreateTemp(d.Dir, ".upload-*")
	if err != nil {
		return Object{}, xerrors.Wrap(err, "create temp file")
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return Object{}, xerrors.Wrap(err, "write temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return Object{}, xerrors.Wrap(err, "close temp file")
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return Object{}, xerrors.Wrap(err, "chmod upload")
	}
	if err := os.Rename(tmpPath, filepath.Join(d.Dir, name)); err != nil {
		os.Remove(tmpPath)
		return Object{}, xerrors.Wrapf(err, "rename upload %s", name)
	}

	return Object{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
		SHA256:      cryptoutil.SHA256Hex(data),
	}, nil
}

// Open resolves name inside Dir without following paths out of it.
func (d *DiskStore) Open(_ context.Context, name string) (io.ReadCloser, Info, error) {
	if !ValidName(name) {
		return nil, Info{}, ErrNotFound
	}
	f, err := os.OpenInRoot(d.Dir, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, Info{}, ErrNotFound
		}
		return nil, Info{}, xerrors.Wrapf(err, "open upload %s", name)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, Info{}, xerrors.Wrapf(err, "stat upload %s", name)
	}
	if st.IsDir() {
		f.Close()
		return nil, Info{}, ErrNotFound
	}
	return f, Info{
		ContentType: mime.TypeByExtension(filepath.Ext(name)),
		Size:        st.Size(),
		ModTime:     st.ModTime(),
	}, nil
}
