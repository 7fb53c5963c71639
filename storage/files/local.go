package files

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/trezcool/hackcamp/core"
)

// Local stores files under a root directory.
// The API only serves them through its authorized download endpoints, so stored files have no URL
// unless baseURL points to a server the operator put in front of root.
type Local struct {
	root    string
	baseURL string
}

var _ core.FileStorage = (*Local)(nil) // interface compliance check

func NewLocal(root, baseURL string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating storage directory")
	}
	return &Local{root: root, baseURL: baseURL}, nil
}

func (s *Local) url(key string) string {
	if s.baseURL == "" {
		return ""
	}
	return joinURL(s.baseURL, key)
}

func (s *Local) path(key string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// Save writes to a temporary file first, so readers never see partial content.
func (s *Local) Save(_ context.Context, key string, r io.Reader, contentType string) (core.StoredFile, error) {
	fp, err := s.path(key)
	if err != nil {
		return core.StoredFile{}, err
	}
	if err = os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return core.StoredFile{}, errors.Wrap(err, "creating file directory")
	}

	tmp, err := os.CreateTemp(filepath.Dir(fp), ".upload-*")
	if err != nil {
		return core.StoredFile{}, errors.Wrap(err, "creating temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	size, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return core.StoredFile{}, errors.Wrap(err, "writing file")
	}
	if err = os.Rename(tmp.Name(), fp); err != nil {
		return core.StoredFile{}, errors.Wrap(err, "moving file")
	}

	return core.StoredFile{
		Key:         key,
		URL:         s.url(key),
		ContentType: contentType,
		Size:        size,
	}, nil
}

func (s *Local) Open(_ context.Context, key string) (io.ReadCloser, error) {
	fp, err := s.path(key)
	if err != nil {
		return nil, core.ErrFileNotFound
	}
	f, err := os.Open(fp)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.ErrFileNotFound
		}
		return nil, errors.Wrap(err, "opening file")
	}
	return f, nil
}

// Delete is a no-op when the file does not exist.
func (s *Local) Delete(_ context.Context, key string) error {
	fp, err := s.path(key)
	if err != nil {
		return err
	}
	if err = os.Remove(fp); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing file")
	}
	return nil
}
