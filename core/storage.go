package core

import (
	"context"
	"errors"
	"io"
)

var ErrFileNotFound = errors.New("file not found")

// StoredFile describes a file persisted by a FileStorage.
type StoredFile struct {
	Key         string
	URL         string
	ContentType string
	Size        int64
}

// FileStorage persists uploaded and generated files (certificates, submissions).
type FileStorage interface {
	Save(ctx context.Context, key string, r io.Reader, contentType string) (StoredFile, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
