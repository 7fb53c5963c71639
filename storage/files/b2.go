package files

import (
	"context"
	"fmt"
	"io"

	"github.com/kurin/blazer/b2"
	"github.com/pkg/errors"

	"github.com/trezcool/hackcamp/core"
)

// B2 stores files in a Backblaze B2 bucket.
type B2 struct {
	client  *b2.Client
	bucket  *b2.Bucket
	baseURL string
}

var _ core.FileStorage = (*B2)(nil) // interface compliance check

func NewB2(ctx context.Context, conf core.StorageConfig) (*B2, error) {
	client, err := b2.NewClient(ctx, conf.B2AccountID, conf.B2AppKey)
	if err != nil {
		return nil, errors.Wrap(err, "creating B2 client")
	}
	bucket, err := client.Bucket(ctx, conf.B2Bucket)
	if err != nil {
		return nil, errors.Wrap(err, "getting B2 bucket")
	}

	baseURL := conf.PublicBaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("%s/file/%s", bucket.BaseURL(), bucket.Name())
	}
	return &B2{client: client, bucket: bucket, baseURL: baseURL}, nil
}

func (s *B2) Save(ctx context.Context, key string, r io.Reader, contentType string) (core.StoredFile, error) {
	key, err := cleanKey(key)
	if err != nil {
		return core.StoredFile{}, err
	}

	w := s.bucket.Object(key).NewWriter(ctx, b2.WithAttrsOption(&b2.Attrs{ContentType: contentType}))
	size, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return core.StoredFile{}, errors.Wrap(err, "writing B2 object")
	}
	if err = w.Close(); err != nil {
		return core.StoredFile{}, errors.Wrap(err, "closing B2 writer")
	}

	return core.StoredFile{
		Key:         key,
		URL:         joinURL(s.baseURL, key),
		ContentType: contentType,
		Size:        size,
	}, nil
}

func (s *B2) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj := s.bucket.Object(key)
	if _, err := obj.Attrs(ctx); err != nil {
		if b2.IsNotExist(err) {
			return nil, core.ErrFileNotFound
		}
		return nil, errors.Wrap(err, "reading B2 object attributes")
	}
	return obj.NewReader(ctx), nil
}

func (s *B2) Delete(ctx context.Context, key string) error {
	if err := s.bucket.Object(key).Delete(ctx); err != nil && !b2.IsNotExist(err) {
		return errors.Wrap(err, "deleting B2 object")
	}
	return nil
}
