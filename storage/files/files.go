// Package files implements core.FileStorage on the local disk, S3 and Backblaze B2.
package files

import (
	"context"
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/hackcamp/core"
)

// New returns the storage backend selected by conf.Storage.Backend.
func New(ctx context.Context, conf *core.Config) (core.FileStorage, error) {
	switch conf.Storage.Backend {
	case "", "local":
		return NewLocal(conf.Storage.LocalDir, conf.Storage.PublicBaseURL)
	case "s3":
		return NewS3(conf.Storage)
	case "b2":
		return NewB2(ctx, conf.Storage)
	default:
		return nil, errors.Errorf("unknown storage backend %q", conf.Storage.Backend)
	}
}

// cleanKey rejects keys escaping the storage root.
func cleanKey(key string) (string, error) {
	cleaned := path.Clean("/" + key)[1:]
	if cleaned == "" || cleaned != strings.TrimPrefix(key, "/") {
		return "", errors.Errorf("invalid file key %q", key)
	}
	return cleaned, nil
}

func joinURL(base, key string) string {
	return strings.TrimSuffix(base, "/") + "/" + key
}
