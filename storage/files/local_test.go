package files

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/hackcamp/core"
)

func TestLocal(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocal(t.TempDir(), "http://localhost/media/")
	require.NoError(t, err)

	stored, err := store.Save(ctx, "certificates/c1/cert.pdf", strings.NewReader("%PDF-1.4 hello"), core.ContentTypePDF)
	require.NoError(t, err)
	assert.Equal(t, "certificates/c1/cert.pdf", stored.Key)
	assert.Equal(t, "http://localhost/media/certificates/c1/cert.pdf", stored.URL)
	assert.EqualValues(t, 14, stored.Size)

	rc, err := store.Open(ctx, stored.Key)
	require.NoError(t, err)
	content, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 hello", string(content))

	require.NoError(t, store.Delete(ctx, stored.Key))
	_, err = store.Open(ctx, stored.Key)
	assert.Equal(t, core.ErrFileNotFound, err)

	// deleting a missing file is not an error
	assert.NoError(t, store.Delete(ctx, stored.Key))
}

func TestLocalRejectsEscapingKeys(t *testing.T) {
	store, err := NewLocal(t.TempDir(), "http://localhost/media")
	require.NoError(t, err)

	for _, key := range []string{"../etc/passwd", "a/../../b", ""} {
		_, err := store.Save(context.Background(), key, strings.NewReader("x"), "text/plain")
		assert.Error(t, err, key)
	}
}
