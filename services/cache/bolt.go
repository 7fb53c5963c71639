package cachesvc

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/trezcool/hackcamp/core"
)

var bucketName = []byte("cache")

// Bolt is a file backed cache. Each value is prefixed by its expiry time (unix nanoseconds,
// 0 for none); expired keys are dropped when read.
type Bolt struct {
	db  *bolt.DB
	now func() time.Time
}

var _ core.Cache = (*Bolt)(nil) // interface compliance check

func NewBolt(path string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "creating cache directory")
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "opening bolt cache")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "creating cache bucket")
	}
	return &Bolt{db: db, now: time.Now}, nil
}

func (c *Bolt) Get(_ context.Context, key string) ([]byte, error) {
	var (
		val     []byte
		expired bool
	)
	err := c.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketName).Get([]byte(key))
		if len(raw) < 8 {
			return core.ErrCacheMiss
		}
		if exp := int64(binary.BigEndian.Uint64(raw[:8])); exp != 0 && c.now().UnixNano() >= exp {
			expired = true
			return core.ErrCacheMiss
		}
		val = append([]byte(nil), raw[8:]...) // raw is only valid during the tx
		return nil
	})
	if expired {
		_ = c.Delete(context.Background(), key)
	}
	return val, err
}

func (c *Bolt) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	var exp int64
	if ttl > 0 {
		exp = c.now().Add(ttl).UnixNano()
	}
	raw := make([]byte, 8+len(val))
	binary.BigEndian.PutUint64(raw[:8], uint64(exp))
	copy(raw[8:], val)

	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), raw)
	})
}

func (c *Bolt) Delete(_ context.Context, keys ...string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		for _, key := range keys {
			if err := b.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *Bolt) Close() error {
	return c.db.Close()
}
