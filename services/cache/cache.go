// Package cachesvc implements core.Cache on Redis, falling back to a bbolt file when no Redis
// address is configured.
package cachesvc

import (
	"github.com/trezcool/hackcamp/core"
)

// New returns a Redis cache when conf.Redis.Addr is set, a bbolt cache otherwise.
func New(conf *core.Config) (core.Cache, error) {
	if conf.Redis.Addr != "" {
		return NewRedis(conf.Redis)
	}
	return NewBolt(conf.BoltPath)
}
