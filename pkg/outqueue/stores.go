package outqueue

import (
	"github.com/redis/go-redis/v9"

	"github.com/bft-labs/outqueue/internal/adapters/store"
)

// NewMemoryStore returns a process-local store. A quota of 0 is unlimited.
func NewMemoryStore(quota int) Store {
	return store.NewMemory(quota)
}

// NewFileStore returns a store keeping one JSON file per queue in dir.
func NewFileStore(dir string, quota int64) Store {
	return store.NewFile(dir, quota)
}

// NewRedisStore returns a store backed by client. Keys are prefixed with
// prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) Store {
	return store.NewRedis(client, store.WithKeyPrefix(prefix))
}

// ConnectRedis creates a client from a redis:// URL or host:port.
func ConnectRedis(url string) (*redis.Client, error) {
	return store.ConnectRedis(url)
}
