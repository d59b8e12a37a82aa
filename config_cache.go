package configcat

import (
	"context"
	"sync"

	"github.com/configcat/go-sdk/v9/configcatcache"
)

// ConfigCache is a cache API used to make custom cache implementations.
// A cache may be shared by several clients, even in different processes,
// using the same SDK key.
type ConfigCache interface {
	// Get reads the configuration from the cache. It returns nil or an
	// empty slice when there's no entry for key.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes the configuration into the cache.
	Set(ctx context.Context, key string, value []byte) error
}

type inMemoryConfigCache struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewInMemoryConfigCache creates an in-memory cache implementation used to store the fetched configurations.
func NewInMemoryConfigCache() ConfigCache {
	return &inMemoryConfigCache{
		values: make(map[string][]byte),
	}
}

// Get reads the configuration from the cache.
func (cache *inMemoryConfigCache) Get(ctx context.Context, key string) ([]byte, error) {
	cache.mu.RLock()
	defer cache.mu.RUnlock()
	return cache.values[key], nil
}

// Set writes the configuration into the cache.
func (cache *inMemoryConfigCache) Set(ctx context.Context, key string, value []byte) error {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.values[key] = append([]byte(nil), value...)
	return nil
}

// configStore maintains the persisted copy of the config. It remembers
// the last payload it read or wrote so that an unchanged cache entry is
// never parsed twice.
//
// configStore is not safe for concurrent use; the config service calls
// it with its mutex held, so it reports errors rather than logging them.
type configStore struct {
	cache ConfigCache
	key   string

	lastPayload string
	lastEntry   *configEntry
}

func newConfigStore(cache ConfigCache, sdkKey string) *configStore {
	return &configStore{
		cache: cache,
		key:   cacheKey(sdkKey),
	}
}

func cacheKey(sdkKey string) string {
	return configcatcache.ProduceCacheKey(sdkKey, configcatcache.ConfigJSONName, configcatcache.ConfigJSONCacheVersion)
}

// get returns the cached entry, or nil when the cache is empty.
// A malformed payload is reported as a *ParseError.
func (store *configStore) get(ctx context.Context) (*configEntry, error) {
	if store.cache == nil {
		return nil, nil
	}
	payload, err := store.cache.Get(ctx, store.key)
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, nil
	}
	if string(payload) == store.lastPayload {
		return store.lastEntry, nil
	}
	entry, err := entryFromCache(payload)
	if err != nil {
		return nil, err
	}
	store.lastPayload = string(payload)
	store.lastEntry = entry
	return entry, nil
}

// set persists entry.
func (store *configStore) set(ctx context.Context, entry *configEntry) error {
	if store.cache == nil || entry.isEmpty() {
		return nil
	}
	payload := entry.serialize()
	store.lastPayload = string(payload)
	store.lastEntry = entry
	return store.cache.Set(ctx, store.key, payload)
}
