package providers

import (
	"bakso/internal/structures"
	"github.com/coocood/freecache"
	"time"
	"unsafe"
)

type CacheProviderInterface interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
	Del(key string)
	Range(fn func(key string, value []byte))
	Enabled() bool
}

type CacheProvider struct {
	cache *freecache.Cache
}

func NewCacheProvider(conf *structures.Config, logger Logger) CacheProviderInterface {
	if !conf.Cache.Enabled || conf.Cache.Size <= 0 {
		logger.Infof(TypeApp, "Cache disabled")
		return &noopCache{}
	}

	sizeBytes := conf.Cache.Size * 1024 * 1024
	logger.Infof(TypeApp, "Cache initialized: %dMB", conf.Cache.Size)

	return &CacheProvider{
		cache: freecache.NewCache(sizeBytes),
	}
}

// unsafeStringToBytes converts string to []byte without allocation.
// Safe when the result is only read (not modified), which is the case
// for freecache, it copies keys internally.
func unsafeStringToBytes(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

// ttlSeconds rounds up to whole seconds; freecache treats 0 as "never expire".
func ttlSeconds(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	secs := int((ttl + time.Second - 1) / time.Second)
	return max(secs, 1)
}

func (c *CacheProvider) Get(key string) ([]byte, bool) {
	val, err := c.cache.Get(unsafeStringToBytes(key))
	if err != nil {
		return nil, false
	}
	return val, true
}

func (c *CacheProvider) Set(key string, value []byte, ttl time.Duration) {
	_ = c.cache.Set(unsafeStringToBytes(key), value, ttlSeconds(ttl))
}

func (c *CacheProvider) Del(key string) {
	c.cache.Del(unsafeStringToBytes(key))
}

func (c *CacheProvider) Range(fn func(key string, value []byte)) {
	it := c.cache.NewIterator()
	for entry := it.Next(); entry != nil; entry = it.Next() {
		fn(string(entry.Key), entry.Value)
	}
}

func (c *CacheProvider) Enabled() bool { return true }

type noopCache struct{}

func (n *noopCache) Get(_ string) ([]byte, bool)              { return nil, false }
func (n *noopCache) Set(_ string, _ []byte, _ time.Duration) {}
func (n *noopCache) Del(_ string)                             {}
func (n *noopCache) Range(_ func(string, []byte))             {}
func (n *noopCache) Enabled() bool                            { return false }
