package config

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultSecretTTL is how long a persisted credential is trusted before it
// is read again.
const DefaultSecretTTL = 60 * time.Second

// SecretLoader fetches a persisted value. ok is false when the key is unset.
type SecretLoader interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
}

type cachedSecret struct {
	value   string
	ok      bool
	expires time.Time
}

// SecretCache memoizes SecretLoader reads for a TTL. Lookups that fail
// are not cached.
type SecretCache struct {
	loader SecretLoader
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]cachedSecret
}

// NewSecretCache wraps loader. A non-positive ttl uses DefaultSecretTTL and
// a nil now uses time.Now.
func NewSecretCache(loader SecretLoader, ttl time.Duration, now func() time.Time) *SecretCache {
	if ttl <= 0 {
		ttl = DefaultSecretTTL
	}
	if now == nil {
		now = time.Now
	}
	return &SecretCache{loader: loader, ttl: ttl, now: now, entries: make(map[string]cachedSecret)}
}

// Get returns the cached value for key, loading it when absent or expired.
func (c *SecretCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	e, hit := c.entries[key]
	c.mu.Unlock()
	if hit && c.now().Before(e.expires) {
		return e.value, e.ok, nil
	}

	value, ok, err := c.loader.Get(ctx, key)
	if err != nil {
		return "", false, err
	}
	c.mu.Lock()
	c.entries[key] = cachedSecret{value: value, ok: ok, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return value, ok, nil
}

// Invalidate drops key so the next Get reloads it.
func (c *SecretCache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// KeyResolver answers credential lookups. For the override key a persisted
// value wins over configuration; every other key comes from configuration.
type KeyResolver struct {
	cfg         *Config
	cache       *SecretCache
	overrideKey string
}

// NewKeyResolver builds a resolver. cache may be nil when no settings
// store is configured.
func NewKeyResolver(cfg *Config, cache *SecretCache) *KeyResolver {
	return &KeyResolver{cfg: cfg, cache: cache, overrideKey: cfg.Settings.OverrideKey}
}

// Key returns the credential named by a dotted config key.
func (r *KeyResolver) Key(ctx context.Context, name string) (string, error) {
	if r.cache != nil && name == r.overrideKey {
		v, ok, err := r.cache.Get(ctx, name)
		if err != nil {
			// Fall back to configuration when the store is unreachable.
			zap.L().Warn("config: settings lookup failed, using configured key",
				zap.String("key", name), zap.Error(err))
		} else if ok && v != "" {
			return v, nil
		}
	}
	return r.cfg.Key(name), nil
}
