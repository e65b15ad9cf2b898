package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-oidc-store/core"
)

const clientCacheKeyPrefix = "go-oidc-store::client::v1"

// CachedEngine layers a read-through cache over client lookups. Clients are
// registered out-of-band and rarely mutated, yet the provider library loads
// one on nearly every operation, so they are the only kind worth caching.
// All other kinds pass straight through to the base engine.
type CachedEngine struct {
	base  core.StorageEngine
	cache repositorycache.CacheService
}

var _ core.StorageEngine = (*CachedEngine)(nil)

type cachedClient struct {
	Entity core.Entity
	Found  bool
}

func NewCachedEngine(base core.StorageEngine, cacheService repositorycache.CacheService) (*CachedEngine, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base storage engine is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: cache service is required")
	}
	return &CachedEngine{base: base, cache: cacheService}, nil
}

// ClientCacheKey returns the deterministic cache key for a client id:
// go-oidc-store::client::v1::<client_id> with the id URL-path escaped.
func ClientCacheKey(clientID string) string {
	return clientCacheKeyPrefix + "::" + url.PathEscape(strings.TrimSpace(clientID))
}

func (e *CachedEngine) Get(ctx context.Context, kind core.Kind, key string) (core.Entity, bool, error) {
	if err := e.ready(); err != nil {
		return core.Entity{}, false, err
	}
	if kind != core.KindClient {
		return e.base.Get(ctx, kind, key)
	}

	cached, err := repositorycache.GetOrFetch(ctx, e.cache, ClientCacheKey(key), func(ctx context.Context) (cachedClient, error) {
		entity, found, fetchErr := e.base.Get(ctx, kind, key)
		if fetchErr != nil {
			return cachedClient{}, fetchErr
		}
		return cachedClient{Entity: entity, Found: found}, nil
	})
	if err != nil {
		return core.Entity{}, false, err
	}
	return cached.Entity, cached.Found, nil
}

func (e *CachedEngine) Put(ctx context.Context, kind core.Kind, key string, payload core.Payload, ttl time.Duration) (core.Entity, error) {
	if err := e.ready(); err != nil {
		return core.Entity{}, err
	}
	entity, err := e.base.Put(ctx, kind, key, payload, ttl)
	if err != nil {
		return core.Entity{}, err
	}
	if invalidateErr := e.invalidate(ctx, kind, key); invalidateErr != nil {
		return core.Entity{}, invalidateErr
	}
	return entity, nil
}

func (e *CachedEngine) Merge(ctx context.Context, kind core.Kind, key string, payload core.Payload, ttl time.Duration) (core.Entity, error) {
	if err := e.ready(); err != nil {
		return core.Entity{}, err
	}
	entity, err := e.base.Merge(ctx, kind, key, payload, ttl)
	if err != nil {
		return core.Entity{}, err
	}
	if invalidateErr := e.invalidate(ctx, kind, key); invalidateErr != nil {
		return core.Entity{}, invalidateErr
	}
	return entity, nil
}

func (e *CachedEngine) GetByIndex(ctx context.Context, kind core.Kind, field core.IndexField, value string) (core.Entity, bool, error) {
	if err := e.ready(); err != nil {
		return core.Entity{}, false, err
	}
	return e.base.GetByIndex(ctx, kind, field, value)
}

func (e *CachedEngine) Delete(ctx context.Context, kind core.Kind, key string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.base.Delete(ctx, kind, key); err != nil {
		return err
	}
	return e.invalidate(ctx, kind, key)
}

func (e *CachedEngine) DeleteWhere(ctx context.Context, kind core.Kind, field core.IndexField, value string) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	// clients carry no index fields, so bulk deletes never touch the cache
	return e.base.DeleteWhere(ctx, kind, field, value)
}

func (e *CachedEngine) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	// clients are stored without TTL; the purge cannot invalidate them
	return e.base.PurgeExpired(ctx, now)
}

func (e *CachedEngine) invalidate(ctx context.Context, kind core.Kind, key string) error {
	if kind != core.KindClient {
		return nil
	}
	return e.cache.Delete(ctx, ClientCacheKey(key))
}

func (e *CachedEngine) ready() error {
	if e == nil || e.base == nil || e.cache == nil {
		return fmt.Errorf("sqlstore: cached engine is not configured")
	}
	return nil
}
