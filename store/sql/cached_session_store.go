package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-rpcsession/core"
)

const sessionCacheKeyPrefix = "go-rpcsession::session::v1"

// CachedSessionStore reads sessions through a cache and evicts the entry
// on every write.
type CachedSessionStore struct {
	base  core.SessionStore
	cache repositorycache.CacheService
}

func NewCachedSessionStore(base core.SessionStore, cacheService repositorycache.CacheService) (*CachedSessionStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base session store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: session cache service is required")
	}
	return &CachedSessionStore{base: base, cache: cacheService}, nil
}

// SessionCacheKey returns go-rpcsession::session::v1::<principal>::<endpoint>
// with each segment URL-path escaped.
func SessionCacheKey(key core.SessionKey) (string, error) {
	key = normalizeSessionKey(key)
	if key.Principal == "" {
		return "", fmt.Errorf("sqlstore: session principal is required")
	}
	return strings.Join([]string{
		sessionCacheKeyPrefix,
		url.PathEscape(key.Principal),
		url.PathEscape(key.Endpoint),
	}, "::"), nil
}

func (s *CachedSessionStore) Load(ctx context.Context, key core.SessionKey) (core.Session, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Session{}, fmt.Errorf("sqlstore: cached session store is not configured")
	}
	cacheKey, err := SessionCacheKey(key)
	if err != nil {
		return core.Session{}, err
	}
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.Session, error) {
		return s.base.Load(ctx, key)
	})
}

func (s *CachedSessionStore) Save(ctx context.Context, key core.SessionKey, session core.Session) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached session store is not configured")
	}
	if err := s.base.Save(ctx, key, session); err != nil {
		return err
	}
	return s.evict(ctx, key)
}

func (s *CachedSessionStore) Delete(ctx context.Context, key core.SessionKey) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached session store is not configured")
	}
	if err := s.base.Delete(ctx, key); err != nil {
		return err
	}
	return s.evict(ctx, key)
}

func (s *CachedSessionStore) evict(ctx context.Context, key core.SessionKey) error {
	cacheKey, err := SessionCacheKey(key)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}
