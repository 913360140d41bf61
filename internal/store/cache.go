package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"licenseapi/internal/license"
	"licenseapi/pkg/contracts/domain"
)

// DefaultCacheTTL bounds how stale a cached license may get even if an
// invalidation is lost.
const DefaultCacheTTL = 30 * time.Second

// CachedStore decorates a license.Store with a Redis read-through cache for
// key lookups. Mutations write through to the inner store and drop the
// cached entry. A stale read is harmless for correctness: every mutation is
// still a conditional update against the inner store, which arbitrates; the
// cache only serves the read-mostly verification traffic.
type CachedStore struct {
	inner  license.Store
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedStore wraps inner with a Redis cache. A zero ttl selects
// DefaultCacheTTL.
func NewCachedStore(inner license.Store, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedStore{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "license_cache")),
	}
}

func cacheKey(key string) string {
	return "license:key:" + key
}

func emailIndexKey(email string) string {
	return "license:email:" + email
}

// FindByKey implements license.Store with a read-through cache.
func (s *CachedStore) FindByKey(ctx context.Context, key string) (*domain.License, error) {
	data, err := s.client.Get(ctx, cacheKey(key)).Bytes()
	if err == nil {
		var lic domain.License
		if unmarshalErr := json.Unmarshal(data, &lic); unmarshalErr == nil {
			return &lic, nil
		}
		// Corrupt entry: fall through to the inner store and rewrite it.
	} else if !errors.Is(err, redis.Nil) {
		// Redis being down must not take license lookups down with it.
		s.logger.WarnContext(ctx, "cache read failed, falling back to store",
			slog.String("error", err.Error()))
	}

	lic, err := s.inner.FindByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, lic)
	return lic, nil
}

// FindActiveByEmail implements license.Store; always served by the inner
// store because the duplicate-issue policy check must not act on stale data.
func (s *CachedStore) FindActiveByEmail(ctx context.Context, email string) (*domain.License, error) {
	return s.inner.FindActiveByEmail(ctx, email)
}

// Insert implements license.Store.
func (s *CachedStore) Insert(ctx context.Context, lic *domain.License) error {
	if err := s.inner.Insert(ctx, lic); err != nil {
		return err
	}
	s.invalidate(ctx, lic.LicenseKey)
	return nil
}

// UpdateWhere implements license.Store, dropping the cached entry after a
// successful write.
func (s *CachedStore) UpdateWhere(ctx context.Context, key string, expect license.Expectation, set license.Mutation) error {
	if err := s.inner.UpdateWhere(ctx, key, expect, set); err != nil {
		return err
	}
	s.invalidate(ctx, key)
	return nil
}

// RevokeAllByEmail implements license.Store. The per-email index collected
// during cache fills tells us which cached keys to drop.
func (s *CachedStore) RevokeAllByEmail(ctx context.Context, email string, at time.Time) (int64, error) {
	affected, err := s.inner.RevokeAllByEmail(ctx, email, at)
	if err != nil {
		return 0, err
	}
	keys, redisErr := s.client.SMembers(ctx, emailIndexKey(email)).Result()
	if redisErr == nil {
		for _, key := range keys {
			s.invalidate(ctx, key)
		}
		s.client.Del(ctx, emailIndexKey(email))
	}
	return affected, nil
}

func (s *CachedStore) fill(ctx context.Context, lic *domain.License) {
	data, err := json.Marshal(lic)
	if err != nil {
		return
	}
	if err := s.client.Set(ctx, cacheKey(lic.LicenseKey), data, s.ttl).Err(); err != nil {
		s.logger.WarnContext(ctx, "cache fill failed",
			slog.String("error", err.Error()))
		return
	}
	s.client.SAdd(ctx, emailIndexKey(lic.Email), lic.LicenseKey)
	s.client.Expire(ctx, emailIndexKey(lic.Email), s.ttl)
}

func (s *CachedStore) invalidate(ctx context.Context, key string) {
	if err := s.client.Del(ctx, cacheKey(key)).Err(); err != nil {
		s.logger.WarnContext(ctx, "cache invalidation failed",
			slog.String("license_key", license.MaskKey(key)),
			slog.String("error", err.Error()))
	}
}
