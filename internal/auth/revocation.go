package auth

import (
	"context"
	"time"

	"venuely/internal/shared/constants"
	"venuely/pkg/cache"
)

// RevocationStore remembers logged-out token ids until the token would have
// expired anyway.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type cacheRevocationStore struct {
	cache cache.Service
	now   func() time.Time
}

// NewRevocationStore keeps revocations in the shared cache. Pass a Redis-backed
// service in production so every instance sees the same set.
func NewRevocationStore(c cache.Service) RevocationStore {
	return &cacheRevocationStore{cache: c, now: time.Now}
}

func (s *cacheRevocationStore) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return nil
	}
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.cache.Set(ctx, constants.BuildRevokedTokenKey(tokenID), true, ttl)
}

func (s *cacheRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	return s.cache.Exists(ctx, constants.BuildRevokedTokenKey(tokenID))
}
