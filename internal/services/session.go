package services

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevokedTokenKeyPrefix is the Redis key prefix for logged-out token ids.
const RevokedTokenKeyPrefix = "revoked_token:"

// TokenRevoker remembers logged-out tokens until they would have expired anyway.
type TokenRevoker struct {
	rdb redis.Cmdable
	now func() time.Time
}

func NewTokenRevoker(rdb redis.Cmdable) *TokenRevoker {
	return &TokenRevoker{rdb: rdb, now: time.Now}
}

// Revoke marks jti as unusable until expiresAt. Already-expired tokens are ignored.
func (r *TokenRevoker) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return nil
	}
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	return r.rdb.Set(ctx, RevokedTokenKeyPrefix+jti, 1, ttl).Err()
}

func (r *TokenRevoker) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	n, err := r.rdb.Exists(ctx, RevokedTokenKeyPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
