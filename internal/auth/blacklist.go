package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mithaiwala/sweetshop/internal/redisx"
)

// Blacklist stores revoked tokens in redis until their natural expiry.
type Blacklist struct {
	RDB *redis.Client
}

func (b *Blacklist) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	key := fmt.Sprintf(redisx.KeyTokenBlacklist, token)
	return b.RDB.Set(ctx, key, "1", ttl).Err()
}

func (b *Blacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	key := fmt.Sprintf(redisx.KeyTokenBlacklist, token)
	return redisx.Exists(ctx, b.RDB, key)
}
