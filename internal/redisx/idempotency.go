package redisx

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const idemPending = "pending"

// ClaimIdempotency reserves key for the caller with a pending marker. When
// another request already holds it, claimed is false and stored is that
// request's recorded result, or empty while it is still in flight.
func ClaimIdempotency(ctx context.Context, rdb *redis.Client, key string) (claimed bool, stored string, err error) {
	ok, err := rdb.SetNX(ctx, key, idemPending, TTLIdemPending).Result()
	if err != nil || ok {
		return ok, "", err
	}
	v, err := rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) || v == idemPending {
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}
	return false, v, nil
}

// CompleteIdempotency replaces the pending marker with the request's result.
func CompleteIdempotency(ctx context.Context, rdb *redis.Client, key string, result []byte) error {
	return rdb.Set(ctx, key, result, TTLIdempotency).Err()
}

// ReleaseIdempotency drops a claim whose request failed, so the client may retry.
func ReleaseIdempotency(ctx context.Context, rdb *redis.Client, key string) error {
	return rdb.Del(ctx, key).Err()
}
