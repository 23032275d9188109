package throttle

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	failKeyPrefix = "login:fail:"
	lockKeyPrefix = "login:lock:"
)

// RedisStore は試行回数をRedisで管理します。
// 複数インスタンスで同じ制限を共有する場合に使用します。
type RedisStore struct {
	rdb    *redis.Client
	policy Policy
}

// NewRedisStore はRedisStoreを作成します。
func NewRedisStore(rdb *redis.Client, policy Policy) *RedisStore {
	return &RedisStore{
		rdb:    rdb,
		policy: policy,
	}
}

// Check はロックキーの残りTTLを返します。
func (s *RedisStore) Check(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.rdb.PTTL(ctx, lockKeyPrefix+key).Result()
	if err != nil {
		return 0, err
	}
	if ttl > 0 {
		return ttl, nil
	}
	return 0, nil
}

// RecordFailure は失敗回数をインクリメントし、上限に達したらロックキーを設定します。
func (s *RedisStore) RecordFailure(ctx context.Context, key string) (int, error) {
	failKey := failKeyPrefix + key

	count, err := s.rdb.Incr(ctx, failKey).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		// 最初の失敗からWindow経過でカウントを破棄する
		if err := s.rdb.Expire(ctx, failKey, s.policy.Window).Err(); err != nil {
			return 0, err
		}
	}

	if count >= int64(s.policy.MaxAttempts) {
		pipe := s.rdb.TxPipeline()
		pipe.Set(ctx, lockKeyPrefix+key, 1, s.policy.Lock)
		pipe.Del(ctx, failKey)
		if _, err := pipe.Exec(ctx); err != nil {
			return 0, err
		}
		return 0, nil
	}

	remaining := s.policy.MaxAttempts - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Reset は失敗回数とロックを消去します。
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, failKeyPrefix+key, lockKeyPrefix+key).Err()
}
