package adapter

import (
	"context"

	"github.com/pkg/errors"

	"shopcart/internal/pkg/redis"
)

// SnapshotRedisAdapter 是 port.SnapshotStore 的 Redis 实现，整份快照存为一个 string。
type SnapshotRedisAdapter struct {
	redisClient *redis.Client
}

func NewSnapshotRedisAdapter(redisClient *redis.Client) *SnapshotRedisAdapter {
	return &SnapshotRedisAdapter{redisClient: redisClient}
}

func (a *SnapshotRedisAdapter) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := a.redisClient.GetClient().Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "redis GET %s", key)
	}
	return val, true, nil
}

// Set 不设置过期时间，快照与进程生命周期无关
func (a *SnapshotRedisAdapter) Set(ctx context.Context, key, value string) error {
	if err := a.redisClient.GetClient().Set(ctx, key, value, 0).Err(); err != nil {
		return errors.Wrapf(err, "redis SET %s", key)
	}
	return nil
}
