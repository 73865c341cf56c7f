package adapter

import (
	"context"

	"shopcart/internal/pkg/logger"
	"shopcart/internal/pkg/zookeeper"
)

// ZookeeperLocker 用 ZooKeeper 分布式锁实现 port.KeyLocker，
// 多个 cart-service 副本共享同一个快照 key 时使用。
type ZookeeperLocker struct {
	conn zookeeper.Client
}

func NewZookeeperLocker(conn zookeeper.Client) *ZookeeperLocker {
	return &ZookeeperLocker{conn: conn}
}

func (z *ZookeeperLocker) Lock(ctx context.Context, key string) (func(), error) {
	lock, err := zookeeper.NewDistributedLock(z.conn, key)
	if err != nil {
		return nil, err
	}
	if err := lock.Lock(ctx); err != nil {
		return nil, err
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("key", key).Msg("failed to release zookeeper lock")
		}
	}, nil
}
