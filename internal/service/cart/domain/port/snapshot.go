package port

import "context"

// SnapshotStore 是购物车快照的持久化 KV 存储。
// 每次成功变更后整体覆盖写入同一个 key。
type SnapshotStore interface {
	// Get 返回 key 对应的值；key 不存在时 found 为 false 且 err 为 nil。
	Get(ctx context.Context, key string) (value string, found bool, err error)

	Set(ctx context.Context, key, value string) error
}
