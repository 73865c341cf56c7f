package port

import "context"

// KeyLocker 按 key 串行化操作，同一商品的并发变更依次执行。
type KeyLocker interface {
	// Lock 阻塞直到拿到 key 的锁或 ctx 结束，返回的 unlock 必须调用一次。
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
