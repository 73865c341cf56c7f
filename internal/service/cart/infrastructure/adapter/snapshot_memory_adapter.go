package adapter

import (
	"context"
	"sync"
)

// SnapshotMemoryAdapter 是进程内的 port.SnapshotStore，用于本地运行和测试
type SnapshotMemoryAdapter struct {
	mu     sync.RWMutex
	values map[string]string
	writes int
}

func NewSnapshotMemoryAdapter() *SnapshotMemoryAdapter {
	return &SnapshotMemoryAdapter{values: make(map[string]string)}
}

func (a *SnapshotMemoryAdapter) Get(_ context.Context, key string) (string, bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.values[key]
	return v, ok, nil
}

func (a *SnapshotMemoryAdapter) Set(_ context.Context, key, value string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.values[key] = value
	a.writes++
	return nil
}

// Writes 返回 Set 被调用的次数
func (a *SnapshotMemoryAdapter) Writes() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.writes
}
