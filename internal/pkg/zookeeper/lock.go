// internal/pkg/zookeeper/lock.go
package zookeeper

import (
	"context"
	"sort"
	"strings"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"
)

const (
	lockRoot   = "/distributed_locks" // 所有分布式锁的根节点
	nodePrefix = "lock-"
)

// DistributedLock 基于临时顺序节点的分布式锁
type DistributedLock struct {
	conn     Client
	path     string // 锁的路径，例如 /distributed_locks/cart:product:5
	lockNode string // 成功获取锁后，自己创建的节点路径
}

// NewDistributedLock 创建锁实例，并确保锁的父节点存在
func NewDistributedLock(conn Client, resourceID string) (*DistributedLock, error) {
	if err := ensurePath(conn, lockRoot); err != nil {
		return nil, err
	}
	lockPath := lockRoot + "/" + strings.ReplaceAll(resourceID, "/", "_")
	if err := ensurePath(conn, lockPath); err != nil {
		return nil, err
	}
	return &DistributedLock{conn: conn, path: lockPath}, nil
}

// Lock 阻塞直到获取锁或 ctx 结束
func (l *DistributedLock) Lock(ctx context.Context) error {
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(l.path+"/"+nodePrefix, []byte(""), zk.WorldACL(zk.PermAll))
	if err != nil {
		return errors.Wrap(err, "failed to create sequential node")
	}
	l.lockNode = nodePath
	myNode := strings.TrimPrefix(nodePath, l.path+"/")

	for {
		children, _, err := l.conn.Children(l.path)
		if err != nil {
			l.release()
			return errors.Wrap(err, "failed to get children nodes")
		}
		// protected 节点带有 guid 前缀，只能按序号排序
		sort.Slice(children, func(i, j int) bool {
			return sequenceOf(children[i]) < sequenceOf(children[j])
		})

		idx := indexOf(children, myNode)
		if idx < 0 {
			l.release()
			return errors.New("own lock node disappeared, session probably expired")
		}
		if idx == 0 {
			return nil
		}

		prevNodePath := l.path + "/" + children[idx-1]
		exists, _, eventChan, err := l.conn.ExistsW(prevNodePath)
		if err != nil {
			l.release()
			return errors.Wrap(err, "failed to watch previous node")
		}
		if !exists {
			continue
		}

		select {
		case event := <-eventChan:
			if event.Type == zk.EventNodeDeleted {
				continue
			}
		case <-ctx.Done():
			l.release()
			return ctx.Err()
		}
	}
}

// Unlock 释放锁
func (l *DistributedLock) Unlock() error {
	if l.lockNode == "" {
		return errors.New("no lock to unlock")
	}
	return l.release()
}

func (l *DistributedLock) release() error {
	node := l.lockNode
	l.lockNode = ""
	err := l.conn.Delete(node, -1)
	if err != nil && !errors.Is(err, zk.ErrNoNode) {
		return errors.Wrap(err, "failed to delete lock node")
	}
	return nil
}

// sequenceOf 返回节点名末尾的 10 位序号，zk 保证序号定长补零
func sequenceOf(node string) string {
	if len(node) < 10 {
		return node
	}
	return node[len(node)-10:]
}

func indexOf(nodes []string, name string) int {
	for i, n := range nodes {
		if n == name {
			return i
		}
	}
	return -1
}
