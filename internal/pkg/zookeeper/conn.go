// internal/pkg/zookeeper/conn.go
package zookeeper

import (
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"
)

// Client 是锁用到的 zk.Conn 方法子集，测试里可以换成内存实现
type Client interface {
	Exists(path string) (bool, *zk.Stat, error)
	ExistsW(path string) (bool, *zk.Stat, <-chan zk.Event, error)
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	CreateProtectedEphemeralSequential(path string, data []byte, acl []zk.ACL) (string, error)
	Children(path string) ([]string, *zk.Stat, error)
	Delete(path string, version int32) error
}

// Conn 包装 zk.Conn，实现 Client
type Conn struct {
	*zk.Conn
}

// Connect servers 格式为 "host1:2181,host2:2181"
func Connect(servers string, sessionTimeout time.Duration) (*Conn, error) {
	var list []string
	for _, s := range strings.Split(servers, ",") {
		if s = strings.TrimSpace(s); s != "" {
			list = append(list, s)
		}
	}
	if len(list) == 0 {
		return nil, errors.New("no zookeeper server configured")
	}
	c, _, err := zk.Connect(list, sessionTimeout, zk.WithLogInfo(false))
	if err != nil {
		return nil, errors.Wrap(err, "connect zookeeper")
	}
	return &Conn{Conn: c}, nil
}

// ensurePath 创建持久节点，节点已存在视为成功
func ensurePath(c Client, path string) error {
	exists, _, err := c.Exists(path)
	if err != nil {
		return errors.Wrapf(err, "check %s", path)
	}
	if exists {
		return nil
	}
	_, err = c.Create(path, []byte(""), 0, zk.WorldACL(zk.PermAll))
	if err != nil && !errors.Is(err, zk.ErrNodeExists) {
		return errors.Wrapf(err, "create %s", path)
	}
	return nil
}
