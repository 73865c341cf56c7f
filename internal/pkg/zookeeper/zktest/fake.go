// Package zktest 提供 zookeeper.Client 的内存实现，用于在没有 ZooKeeper 集群时测试分布式锁。
// 只实现锁用到的语义：持久/临时节点、顺序节点、子节点列表和删除 watch。
package zktest

import (
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/go-zookeeper/zk"
)

// Conn 是单会话的内存 ZooKeeper
type Conn struct {
	mu        sync.Mutex
	nodes     map[string]bool // path -> 是否临时节点
	seq       map[string]int  // 父节点 -> 下一个顺序号
	watches   map[string][]chan zk.Event
	guid      int
	createErr error
}

func New() *Conn {
	return &Conn{
		nodes:   map[string]bool{"/": false},
		seq:     map[string]int{},
		watches: map[string][]chan zk.Event{},
	}
}

// FailCreate 让之后的 Create 返回 err，传 nil 恢复
func (c *Conn) FailCreate(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.createErr = err
}

func (c *Conn) Exists(p string) (bool, *zk.Stat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.nodes[p]
	return ok, &zk.Stat{}, nil
}

func (c *Conn) ExistsW(p string) (bool, *zk.Stat, <-chan zk.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.nodes[p]
	ch := make(chan zk.Event, 1)
	c.watches[p] = append(c.watches[p], ch)
	return ok, &zk.Stat{}, ch, nil
}

func (c *Conn) Create(p string, _ []byte, flags int32, _ []zk.ACL) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createLocked(p, flags)
}

func (c *Conn) createLocked(p string, flags int32) (string, error) {
	if c.createErr != nil {
		return "", c.createErr
	}
	parent := path.Dir(p)
	if _, ok := c.nodes[parent]; !ok {
		return "", zk.ErrNoNode
	}
	if flags&zk.FlagSequence != 0 {
		p += fmt.Sprintf("%010d", c.seq[parent])
		c.seq[parent]++
	}
	if _, ok := c.nodes[p]; ok {
		return "", zk.ErrNodeExists
	}
	c.nodes[p] = flags&zk.FlagEphemeral != 0
	return p, nil
}

// CreateProtectedEphemeralSequential 与 zk.Conn 一样在节点名前加 _c_<guid>- 前缀
func (c *Conn) CreateProtectedEphemeralSequential(p string, _ []byte, _ []zk.ACL) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.guid++
	protected := path.Join(path.Dir(p), fmt.Sprintf("_c_%032x-%s", c.guid, path.Base(p)))
	return c.createLocked(protected, zk.FlagEphemeral|zk.FlagSequence)
}

func (c *Conn) Children(p string) ([]string, *zk.Stat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.nodes[p]; !ok {
		return nil, nil, zk.ErrNoNode
	}
	return c.childrenLocked(p), &zk.Stat{}, nil
}

func (c *Conn) childrenLocked(p string) []string {
	var children []string
	for n := range c.nodes {
		if n != "/" && path.Dir(n) == p {
			children = append(children, path.Base(n))
		}
	}
	return children
}

func (c *Conn) Delete(p string, _ int32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.nodes[p]; !ok {
		return zk.ErrNoNode
	}
	if len(c.childrenLocked(p)) > 0 {
		return zk.ErrNotEmpty
	}
	c.deleteLocked(p)
	return nil
}

// Expire 模拟会话过期：删除所有临时节点并触发 watch
func (c *Conn) Expire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for p, ephemeral := range c.nodes {
		if ephemeral {
			c.deleteLocked(p)
		}
	}
}

// Nodes 返回 prefix 下的全部节点路径
func (c *Conn) Nodes(prefix string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for p := range c.nodes {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	return out
}

// deleteLocked 删除节点，watch 和 zk 一样只触发一次
func (c *Conn) deleteLocked(p string) {
	delete(c.nodes, p)
	for _, ch := range c.watches[p] {
		ch <- zk.Event{Type: zk.EventNodeDeleted, Path: p}
		close(ch)
	}
	delete(c.watches, p)
}
