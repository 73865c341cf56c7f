package zookeeper

import (
	"context"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"shopcart/internal/pkg/zookeeper/zktest"
)

func TestSequenceOrdering(t *testing.T) {
	children := []string{
		"_c_ffff-lock-0000000003",
		"_c_0000-lock-0000000010",
		"_c_aaaa-lock-0000000001",
	}
	sort.Slice(children, func(i, j int) bool {
		return sequenceOf(children[i]) < sequenceOf(children[j])
	})
	want := []string{
		"_c_aaaa-lock-0000000001",
		"_c_ffff-lock-0000000003",
		"_c_0000-lock-0000000010",
	}
	for i := range want {
		if children[i] != want[i] {
			t.Fatalf("children[%d] = %s, want %s", i, children[i], want[i])
		}
	}
	if indexOf(children, "_c_ffff-lock-0000000003") != 1 {
		t.Fatal("indexOf returned wrong position")
	}
	if indexOf(children, "missing") != -1 {
		t.Fatal("indexOf should return -1 for missing nodes")
	}
}

func TestDistributedLockHandoff(t *testing.T) {
	conn := zktest.New()
	ctx := context.Background()

	first, err := NewDistributedLock(conn, "cart:product:1")
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Lock(ctx); err != nil {
		t.Fatal(err)
	}

	second, err := NewDistributedLock(conn, "cart:product:1")
	if err != nil {
		t.Fatal(err)
	}
	acquired := make(chan error, 1)
	go func() { acquired <- second.Lock(ctx) }()

	select {
	case err := <-acquired:
		t.Fatalf("second lock acquired while first held it (err=%v)", err)
	case <-time.After(50 * time.Millisecond):
	}

	if err := first.Unlock(); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-acquired:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("second lock not acquired after first unlocked")
	}

	if err := second.Unlock(); err != nil {
		t.Fatal(err)
	}
	if nodes, _, _ := conn.Children(lockRoot + "/cart:product:1"); len(nodes) != 0 {
		t.Fatalf("lock nodes left behind: %v", nodes)
	}
}

func TestDistributedLockMutualExclusion(t *testing.T) {
	conn := zktest.New()
	var inside, total int32

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			l, err := NewDistributedLock(conn, "cart:snapshot:k")
			if err != nil {
				return err
			}
			if err := l.Lock(ctx); err != nil {
				return err
			}
			if atomic.AddInt32(&inside, 1) != 1 {
				return errors.New("two holders inside the critical section")
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&total, 1)
			atomic.AddInt32(&inside, -1)
			return l.Unlock()
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if total != 8 {
		t.Fatalf("%d holders, want 8", total)
	}
}

func TestDistributedLockCancelRemovesNode(t *testing.T) {
	conn := zktest.New()
	holder, _ := NewDistributedLock(conn, "k")
	if err := holder.Lock(context.Background()); err != nil {
		t.Fatal(err)
	}

	waiter, _ := NewDistributedLock(conn, "k")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := waiter.Lock(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}

	nodes, _, err := conn.Children(lockRoot + "/k")
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 1 || lockRoot+"/k/"+nodes[0] != holder.lockNode {
		t.Fatalf("nodes = %v, want only the holder's %s", nodes, holder.lockNode)
	}
	if err := waiter.Unlock(); err == nil {
		t.Fatal("Unlock after a failed Lock should error")
	}
}

func TestDistributedLockSessionExpired(t *testing.T) {
	conn := zktest.New()
	holder, _ := NewDistributedLock(conn, "k")
	if err := holder.Lock(context.Background()); err != nil {
		t.Fatal(err)
	}

	waiter, _ := NewDistributedLock(conn, "k")
	result := make(chan error, 1)
	go func() { result <- waiter.Lock(context.Background()) }()

	// 等 waiter 建好自己的节点
	deadline := time.Now().Add(time.Second)
	for len(conn.Nodes(lockRoot+"/k/")) < 2 {
		if time.Now().After(deadline) {
			t.Fatal("waiter never created its node")
		}
		time.Sleep(time.Millisecond)
	}
	conn.Expire()

	select {
	case err := <-result:
		if err == nil {
			t.Fatal("lock acquired after the session expired")
		}
	case <-time.After(time.Second):
		t.Fatal("waiter did not notice the expired session")
	}
	// 节点已随会话消失，释放不应报错
	if err := holder.Unlock(); err != nil {
		t.Fatal(err)
	}
}

func TestDistributedLockCreateFailure(t *testing.T) {
	conn := zktest.New()
	l, err := NewDistributedLock(conn, "k")
	if err != nil {
		t.Fatal(err)
	}
	conn.FailCreate(zk.ErrConnectionClosed)
	if err := l.Lock(context.Background()); !errors.Is(err, zk.ErrConnectionClosed) {
		t.Fatalf("err = %v, want connection closed", err)
	}
	if _, err := NewDistributedLock(conn, "other"); err == nil {
		t.Fatal("NewDistributedLock should fail when the lock path cannot be created")
	}
}

func TestNewDistributedLockEscapesSlashes(t *testing.T) {
	conn := zktest.New()
	l, err := NewDistributedLock(conn, "cart/snapshot")
	if err != nil {
		t.Fatal(err)
	}
	if l.path != lockRoot+"/cart_snapshot" {
		t.Fatalf("path = %s", l.path)
	}
	if ok, _, _ := conn.Exists(l.path); !ok {
		t.Fatal("lock path not created")
	}
}
