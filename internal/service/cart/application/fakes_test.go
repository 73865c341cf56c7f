package application

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"shopcart/internal/service/cart/domain"
	"shopcart/internal/service/cart/infrastructure/adapter"
)

const testKey = "@RocketShoes:cart"

var errInventoryDown = errors.New("inventory unavailable")

// fakeInventory 是可配置的库存服务
type fakeInventory struct {
	mu       sync.Mutex
	stock    map[int64]int
	products map[int64]string // id -> title
	down     bool
	delay    time.Duration
	onStock  func() // GetStock 读取库存前调用

	stockCalls   int
	productCalls int
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{stock: map[int64]int{}, products: map[int64]string{}}
}

func (f *fakeInventory) set(id int64, title string, stock int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[id] = title
	f.stock[id] = stock
}

func (f *fakeInventory) GetStock(ctx context.Context, productID int64) (domain.Stock, error) {
	f.mu.Lock()
	f.stockCalls++
	down, delay, hook := f.down, f.delay, f.onStock
	amount, ok := f.stock[productID]
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if down || !ok {
		return domain.Stock{}, errInventoryDown
	}
	return domain.Stock{ProductID: productID, Amount: amount}, nil
}

func (f *fakeInventory) GetProduct(ctx context.Context, productID int64) (domain.Product, error) {
	f.mu.Lock()
	f.productCalls++
	down, delay := f.down, f.delay
	title, ok := f.products[productID]
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if down || !ok {
		return domain.Product{}, errInventoryDown
	}
	raw, _ := json.Marshal(title)
	return domain.Product{ID: productID, Attributes: map[string]json.RawMessage{"title": raw}}, nil
}

func (f *fakeInventory) calls() (stock, product int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stockCalls, f.productCalls
}

// flakyStore 在 failSet 为 true 时拒绝写入，ctx 已取消的写入同样失败。
// holdWrites 之后的写入会停在 Set 里，直到 release。
type flakyStore struct {
	*adapter.SnapshotMemoryAdapter
	mu      sync.Mutex
	failSet bool
	failGet bool
	held    chan struct{}
	entered chan struct{}
}

func newFlakyStore() *flakyStore {
	return &flakyStore{SnapshotMemoryAdapter: adapter.NewSnapshotMemoryAdapter()}
}

func (s *flakyStore) setFailures(get, set bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failGet, s.failSet = get, set
}

func (s *flakyStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	fail := s.failGet
	s.mu.Unlock()
	if fail {
		return "", false, errors.New("store unreachable")
	}
	return s.SnapshotMemoryAdapter.Get(ctx, key)
}

func (s *flakyStore) holdWrites() (entered <-chan struct{}, release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held = make(chan struct{})
	s.entered = make(chan struct{}, 1)
	held := s.held
	return s.entered, func() { close(held) }
}

func (s *flakyStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	fail, held, entered := s.failSet, s.held, s.entered
	s.mu.Unlock()

	if held != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-held
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if fail {
		return errors.New("disk full")
	}
	return s.SnapshotMemoryAdapter.Set(ctx, key, value)
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []domain.Notice
}

func (r *recordingNotifier) Notify(_ context.Context, n domain.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recordingNotifier) all() []domain.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Notice(nil), r.notices...)
}

type recordingPublisher struct {
	mu    sync.Mutex
	carts []domain.Cart
	err   error
}

func (p *recordingPublisher) PublishCart(_ context.Context, c domain.Cart) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.carts = append(p.carts, c)
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.carts)
}
