// internal/service/cart/application/manager.go
package application

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"shopcart/internal/pkg/constants"
	"shopcart/internal/pkg/logger"
	"shopcart/internal/pkg/metrics"
	"shopcart/internal/service/cart/domain"
	"shopcart/internal/service/cart/domain/port"
)

const (
	outcomeOK   = "ok"
	outcomeNoop = "noop"

	defaultPersistTimeout = 5 * time.Second
)

// Options 是 Manager 的可选依赖和行为开关
type Options struct {
	// StorageKey 是快照在 KV 存储中的固定 key，默认 constants.DefaultStorageKey
	StorageKey string
	// CheckStockOnFirstAdd 为 true 时，首次加入商品也要校验库存（数量 1）
	CheckStockOnFirstAdd bool
	// SharedStore 为 true 表示多个进程写同一个 key：每次读写前从存储重新加载，并在提交时持有整车锁
	SharedStore bool
	// PersistTimeout 限制一次快照写入的时间，写入不随请求取消而中断，默认 5s
	PersistTimeout time.Duration

	Policy    port.StockPolicy
	Publisher port.CartPublisher
	Tracer    trace.Tracer
}

// Manager 持有当前购物车，是唯一可以变更它的入口。
// 由组装根创建并显式传给 HTTP handler 等消费者。
type Manager struct {
	inventory port.InventoryLookup
	store     port.SnapshotStore
	notifier  port.Notifier
	locker    port.KeyLocker
	publisher port.CartPublisher
	policy    port.StockPolicy
	tracer    trace.Tracer

	storageKey     string
	checkFirstAdd  bool
	shared         bool
	persistTimeout time.Duration

	// commitMu 串行化提交，持有期间会做存储 I/O
	commitMu sync.Mutex
	// mu 只保护下面的字段，持有期间不做 I/O
	mu   sync.Mutex
	cart domain.Cart
	gen  uint64 // 每次替换 cart 加一
	subs map[chan domain.Cart]struct{}
}

// NewManager 创建 Manager，并从 KV 存储加载上次保存的购物车。
// 存储不可达时返回错误；快照损坏时记录告警并从空购物车开始。
func NewManager(ctx context.Context, inventory port.InventoryLookup, store port.SnapshotStore, notifier port.Notifier, locker port.KeyLocker, opts Options) (*Manager, error) {
	if inventory == nil || store == nil || notifier == nil || locker == nil {
		return nil, errors.New("cart manager: inventory, store, notifier and locker are required")
	}
	if opts.StorageKey == "" {
		opts.StorageKey = constants.DefaultStorageKey
	}
	if opts.Policy == nil {
		opts.Policy = port.ThresholdPolicy{}
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(constants.CartService)
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = defaultPersistTimeout
	}

	m := &Manager{
		inventory:      inventory,
		store:          store,
		notifier:       notifier,
		locker:         locker,
		publisher:      opts.Publisher,
		policy:         opts.Policy,
		tracer:         opts.Tracer,
		storageKey:     opts.StorageKey,
		checkFirstAdd:  opts.CheckStockOnFirstAdd,
		shared:         opts.SharedStore,
		persistTimeout: opts.PersistTimeout,
		subs:           make(map[chan domain.Cart]struct{}),
	}

	cart, err := m.loadFromStore(ctx)
	if err != nil {
		return nil, err
	}
	m.cart = cart
	metrics.LineItems.Set(float64(len(cart)))
	logger.Ctx(ctx).Info().Str("key", m.storageKey).Int("line_items", len(cart)).Msg("cart loaded")
	return m, nil
}

// Cart 返回本进程最近一次提交或刷新后的购物车深拷贝，不做 I/O。
// SharedStore 模式下其他副本的变更要经过 Refresh 才可见。
func (m *Manager) Cart() domain.Cart {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cart.Clone()
}

// Refresh 返回最新的购物车。SharedStore 模式下从存储重新加载，
// 有变化时替换本地状态并通知订阅者；否则等同于 Cart。
// 不等待进行中的提交：加载期间本进程已提交过的话，以内存中的较新状态为准。
func (m *Manager) Refresh(ctx context.Context) (domain.Cart, error) {
	if !m.shared {
		return m.Cart(), nil
	}

	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()

	latest, err := m.loadFromStore(ctx)
	if err != nil {
		return nil, err
	}
	return m.adopt(gen, latest), nil
}

// Watch 每隔 interval 调用一次 Refresh，直到 ctx 结束。没有变更事件流时用它让副本之间同步。
func (m *Manager) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Refresh(ctx); err != nil && ctx.Err() == nil {
				logger.Ctx(ctx).Warn().Err(err).Str("key", m.storageKey).Msg("cart refresh failed")
			}
		}
	}
}

// Subscribe 返回一个只保留最新状态的 channel：订阅时先收到当前购物车，之后每次成功变更收到新状态。
// ctx 结束时 channel 被关闭。
func (m *Manager) Subscribe(ctx context.Context) <-chan domain.Cart {
	ch := make(chan domain.Cart, 1)

	m.mu.Lock()
	ch <- m.cart.Clone()
	m.subs[ch] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.subs, ch)
		close(ch)
		m.mu.Unlock()
	}()
	return ch
}

// Add 把商品加入购物车：已存在则数量加一（需校验库存），否则以数量 1 追加。
func (m *Manager) Add(ctx context.Context, productID int64) error {
	ctx, span := m.tracer.Start(ctx, "cart.Add")
	defer span.End()
	span.SetAttributes(attribute.Int64("product.id", productID))

	unlock, err := m.locker.Lock(ctx, productLockKey(productID))
	if err != nil {
		return m.fail(ctx, span, domain.NewCartError(domain.OpAdd, domain.KindStorageFailure, productID, err))
	}
	defer unlock()

	current, err := m.readCart(ctx)
	if err != nil {
		return m.fail(ctx, span, domain.NewCartError(domain.OpAdd, domain.KindStorageFailure, productID, err))
	}

	var mutate func(domain.Cart) (domain.Cart, error)
	if existing, found := current.Find(productID); found {
		requested := existing.Amount + 1
		if ce := m.checkStock(ctx, domain.OpAdd, productID, requested); ce != nil {
			return m.fail(ctx, span, ce)
		}
		mutate = func(c domain.Cart) (domain.Cart, error) { return c.WithAmount(productID, requested) }
	} else {
		// 首次加入默认不校验库存，与既有行为保持一致
		if m.checkFirstAdd {
			if ce := m.checkStock(ctx, domain.OpAdd, productID, 1); ce != nil {
				return m.fail(ctx, span, ce)
			}
		}
		product, err := m.inventory.GetProduct(ctx, productID)
		if err != nil {
			return m.fail(ctx, span, domain.NewCartError(domain.OpAdd, domain.KindLookupFailure, productID, err))
		}
		item := domain.NewLineItem(productID, product)
		mutate = func(c domain.Cart) (domain.Cart, error) { return c.Append(item) }
	}

	next, ce := m.commit(ctx, domain.OpAdd, productID, mutate)
	if ce != nil {
		return m.fail(ctx, span, ce)
	}
	m.succeed(ctx, span, domain.OpAdd, next)
	return nil
}

// Remove 删除商品行，商品不在购物车中时返回 NotFound。
func (m *Manager) Remove(ctx context.Context, productID int64) error {
	ctx, span := m.tracer.Start(ctx, "cart.Remove")
	defer span.End()
	span.SetAttributes(attribute.Int64("product.id", productID))

	unlock, err := m.locker.Lock(ctx, productLockKey(productID))
	if err != nil {
		return m.fail(ctx, span, domain.NewCartError(domain.OpRemove, domain.KindStorageFailure, productID, err))
	}
	defer unlock()

	next, ce := m.commit(ctx, domain.OpRemove, productID, func(c domain.Cart) (domain.Cart, error) {
		return c.Remove(productID)
	})
	if ce != nil {
		return m.fail(ctx, span, ce)
	}
	m.succeed(ctx, span, domain.OpRemove, next)
	return nil
}

// SetQuantity 把商品数量设置为 amount。amount <= 0 时静默忽略。
func (m *Manager) SetQuantity(ctx context.Context, productID int64, amount int) error {
	ctx, span := m.tracer.Start(ctx, "cart.SetQuantity")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("product.id", productID),
		attribute.Int("cart.amount", amount),
	)

	if amount <= 0 {
		span.AddEvent("non-positive amount ignored")
		metrics.Operations.WithLabelValues(string(domain.OpUpdate), outcomeNoop).Inc()
		return nil
	}

	unlock, err := m.locker.Lock(ctx, productLockKey(productID))
	if err != nil {
		return m.fail(ctx, span, domain.NewCartError(domain.OpUpdate, domain.KindStorageFailure, productID, err))
	}
	defer unlock()

	current, err := m.readCart(ctx)
	if err != nil {
		return m.fail(ctx, span, domain.NewCartError(domain.OpUpdate, domain.KindStorageFailure, productID, err))
	}
	if current.IndexOf(productID) < 0 {
		return m.fail(ctx, span, domain.NewCartError(domain.OpUpdate, domain.KindNotFound, productID, domain.ErrNotFound))
	}
	if ce := m.checkStock(ctx, domain.OpUpdate, productID, amount); ce != nil {
		return m.fail(ctx, span, ce)
	}

	next, ce := m.commit(ctx, domain.OpUpdate, productID, func(c domain.Cart) (domain.Cart, error) {
		return c.WithAmount(productID, amount)
	})
	if ce != nil {
		return m.fail(ctx, span, ce)
	}
	m.succeed(ctx, span, domain.OpUpdate, next)
	return nil
}

// checkStock 读取库存并交给策略判断，返回 nil 表示允许
func (m *Manager) checkStock(ctx context.Context, op domain.Op, productID int64, requested int) *domain.CartError {
	stock, err := m.inventory.GetStock(ctx, productID)
	if err != nil {
		return domain.NewCartError(op, domain.KindLookupFailure, productID, err)
	}
	allowed, err := m.policy.Allow(ctx, port.StockCheck{
		ProductID: productID,
		Requested: requested,
		Available: stock.Amount,
	})
	if err != nil {
		return domain.NewCartError(op, domain.KindLookupFailure, productID, errors.Wrap(err, "stock policy"))
	}
	if !allowed {
		return domain.NewCartError(op, domain.KindOutOfStock, productID, domain.ErrOutOfStock)
	}
	return nil
}

// commit 把 mutate 应用到最新状态上，持久化成功后才替换内存中的购物车并通知订阅者。
// 不同商品的并发操作在这里串行，互不覆盖。存储 I/O 期间不持有 m.mu，读购物车不会被阻塞。
func (m *Manager) commit(ctx context.Context, op domain.Op, productID int64, mutate func(domain.Cart) (domain.Cart, error)) (domain.Cart, *domain.CartError) {
	m.commitMu.Lock()
	defer m.commitMu.Unlock()

	base := m.Cart()
	if m.shared {
		unlock, err := m.locker.Lock(ctx, cartLockKey(m.storageKey))
		if err != nil {
			return nil, domain.NewCartError(op, domain.KindStorageFailure, productID, err)
		}
		defer unlock()
		if base, err = m.loadFromStore(ctx); err != nil {
			return nil, domain.NewCartError(op, domain.KindStorageFailure, productID, err)
		}
	}

	next, err := mutate(base)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewCartError(op, domain.KindNotFound, productID, err)
		}
		// 持有商品锁时不应出现，出现说明存储被锁之外的写入者改过
		return nil, domain.NewCartError(op, domain.KindStorageFailure, productID, err)
	}

	snapshot, err := domain.EncodeSnapshot(next)
	if err != nil {
		return nil, domain.NewCartError(op, domain.KindStorageFailure, productID, err)
	}
	// 写入一旦开始就不随请求取消，避免存储已更新而内存未更新
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.persistTimeout)
	defer cancel()
	if err := m.store.Set(persistCtx, m.storageKey, snapshot); err != nil {
		return nil, domain.NewCartError(op, domain.KindStorageFailure, productID, err)
	}

	m.mu.Lock()
	m.cart = next
	m.gen++
	m.broadcastLocked(next)
	m.mu.Unlock()
	return next.Clone(), nil
}

// adopt 用从存储读到的状态替换本地状态并返回当前状态的拷贝。
// gen 是开始读取时的版本，期间本地状态已被替换时丢弃 latest；内容相同时不通知订阅者。
func (m *Manager) adopt(gen uint64, latest domain.Cart) domain.Cart {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gen != gen {
		return m.cart.Clone()
	}
	current, _ := domain.EncodeSnapshot(m.cart)
	incoming, _ := domain.EncodeSnapshot(latest)
	if current != incoming {
		m.cart = latest
		m.gen++
		m.broadcastLocked(latest)
		metrics.LineItems.Set(float64(len(latest)))
	}
	return m.cart.Clone()
}

// readCart 返回本次操作读取的基准状态，SharedStore 模式下顺带刷新本地副本
func (m *Manager) readCart(ctx context.Context) (domain.Cart, error) {
	return m.Refresh(ctx)
}

func (m *Manager) loadFromStore(ctx context.Context) (domain.Cart, error) {
	snapshot, found, err := m.store.Get(ctx, m.storageKey)
	if err != nil {
		return nil, errors.Wrapf(err, "load cart snapshot %q", m.storageKey)
	}
	if !found {
		return domain.Cart{}, nil
	}
	cart, err := domain.DecodeSnapshot(snapshot)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("key", m.storageKey).Msg("discarding unreadable cart snapshot")
		return domain.Cart{}, nil
	}
	return cart, nil
}

// broadcastLocked 调用方必须持有 m.mu。每个订阅者只保留最新状态。
func (m *Manager) broadcastLocked(cart domain.Cart) {
	for ch := range m.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- cart.Clone():
		default:
		}
	}
}

func (m *Manager) succeed(ctx context.Context, span trace.Span, op domain.Op, next domain.Cart) {
	metrics.Operations.WithLabelValues(string(op), outcomeOK).Inc()
	metrics.LineItems.Set(float64(len(next)))
	span.SetAttributes(attribute.Int("cart.line_items", len(next)))

	if m.publisher != nil {
		// 状态已提交，发布失败只记录，不回滚
		if err := m.publisher.PublishCart(ctx, next); err != nil {
			span.RecordError(err)
			logger.Ctx(ctx).Error().Err(err).Str("op", string(op)).Msg("failed to publish cart update")
		}
	}
}

func (m *Manager) fail(ctx context.Context, span trace.Span, ce *domain.CartError) error {
	span.RecordError(ce)
	span.SetStatus(codes.Error, ce.Kind.String())
	metrics.Operations.WithLabelValues(string(ce.Op), ce.Kind.String()).Inc()

	logger.Ctx(ctx).Warn().Err(ce).
		Str("op", string(ce.Op)).
		Str("kind", ce.Kind.String()).
		Int64("product_id", ce.ProductID).
		Msg("cart operation failed")

	notice := domain.NewNotice(ce)
	ce.NoticeID = notice.ID
	m.notifier.Notify(ctx, notice)
	return ce
}

func productLockKey(productID int64) string {
	return "cart:product:" + strconv.FormatInt(productID, 10)
}

func cartLockKey(storageKey string) string {
	return "cart:snapshot:" + storageKey
}
