// cmd/cart-service/main.go
package main

import (
	"context"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"shopcart/internal/pkg/bootstrap"
	"shopcart/internal/pkg/constants"
	"shopcart/internal/pkg/httpclient"
	"shopcart/internal/pkg/logger"
	"shopcart/internal/pkg/mq"
	"shopcart/internal/pkg/nacos"
	"shopcart/internal/pkg/redis"
	"shopcart/internal/pkg/zookeeper"
	"shopcart/internal/service/cart/application"
	"shopcart/internal/service/cart/domain/port"
	"shopcart/internal/service/cart/infrastructure/adapter"
	"shopcart/internal/service/cart/interfaces"
)

type cleanupFunc = func(ctx context.Context) error

// main 函数是应用的"组装根" (Composition Root)
// 它创建并组装所有依赖项，然后启动 HTTP 服务。
func main() {
	logger.Init(constants.CartService, "info")
	ctx := context.Background()

	cfg, err := bootstrap.LoadConfig(bootstrap.ConfigPath(constants.CartService))
	if err != nil {
		logger.Ctx(ctx).Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(constants.CartService, cfg.App.LogLevel)

	var cleanups []cleanupFunc

	// 1. 服务发现
	var nacosClient *nacos.Client
	var resolver httpclient.Resolver = httpclient.StaticResolver{
		cfg.Infra.Inventory.ServiceName: cfg.Infra.Inventory.BaseURL,
	}
	if cfg.Infra.Nacos.Enabled {
		nacosClient, err = nacos.NewClient(cfg.Infra.Nacos.Addrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
		if err != nil {
			logger.Ctx(ctx).Fatal().Err(err).Msg("failed to create nacos client")
		}
		resolver = httpclient.NewNacosResolver(nacosClient)
	}

	httpClient := httpclient.NewClient(otel.Tracer(constants.CartService), resolver)
	inventory := adapter.NewInventoryHTTPAdapter(httpClient, cfg.Infra.Inventory.ServiceName, cfg.Infra.Inventory.Timeout)

	// 2. 快照存储
	store, closeStore, err := newSnapshotStore(ctx, cfg)
	if err != nil {
		logger.Ctx(ctx).Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("failed to initialize snapshot store")
	}
	cleanups = append(cleanups, closeStore)

	// 3. 锁
	locker, closeLocker, err := newLocker(cfg)
	if err != nil {
		logger.Ctx(ctx).Fatal().Err(err).Str("driver", cfg.Lock.Driver).Msg("failed to initialize locker")
	}
	cleanups = append(cleanups, closeLocker)

	// 4. 通知和事件
	// replicaID 区分共享同一个快照 key 的副本，同时作为 Kafka 消费组
	replicaID := constants.CartService + "-" + uuid.NewString()[:8]
	sharedStore := cfg.Lock.Driver == "zookeeper"
	hub := interfaces.NewHub()
	notifiers := adapter.MultiNotifier{adapter.NoticeLogAdapter{}, hub}
	var publisher port.CartPublisher
	if cfg.Infra.Kafka.Enabled {
		noticeWriter := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.NoticeTopic)
		cartWriter := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.CartTopic)
		notifiers = append(notifiers, adapter.NewNoticeKafkaAdapter(noticeWriter))
		publisher = adapter.NewCartKafkaPublisher(cartWriter, cfg.Cart.StorageKey, replicaID)
		cleanups = append(cleanups,
			func(context.Context) error { return noticeWriter.Close() },
			func(context.Context) error { return cartWriter.Close() },
		)
	}

	var policy port.StockPolicy
	if cfg.Cart.StockRule != "" {
		if policy, err = adapter.NewStockPolicyCEL(cfg.Cart.StockRule); err != nil {
			logger.Ctx(ctx).Fatal().Err(err).Msg("invalid cart.stock_rule")
		}
	}

	// 5. 购物车
	manager, err := application.NewManager(ctx, inventory, store, notifiers, locker, application.Options{
		StorageKey:           cfg.Cart.StorageKey,
		CheckStockOnFirstAdd: cfg.Cart.CheckStockOnFirstAdd,
		SharedStore:          sharedStore,
		Policy:               policy,
		Publisher:            publisher,
	})
	if err != nil {
		logger.Ctx(ctx).Fatal().Err(err).Msg("failed to load cart")
	}

	hubCtx, stopHub := context.WithCancel(ctx)
	go hub.Run(hubCtx, manager.Subscribe(hubCtx))
	cleanups = append(cleanups, func(context.Context) error { stopHub(); return nil })

	// 其他副本的提交：优先消费 cart_topic，未启用 Kafka 时轮询存储
	if sharedStore {
		if cfg.Infra.Kafka.Enabled {
			reader := mq.NewKafkaReader(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.CartTopic, replicaID)
			go adapter.NewCartKafkaConsumer(reader, manager, cfg.Cart.StorageKey, replicaID).Run(hubCtx)
			cleanups = append(cleanups, func(context.Context) error { return reader.Close() })
		} else {
			go manager.Watch(hubCtx, cfg.Cart.RefreshInterval)
		}
		logger.Ctx(ctx).Info().Str("replica", replicaID).Bool("kafka", cfg.Infra.Kafka.Enabled).Msg("✅ following cart commits from other replicas")
	}

	handler := interfaces.NewCartHandler(manager, hub)
	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: constants.CartService,
		Port:        cfg.App.Port,
		Nacos:       nacosClient,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			handler.RegisterRoutes(appCtx.Mux)
		},
		Cleanups: cleanups,
	})
}

// newSnapshotStore 按 storage.driver 创建快照存储，并返回对应的关闭函数
func newSnapshotStore(ctx context.Context, cfg *bootstrap.Config) (port.SnapshotStore, cleanupFunc, error) {
	noop := func(context.Context) error { return nil }

	switch cfg.Storage.Driver {
	case "redis":
		client, err := redis.NewClient(cfg.Infra.Redis.Addrs)
		if err != nil {
			return nil, nil, err
		}
		if err := client.Ping(ctx, 5); err != nil {
			client.Close()
			return nil, nil, err
		}
		logger.Ctx(ctx).Info().Str("addrs", cfg.Infra.Redis.Addrs).Msg("✅ redis connected")
		return adapter.NewSnapshotRedisAdapter(client), func(context.Context) error { return client.Close() }, nil

	case "mysql":
		dsn := gomysql.NewConfig()
		dsn.User = cfg.Infra.MySQL.User
		dsn.Passwd = cfg.Infra.MySQL.Password
		dsn.Net = "tcp"
		dsn.Addr = cfg.Infra.MySQL.Addr
		dsn.DBName = cfg.Infra.MySQL.Database
		dsn.ParseTime = true
		dsn.Params = map[string]string{"charset": "utf8mb4"}
		db, err := gorm.Open(gormmysql.Open(dsn.FormatDSN()), &gorm.Config{})
		if err != nil {
			return nil, nil, errors.Wrap(err, "open mysql")
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, errors.Wrap(err, "get sql.DB")
		}
		store, err := adapter.NewSnapshotGormAdapter(db)
		if err != nil {
			sqlDB.Close()
			return nil, nil, err
		}
		logger.Ctx(ctx).Info().Str("addr", cfg.Infra.MySQL.Addr).Msg("✅ mysql connected")
		return store, func(context.Context) error { return sqlDB.Close() }, nil

	case "memory":
		logger.Ctx(ctx).Warn().Msg("using in-memory snapshot store, the cart will not survive a restart")
		return adapter.NewSnapshotMemoryAdapter(), noop, nil
	}
	return nil, nil, errors.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// newLocker 按 lock.driver 创建锁。zookeeper 用于多个副本共享同一个快照 key。
func newLocker(cfg *bootstrap.Config) (port.KeyLocker, cleanupFunc, error) {
	switch cfg.Lock.Driver {
	case "local":
		return adapter.NewLocalLocker(), func(context.Context) error { return nil }, nil
	case "zookeeper":
		conn, err := zookeeper.Connect(cfg.Infra.Zookeeper.Servers, cfg.Infra.Zookeeper.SessionTimeout)
		if err != nil {
			return nil, nil, err
		}
		return adapter.NewZookeeperLocker(conn), func(context.Context) error { conn.Close(); return nil }, nil
	}
	return nil, nil, errors.Errorf("unknown lock driver %q", cfg.Lock.Driver)
}
