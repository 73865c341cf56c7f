// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"shopcart/internal/pkg/constants"
)

// Config 是所有服务共享的配置结构，对应 YAML 文件
type Config struct {
	App     AppConfig     `yaml:"app"`
	Cart    CartConfig    `yaml:"cart"`
	Storage StorageConfig `yaml:"storage"`
	Lock    LockConfig    `yaml:"lock"`
	Infra   InfraConfig   `yaml:"infra"`
}

type AppConfig struct {
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
}

type CartConfig struct {
	StorageKey           string `yaml:"storage_key"`
	CheckStockOnFirstAdd bool   `yaml:"check_stock_on_first_add"`
	// StockRule 是可选的 CEL 表达式，变量为 product_id / requested / available
	StockRule string `yaml:"stock_rule"`
	// RefreshInterval 是多副本共享快照且未启用 Kafka 时，轮询存储的间隔
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"` // redis | mysql | memory
}

type LockConfig struct {
	Driver string `yaml:"driver"` // local | zookeeper
}

type InfraConfig struct {
	Jaeger    JaegerConfig    `yaml:"jaeger"`
	Redis     RedisConfig     `yaml:"redis"`
	MySQL     MySQLConfig     `yaml:"mysql"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Nacos     NacosConfig     `yaml:"nacos"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper"`
	Inventory InventoryConfig `yaml:"inventory"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type RedisConfig struct {
	Addrs string `yaml:"addrs"`
}

type MySQLConfig struct {
	Addr     string `yaml:"addr"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type KafkaConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Brokers     []string `yaml:"brokers"`
	NoticeTopic string   `yaml:"notice_topic"`
	CartTopic   string   `yaml:"cart_topic"`
}

type NacosConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addrs     string `yaml:"addrs"`
	Namespace string `yaml:"namespace"`
	Group     string `yaml:"group"`
}

type ZookeeperConfig struct {
	Servers        string        `yaml:"servers"`
	SessionTimeout time.Duration `yaml:"session_timeout"`
}

type InventoryConfig struct {
	ServiceName string        `yaml:"service_name"`
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	SeedFile    string        `yaml:"seed_file"`
}

var currentConfig atomic.Pointer[Config]

// GetCurrentConfig 返回最近一次加载的配置；尚未加载时返回默认配置
func GetCurrentConfig() *Config {
	if cfg := currentConfig.Load(); cfg != nil {
		return cfg
	}
	cfg := DefaultConfig()
	return &cfg
}

// DefaultConfig 返回本地开发可直接运行的默认值
func DefaultConfig() Config {
	return Config{
		App:     AppConfig{Port: 8080, LogLevel: "info"},
		Cart:    CartConfig{StorageKey: constants.DefaultStorageKey, RefreshInterval: 2 * time.Second},
		Storage: StorageConfig{Driver: "redis"},
		Lock:    LockConfig{Driver: "local"},
		Infra: InfraConfig{
			Redis: RedisConfig{Addrs: "localhost:6379"},
			Kafka: KafkaConfig{
				Brokers:     []string{"localhost:9092"},
				NoticeTopic: "cart-notices",
				CartTopic:   "cart-updated",
			},
			Nacos:     NacosConfig{Addrs: "localhost:8848", Group: "DEFAULT_GROUP"},
			Zookeeper: ZookeeperConfig{Servers: "localhost:2181", SessionTimeout: 10 * time.Second},
			Inventory: InventoryConfig{
				ServiceName: constants.InventoryService,
				BaseURL:     "http://localhost:3333",
				Timeout:     3 * time.Second,
			},
		},
	}
}

// LoadConfig 依次应用默认值、YAML 文件和环境变量覆盖，并设置为当前配置。
// path 为空或文件不存在时只使用默认值和环境变量。
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return nil, errors.Wrapf(err, "parse config %s", path)
			}
		case os.IsNotExist(err):
		default:
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	currentConfig.Store(&cfg)
	return &cfg, nil
}

// Validate 检查互相依赖的配置项
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "redis", "mysql", "memory":
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Lock.Driver {
	case "local", "zookeeper":
	default:
		return errors.Errorf("unknown lock driver %q", c.Lock.Driver)
	}
	if c.Cart.StorageKey == "" {
		return errors.New("cart.storage_key must not be empty")
	}
	if c.Lock.Driver == "zookeeper" && !c.Infra.Kafka.Enabled && c.Cart.RefreshInterval <= 0 {
		return errors.New("cart.refresh_interval must be positive when replicas share a cart without kafka")
	}
	if c.App.Port <= 0 {
		return errors.Errorf("invalid app.port %d", c.App.Port)
	}
	if !c.Infra.Nacos.Enabled && c.Infra.Inventory.BaseURL == "" {
		return errors.New("infra.inventory.base_url is required when nacos is disabled")
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v, ok := lookupInt("HTTP_PORT"); ok {
		cfg.App.Port = v
	}
	cfg.App.LogLevel = getEnv("LOG_LEVEL", cfg.App.LogLevel)
	cfg.Storage.Driver = getEnv("STORAGE_DRIVER", cfg.Storage.Driver)
	cfg.Infra.Redis.Addrs = getEnv("REDIS_ADDRS", cfg.Infra.Redis.Addrs)
	cfg.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", cfg.Infra.Jaeger.Endpoint)
	cfg.Infra.Inventory.BaseURL = getEnv("INVENTORY_BASE_URL", cfg.Infra.Inventory.BaseURL)
	if v, ok := os.LookupEnv("KAFKA_BROKERS"); ok && v != "" {
		cfg.Infra.Kafka.Brokers = strings.Split(v, ",")
	}
}

// getEnv 从环境变量中读取配置，不存在时使用 fallback
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func lookupInt(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
