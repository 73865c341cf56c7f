package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cart-service.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), *cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
app:
  port: 9090
cart:
  storage_key: "shop:cart"
  check_stock_on_first_add: true
  stock_rule: "requested <= available"
storage:
  driver: memory
infra:
  inventory:
    base_url: http://inventory:3333
    timeout: 750ms
  kafka:
    enabled: true
    brokers: [k1:9092]
`)
	t.Setenv("HTTP_PORT", "9191")
	t.Setenv("KAFKA_BROKERS", "a:1,b:2")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.App.Port != 9191 {
		t.Errorf("port = %d, want env override 9191", cfg.App.Port)
	}
	if cfg.Cart.StorageKey != "shop:cart" || !cfg.Cart.CheckStockOnFirstAdd {
		t.Errorf("cart config not loaded: %+v", cfg.Cart)
	}
	if cfg.Storage.Driver != "memory" {
		t.Errorf("driver = %q, want memory", cfg.Storage.Driver)
	}
	if cfg.Infra.Inventory.Timeout != 750*time.Millisecond {
		t.Errorf("timeout = %v, want 750ms", cfg.Infra.Inventory.Timeout)
	}
	if diff := cmp.Diff([]string{"a:1", "b:2"}, cfg.Infra.Kafka.Brokers); diff != "" {
		t.Errorf("brokers mismatch (-want +got):\n%s", diff)
	}
	// 未在文件中出现的字段保持默认值
	if cfg.Lock.Driver != "local" {
		t.Errorf("lock driver = %q, want default local", cfg.Lock.Driver)
	}
	if GetCurrentConfig() != cfg {
		t.Error("GetCurrentConfig should return the loaded config")
	}
}

func TestLoadConfigValidation(t *testing.T) {
	cases := map[string]string{
		"storage": "storage:\n  driver: sqlite\n",
		"lock":    "lock:\n  driver: etcd\n",
		"key":     "cart:\n  storage_key: \"\"\n",
		"refresh": "lock:\n  driver: zookeeper\ncart:\n  refresh_interval: 0s\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, body)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadConfigBadYAML(t *testing.T) {
	if _, err := LoadConfig(writeConfig(t, "app: [unclosed")); err == nil {
		t.Fatal("expected parse error")
	}
}
