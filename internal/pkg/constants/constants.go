// internal/pkg/constants/constants.go
package constants

// 服务名，用于 tracer、Nacos 注册和服务发现
const (
	CartService      = "cart-service"
	InventoryService = "inventory-service"
)

// 库存服务的 HTTP 路径
const (
	InventoryStockPath   = "/stock/"
	InventoryProductPath = "/products/"
)

// DefaultStorageKey 是购物车快照在 KV 存储中的固定 key。
const DefaultStorageKey = "@RocketShoes:cart"
