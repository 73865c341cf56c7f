package port

import (
	"context"

	"shopcart/internal/service/cart/domain"
)

// InventoryLookup 是库存服务的出站端口，只读。
type InventoryLookup interface {
	// GetStock 返回商品当前可用库存。
	GetStock(ctx context.Context, productID int64) (domain.Stock, error)

	// GetProduct 返回商品元数据。
	GetProduct(ctx context.Context, productID int64) (domain.Product, error)
}
