package port

import (
	"context"

	"shopcart/internal/service/inventory/domain"
)

// CatalogRepository 提供商品和库存的只读访问
type CatalogRepository interface {
	FindProduct(ctx context.Context, id int64) (domain.Product, error)
	FindStock(ctx context.Context, id int64) (domain.Stock, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
}
