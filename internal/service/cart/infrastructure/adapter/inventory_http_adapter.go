package adapter

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"shopcart/internal/pkg/constants"
	"shopcart/internal/pkg/httpclient"
	"shopcart/internal/pkg/metrics"
	"shopcart/internal/service/cart/domain"
)

// InventoryHTTPAdapter 实现了 port.InventoryLookup 接口。
type InventoryHTTPAdapter struct {
	client      *httpclient.Client
	serviceName string
	timeout     time.Duration
}

// NewInventoryHTTPAdapter 创建一个新的库存服务适配器。timeout <= 0 表示只受调用方 ctx 控制。
func NewInventoryHTTPAdapter(client *httpclient.Client, serviceName string, timeout time.Duration) *InventoryHTTPAdapter {
	return &InventoryHTTPAdapter{client: client, serviceName: serviceName, timeout: timeout}
}

// GetStock 调用 GET /stock/{id}
func (a *InventoryHTTPAdapter) GetStock(ctx context.Context, productID int64) (domain.Stock, error) {
	defer metrics.ObserveInventoryCall("stock", time.Now())
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	var stock domain.Stock
	if err := a.client.GetJSON(ctx, a.serviceName, constants.InventoryStockPath+strconv.FormatInt(productID, 10), &stock); err != nil {
		return domain.Stock{}, errors.Wrapf(err, "get stock of product %d", productID)
	}
	if stock.Amount < 0 {
		return domain.Stock{}, errors.Errorf("negative stock %d for product %d", stock.Amount, productID)
	}
	stock.ProductID = productID
	return stock, nil
}

// GetProduct 调用 GET /products/{id}
func (a *InventoryHTTPAdapter) GetProduct(ctx context.Context, productID int64) (domain.Product, error) {
	defer metrics.ObserveInventoryCall("product", time.Now())
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	var product domain.Product
	if err := a.client.GetJSON(ctx, a.serviceName, constants.InventoryProductPath+strconv.FormatInt(productID, 10), &product); err != nil {
		return domain.Product{}, errors.Wrapf(err, "get product %d", productID)
	}
	return product, nil
}

func (a *InventoryHTTPAdapter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.timeout)
}
