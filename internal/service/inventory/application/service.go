package application

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"shopcart/internal/pkg/constants"
	"shopcart/internal/pkg/logger"
	"shopcart/internal/service/inventory/domain"
	"shopcart/internal/service/inventory/domain/port"
)

var tracer = otel.Tracer(constants.InventoryService)

// InventoryService 编排商品和库存查询
type InventoryService struct {
	repo port.CatalogRepository
}

func NewInventoryService(repo port.CatalogRepository) *InventoryService {
	return &InventoryService{repo: repo}
}

func (s *InventoryService) Stock(ctx context.Context, id int64) (domain.Stock, error) {
	ctx, span := tracer.Start(ctx, "inventory-service.Stock")
	defer span.End()
	span.SetAttributes(attribute.Int64("product.id", id))

	stock, err := s.repo.FindStock(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.Stock{}, err
	}
	span.SetAttributes(attribute.Int("stock.amount", stock.Amount))
	logger.Ctx(ctx).Debug().Int64("product_id", id).Int("amount", stock.Amount).Msg("stock checked")
	return stock, nil
}

func (s *InventoryService) Product(ctx context.Context, id int64) (domain.Product, error) {
	ctx, span := tracer.Start(ctx, "inventory-service.Product")
	defer span.End()
	span.SetAttributes(attribute.Int64("product.id", id))

	product, err := s.repo.FindProduct(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return product, nil
}

func (s *InventoryService) Products(ctx context.Context) ([]domain.Product, error) {
	ctx, span := tracer.Start(ctx, "inventory-service.Products")
	defer span.End()
	return s.repo.ListProducts(ctx)
}
