package interfaces

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"shopcart/internal/pkg/logger"
	"shopcart/internal/service/inventory/application"
	"shopcart/internal/service/inventory/domain"
)

// InventoryHandler 封装了 inventory 服务的 HTTP 处理器
type InventoryHandler struct {
	service *application.InventoryService
}

func NewInventoryHandler(service *application.InventoryService) *InventoryHandler {
	return &InventoryHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *InventoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("GET /stock/{id}", h.stockHandler)
	mux.HandleFunc("GET /products/{id}", h.productHandler)
	mux.HandleFunc("GET /products", h.productsHandler)
}

func (h *InventoryHandler) stockHandler(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid product id", http.StatusBadRequest)
		return
	}

	stock, err := h.service.Stock(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, stock)
}

func (h *InventoryHandler) productHandler(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid product id", http.StatusBadRequest)
		return
	}

	product, err := h.service.Product(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, product)
}

func (h *InventoryHandler) productsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	products, err := h.service.Products(ctx)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("list products failed")
		writeError(w, err)
		return
	}
	writeJSON(w, products)
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrProductNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}
