package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"shopcart/internal/pkg/constants"
	"shopcart/internal/pkg/logger"
	"shopcart/internal/service/cart/domain"
)

// CartManager 是 handler 需要的购物车操作，由 application.Manager 实现
type CartManager interface {
	Cart() domain.Cart
	Refresh(ctx context.Context) (domain.Cart, error)
	Add(ctx context.Context, productID int64) error
	Remove(ctx context.Context, productID int64) error
	SetQuantity(ctx context.Context, productID int64, amount int) error
}

// CartHandler 封装了购物车服务的 HTTP 处理器
type CartHandler struct {
	manager  CartManager
	hub      *Hub
	tracer   trace.Tracer
	upgrader websocket.Upgrader
}

// NewCartHandler 创建 HTTP 处理器。hub 为 nil 时不注册 WebSocket 路由。
func NewCartHandler(manager CartManager, hub *Hub) *CartHandler {
	return &CartHandler{
		manager: manager,
		hub:     hub,
		tracer:  otel.Tracer(constants.CartService),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool { // 允许所有跨域，前端与服务不同源
				return true
			},
		},
	}
}

type setQuantityRequest struct {
	Amount *int `json:"amount"`
}

type failureResponse struct {
	Kind     string `json:"kind"`
	Message  string `json:"message"`
	NoticeID string `json:"notice_id,omitempty"`
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *CartHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("GET /cart", h.getCart)
	mux.HandleFunc("POST /cart/products/{id}", h.addProduct)
	mux.HandleFunc("DELETE /cart/products/{id}", h.removeProduct)
	mux.HandleFunc("PUT /cart/products/{id}", h.setQuantity)
	if h.hub != nil {
		mux.HandleFunc("GET /cart/ws", h.serveWS)
	}
}

func (h *CartHandler) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	cart, err := h.manager.Refresh(ctx)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("failed to load cart")
		writeJSON(w, http.StatusInternalServerError, failureResponse{
			Kind:    domain.KindStorageFailure.String(),
			Message: "Failed to load cart",
		})
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) addProduct(w http.ResponseWriter, r *http.Request) {
	ctx, span, id, ok := h.begin(w, r, "cart-service.AddProduct")
	if !ok {
		return
	}
	defer span.End()

	h.respond(ctx, w, h.manager.Add(ctx, id))
}

func (h *CartHandler) removeProduct(w http.ResponseWriter, r *http.Request) {
	ctx, span, id, ok := h.begin(w, r, "cart-service.RemoveProduct")
	if !ok {
		return
	}
	defer span.End()

	h.respond(ctx, w, h.manager.Remove(ctx, id))
}

func (h *CartHandler) setQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, span, id, ok := h.begin(w, r, "cart-service.SetQuantity")
	if !ok {
		return
	}
	defer span.End()

	var req setQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Amount == nil {
		http.Error(w, "body must be {\"amount\": <int>}", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.Int("cart.amount", *req.Amount))

	h.respond(ctx, w, h.manager.SetQuantity(ctx, id, *req.Amount))
}

// begin 提取上游追踪上下文、开启 span 并解析路径中的商品 id
func (h *CartHandler) begin(w http.ResponseWriter, r *http.Request, spanName string) (context.Context, trace.Span, int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid product id", http.StatusBadRequest)
		return nil, nil, 0, false
	}

	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := h.tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindServer))
	span.SetAttributes(attribute.Int64("product.id", id))
	return ctx, span, id, true
}

func (h *CartHandler) respond(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, h.manager.Cart())
		return
	}

	resp := failureResponse{Kind: domain.KindOf(err).String(), Message: "Cart operation failed"}
	var ce *domain.CartError
	if errors.As(err, &ce) {
		resp.Message = NoticeText(ce.Op, ce.Kind)
		resp.NoticeID = ce.NoticeID
	}
	writeJSON(w, statusOf(err), resp)
	logger.Ctx(ctx).Debug().Err(err).Str("kind", resp.Kind).Msg("request failed")
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrOutOfStock):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrLookupFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// serveWS 把连接升级为 WebSocket，交给 Hub 推送购物车状态和通知
func (h *CartHandler) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{hub: h.hub, conn: conn, send: make(chan []byte, sendBuffer)}
	if !h.hub.attach(client) {
		conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}
