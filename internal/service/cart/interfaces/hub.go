package interfaces

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"shopcart/internal/pkg/logger"
	"shopcart/internal/service/cart/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

const (
	frameCart   = "cart"
	frameNotice = "notice"
)

type cartFrame struct {
	Type  string      `json:"type"`
	Items domain.Cart `json:"items"`
}

type noticeFrame struct {
	Type string `json:"type"`
	domain.Notice
	Message string `json:"message"`
}

// Hub 维护所有活跃的 WebSocket 连接，把购物车状态和失败通知广播给它们。
// 所有对 Client.send 的写入和关闭都在 Run 所在的 goroutine 中完成。
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}

	latest []byte // 最近一次的购物车帧，新连接先收到它
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
	}
}

// Run 处理注册、注销和广播，直到 ctx 结束。updates 是 Manager.Subscribe 返回的状态流。
func (h *Hub) Run(ctx context.Context, updates <-chan domain.Cart) {
	defer close(h.done)
	// Subscribe 返回时当前状态已在 channel 中，先取出，保证新连接总能收到一帧
	select {
	case cart, ok := <-updates:
		if ok {
			h.setLatest(ctx, cart)
		}
	default:
	}

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			if h.latest != nil {
				c.send <- h.latest
			}
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}
		case cart, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			if h.setLatest(ctx, cart) {
				h.fanOut(h.latest)
			}
		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

func (h *Hub) setLatest(ctx context.Context, cart domain.Cart) bool {
	if cart == nil {
		cart = domain.Cart{}
	}
	msg, err := json.Marshal(cartFrame{Type: frameCart, Items: cart})
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("failed to marshal cart frame")
		return false
	}
	h.latest = msg
	return true
}

func (h *Hub) fanOut(msg []byte) {
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// 客户端太慢，断开
			h.drop(c)
		}
	}
}

func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.send)
}

// attach 把新连接交给 Run，Hub 已停止时返回 false
func (h *Hub) attach(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) detach(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Notify 实现 port.Notifier，把通知推送给所有已连接的客户端
func (h *Hub) Notify(ctx context.Context, notice domain.Notice) {
	msg, err := json.Marshal(noticeFrame{
		Type:    frameNotice,
		Notice:  notice,
		Message: NoticeText(notice.Op, notice.Kind),
	})
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("failed to marshal notice frame")
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		logger.Ctx(ctx).Warn().Str("notice_id", notice.ID).Msg("hub broadcast queue full, notice dropped")
	}
}

// Client 是一个 WebSocket 连接的代表
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// writePump 把 send 中的消息写入连接，并定时发送 ping
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 只处理 pong 和关闭，客户端发来的消息被丢弃
func (c *Client) readPump() {
	defer c.hub.detach(c)
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
