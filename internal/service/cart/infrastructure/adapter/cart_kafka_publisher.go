package adapter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"shopcart/internal/pkg/mq"
	"shopcart/internal/service/cart/domain"
)

// CartUpdatedEvent 是每次成功变更后发布的事件
type CartUpdatedEvent struct {
	StorageKey  string      `json:"storage_key"`
	Origin      string      `json:"origin"` // 发布事件的副本 id
	Items       domain.Cart `json:"items"`
	TotalAmount int         `json:"total_amount"`
	At          time.Time   `json:"at"`
}

// CartKafkaPublisher 实现 port.CartPublisher，事件 key 为快照 key，保证同一购物车的事件有序。
type CartKafkaPublisher struct {
	writer     mq.MessageWriter
	storageKey string
	origin     string
}

func NewCartKafkaPublisher(writer mq.MessageWriter, storageKey, origin string) *CartKafkaPublisher {
	return &CartKafkaPublisher{writer: writer, storageKey: storageKey, origin: origin}
}

func (p *CartKafkaPublisher) PublishCart(ctx context.Context, cart domain.Cart) error {
	if cart == nil {
		cart = domain.Cart{}
	}
	event := CartUpdatedEvent{
		StorageKey:  p.storageKey,
		Origin:      p.origin,
		Items:       cart,
		TotalAmount: cart.TotalAmount(),
		At:          time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal cart updated event")
	}
	return mq.ProduceMessage(ctx, p.writer, []byte(p.storageKey), payload)
}
