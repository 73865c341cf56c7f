package adapter

import (
	"context"
	"encoding/json"
	"time"

	"shopcart/internal/pkg/logger"
	"shopcart/internal/pkg/mq"
	"shopcart/internal/service/cart/domain"
)

const consumerRetryDelay = 5 * time.Second

// CartRefresher 由 application.Manager 实现
type CartRefresher interface {
	Refresh(ctx context.Context) (domain.Cart, error)
}

// CartKafkaConsumer 消费其他副本发布的 CartUpdatedEvent，收到后让本副本从存储刷新。
// 事件只作为信号，状态以存储中的快照为准。
type CartKafkaConsumer struct {
	reader     mq.MessageReader
	refresher  CartRefresher
	storageKey string
	origin     string
	retryDelay time.Duration
}

func NewCartKafkaConsumer(reader mq.MessageReader, refresher CartRefresher, storageKey, origin string) *CartKafkaConsumer {
	return &CartKafkaConsumer{
		reader:     reader,
		refresher:  refresher,
		storageKey: storageKey,
		origin:     origin,
		retryDelay: consumerRetryDelay,
	}
}

// Run 阻塞消费直到 ctx 结束
func (c *CartKafkaConsumer) Run(ctx context.Context) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Ctx(ctx).Error().Err(err).Msg("could not read cart update, retrying")
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.retryDelay):
			}
			continue
		}

		var event CartUpdatedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("skipping malformed cart update")
			continue
		}
		if event.StorageKey != c.storageKey || event.Origin == c.origin {
			continue
		}

		msgCtx := mq.ExtractContext(ctx, msg)
		if _, err := c.refresher.Refresh(msgCtx); err != nil {
			logger.Ctx(msgCtx).Warn().Err(err).Str("origin", event.Origin).Msg("cart refresh after remote update failed")
		}
	}
}
