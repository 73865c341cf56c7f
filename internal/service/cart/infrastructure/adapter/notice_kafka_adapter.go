package adapter

import (
	"context"
	"encoding/json"
	"strconv"

	"shopcart/internal/pkg/logger"
	"shopcart/internal/pkg/mq"
	"shopcart/internal/service/cart/domain"
)

// NoticeKafkaAdapter 把失败通知发送到 Kafka，消息 key 为商品 id。
type NoticeKafkaAdapter struct {
	writer mq.MessageWriter
}

func NewNoticeKafkaAdapter(writer mq.MessageWriter) *NoticeKafkaAdapter {
	return &NoticeKafkaAdapter{writer: writer}
}

// Notify 实现 port.Notifier。发送失败只记录日志，不影响操作结果。
func (a *NoticeKafkaAdapter) Notify(ctx context.Context, notice domain.Notice) {
	payload, err := json.Marshal(notice)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("notice_id", notice.ID).Msg("failed to marshal cart notice")
		return
	}
	key := []byte(strconv.FormatInt(notice.ProductID, 10))
	if err := mq.ProduceMessage(ctx, a.writer, key, payload); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("notice_id", notice.ID).Msg("failed to produce cart notice")
	}
}
