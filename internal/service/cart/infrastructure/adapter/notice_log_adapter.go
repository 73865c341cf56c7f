package adapter

import (
	"context"

	"shopcart/internal/pkg/logger"
	"shopcart/internal/service/cart/domain"
)

// NoticeLogAdapter 把失败通知写入日志，没有其他通知渠道时作为兜底。
type NoticeLogAdapter struct{}

func (NoticeLogAdapter) Notify(ctx context.Context, notice domain.Notice) {
	logger.Ctx(ctx).Warn().
		Str("notice_id", notice.ID).
		Str("op", string(notice.Op)).
		Str("kind", notice.Kind.String()).
		Int64("product_id", notice.ProductID).
		Msg("cart notice")
}
