package adapter

import (
	"context"

	"shopcart/internal/service/cart/domain"
	"shopcart/internal/service/cart/domain/port"
)

// MultiNotifier 把同一条通知依次交给多个 Notifier
type MultiNotifier []port.Notifier

func (m MultiNotifier) Notify(ctx context.Context, notice domain.Notice) {
	for _, n := range m {
		n.Notify(ctx, notice)
	}
}
