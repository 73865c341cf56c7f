package port

import (
	"context"

	"shopcart/internal/service/cart/domain"
)

// Notifier 把失败通知送达用户界面。
type Notifier interface {
	Notify(ctx context.Context, notice domain.Notice)
}

// CartPublisher 在每次成功变更后对外发布最新购物车。
type CartPublisher interface {
	PublishCart(ctx context.Context, cart domain.Cart) error
}
