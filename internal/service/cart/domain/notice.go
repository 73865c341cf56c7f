package domain

import (
	"time"

	"github.com/google/uuid"
)

// Notice 是一次失败操作对用户的通知，每个失败操作恰好产生一条
type Notice struct {
	ID        string    `json:"id"`
	Op        Op        `json:"op"`
	Kind      Kind      `json:"kind"`
	ProductID int64     `json:"product_id"`
	At        time.Time `json:"at"`
}

func NewNotice(err *CartError) Notice {
	return Notice{
		ID:        uuid.NewString(),
		Op:        err.Op,
		Kind:      err.Kind,
		ProductID: err.ProductID,
		At:        time.Now().UTC(),
	}
}
