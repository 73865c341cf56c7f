package domain

// Stock 是库存服务对某个商品可用数量的权威读数，购物车只读不写
type Stock struct {
	ProductID int64 `json:"id"`
	Amount    int   `json:"amount"`
}
