package interfaces

import "shopcart/internal/service/cart/domain"

const outOfStockText = "Requested quantity is out of stock"

var opFailureText = map[domain.Op]string{
	domain.OpAdd:    "Failed to add product",
	domain.OpRemove: "Failed to remove product",
	domain.OpUpdate: "Failed to update product amount",
}

// NoticeText 返回展示给用户的文案。除库存不足外，同一操作的各种失败使用同一条文案。
func NoticeText(op domain.Op, kind domain.Kind) string {
	if kind == domain.KindOutOfStock {
		return outOfStockText
	}
	if text, ok := opFailureText[op]; ok {
		return text
	}
	return "Cart operation failed"
}
