// internal/service/cart/domain/cart.go
package domain

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// Cart 是按加入顺序排列的商品行，同一商品 id 至多出现一次。
// 所有变更方法都返回新的 Cart，不修改接收者。
type Cart []LineItem

// IndexOf 返回商品所在的位置，不存在时返回 -1
func (c Cart) IndexOf(productID int64) int {
	for i, item := range c {
		if item.ID == productID {
			return i
		}
	}
	return -1
}

// Find 按商品 id 查找商品行
func (c Cart) Find(productID int64) (LineItem, bool) {
	if i := c.IndexOf(productID); i >= 0 {
		return c[i].clone(), true
	}
	return LineItem{}, false
}

// Clone 深拷贝，nil 购物车拷贝为空切片
func (c Cart) Clone() Cart {
	out := make(Cart, len(c))
	for i, item := range c {
		out[i] = item.clone()
	}
	return out
}

// Append 在末尾加入新的商品行
func (c Cart) Append(item LineItem) (Cart, error) {
	if c.IndexOf(item.ID) >= 0 {
		return nil, fmt.Errorf("product %d already in cart", item.ID)
	}
	if item.Amount <= 0 {
		return nil, fmt.Errorf("product %d: amount must be positive, got %d", item.ID, item.Amount)
	}
	out := c.Clone()
	return append(out, item.clone()), nil
}

// Remove 删除商品行，商品不存在时返回 ErrNotFound
func (c Cart) Remove(productID int64) (Cart, error) {
	i := c.IndexOf(productID)
	if i < 0 {
		return nil, ErrNotFound
	}
	out := c.Clone()
	return append(out[:i], out[i+1:]...), nil
}

// WithAmount 把商品数量设置为 amount，商品不存在时返回 ErrNotFound
func (c Cart) WithAmount(productID int64, amount int) (Cart, error) {
	i := c.IndexOf(productID)
	if i < 0 {
		return nil, ErrNotFound
	}
	if amount <= 0 {
		return nil, fmt.Errorf("product %d: amount must be positive, got %d", productID, amount)
	}
	out := c.Clone()
	out[i].Amount = amount
	return out, nil
}

// Validate 检查 id 唯一和数量为正两个不变量
func (c Cart) Validate() error {
	seen := make(map[int64]struct{}, len(c))
	for _, item := range c {
		if _, dup := seen[item.ID]; dup {
			return fmt.Errorf("duplicate product %d", item.ID)
		}
		seen[item.ID] = struct{}{}
		if item.Amount <= 0 {
			return fmt.Errorf("product %d has non-positive amount %d", item.ID, item.Amount)
		}
	}
	return nil
}

// TotalAmount 所有商品行数量之和
func (c Cart) TotalAmount() int {
	total := 0
	for _, item := range c {
		total += item.Amount
	}
	return total
}

// EncodeSnapshot 把购物车序列化为存储用的 JSON 数组
func EncodeSnapshot(c Cart) (string, error) {
	if c == nil {
		c = Cart{}
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return "", errors.Wrap(err, "encode cart snapshot")
	}
	return string(raw), nil
}

// DecodeSnapshot 解析存储中的快照，并校验不变量
func DecodeSnapshot(snapshot string) (Cart, error) {
	var c Cart
	if err := json.Unmarshal([]byte(snapshot), &c); err != nil {
		return nil, errors.Wrap(err, "decode cart snapshot")
	}
	if c == nil {
		c = Cart{}
	}
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid cart snapshot")
	}
	return c, nil
}
