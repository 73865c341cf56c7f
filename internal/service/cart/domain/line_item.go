// internal/service/cart/domain/line_item.go
package domain

import (
	"bytes"
	"encoding/json"
	"maps"

	"github.com/pkg/errors"
)

const (
	fieldID     = "id"
	fieldAmount = "amount"
)

// Product 是库存服务返回的商品元数据。
// 除 id 外的所有字段原样保存在 Attributes 中，购物车不解释它们。
type Product struct {
	ID         int64
	Attributes map[string]json.RawMessage
}

func (p *Product) UnmarshalJSON(data []byte) error {
	id, _, attrs, err := splitFields(data, false)
	if err != nil {
		return errors.Wrap(err, "decode product")
	}
	// 商品元数据里的 amount 属于库存语义，不能带进购物车
	delete(attrs, fieldAmount)
	p.ID, p.Attributes = id, attrs
	return nil
}

func (p Product) MarshalJSON() ([]byte, error) {
	return joinFields(p.ID, nil, p.Attributes)
}

// LineItem 是购物车中的一行：商品 id、数量以及原样携带的商品元数据
type LineItem struct {
	ID         int64
	Amount     int
	Attributes map[string]json.RawMessage
}

// NewLineItem 用商品元数据创建数量为 1 的新行。
// id 取调用方请求的商品 id，保证购物车内 id 唯一。
func NewLineItem(productID int64, p Product) LineItem {
	return LineItem{
		ID:         productID,
		Amount:     1,
		Attributes: maps.Clone(p.Attributes),
	}
}

// Attr 读取一个元数据字段并解码到 out
func (li LineItem) Attr(name string, out any) (bool, error) {
	raw, ok := li.Attributes[name]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, out)
}

func (li LineItem) clone() LineItem {
	li.Attributes = maps.Clone(li.Attributes)
	return li
}

func (li LineItem) MarshalJSON() ([]byte, error) {
	amount := li.Amount
	return joinFields(li.ID, &amount, li.Attributes)
}

func (li *LineItem) UnmarshalJSON(data []byte) error {
	id, amount, attrs, err := splitFields(data, true)
	if err != nil {
		return errors.Wrap(err, "decode line item")
	}
	li.ID, li.Amount, li.Attributes = id, amount, attrs
	return nil
}

// splitFields 把扁平 JSON 对象拆成 id、amount 和其余字段
func splitFields(data []byte, needAmount bool) (int64, int, map[string]json.RawMessage, error) {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return 0, 0, nil, errors.New("null object")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return 0, 0, nil, err
	}

	rawID, ok := fields[fieldID]
	if !ok {
		return 0, 0, nil, errors.New("missing id")
	}
	var id int64
	if err := json.Unmarshal(rawID, &id); err != nil {
		return 0, 0, nil, errors.Wrap(err, "id")
	}
	delete(fields, fieldID)

	var amount int
	if needAmount {
		rawAmount, ok := fields[fieldAmount]
		if !ok {
			return 0, 0, nil, errors.New("missing amount")
		}
		if err := json.Unmarshal(rawAmount, &amount); err != nil {
			return 0, 0, nil, errors.Wrap(err, "amount")
		}
		delete(fields, fieldAmount)
	}

	if len(fields) == 0 {
		fields = nil
	}
	return id, amount, fields, nil
}

func joinFields(id int64, amount *int, attrs map[string]json.RawMessage) ([]byte, error) {
	out := make(map[string]json.RawMessage, len(attrs)+2)
	for k, v := range attrs {
		out[k] = v
	}
	rawID, _ := json.Marshal(id)
	out[fieldID] = rawID
	if amount != nil {
		rawAmount, _ := json.Marshal(*amount)
		out[fieldAmount] = rawAmount
	}
	return json.Marshal(out)
}
