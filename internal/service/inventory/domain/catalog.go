package domain

import (
	"errors"
	"fmt"
)

// ErrProductNotFound 商品不存在
var ErrProductNotFound = errors.New("product not found")

// Product 是对外返回的商品元数据，字段原样来自种子数据，至少包含 id
type Product map[string]any

// Stock 是某个商品的可用库存
type Stock struct {
	ProductID int64 `json:"id"`
	Amount    int   `json:"amount"`
}

// CatalogItem 是目录中的一项：商品元数据加上库存
type CatalogItem struct {
	ID      int64
	Stock   int
	Product Product
}

// Catalog 按种子文件中的顺序保存商品
type Catalog struct {
	items []CatalogItem
	index map[int64]int
}

// NewCatalog 校验 id 唯一、库存非负
func NewCatalog(items []CatalogItem) (*Catalog, error) {
	c := &Catalog{index: make(map[int64]int, len(items))}
	for _, item := range items {
		if _, dup := c.index[item.ID]; dup {
			return nil, fmt.Errorf("duplicate product id %d", item.ID)
		}
		if item.Stock < 0 {
			return nil, fmt.Errorf("product %d has negative stock %d", item.ID, item.Stock)
		}
		product := make(Product, len(item.Product)+1)
		for k, v := range item.Product {
			product[k] = v
		}
		product["id"] = item.ID
		item.Product = product

		c.index[item.ID] = len(c.items)
		c.items = append(c.items, item)
	}
	return c, nil
}

func (c *Catalog) Product(id int64) (Product, error) {
	i, ok := c.index[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	return c.items[i].Product, nil
}

func (c *Catalog) Stock(id int64) (Stock, error) {
	i, ok := c.index[id]
	if !ok {
		return Stock{}, ErrProductNotFound
	}
	return Stock{ProductID: id, Amount: c.items[i].Stock}, nil
}

func (c *Catalog) Products() []Product {
	out := make([]Product, 0, len(c.items))
	for _, item := range c.items {
		out = append(out, item.Product)
	}
	return out
}
