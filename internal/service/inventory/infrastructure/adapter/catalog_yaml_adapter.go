package adapter

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"shopcart/internal/service/inventory/domain"
)

// seedFile 对应种子 YAML：
//
//	products:
//	  - id: 1
//	    stock: 3
//	    title: Tênis de Caminhada
//	    price: 179.9
type seedFile struct {
	Products []map[string]any `yaml:"products"`
}

// CatalogYAMLAdapter 实现了 port.CatalogRepository，数据在启动时从种子文件读入内存。
type CatalogYAMLAdapter struct {
	catalog *domain.Catalog
}

// NewCatalogYAMLAdapter 读取并解析种子文件
func NewCatalogYAMLAdapter(path string) (*CatalogYAMLAdapter, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read seed file %s", path)
	}
	return ParseCatalogYAML(raw)
}

// ParseCatalogYAML 解析种子数据。每项必须有整数 id，stock 缺省为 0，其余字段原样保留。
func ParseCatalogYAML(raw []byte) (*CatalogYAMLAdapter, error) {
	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, errors.Wrap(err, "parse seed")
	}

	items := make([]domain.CatalogItem, 0, len(seed.Products))
	for i, fields := range seed.Products {
		id, ok := asInt(fields["id"])
		if !ok {
			return nil, errors.Errorf("product #%d: id must be an integer", i)
		}
		stock := 0
		if v, present := fields["stock"]; present {
			if stock, ok = asInt(v); !ok {
				return nil, errors.Errorf("product %d: stock must be an integer", id)
			}
		}
		delete(fields, "id")
		delete(fields, "stock")
		items = append(items, domain.CatalogItem{ID: int64(id), Stock: stock, Product: fields})
	}

	catalog, err := domain.NewCatalog(items)
	if err != nil {
		return nil, errors.Wrap(err, "invalid seed")
	}
	return &CatalogYAMLAdapter{catalog: catalog}, nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	default:
		return 0, false
	}
}

func (a *CatalogYAMLAdapter) FindProduct(_ context.Context, id int64) (domain.Product, error) {
	return a.catalog.Product(id)
}

func (a *CatalogYAMLAdapter) FindStock(_ context.Context, id int64) (domain.Stock, error) {
	return a.catalog.Stock(id)
}

func (a *CatalogYAMLAdapter) ListProducts(_ context.Context) ([]domain.Product, error) {
	return a.catalog.Products(), nil
}
