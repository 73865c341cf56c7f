// internal/service/cart/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

// Kind 是购物车操作失败原因的封闭枚举，展示文案由接口层决定
type Kind int

const (
	KindOutOfStock Kind = iota + 1
	KindNotFound
	KindLookupFailure
	KindStorageFailure
)

func (k Kind) String() string {
	switch k {
	case KindOutOfStock:
		return "out_of_stock"
	case KindNotFound:
		return "not_found"
	case KindLookupFailure:
		return "lookup_failure"
	case KindStorageFailure:
		return "storage_failure"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	for _, candidate := range []Kind{KindOutOfStock, KindNotFound, KindLookupFailure, KindStorageFailure} {
		if candidate.String() == string(text) {
			*k = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown kind %q", text)
}

// Sentinel 对应每个 Kind，用于 errors.Is 判断
var (
	ErrOutOfStock     = errors.New("requested quantity exceeds stock")
	ErrNotFound       = errors.New("product not in cart")
	ErrLookupFailure  = errors.New("inventory lookup failed")
	ErrStorageFailure = errors.New("cart snapshot could not be persisted")
)

func (k Kind) sentinel() error {
	switch k {
	case KindOutOfStock:
		return ErrOutOfStock
	case KindNotFound:
		return ErrNotFound
	case KindLookupFailure:
		return ErrLookupFailure
	case KindStorageFailure:
		return ErrStorageFailure
	default:
		return nil
	}
}

// Op 标识是哪一个购物车操作失败
type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
	OpUpdate Op = "update"
)

// CartError 是购物车操作返回的唯一错误类型
type CartError struct {
	Op        Op
	Kind      Kind
	ProductID int64
	Err       error // 底层原因，可能为空
	// NoticeID 是这次失败发出的通知 id，通知发出后才有值
	NoticeID string
}

func NewCartError(op Op, kind Kind, productID int64, cause error) *CartError {
	return &CartError{Op: op, Kind: kind, ProductID: productID, Err: cause}
}

func (e *CartError) Error() string {
	msg := fmt.Sprintf("cart %s product %d: %s", e.Op, e.ProductID, e.Kind.sentinel())
	if e.Err != nil && !errors.Is(e.Err, e.Kind.sentinel()) {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CartError) Unwrap() error { return e.Err }

// Is 让 errors.Is(err, ErrOutOfStock) 之类的判断按 Kind 生效
func (e *CartError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// KindOf 返回 err 链上第一个 CartError 的 Kind，没有时返回 0
func KindOf(err error) Kind {
	var ce *CartError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}
