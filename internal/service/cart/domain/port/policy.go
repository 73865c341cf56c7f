package port

import "context"

// StockCheck 是一次库存校验的输入
type StockCheck struct {
	ProductID int64
	Requested int
	Available int
}

// StockPolicy 决定请求数量在给定库存下是否允许。
type StockPolicy interface {
	Allow(ctx context.Context, check StockCheck) (bool, error)
}

// ThresholdPolicy 是默认策略：请求数量不超过库存即允许。
type ThresholdPolicy struct{}

func (ThresholdPolicy) Allow(_ context.Context, check StockCheck) (bool, error) {
	return check.Requested <= check.Available, nil
}
