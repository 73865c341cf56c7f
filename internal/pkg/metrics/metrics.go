// internal/pkg/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cart"

var (
	// Operations 按操作和结果统计购物车变更次数。
	Operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Cart mutations by operation and outcome.",
	}, []string{"op", "outcome"})

	// InventoryRequestDuration 记录每次库存服务调用的耗时。
	InventoryRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "inventory_request_duration_seconds",
		Help:      "Latency of inventory lookup calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"call"})

	// LineItems 当前购物车中的商品行数。
	LineItems = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "line_items",
		Help:      "Number of line items in the current cart.",
	})
)

// ObserveInventoryCall records the elapsed time since start under the given call label.
func ObserveInventoryCall(call string, start time.Time) {
	InventoryRequestDuration.WithLabelValues(call).Observe(time.Since(start).Seconds())
}
