package monitor

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewBusinessMetrics_PrivateRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBusinessMetrics(reg)

	m.DepositsCreditedTotal.WithLabelValues("BTC").Inc()
	m.DepositsCreditedTotal.WithLabelValues("BTC").Inc()
	m.HotWalletBalance.WithLabelValues("ETH").Set(1.5)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.DepositsCreditedTotal.WithLabelValues("BTC")))
	assert.Equal(t, 1.5, testutil.ToFloat64(m.HotWalletBalance.WithLabelValues("ETH")))

	// 同一个 Registry 上重复注册会 panic，不同 Registry 互不影响
	assert.Panics(t, func() { NewBusinessMetrics(reg) })
	assert.NotPanics(t, func() { NewBusinessMetrics(prometheus.NewRegistry()) })
}
