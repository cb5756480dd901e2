package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics 托管业务指标
type BusinessMetrics struct {
	DepositsDetectedTotal   *prometheus.CounterVec
	DepositsCreditedTotal   *prometheus.CounterVec
	DepositCreditedUSDTotal *prometheus.CounterVec
	WithdrawalsTotal        *prometheus.CounterVec
	WithdrawAmountTotal     *prometheus.CounterVec
	HotWalletBalance        *prometheus.GaugeVec
	LiquidityShortfallTotal *prometheus.CounterVec
	HotWalletAlertsTotal    *prometheus.CounterVec
	ExternalErrorsTotal     *prometheus.CounterVec
	PriceFallbackTotal      *prometheus.CounterVec
	TaskDuration            *prometheus.HistogramVec
	OutboxRelayedTotal      *prometheus.CounterVec
}

// Business 默认注册在私有 Registry 上，单元测试不会触碰全局注册表
// 进程启动时 InitBusinessMetrics 把它换成默认 Registry 上的实例
var Business = NewBusinessMetrics(prometheus.NewRegistry())

// InitBusinessMetrics 在默认 Registry 上初始化业务指标 (/metrics 暴露)
func InitBusinessMetrics() {
	Business = NewBusinessMetrics(prometheus.DefaultRegisterer)
}

func NewBusinessMetrics(reg prometheus.Registerer) *BusinessMetrics {
	f := promauto.With(reg)
	return &BusinessMetrics{
		DepositsDetectedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "custody_deposits_detected_total",
			Help: "Deposits recorded from chain scans or manual submission",
		}, []string{"currency", "source"}),
		DepositsCreditedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "custody_deposits_credited_total",
			Help: "Deposits credited to user balances",
		}, []string{"currency"}),
		DepositCreditedUSDTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "custody_deposit_credited_usd_total",
			Help: "USD value credited from deposits",
		}, []string{"currency"}),
		WithdrawalsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "custody_withdrawals_total",
			Help: "Withdrawal status transitions",
		}, []string{"currency", "status"}),
		WithdrawAmountTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "custody_withdraw_amount_total",
			Help: "Crypto amount sent by completed withdrawals",
		}, []string{"currency"}),
		HotWalletBalance: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "custody_hot_wallet_balance",
			Help: "Last sampled hot wallet balance",
		}, []string{"currency"}),
		LiquidityShortfallTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "custody_liquidity_shortfall_total",
			Help: "Withdrawals skipped because the hot wallet could not cover them",
		}, []string{"currency"}),
		HotWalletAlertsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "custody_hot_wallet_alerts_total",
			Help: "Hot wallet alerts emitted",
		}, []string{"currency", "level"}),
		ExternalErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "custody_external_errors_total",
			Help: "Transient failures from chain, fee and price APIs",
		}, []string{"source"}),
		PriceFallbackTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "custody_price_fallback_total",
			Help: "Price lookups served by the hardcoded fallback",
		}, []string{"currency"}),
		TaskDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "custody_task_duration_seconds",
			Help:    "Duration of one scheduled task cycle",
			Buckets: prometheus.DefBuckets,
		}, []string{"task"}),
		OutboxRelayedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "custody_outbox_relayed_total",
			Help: "Outbox messages relayed to the message queue",
		}, []string{"topic", "result"}),
	}
}
