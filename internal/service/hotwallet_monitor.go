package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"custody-core/internal/chain"
	"custody-core/internal/event"
	"custody-core/internal/model"
	"custody-core/pkg/logger"
	"custody-core/pkg/monitor"
)

// HotWalletAddresses 热钱包地址来源，keyring.Provider 实现
type HotWalletAddresses interface {
	HotWalletAddress(c chain.Chain) (string, error)
}

// Thresholds 热钱包余额阈值 (币本位)
type Thresholds struct {
	Critical decimal.Decimal
	Warning  decimal.Decimal
	Target   decimal.Decimal
}

// RefillRecommendation 补充建议，Amount = max(target - current, 0)
type RefillRecommendation struct {
	Currency string          `json:"currency"`
	Address  string          `json:"address"`
	Current  decimal.Decimal `json:"current"`
	Target   decimal.Decimal `json:"target"`
	Amount   decimal.Decimal `json:"amount"`
}

// HotWalletMonitor 采样热钱包余额、按阈值告警，并给提现处理器提供流动性查询
type HotWalletMonitor struct {
	db         *gorm.DB
	chains     *chain.Registry
	keys       HotWalletAddresses
	thresholds map[string]Thresholds
	cooldown   time.Duration
	clock      clock.Clock
}

// NewHotWalletMonitor thresholds 的 key 大小写不敏感
func NewHotWalletMonitor(db *gorm.DB, chains *chain.Registry, keys HotWalletAddresses, thresholds map[string]Thresholds, cooldown time.Duration, clk clock.Clock) *HotWalletMonitor {
	if clk == nil {
		clk = clock.New()
	}
	norm := make(map[string]Thresholds, len(thresholds))
	for k, v := range thresholds {
		norm[strings.ToUpper(k)] = v
	}
	return &HotWalletMonitor{
		db:         db,
		chains:     chains,
		keys:       keys,
		thresholds: norm,
		cooldown:   cooldown,
		clock:      clk,
	}
}

func (m *HotWalletMonitor) Name() string { return "hotwallet_monitor" }

// RunOnce 每条链采样一次
func (m *HotWalletMonitor) RunOnce(ctx context.Context) error {
	for _, c := range m.chains.All() {
		if _, err := m.Sample(ctx, c); err != nil {
			logger.Warn("[HotWallet] 采样失败", zap.String("currency", c.Symbol().String()), zap.Error(err))
		}
	}
	return nil
}

// Sample 记录一次余额并检查阈值
func (m *HotWalletMonitor) Sample(ctx context.Context, c chain.Chain) (decimal.Decimal, error) {
	sym := c.Symbol().String()
	addr, bal, err := m.balance(ctx, c)
	if err != nil {
		return decimal.Zero, err
	}

	if err := m.db.WithContext(ctx).Create(&model.HotWalletBalanceSample{
		Currency:  sym,
		Address:   addr,
		Balance:   bal,
		SampledAt: m.clock.Now().UTC(),
	}).Error; err != nil {
		return bal, fmt.Errorf("保存余额采样失败: %w", err)
	}
	monitor.Business.HotWalletBalance.WithLabelValues(sym).Set(bal.InexactFloat64())

	th, ok := m.thresholds[sym]
	if !ok {
		return bal, nil
	}
	switch {
	case bal.LessThan(th.Critical):
		_, err = m.raiseAlert(ctx, sym, model.AlertLevelCritical, bal, th.Critical,
			fmt.Sprintf("%s 热钱包余额 %s 低于紧急阈值 %s，建议补充 %s", sym, bal, th.Critical, floorZero(th.Target.Sub(bal))))
	case bal.LessThan(th.Warning):
		_, err = m.raiseAlert(ctx, sym, model.AlertLevelWarning, bal, th.Warning,
			fmt.Sprintf("%s 热钱包余额 %s 低于警告阈值 %s", sym, bal, th.Warning))
	}
	return bal, err
}

// HasSufficientBalance 实时查询热钱包能否覆盖 amount
func (m *HotWalletMonitor) HasSufficientBalance(ctx context.Context, currency string, amount decimal.Decimal) (bool, error) {
	c, err := m.chains.Get(currency)
	if err != nil {
		return false, err
	}
	_, bal, err := m.balance(ctx, c)
	if err != nil {
		return false, err
	}
	return bal.GreaterThanOrEqual(amount), nil
}

// GetRefillRecommendation 距目标余额的差额
func (m *HotWalletMonitor) GetRefillRecommendation(ctx context.Context, currency string) (*RefillRecommendation, error) {
	c, err := m.chains.Get(currency)
	if err != nil {
		return nil, err
	}
	addr, bal, err := m.balance(ctx, c)
	if err != nil {
		return nil, err
	}
	sym := c.Symbol().String()
	target := m.thresholds[sym].Target
	return &RefillRecommendation{
		Currency: sym,
		Address:  addr,
		Current:  bal,
		Target:   target,
		Amount:   floorZero(target.Sub(bal)),
	}, nil
}

// Snapshot 全部热钱包的实时余额，查询失败的币种不出现在结果里
func (m *HotWalletMonitor) Snapshot(ctx context.Context) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, c := range m.chains.All() {
		_, bal, err := m.balance(ctx, c)
		if err != nil {
			logger.Warn("[HotWallet] 查询余额失败", zap.String("currency", c.Symbol().String()), zap.Error(err))
			continue
		}
		out[c.Symbol().String()] = bal
	}
	return out
}

// RaiseLiquidityAlert 有提现因余额不足被跳过
func (m *HotWalletMonitor) RaiseLiquidityAlert(ctx context.Context, currency string, required, available decimal.Decimal) {
	msg := fmt.Sprintf("%s 热钱包余额 %s 不足以支付提现 %s", currency, available, required)
	if _, err := m.raiseAlert(ctx, currency, model.AlertLevelLiquidity, available, required, msg); err != nil {
		logger.Warn("[HotWallet] 记录流动性告警失败", zap.Error(err))
	}
}

// raiseAlert 每个币种在冷却窗口内最多一条告警，返回是否发出
func (m *HotWalletMonitor) raiseAlert(ctx context.Context, currency, level string, balance, threshold decimal.Decimal, msg string) (bool, error) {
	now := m.clock.Now().UTC()

	var recent int64
	if err := m.db.WithContext(ctx).Model(&model.HotWalletAlert{}).
		Where("currency = ? AND created_at > ?", currency, now.Add(-m.cooldown)).
		Count(&recent).Error; err != nil {
		return false, err
	}
	if recent > 0 {
		return false, nil
	}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model.HotWalletAlert{
			Currency:  currency,
			Level:     level,
			Balance:   balance,
			Threshold: threshold,
			Message:   msg,
			CreatedAt: now,
		}).Error; err != nil {
			return err
		}
		return publishEvent(tx, event.TopicHotWallet, currency, event.TypeHotWalletAlert, event.HotWalletAlertEvent{
			Currency:  currency,
			Level:     level,
			Balance:   balance.String(),
			Threshold: threshold.String(),
			Message:   msg,
		})
	})
	if err != nil {
		return false, err
	}

	monitor.Business.HotWalletAlertsTotal.WithLabelValues(currency, level).Inc()
	if level == model.AlertLevelCritical {
		logger.Error("[HotWallet] "+msg, zap.String("level", level))
	} else {
		logger.Warn("[HotWallet] "+msg, zap.String("level", level))
	}
	return true, nil
}

func (m *HotWalletMonitor) balance(ctx context.Context, c chain.Chain) (string, decimal.Decimal, error) {
	addr, err := m.keys.HotWalletAddress(c)
	if err != nil {
		return "", decimal.Zero, err
	}
	bal, err := c.Client().GetBalance(ctx, addr)
	if err != nil {
		return addr, decimal.Zero, err
	}
	return addr, bal, nil
}
