package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"custody-core/internal/model"
)

// LimitConfig 基础限额 × VIP 倍数
type LimitConfig struct {
	BaseDaily      decimal.Decimal
	BaseMonthly    decimal.Decimal
	VIPMultipliers []decimal.Decimal // 下标即 VIP 等级
}

// DefaultLimitConfig 日 $10,000，月 $100,000，VIP 0..4
func DefaultLimitConfig() LimitConfig {
	return LimitConfig{
		BaseDaily:   decimal.NewFromInt(10000),
		BaseMonthly: decimal.NewFromInt(100000),
		VIPMultipliers: []decimal.Decimal{
			decimal.NewFromInt(1),
			decimal.NewFromFloat(1.5),
			decimal.NewFromInt(2),
			decimal.NewFromInt(3),
			decimal.NewFromInt(5),
		},
	}
}

// WithdrawalLimiter 每用户日/月提现限额 (USD)
// 计数在跨 UTC 日/月后首次访问时懒重置
type WithdrawalLimiter struct {
	db    *gorm.DB
	cfg   LimitConfig
	clock clock.Clock
}

func NewWithdrawalLimiter(db *gorm.DB, cfg LimitConfig, clk clock.Clock) *WithdrawalLimiter {
	if clk == nil {
		clk = clock.New()
	}
	if len(cfg.VIPMultipliers) == 0 {
		cfg.VIPMultipliers = []decimal.Decimal{decimal.NewFromInt(1)}
	}
	return &WithdrawalLimiter{db: db, cfg: cfg, clock: clk}
}

// WithTx 返回绑定到事务的副本，限额检查和扣款在同一事务里完成
func (l *WithdrawalLimiter) WithTx(tx *gorm.DB) *WithdrawalLimiter {
	return &WithdrawalLimiter{db: tx, cfg: l.cfg, clock: l.clock}
}

// CheckLimit 额度不足返回 *LimitExceededError
// 存储出错时拒绝 (fail closed)
func (l *WithdrawalLimiter) CheckLimit(ctx context.Context, userID uint64, amountUSD decimal.Decimal) error {
	rec, err := l.load(ctx, userID)
	if err != nil {
		return fmt.Errorf("读取提现限额失败: %w", err)
	}

	if rec.DailyWithdrawn.Add(amountUSD).GreaterThan(rec.DailyLimit) {
		return &LimitExceededError{Reason: LimitReasonDaily, Remaining: headroom(rec.DailyLimit, rec.DailyWithdrawn)}
	}
	if rec.MonthlyWithdrawn.Add(amountUSD).GreaterThan(rec.MonthlyLimit) {
		return &LimitExceededError{Reason: LimitReasonMonthly, Remaining: headroom(rec.MonthlyLimit, rec.MonthlyWithdrawn)}
	}
	return nil
}

// RecordWithdrawal 累加已提现额度
func (l *WithdrawalLimiter) RecordWithdrawal(ctx context.Context, userID uint64, amountUSD decimal.Decimal) error {
	if _, err := l.load(ctx, userID); err != nil {
		return err
	}
	return l.db.WithContext(ctx).Model(&model.WithdrawalLimitRecord{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"daily_withdrawn":   gorm.Expr("daily_withdrawn + ?", amountUSD),
			"monthly_withdrawn": gorm.Expr("monthly_withdrawn + ?", amountUSD),
		}).Error
}

// RefundWithdrawal 退回额度，最低减到 0
func (l *WithdrawalLimiter) RefundWithdrawal(ctx context.Context, userID uint64, amountUSD decimal.Decimal) error {
	rec, err := l.load(ctx, userID)
	if err != nil {
		return err
	}
	return l.db.WithContext(ctx).Model(rec).Updates(map[string]interface{}{
		"daily_withdrawn":   floorZero(rec.DailyWithdrawn.Sub(amountUSD)),
		"monthly_withdrawn": floorZero(rec.MonthlyWithdrawn.Sub(amountUSD)),
	}).Error
}

// SetVIPTier 修改等级并重算限额
func (l *WithdrawalLimiter) SetVIPTier(ctx context.Context, userID uint64, tier int) (*model.WithdrawalLimitRecord, error) {
	if tier < 0 || tier >= len(l.cfg.VIPMultipliers) {
		return nil, invalid("tier", "必须在 0..%d 之间", len(l.cfg.VIPMultipliers)-1)
	}

	var out *model.WithdrawalLimitRecord
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := l.WithTx(tx).load(ctx, userID)
		if err != nil {
			return err
		}
		daily, monthly := l.limitsFor(tier)
		if err := tx.Model(rec).Updates(map[string]interface{}{
			"vip_tier":      tier,
			"daily_limit":   daily,
			"monthly_limit": monthly,
		}).Error; err != nil {
			return err
		}
		rec.VIPTier, rec.DailyLimit, rec.MonthlyLimit = tier, daily, monthly
		out = rec
		return nil
	})
	return out, err
}

// GetLimits 当前限额与已用额度 (已完成懒重置)
func (l *WithdrawalLimiter) GetLimits(ctx context.Context, userID uint64) (*model.WithdrawalLimitRecord, error) {
	return l.load(ctx, userID)
}

// load 读取 (加行锁) 用户限额记录，不存在就按 VIP 0 创建，并执行懒重置
func (l *WithdrawalLimiter) load(ctx context.Context, userID uint64) (*model.WithdrawalLimitRecord, error) {
	db := l.db.WithContext(ctx)
	now := l.clock.Now().UTC()

	var rec model.WithdrawalLimitRecord
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		daily, monthly := l.limitsFor(0)
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.WithdrawalLimitRecord{
			UserID:           userID,
			DailyLimit:       daily,
			MonthlyLimit:     monthly,
			DailyWithdrawn:   decimal.Zero,
			MonthlyWithdrawn: decimal.Zero,
			LastDailyReset:   now,
			LastMonthlyReset: now,
		}).Error; err != nil {
			return nil, err
		}
		err = db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(&rec).Error
	}
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if !sameUTCDay(rec.LastDailyReset, now) && rec.LastDailyReset.Before(now) {
		rec.DailyWithdrawn, rec.LastDailyReset = decimal.Zero, now
		updates["daily_withdrawn"], updates["last_daily_reset"] = decimal.Zero, now
	}
	if !sameUTCMonth(rec.LastMonthlyReset, now) && rec.LastMonthlyReset.Before(now) {
		rec.MonthlyWithdrawn, rec.LastMonthlyReset = decimal.Zero, now
		updates["monthly_withdrawn"], updates["last_monthly_reset"] = decimal.Zero, now
	}
	if len(updates) > 0 {
		if err := db.Model(&rec).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return &rec, nil
}

func (l *WithdrawalLimiter) limitsFor(tier int) (decimal.Decimal, decimal.Decimal) {
	m := l.cfg.VIPMultipliers[tier]
	return l.cfg.BaseDaily.Mul(m), l.cfg.BaseMonthly.Mul(m)
}

func sameUTCDay(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func sameUTCMonth(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.Month() == b.Month()
}

func headroom(limit, used decimal.Decimal) decimal.Decimal {
	return floorZero(limit.Sub(used))
}

func floorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
