package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"custody-core/internal/event"
	"custody-core/internal/model"
	"custody-core/pkg/logger"
	"custody-core/pkg/monitor"
)

// PriceOracle 币种 USD 价格，live=false 表示使用了兜底价
type PriceOracle interface {
	Price(ctx context.Context, currency string) (usd decimal.Decimal, live bool, err error)
}

// errCreditLost 状态门控更新没命中，说明其他 worker 已入账
var errCreditLost = errors.New("credit lost race")

// LedgerCreditor 把 CONFIRMED 充值记入用户余额，每笔最多一次
type LedgerCreditor struct {
	db     *gorm.DB
	prices PriceOracle
	clock  clock.Clock
}

func NewLedgerCreditor(db *gorm.DB, prices PriceOracle, clk clock.Clock) *LedgerCreditor {
	if clk == nil {
		clk = clock.New()
	}
	return &LedgerCreditor{db: db, prices: prices, clock: clk}
}

// CreditDeposit 入账，返回本次调用是否真正入账
// 已入账或并发下输给其他 worker 都返回 (false, nil)
func (c *LedgerCreditor) CreditDeposit(ctx context.Context, depositID uint64) (bool, error) {
	// 1. 重新读取
	var d model.Deposit
	if err := c.db.WithContext(ctx).First(&d, depositID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrDepositNotFound
		}
		return false, err
	}
	if d.Status == model.DepositStatusCredited {
		return false, nil
	}
	if d.Status != model.DepositStatusConfirmed {
		return false, fmt.Errorf("充值 %d 状态为 %s，不能入账", d.ID, d.Status)
	}

	// 2. 确定 USD 价值，先落库再入账
	usd, err := c.resolveUSDValue(ctx, &d)
	if err != nil {
		return false, err
	}

	// 3. 单事务: 状态门控 + 流水 + 余额 + 事件
	now := c.clock.Now().UTC()
	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Deposit{}).
			Where("id = ? AND status = ?", d.ID, model.DepositStatusConfirmed).
			Updates(map[string]interface{}{
				"status":      model.DepositStatusCredited,
				"credited_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errCreditLost
		}

		ref := model.DepositReference(d.ID)
		exists, err := hasLedgerEntry(tx, ref)
		if err != nil {
			return err
		}
		if exists {
			return errCreditLost
		}

		desc := fmt.Sprintf("%s deposit %s %s", d.Currency, d.Amount.String(), d.TxHash)
		if err := appendLedger(tx, d.UserID, model.LedgerTypeDeposit, usd, ref, desc); err != nil {
			return err
		}
		if err := creditBalance(tx, d.UserID, usd); err != nil {
			return err
		}

		return publishEvent(tx, event.TopicDeposit, d.UserID, event.TypeDepositCredited, event.DepositCreditedEvent{
			DepositID: d.ID,
			UserID:    d.UserID,
			Currency:  d.Currency,
			Amount:    d.Amount.String(),
			UsdValue:  usd.String(),
		})
	})
	if errors.Is(err, errCreditLost) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("充值 %d 入账失败: %w", d.ID, err)
	}

	monitor.Business.DepositsCreditedTotal.WithLabelValues(d.Currency).Inc()
	monitor.Business.DepositCreditedUSDTotal.WithLabelValues(d.Currency).Add(usd.InexactFloat64())
	logger.Info("[Creditor] 充值已入账",
		zap.Uint64("deposit_id", d.ID),
		zap.Uint64("user_id", d.UserID),
		zap.String("currency", d.Currency),
		zap.String("amount", d.Amount.String()),
		zap.String("usd", usd.String()),
	)
	return true, nil
}

// resolveUSDValue 已有 usd_value 直接复用，否则按当前价格计算并落库
func (c *LedgerCreditor) resolveUSDValue(ctx context.Context, d *model.Deposit) (decimal.Decimal, error) {
	if d.UsdValue.Valid {
		return d.UsdValue.Decimal, nil
	}

	price, live, err := c.prices.Price(ctx, d.Currency)
	if err != nil {
		return decimal.Zero, fmt.Errorf("获取 %s 价格失败: %w", d.Currency, err)
	}
	if !live {
		logger.Warn("[Creditor] 使用兜底价格入账", zap.Uint64("deposit_id", d.ID), zap.String("price", price.String()))
	}
	usd := d.Amount.Mul(price).Round(8)

	res := c.db.WithContext(ctx).Model(&model.Deposit{}).
		Where("id = ? AND usd_value IS NULL", d.ID).
		Update("usd_value", usd)
	if res.Error != nil {
		return decimal.Zero, res.Error
	}
	if res.RowsAffected == 0 {
		// 另一个 worker 先写入了，以库里的为准
		var fresh model.Deposit
		if err := c.db.WithContext(ctx).Select("usd_value").First(&fresh, d.ID).Error; err != nil {
			return decimal.Zero, err
		}
		if fresh.UsdValue.Valid {
			return fresh.UsdValue.Decimal, nil
		}
	}
	return usd, nil
}
