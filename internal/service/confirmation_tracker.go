package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"custody-core/internal/chain"
	"custody-core/internal/model"
	"custody-core/pkg/logger"
)

// NextDepositStatus 根据确认数计算下一状态，只前进不后退
func NextDepositStatus(confirmations, required int64, current string) string {
	target := model.DepositStatusPending
	switch {
	case confirmations >= required && required > 0:
		target = model.DepositStatusConfirmed
	case confirmations > 0:
		target = model.DepositStatusConfirming
	}
	if model.DepositStatusRank(target) <= model.DepositStatusRank(current) {
		return current
	}
	return target
}

// ConfirmationTracker 推进 PENDING / CONFIRMING 充值的确认数
type ConfirmationTracker struct {
	db       *gorm.DB
	chains   *chain.Registry
	creditor *LedgerCreditor
}

func NewConfirmationTracker(db *gorm.DB, chains *chain.Registry, creditor *LedgerCreditor) *ConfirmationTracker {
	return &ConfirmationTracker{db: db, chains: chains, creditor: creditor}
}

func (t *ConfirmationTracker) Name() string { return "confirmation_tracker" }

// RunOnce 一轮:
// 1. 推进未确认的充值，每条链只查一次区块高度
// 2. 补记残留在 CONFIRMED 的充值 (上次入账前崩溃)
func (t *ConfirmationTracker) RunOnce(ctx context.Context) error {
	var pending []model.Deposit
	if err := t.db.WithContext(ctx).
		Where("status IN ?", []string{model.DepositStatusPending, model.DepositStatusConfirming}).
		Order("id").Find(&pending).Error; err != nil {
		return fmt.Errorf("查询待确认充值失败: %w", err)
	}

	tips := make(map[string]int64)
	for i := range pending {
		d := &pending[i]
		c, err := t.chains.Get(d.Currency)
		if err != nil {
			logger.Warn("[Tracker] 未启用的币种", zap.Uint64("deposit_id", d.ID), zap.String("currency", d.Currency))
			continue
		}

		tip, ok := tips[d.Currency]
		if !ok {
			tip, err = c.Client().GetTipHeight(ctx)
			if err != nil {
				logger.Warn("[Tracker] 获取区块高度失败", zap.String("currency", d.Currency), zap.Error(err))
				tips[d.Currency] = -1
				continue
			}
			tips[d.Currency] = tip
		}
		if tip < 0 {
			continue
		}

		if err := t.advance(ctx, c, d, tip); err != nil {
			logger.Warn("[Tracker] 更新确认数失败", zap.Uint64("deposit_id", d.ID), zap.Error(err))
		}
	}

	var confirmed []model.Deposit
	if err := t.db.WithContext(ctx).Select("id").
		Where("status = ?", model.DepositStatusConfirmed).
		Order("id").Find(&confirmed).Error; err != nil {
		return fmt.Errorf("查询待入账充值失败: %w", err)
	}
	for _, d := range confirmed {
		if _, err := t.creditor.CreditDeposit(ctx, d.ID); err != nil {
			logger.Warn("[Tracker] 入账失败", zap.Uint64("deposit_id", d.ID), zap.Error(err))
		}
	}
	return nil
}

// CheckDeposit 单笔立即检查，新记录创建后调用
func (t *ConfirmationTracker) CheckDeposit(ctx context.Context, d *model.Deposit) error {
	c, err := t.chains.Get(d.Currency)
	if err != nil {
		return err
	}
	tip, err := c.Client().GetTipHeight(ctx)
	if err != nil {
		return err
	}
	return t.advance(ctx, c, d, tip)
}

func (t *ConfirmationTracker) advance(ctx context.Context, c chain.Chain, d *model.Deposit, tip int64) error {
	info, err := c.Client().GetTransaction(ctx, d.TxHash)
	if errors.Is(err, chain.ErrNotFound) {
		// 索引器还没看到，下轮再查
		return nil
	}
	if err != nil {
		return err
	}

	updates := map[string]interface{}{}
	amount := d.Amount

	// 手动提交的充值以链上实际支付到充值地址的金额为准
	if d.Source == model.DepositSourceManual {
		onChain := info.AmountTo(d.Address)
		if !onChain.IsPositive() {
			released, err := releaseManualClaim(t.db.WithContext(ctx), d.ID)
			if err != nil {
				return err
			}
			if released {
				logger.Warn("[Tracker] 交易未向充值地址付款，撤销手动充值",
					zap.Uint64("deposit_id", d.ID),
					zap.Uint64("user_id", d.UserID),
					zap.String("tx_hash", d.TxHash))
			}
			return nil
		}
		if !onChain.Equal(d.Amount) {
			logger.Warn("[Tracker] 手动充值金额与链上不一致，以链上为准",
				zap.Uint64("deposit_id", d.ID),
				zap.String("submitted", d.Amount.String()),
				zap.String("on_chain", onChain.String()))
			updates["amount"] = onChain
			amount = onChain
		}
	}

	confs := chain.Confirmations(tip, info.BlockHeight)
	next := NextDepositStatus(confs, d.RequiredConfirmations, d.Status)
	if confs != d.Confirmations {
		updates["confirmations"] = confs
	}
	if info.BlockHeight != d.BlockHeight {
		updates["block_height"] = info.BlockHeight
	}
	if next != d.Status {
		updates["status"] = next
	}
	if len(updates) == 0 {
		return nil
	}

	res := t.db.WithContext(ctx).Model(&model.Deposit{}).
		Where("id = ? AND status = ?", d.ID, d.Status).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// 状态已被其他 worker 推进
		return nil
	}

	if next != d.Status {
		logger.Info("[Tracker] 充值状态变化",
			zap.Uint64("deposit_id", d.ID),
			zap.String("from", d.Status),
			zap.String("to", next),
			zap.Int64("confirmations", confs))
	}
	d.Confirmations, d.BlockHeight, d.Status, d.Amount = confs, info.BlockHeight, next, amount

	if next == model.DepositStatusConfirmed {
		if _, err := t.creditor.CreditDeposit(ctx, d.ID); err != nil {
			return err
		}
	}
	return nil
}
