package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"custody-core/internal/chain"
	"custody-core/internal/event"
	"custody-core/internal/model"
	"custody-core/pkg/logger"
	"custody-core/pkg/monitor"
)

// DepositService 用户主动提交充值、查询充值状态
type DepositService struct {
	db        *gorm.DB
	addresses *AddressService
	tracker   *ConfirmationTracker
}

func NewDepositService(db *gorm.DB, addresses *AddressService, tracker *ConfirmationTracker) *DepositService {
	return &DepositService{db: db, addresses: addresses, tracker: tracker}
}

// SubmitDeposit 按 tx_hash 幂等，重复提交返回同一个 id
// 金额只是用户声明，确认前会以链上金额为准
// 链上已能查到的交易必须向该用户的充值地址付款
func (s *DepositService) SubmitDeposit(ctx context.Context, userID uint64, currency, txHash string, amount decimal.Decimal) (uint64, error) {
	txHash = strings.ToLower(strings.TrimSpace(txHash))
	if txHash == "" {
		return 0, invalid("tx_hash", "不能为空")
	}
	if !amount.IsPositive() {
		return 0, invalid("amount", "必须大于 0")
	}

	// 1. 已存在直接返回
	if existing, err := s.findByHash(ctx, txHash); err == nil {
		if existing.UserID != userID {
			return 0, invalid("tx_hash", "已被其他用户提交")
		}
		return existing.ID, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}

	// 2. 充值地址 (同时校验币种)
	addr, err := s.addresses.GenerateAddress(ctx, userID, currency)
	if err != nil {
		return 0, err
	}
	c, err := s.addresses.chains.Get(currency)
	if err != nil {
		return 0, err
	}

	// 3. 核对收款地址，查不到的交易先登记，确认时再核对
	info, err := c.Client().GetTransaction(ctx, txHash)
	switch {
	case errors.Is(err, chain.ErrNotFound):
	case err != nil:
		return 0, err
	case !info.AmountTo(addr.Address).IsPositive():
		return 0, invalid("tx_hash", "交易未向该用户充值地址付款")
	}

	// 4. 建记录
	d := &model.Deposit{
		UserID:                userID,
		Currency:              addr.Currency,
		Address:               addr.Address,
		TxHash:                txHash,
		Amount:                amount,
		RequiredConfirmations: c.RequiredConfirmations(),
		Status:                model.DepositStatusPending,
		Source:                model.DepositSourceManual,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(d).Error; err != nil {
			return err
		}
		return publishEvent(tx, event.TopicDeposit, userID, event.TypeDepositDetected, event.DepositDetectedEvent{
			DepositID: d.ID,
			UserID:    userID,
			Currency:  d.Currency,
			TxHash:    txHash,
			Amount:    amount.String(),
		})
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// 并发提交或扫描器抢先
		existing, ferr := s.findByHash(ctx, txHash)
		if ferr != nil {
			return 0, ferr
		}
		if existing.UserID != userID {
			return 0, invalid("tx_hash", "已被其他用户提交")
		}
		return existing.ID, nil
	}
	if err != nil {
		return 0, fmt.Errorf("保存充值失败: %w", err)
	}
	monitor.Business.DepositsDetectedTotal.WithLabelValues(d.Currency, model.DepositSourceManual).Inc()

	// 5. 立即检查一次，失败交给定时任务
	if err := s.tracker.CheckDeposit(ctx, d); err != nil {
		logger.Warn("[Deposit] 首次确认检查失败", zap.Uint64("deposit_id", d.ID), zap.Error(err))
	}
	return d.ID, nil
}

// GetDepositStatus 查询充值
func (s *DepositService) GetDepositStatus(ctx context.Context, id uint64) (*model.Deposit, error) {
	var d model.Deposit
	if err := s.db.WithContext(ctx).First(&d, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDepositNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (s *DepositService) findByHash(ctx context.Context, txHash string) (*model.Deposit, error) {
	var d model.Deposit
	if err := s.db.WithContext(ctx).Where("tx_hash = ?", txHash).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// releaseManualClaim 删除一条尚未确认、且链上未向自身地址付款的手动充值，
// 腾出 tx_hash 让扫描器按真实收款地址重建
func releaseManualClaim(db *gorm.DB, id uint64) (bool, error) {
	res := db.Where("id = ? AND source = ? AND status IN ?", id, model.DepositSourceManual,
		[]string{model.DepositStatusPending, model.DepositStatusConfirming}).
		Delete(&model.Deposit{})
	return res.RowsAffected > 0, res.Error
}
