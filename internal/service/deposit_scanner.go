package service

import (
	"context"
	"errors"
	"fmt"
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

// DepositScanner 轮询每个充值地址的链上历史，发现新的转入就建 PENDING 充值
type DepositScanner struct {
	db        *gorm.DB
	chains    *chain.Registry
	addresses *AddressService
	tracker   *ConfirmationTracker
	delay     time.Duration // 两次地址请求之间的间隔，避免触发 API 限流
	clock     clock.Clock
}

func NewDepositScanner(db *gorm.DB, chains *chain.Registry, addresses *AddressService, tracker *ConfirmationTracker, delay time.Duration, clk clock.Clock) *DepositScanner {
	if clk == nil {
		clk = clock.New()
	}
	return &DepositScanner{
		db:        db,
		chains:    chains,
		addresses: addresses,
		tracker:   tracker,
		delay:     delay,
		clock:     clk,
	}
}

func (s *DepositScanner) Name() string { return "deposit_scanner" }

// RunOnce 扫描全部链的全部地址，单个地址失败只记日志
func (s *DepositScanner) RunOnce(ctx context.Context) error {
	first := true
	for _, c := range s.chains.All() {
		addrs, err := s.addresses.ListAddresses(ctx, c.Symbol().String())
		if err != nil {
			return fmt.Errorf("查询充值地址失败: %w", err)
		}

		for i := range addrs {
			if !first {
				if err := s.sleep(ctx); err != nil {
					return err
				}
			}
			first = false

			n, err := s.ScanAddress(ctx, c, &addrs[i])
			if err != nil {
				logger.Warn("[Scanner] 扫描地址失败",
					zap.String("currency", c.Symbol().String()),
					zap.String("address", addrs[i].Address),
					zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("[Scanner] 发现新充值", zap.String("address", addrs[i].Address), zap.Int("count", n))
			}
		}
	}
	return nil
}

// ScanAddress 返回本次新建的充值数量
func (s *DepositScanner) ScanAddress(ctx context.Context, c chain.Chain, addr *model.DepositAddress) (int, error) {
	history, err := c.Client().GetAddressHistory(ctx, addr.Address)
	if errors.Is(err, chain.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	created := 0
	for i := range history {
		tx := &history[i]
		amount := tx.AmountTo(addr.Address)
		if !amount.IsPositive() {
			continue
		}

		d, err := s.record(ctx, c, addr, tx, amount)
		if err != nil {
			logger.Warn("[Scanner] 保存充值失败", zap.String("tx_hash", tx.Hash), zap.Error(err))
			continue
		}
		if d == nil {
			continue
		}
		created++

		// 建完立即检查一次确认数
		if err := s.tracker.CheckDeposit(ctx, d); err != nil {
			logger.Warn("[Scanner] 首次确认检查失败", zap.Uint64("deposit_id", d.ID), zap.Error(err))
		}
	}
	return created, nil
}

// record 已存在返回 (nil, nil)
// 同一 tx_hash 若被手动提交到了一个链上没有收款的地址，先撤销那条再按本地址重建
func (s *DepositScanner) record(ctx context.Context, c chain.Chain, addr *model.DepositAddress, info *chain.TxInfo, amount decimal.Decimal) (*model.Deposit, error) {
	txHash := info.Hash
	var existing model.Deposit
	err := s.db.WithContext(ctx).Where("tx_hash = ?", txHash).Take(&existing).Error
	replace := false
	switch {
	case err == nil:
		if existing.Source != model.DepositSourceManual || info.AmountTo(existing.Address).IsPositive() {
			return nil, nil
		}
		replace = true
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	d := &model.Deposit{
		UserID:                addr.UserID,
		Currency:              c.Symbol().String(),
		Address:               addr.Address,
		TxHash:                txHash,
		Amount:                amount,
		RequiredConfirmations: c.RequiredConfirmations(),
		Status:                model.DepositStatusPending,
		Source:                model.DepositSourceScan,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if replace {
			released, err := releaseManualClaim(tx, existing.ID)
			if err != nil {
				return err
			}
			if !released {
				return gorm.ErrDuplicatedKey
			}
			logger.Warn("[Scanner] 撤销未收款的手动充值",
				zap.Uint64("deposit_id", existing.ID),
				zap.Uint64("claimed_by", existing.UserID),
				zap.Uint64("user_id", addr.UserID),
				zap.String("tx_hash", txHash))
		}
		if err := tx.Create(d).Error; err != nil {
			return err
		}
		return publishEvent(tx, event.TopicDeposit, d.UserID, event.TypeDepositDetected, event.DepositDetectedEvent{
			DepositID: d.ID,
			UserID:    d.UserID,
			Currency:  d.Currency,
			TxHash:    d.TxHash,
			Amount:    d.Amount.String(),
		})
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	monitor.Business.DepositsDetectedTotal.WithLabelValues(d.Currency, model.DepositSourceScan).Inc()
	return d, nil
}

func (s *DepositScanner) sleep(ctx context.Context) error {
	if s.delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.clock.After(s.delay):
		return nil
	}
}
