package service

import (
	"context"
	"errors"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"custody-core/internal/chain"
	"custody-core/internal/model"
	"custody-core/pkg/logger"
	"custody-core/pkg/monitor"
)

// HotWalletKeys 热钱包签名密钥，keyring.Provider 实现
type HotWalletKeys interface {
	HotWalletKey(c chain.Chain) (*btcec.PrivateKey, error)
	HotWalletAddress(c chain.Chain) (string, error)
}

// Liquidity 热钱包流动性，HotWalletMonitor 实现
type Liquidity interface {
	Snapshot(ctx context.Context) map[string]decimal.Decimal
	RaiseLiquidityAlert(ctx context.Context, currency string, required, available decimal.Decimal)
}

// unsignedGrace PROCESSING 且没有 tx_hash 超过该时长，视为签名前中断
const unsignedGrace = 10 * time.Minute

// WithdrawalProcessor 处理 APPROVED 提现：签名、广播、记账
type WithdrawalProcessor struct {
	db          *gorm.DB
	chains      *chain.Registry
	withdrawals *WithdrawService
	keys        HotWalletKeys
	liquidity   Liquidity
	batchSize   int
}

func NewWithdrawalProcessor(db *gorm.DB, chains *chain.Registry, withdrawals *WithdrawService, keys HotWalletKeys, liquidity Liquidity, batchSize int) *WithdrawalProcessor {
	if batchSize <= 0 {
		batchSize = 20
	}
	return &WithdrawalProcessor{
		db:          db,
		chains:      chains,
		withdrawals: withdrawals,
		keys:        keys,
		liquidity:   liquidity,
		batchSize:   batchSize,
	}
}

func (p *WithdrawalProcessor) Name() string { return "withdrawal_processor" }

// RunOnce 一轮:
// 1. 对账上次遗留的 PROCESSING
// 2. 按创建时间取一批 APPROVED
// 3. 一次余额快照，逐笔扣减
func (p *WithdrawalProcessor) RunOnce(ctx context.Context) error {
	p.reconcileProcessing(ctx)

	batch, err := p.withdrawals.ListByStatus(ctx, model.WithdrawalStatusApproved, p.batchSize)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	snapshot := p.liquidity.Snapshot(ctx)
	for i := range batch {
		w := &batch[i]
		if err := p.processOne(ctx, w, snapshot); err != nil {
			var short *InsufficientLiquidityError
			if errors.As(err, &short) {
				logger.Info("[Processor] 热钱包余额不足，保持 APPROVED",
					zap.Uint64("withdrawal_id", w.ID),
					zap.String("required", short.Required.String()),
					zap.String("available", short.Available.String()))
				continue
			}
			logger.Error("[Processor] 处理提现失败", zap.Uint64("withdrawal_id", w.ID), zap.Error(err))
		}
	}
	return nil
}

func (p *WithdrawalProcessor) processOne(ctx context.Context, w *model.Withdrawal, snapshot map[string]decimal.Decimal) error {
	c, err := p.chains.Get(w.Currency)
	if err != nil {
		return err
	}

	// 1. 地址复核，非法地址直接失败退款，不占用流动性
	if err := c.ValidateAddress(w.WithdrawalAddress); err != nil {
		ok, merr := p.withdrawals.MarkProcessing(ctx, w)
		if merr != nil {
			return merr
		}
		if !ok {
			return nil
		}
		return p.fail(ctx, w, err)
	}

	// 2. 流动性，查询失败的币种本轮跳过
	available, ok := snapshot[w.Currency]
	if !ok {
		return errors.New("热钱包余额未知，本轮跳过")
	}
	if available.LessThan(w.CryptoAmount) {
		monitor.Business.LiquidityShortfallTotal.WithLabelValues(w.Currency).Inc()
		p.liquidity.RaiseLiquidityAlert(ctx, w.Currency, w.CryptoAmount, available)
		return &InsufficientLiquidityError{Currency: w.Currency, Required: w.CryptoAmount, Available: available}
	}

	// 3. 抢占
	ok, err = p.withdrawals.MarkProcessing(ctx, w)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	// 4. 签名，结果落库后再广播
	key, err := p.keys.HotWalletKey(c)
	if err != nil {
		return p.fail(ctx, w, &SigningOrBroadcastError{Stage: "sign", Err: err})
	}
	from, err := p.keys.HotWalletAddress(c)
	if err != nil {
		return p.fail(ctx, w, &SigningOrBroadcastError{Stage: "sign", Err: err})
	}
	signed, err := c.BuildAndSign(ctx, key, from, w.WithdrawalAddress, w.CryptoAmount)
	if err != nil {
		return p.fail(ctx, w, &SigningOrBroadcastError{Stage: "sign", Err: err})
	}
	if err := p.withdrawals.RecordSigned(ctx, w, signed.TxHash, signed.RawTx, signed.Fee, signed.NetAmount); err != nil {
		// 还没广播，失败退款是安全的
		return p.fail(ctx, w, &SigningOrBroadcastError{Stage: "sign", Err: err})
	}

	// 5. 广播
	txHash, err := c.Broadcast(ctx, signed)
	if err != nil {
		return p.fail(ctx, w, &SigningOrBroadcastError{Stage: "broadcast", Err: err})
	}
	snapshot[w.Currency] = available.Sub(w.CryptoAmount)

	// 6. 完成
	if _, err := p.withdrawals.Complete(ctx, w, txHash); err != nil {
		// 已经广播成功，留给下一轮对账
		return err
	}
	logger.Info("[Processor] 提现已广播",
		zap.Uint64("withdrawal_id", w.ID),
		zap.String("tx_hash", txHash),
		zap.String("fee", signed.Fee.String()),
		zap.String("net", signed.NetAmount.String()))
	return nil
}

func (p *WithdrawalProcessor) fail(ctx context.Context, w *model.Withdrawal, cause error) error {
	if _, err := p.withdrawals.Fail(ctx, w, cause.Error()); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// reconcileProcessing 对账上次遗留的 PROCESSING:
// 1. 带 tx_hash 说明签名后进程中断，链上能查到就补成 COMPLETED，查不到留给人工
// 2. 没有 tx_hash 且超过 unsignedGrace，说明签名前中断，从未广播，失败退款
func (p *WithdrawalProcessor) reconcileProcessing(ctx context.Context) {
	var stuck []model.Withdrawal
	if err := p.db.WithContext(ctx).
		Where("status = ? AND tx_hash <> ''", model.WithdrawalStatusProcessing).
		Order("id").Find(&stuck).Error; err != nil {
		logger.Warn("[Processor] 查询遗留提现失败", zap.Error(err))
		return
	}

	for i := range stuck {
		w := &stuck[i]
		c, err := p.chains.Get(w.Currency)
		if err != nil {
			continue
		}
		if _, err := c.Client().GetTransaction(ctx, w.TxHash); err != nil {
			if errors.Is(err, chain.ErrNotFound) {
				logger.Warn("[Processor] 遗留提现链上未找到，需人工处理",
					zap.Uint64("withdrawal_id", w.ID), zap.String("tx_hash", w.TxHash))
			} else {
				logger.Warn("[Processor] 对账查询失败", zap.Uint64("withdrawal_id", w.ID), zap.Error(err))
			}
			continue
		}
		if ok, err := p.withdrawals.Complete(ctx, w, w.TxHash); err != nil {
			logger.Warn("[Processor] 对账完成失败", zap.Uint64("withdrawal_id", w.ID), zap.Error(err))
		} else if ok {
			logger.Info("[Processor] 对账补记完成", zap.Uint64("withdrawal_id", w.ID), zap.String("tx_hash", w.TxHash))
		}
	}

	var unsigned []model.Withdrawal
	cutoff := p.withdrawals.clock.Now().UTC().Add(-unsignedGrace)
	if err := p.db.WithContext(ctx).
		Where("status = ? AND (tx_hash = '' OR tx_hash IS NULL) AND updated_at < ?", model.WithdrawalStatusProcessing, cutoff).
		Order("id").Find(&unsigned).Error; err != nil {
		logger.Warn("[Processor] 查询未签名提现失败", zap.Error(err))
		return
	}
	for i := range unsigned {
		w := &unsigned[i]
		ok, err := p.withdrawals.Fail(ctx, w, "签名前中断，未广播")
		if err != nil {
			logger.Warn("[Processor] 未签名提现失败处理出错", zap.Uint64("withdrawal_id", w.ID), zap.Error(err))
			continue
		}
		if ok {
			logger.Warn("[Processor] 未签名提现已失败退款", zap.Uint64("withdrawal_id", w.ID))
		}
	}
}
