package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"custody-core/internal/chain"
	"custody-core/internal/event"
	"custody-core/internal/model"
	"custody-core/pkg/logger"
	"custody-core/pkg/monitor"
)

// WithdrawConfig 提现参数
type WithdrawConfig struct {
	MinAmountUSD      decimal.Decimal
	RequiredApprovals int
}

// WithdrawService 提现申请、审核与状态迁移
// 每次迁移都是 WHERE status = from 的门控更新，输掉并发的一方什么也不做
type WithdrawService struct {
	db      *gorm.DB
	chains  *chain.Registry
	prices  PriceOracle
	limiter *WithdrawalLimiter
	cfg     WithdrawConfig
	clock   clock.Clock
}

func NewWithdrawService(db *gorm.DB, chains *chain.Registry, prices PriceOracle, limiter *WithdrawalLimiter, cfg WithdrawConfig, clk clock.Clock) *WithdrawService {
	if cfg.RequiredApprovals < 1 {
		cfg.RequiredApprovals = 1
	}
	if clk == nil {
		clk = clock.New()
	}
	return &WithdrawService{db: db, chains: chains, prices: prices, limiter: limiter, cfg: cfg, clock: clk}
}

// RequestWithdrawal 创建提现申请
// 限额检查、扣余额、记流水、累加限额、写事件在同一事务内
func (s *WithdrawService) RequestWithdrawal(ctx context.Context, userID uint64, amountUSD decimal.Decimal, currency, toAddress string) (*model.Withdrawal, error) {
	// 1. 参数校验
	if !amountUSD.IsPositive() {
		return nil, invalid("amount", "必须大于 0")
	}
	if amountUSD.LessThan(s.cfg.MinAmountUSD) {
		return nil, invalid("amount", "低于最小提现金额 %s USD", s.cfg.MinAmountUSD.String())
	}
	c, err := s.chains.Get(currency)
	if err != nil {
		return nil, invalid("currency", "%v", err)
	}
	toAddress = strings.TrimSpace(toAddress)
	if err := c.ValidateAddress(toAddress); err != nil {
		return nil, invalid("address", "%v", err)
	}

	// 2. 按实时价格换算币数量
	price, live, err := s.prices.Price(ctx, c.Symbol().String())
	if err != nil {
		return nil, err
	}
	if !live {
		return nil, ErrPriceUnavailable
	}
	cryptoAmount := amountUSD.Div(price).Truncate(8)
	if !cryptoAmount.IsPositive() {
		return nil, invalid("amount", "换算后的币数量为 0")
	}

	w := &model.Withdrawal{
		UserID:            userID,
		Currency:          c.Symbol().String(),
		Amount:            amountUSD,
		UsdPrice:          price,
		CryptoAmount:      cryptoAmount,
		WithdrawalAddress: toAddress,
		Status:            model.WithdrawalStatusPending,
		FeeAmount:         decimal.Zero,
		NetAmount:         decimal.Zero,
		RequiredApprovals: s.cfg.RequiredApprovals,
	}

	// 3. 事务
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		limiter := s.limiter.WithTx(tx)
		if err := limiter.CheckLimit(ctx, userID, amountUSD); err != nil {
			return err
		}
		if err := debitBalance(tx, userID, amountUSD); err != nil {
			return err
		}
		if err := tx.Create(w).Error; err != nil {
			return err
		}
		desc := fmt.Sprintf("%s withdrawal to %s", w.Currency, toAddress)
		if err := appendLedger(tx, userID, model.LedgerTypeWithdrawal, amountUSD.Neg(), model.WithdrawalReference(w.ID), desc); err != nil {
			return err
		}
		if err := limiter.RecordWithdrawal(ctx, userID, amountUSD); err != nil {
			return err
		}
		return publishEvent(tx, event.TopicWithdrawal, w.ID, event.TypeWithdrawalRequested, event.WithdrawalRequestedEvent{
			WithdrawalID: w.ID,
			UserID:       userID,
			ToAddress:    toAddress,
			AmountUSD:    amountUSD.String(),
			CryptoAmount: cryptoAmount.String(),
			Currency:     w.Currency,
		})
	})
	if err != nil {
		return nil, err
	}

	monitor.Business.WithdrawalsTotal.WithLabelValues(w.Currency, w.Status).Inc()
	logger.Info("[Withdraw] 提现申请已创建",
		zap.Uint64("withdrawal_id", w.ID),
		zap.Uint64("user_id", userID),
		zap.String("usd", amountUSD.String()),
		zap.String("crypto", cryptoAmount.String()),
		zap.String("currency", w.Currency))
	return w, nil
}

// GetWithdrawal 查询提现
func (s *WithdrawService) GetWithdrawal(ctx context.Context, id uint64) (*model.Withdrawal, error) {
	var w model.Withdrawal
	if err := s.db.WithContext(ctx).First(&w, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	return &w, nil
}

// ListByStatus 按创建时间从旧到新
func (s *WithdrawService) ListByStatus(ctx context.Context, status string, limit int) ([]model.Withdrawal, error) {
	var rows []model.Withdrawal
	q := s.db.WithContext(ctx).Where("status = ?", status).Order("created_at, id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}

// Approve 管理员审批，达到 required_approvals 后 PENDING -> APPROVED
func (s *WithdrawService) Approve(ctx context.Context, id, adminID uint64, remark string) (*model.Withdrawal, error) {
	var out *model.Withdrawal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 悲观锁读取提现单
		w, err := lockWithdrawal(tx, id)
		if err != nil {
			return err
		}

		// 2. 状态检查
		if w.Status != model.WithdrawalStatusPending {
			return ErrInvalidState
		}

		// 3. 审核记录，唯一索引保证同一管理员只审一次
		if err := createReview(tx, w.ID, adminID, model.ReviewActionApprove, remark); err != nil {
			return err
		}

		// 4. 计票
		approvals := w.CurrentApprovals + 1
		if approvals < w.RequiredApprovals {
			res := tx.Model(&model.Withdrawal{}).
				Where("id = ? AND status = ?", w.ID, model.WithdrawalStatusPending).
				Update("current_approvals", approvals)
			if res.Error != nil {
				return res.Error
			}
			w.CurrentApprovals = approvals
			out = w
			return nil
		}

		ok, err := s.transition(tx, w, model.WithdrawalStatusApproved, map[string]interface{}{"current_approvals": approvals})
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidState
		}
		out = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Reject 管理员拒绝，PENDING -> REJECTED 并退款
func (s *WithdrawService) Reject(ctx context.Context, id, adminID uint64, reason string) (*model.Withdrawal, error) {
	var out *model.Withdrawal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w, err := lockWithdrawal(tx, id)
		if err != nil {
			return err
		}
		if w.Status != model.WithdrawalStatusPending {
			return ErrInvalidState
		}
		if err := createReview(tx, w.ID, adminID, model.ReviewActionReject, reason); err != nil {
			return err
		}
		ok, err := s.transition(tx, w, model.WithdrawalStatusRejected, map[string]interface{}{"rejection_reason": reason})
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidState
		}
		out = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarkProcessing APPROVED -> PROCESSING，返回是否抢到
func (s *WithdrawService) MarkProcessing(ctx context.Context, w *model.Withdrawal) (bool, error) {
	var ok bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ok, err = s.transition(tx, w, model.WithdrawalStatusProcessing, map[string]interface{}{
			"updated_at": s.clock.Now().UTC(),
		})
		return err
	})
	return ok, err
}

// RecordSigned 广播前先把签名结果落库，崩溃后可以按 tx_hash 对账
func (s *WithdrawService) RecordSigned(ctx context.Context, w *model.Withdrawal, txHash, rawTx string, fee, net decimal.Decimal) error {
	res := s.db.WithContext(ctx).Model(&model.Withdrawal{}).
		Where("id = ? AND status = ?", w.ID, model.WithdrawalStatusProcessing).
		Updates(map[string]interface{}{
			"tx_hash":    txHash,
			"raw_tx":     rawTx,
			"fee_amount": fee,
			"net_amount": net,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInvalidState
	}
	w.TxHash, w.RawTx, w.FeeAmount, w.NetAmount = txHash, rawTx, fee, net
	return nil
}

// Complete PROCESSING -> COMPLETED，必须有 tx_hash
func (s *WithdrawService) Complete(ctx context.Context, w *model.Withdrawal, txHash string) (bool, error) {
	if txHash == "" {
		return false, errors.New("完成提现需要 tx_hash")
	}
	now := s.clock.Now().UTC()
	var ok bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ok, err = s.transition(tx, w, model.WithdrawalStatusCompleted, map[string]interface{}{
			"tx_hash":      txHash,
			"processed_at": now,
		})
		return err
	})
	if ok {
		monitor.Business.WithdrawAmountTotal.WithLabelValues(w.Currency).Add(w.CryptoAmount.InexactFloat64())
	}
	return ok, err
}

// Fail PROCESSING -> FAILED，同一事务内退款
func (s *WithdrawService) Fail(ctx context.Context, w *model.Withdrawal, reason string) (bool, error) {
	now := s.clock.Now().UTC()
	var ok bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ok, err = s.transition(tx, w, model.WithdrawalStatusFailed, map[string]interface{}{
			"rejection_reason": reason,
			"processed_at":     now,
		})
		return err
	})
	return ok, err
}

// transition 门控更新 + 终态退款 + 事件，必须在事务内调用
func (s *WithdrawService) transition(tx *gorm.DB, w *model.Withdrawal, to string, extra map[string]interface{}) (bool, error) {
	from := w.Status
	if !model.CanTransition(from, to) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidState, from, to)
	}

	updates := map[string]interface{}{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	res := tx.Model(&model.Withdrawal{}).Where("id = ? AND status = ?", w.ID, from).Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	w.Status = to
	if reason, ok := extra["rejection_reason"].(string); ok {
		w.RejectionReason = reason
	}

	if model.NeedsRefund(to) {
		if err := s.refund(tx, w); err != nil {
			return false, err
		}
	}

	if err := publishEvent(tx, event.TopicWithdrawal, w.ID, event.TypeWithdrawalStatusChanged, event.WithdrawalStatusChangedEvent{
		WithdrawalID: w.ID,
		UserID:       w.UserID,
		From:         from,
		To:           to,
		TxHash:       w.TxHash,
		Reason:       w.RejectionReason,
	}); err != nil {
		return false, err
	}

	monitor.Business.WithdrawalsTotal.WithLabelValues(w.Currency, to).Inc()
	logger.Info("[Withdraw] 状态变化", zap.Uint64("withdrawal_id", w.ID), zap.String("from", from), zap.String("to", to))
	return true, nil
}

// refund 退余额、退限额、记 WITHDRAWAL_REFUND 流水，按 withdrawal_refund:<id> 只执行一次
func (s *WithdrawService) refund(tx *gorm.DB, w *model.Withdrawal) error {
	ref := model.RefundReference(w.ID)
	exists, err := hasLedgerEntry(tx, ref)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := appendLedger(tx, w.UserID, model.LedgerTypeWithdrawalRefund, w.Amount, ref, "refund: "+w.Status); err != nil {
		return err
	}
	if err := creditBalance(tx, w.UserID, w.Amount); err != nil {
		return err
	}
	return s.limiter.WithTx(tx).RefundWithdrawal(tx.Statement.Context, w.UserID, w.Amount)
}

func lockWithdrawal(tx *gorm.DB, id uint64) (*model.Withdrawal, error) {
	var w model.Withdrawal
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&w, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	return &w, nil
}

func createReview(tx *gorm.DB, withdrawalID, adminID uint64, action, remark string) error {
	err := tx.Create(&model.WithdrawalReview{
		WithdrawalID: withdrawalID,
		AdminID:      adminID,
		Action:       action,
		Remark:       remark,
	}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrAlreadyReviewed
	}
	return err
}
