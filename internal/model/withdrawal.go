package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 提现状态
// PENDING -> APPROVED -> PROCESSING -> COMPLETED
// PENDING -> REJECTED, PROCESSING -> FAILED
const (
	WithdrawalStatusPending    = "PENDING"
	WithdrawalStatusApproved   = "APPROVED"
	WithdrawalStatusProcessing = "PROCESSING"
	WithdrawalStatusCompleted  = "COMPLETED"
	WithdrawalStatusRejected   = "REJECTED"
	WithdrawalStatusFailed     = "FAILED"
)

var withdrawalTransitions = map[string][]string{
	WithdrawalStatusPending:    {WithdrawalStatusApproved, WithdrawalStatusRejected},
	WithdrawalStatusApproved:   {WithdrawalStatusProcessing},
	WithdrawalStatusProcessing: {WithdrawalStatusCompleted, WithdrawalStatusFailed},
}

// CanTransition 判断状态迁移是否合法
func CanTransition(from, to string) bool {
	for _, next := range withdrawalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal 终态不会再变化
func IsTerminal(status string) bool {
	switch status {
	case WithdrawalStatusCompleted, WithdrawalStatusRejected, WithdrawalStatusFailed:
		return true
	}
	return false
}

// NeedsRefund 进入该终态时必须退款 (且只退一次)
func NeedsRefund(status string) bool {
	return status == WithdrawalStatusRejected || status == WithdrawalStatusFailed
}

// Withdrawal 提现记录表
// Amount 是扣减的 USD，CryptoAmount 是按申请时价格换算的币数量
type Withdrawal struct {
	ID                uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID            uint64          `gorm:"not null;index" json:"user_id"`
	Currency          string          `gorm:"type:varchar(10);not null" json:"currency"`
	Amount            decimal.Decimal `gorm:"type:decimal(32,18);not null" json:"amount"`
	UsdPrice          decimal.Decimal `gorm:"type:decimal(32,18);not null" json:"usd_price"`
	CryptoAmount      decimal.Decimal `gorm:"type:decimal(32,18);not null" json:"crypto_amount"`
	WithdrawalAddress string          `gorm:"type:varchar(128);not null" json:"withdrawal_address"`
	Status            string          `gorm:"type:varchar(20);not null;index" json:"status"`
	FeeAmount         decimal.Decimal `gorm:"type:decimal(32,18);not null;default:0" json:"fee_amount"`
	NetAmount         decimal.Decimal `gorm:"type:decimal(32,18);not null;default:0" json:"net_amount"`
	TxHash            string          `gorm:"type:varchar(128);index" json:"tx_hash"`
	RawTx             string          `gorm:"type:text" json:"-"`
	RequiredApprovals int             `gorm:"not null;default:1" json:"required_approvals"`
	CurrentApprovals  int             `gorm:"not null;default:0" json:"current_approvals"`
	RejectionReason   string          `gorm:"type:text" json:"rejection_reason,omitempty"`
	ProcessedAt       *time.Time      `json:"processed_at,omitempty"`
	CreatedAt         time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (Withdrawal) TableName() string {
	return "withdrawals"
}

const (
	ReviewActionApprove = "approve"
	ReviewActionReject  = "reject"
)

// WithdrawalReview 提现审核记录表，同一管理员对同一笔只能审核一次
type WithdrawalReview struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	WithdrawalID uint64    `gorm:"not null;uniqueIndex:idx_withdrawal_admin" json:"withdrawal_id"`
	AdminID      uint64    `gorm:"not null;uniqueIndex:idx_withdrawal_admin" json:"admin_id"`
	Action       string    `gorm:"type:varchar(16);not null" json:"action"`
	Remark       string    `gorm:"type:text" json:"remark"`
	CreatedAt    time.Time `json:"created_at"`
}

func (WithdrawalReview) TableName() string {
	return "withdrawal_reviews"
}

// WithdrawalLimitRecord 每个用户一行，日/月计数懒重置
type WithdrawalLimitRecord struct {
	ID               uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID           uint64          `gorm:"not null;uniqueIndex" json:"user_id"`
	VIPTier          int             `gorm:"not null;default:0" json:"vip_tier"`
	DailyLimit       decimal.Decimal `gorm:"type:decimal(32,18);not null" json:"daily_limit"`
	MonthlyLimit     decimal.Decimal `gorm:"type:decimal(32,18);not null" json:"monthly_limit"`
	DailyWithdrawn   decimal.Decimal `gorm:"type:decimal(32,18);not null;default:0" json:"daily_withdrawn"`
	MonthlyWithdrawn decimal.Decimal `gorm:"type:decimal(32,18);not null;default:0" json:"monthly_withdrawn"`
	LastDailyReset   time.Time       `gorm:"not null" json:"last_daily_reset"`
	LastMonthlyReset time.Time       `gorm:"not null" json:"last_monthly_reset"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (WithdrawalLimitRecord) TableName() string {
	return "withdrawal_limits"
}
