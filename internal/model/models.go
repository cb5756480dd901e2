package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account 用户平台余额 (USD)
// 只通过原子 SQL 增减修改，不做读-改-写
type Account struct {
	ID        uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint64          `gorm:"not null;uniqueIndex" json:"user_id"`
	Balance   decimal.Decimal `gorm:"type:decimal(32,18);not null;default:0" json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}

// 流水类型，金额带符号
const (
	LedgerTypeDeposit          = "DEPOSIT"           // +
	LedgerTypeWithdrawal       = "WITHDRAWAL"        // -
	LedgerTypeWithdrawalRefund = "WITHDRAWAL_REFUND" // +
)

// LedgerTransaction 只追加的资金流水
// Reference 是自然幂等键，唯一索引保证同一业务动作只记一次账
type LedgerTransaction struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint64          `gorm:"not null;index" json:"user_id"`
	Type        string          `gorm:"type:varchar(32);not null" json:"type"`
	Amount      decimal.Decimal `gorm:"type:decimal(32,18);not null" json:"amount"`
	Reference   string          `gorm:"type:varchar(64);not null;uniqueIndex" json:"reference"`
	Description string          `gorm:"type:varchar(255)" json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (LedgerTransaction) TableName() string {
	return "ledger_transactions"
}

func DepositReference(depositID uint64) string {
	return "deposit:" + itoa(depositID)
}

func WithdrawalReference(withdrawalID uint64) string {
	return "withdrawal:" + itoa(withdrawalID)
}

func RefundReference(withdrawalID uint64) string {
	return "withdrawal_refund:" + itoa(withdrawalID)
}
