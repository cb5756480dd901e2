package model

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// DepositAddress 充值地址表
// 派生索引就是 user_id，整行可以随时从种子重新计算，只是缓存
type DepositAddress struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID          uint64    `gorm:"not null;uniqueIndex:idx_user_currency" json:"user_id"`
	Currency        string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_user_currency;uniqueIndex:idx_currency_address" json:"currency"`
	Address         string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_currency_address" json:"address"`
	DerivationIndex uint32    `gorm:"not null" json:"derivation_index"`
	DerivationPath  string    `gorm:"type:varchar(64);not null" json:"derivation_path"`
	CreatedAt       time.Time `json:"created_at"`
}

func (DepositAddress) TableName() string {
	return "deposit_addresses"
}

// 充值状态，只前进不后退
const (
	DepositStatusPending    = "PENDING"
	DepositStatusConfirming = "CONFIRMING"
	DepositStatusConfirmed  = "CONFIRMED"
	DepositStatusCredited   = "CREDITED"
)

// 充值来源
const (
	DepositSourceScan   = "scan"
	DepositSourceManual = "manual"
)

var depositStatusRank = map[string]int{
	DepositStatusPending:    0,
	DepositStatusConfirming: 1,
	DepositStatusConfirmed:  2,
	DepositStatusCredited:   3,
}

// DepositStatusRank 状态序号，未知状态返回 -1
func DepositStatusRank(status string) int {
	if r, ok := depositStatusRank[status]; ok {
		return r
	}
	return -1
}

// Deposit 充值记录表，tx_hash 唯一
type Deposit struct {
	ID                    uint64              `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID                uint64              `gorm:"not null;index" json:"user_id"`
	Currency              string              `gorm:"type:varchar(10);not null" json:"currency"`
	Address               string              `gorm:"type:varchar(128);not null" json:"address"`
	TxHash                string              `gorm:"type:varchar(128);not null;uniqueIndex" json:"tx_hash"`
	Amount                decimal.Decimal     `gorm:"type:decimal(32,18);not null" json:"amount"`
	UsdValue              decimal.NullDecimal `gorm:"type:decimal(32,18)" json:"usd_value"`
	BlockHeight           int64               `gorm:"not null;default:0" json:"block_height"`
	Confirmations         int64               `gorm:"not null;default:0" json:"confirmations"`
	RequiredConfirmations int64               `gorm:"not null" json:"required_confirmations"`
	Status                string              `gorm:"type:varchar(20);not null;index" json:"status"`
	Source                string              `gorm:"type:varchar(10);not null;default:'scan'" json:"source"`
	CreatedAt             time.Time           `json:"created_at"`
	UpdatedAt             time.Time           `json:"updated_at"`
	CreditedAt            *time.Time          `json:"credited_at,omitempty"`
}

func (Deposit) TableName() string {
	return "deposits"
}

func itoa(id uint64) string {
	return strconv.FormatUint(id, 10)
}
