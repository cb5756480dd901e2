package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// HotWalletBalanceSample 热钱包余额采样，只追加
type HotWalletBalanceSample struct {
	ID        uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Currency  string          `gorm:"type:varchar(10);not null;index:idx_sample_currency_time" json:"currency"`
	Address   string          `gorm:"type:varchar(128);not null" json:"address"`
	Balance   decimal.Decimal `gorm:"type:decimal(32,18);not null" json:"balance"`
	SampledAt time.Time       `gorm:"not null;index:idx_sample_currency_time" json:"sampled_at"`
}

func (HotWalletBalanceSample) TableName() string {
	return "hot_wallet_balance_samples"
}

const (
	AlertLevelCritical  = "critical"
	AlertLevelWarning   = "warning"
	AlertLevelLiquidity = "liquidity"
)

// HotWalletAlert 已发出的告警，同时作为冷却窗口的持久化依据
type HotWalletAlert struct {
	ID        uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Currency  string          `gorm:"type:varchar(10);not null;index:idx_alert_currency_time" json:"currency"`
	Level     string          `gorm:"type:varchar(16);not null" json:"level"`
	Balance   decimal.Decimal `gorm:"type:decimal(32,18);not null" json:"balance"`
	Threshold decimal.Decimal `gorm:"type:decimal(32,18);not null" json:"threshold"`
	Message   string          `gorm:"type:text" json:"message"`
	CreatedAt time.Time       `gorm:"not null;index:idx_alert_currency_time" json:"created_at"`
}

func (HotWalletAlert) TableName() string {
	return "hot_wallet_alerts"
}
