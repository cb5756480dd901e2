package event

import (
	"encoding/json"
	"time"
)

// MQ Topics，同一实体的事件用实体 id 作为分区键
const (
	TopicDeposit    = "custody_events_deposit"
	TopicWithdrawal = "custody_events_withdrawal"
	TopicHotWallet  = "custody_events_hotwallet"
)

// 事件类型
const (
	TypeDepositDetected         = "deposit.detected"
	TypeDepositCredited         = "deposit.credited"
	TypeWithdrawalRequested     = "withdrawal.requested"
	TypeWithdrawalStatusChanged = "withdrawal.status_changed"
	TypeHotWalletAlert          = "hotwallet.alert"
)

// AllTopics 消费者订阅的全部 topic
func AllTopics() []string {
	return []string{TopicDeposit, TopicWithdrawal, TopicHotWallet}
}

// Envelope 写入 Outbox 的统一外壳
type Envelope struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// NewEnvelope 把事件体包装成 Envelope
func NewEnvelope(eventType string, data interface{}) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: eventType, OccurredAt: time.Now().UTC(), Data: raw}, nil
}

// DepositDetectedEvent 扫描到新的充值
type DepositDetectedEvent struct {
	DepositID uint64 `json:"deposit_id"`
	UserID    uint64 `json:"user_id"`
	Currency  string `json:"currency"`
	TxHash    string `json:"tx_hash"`
	Amount    string `json:"amount"` // Decimal string
}

// DepositCreditedEvent 充值入账
type DepositCreditedEvent struct {
	DepositID uint64 `json:"deposit_id"`
	UserID    uint64 `json:"user_id"`
	Currency  string `json:"currency"`
	Amount    string `json:"amount"`
	UsdValue  string `json:"usd_value"`
}

// WithdrawalRequestedEvent 提现申请创建
type WithdrawalRequestedEvent struct {
	WithdrawalID uint64 `json:"withdrawal_id"`
	UserID       uint64 `json:"user_id"`
	ToAddress    string `json:"to_address"`
	AmountUSD    string `json:"amount_usd"`
	CryptoAmount string `json:"crypto_amount"`
	Currency     string `json:"currency"`
}

// WithdrawalStatusChangedEvent 提现状态变化
type WithdrawalStatusChangedEvent struct {
	WithdrawalID uint64 `json:"withdrawal_id"`
	UserID       uint64 `json:"user_id"`
	From         string `json:"from"`
	To           string `json:"to"`
	TxHash       string `json:"tx_hash,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// HotWalletAlertEvent 热钱包余额告警
type HotWalletAlertEvent struct {
	Currency  string `json:"currency"`
	Level     string `json:"level"`
	Balance   string `json:"balance"`
	Threshold string `json:"threshold"`
	Message   string `json:"message"`
}
