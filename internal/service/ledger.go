package service

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"custody-core/internal/event"
	"custody-core/internal/model"
)

// 以下函数都必须在事务内调用

func ensureAccount(tx *gorm.DB, userID uint64) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.Account{UserID: userID, Balance: decimal.Zero}).Error
}

// creditBalance 原子加余额
func creditBalance(tx *gorm.DB, userID uint64, amount decimal.Decimal) error {
	if err := ensureAccount(tx, userID); err != nil {
		return err
	}
	return tx.Model(&model.Account{}).
		Where("user_id = ?", userID).
		Update("balance", gorm.Expr("balance + ?", amount)).Error
}

// debitBalance 原子扣余额，余额不足时不修改并返回 ErrInsufficientBalance
func debitBalance(tx *gorm.DB, userID uint64, amount decimal.Decimal) error {
	res := tx.Model(&model.Account{}).
		Where("user_id = ? AND balance >= ?", userID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

// hasLedgerEntry 按自然键判断是否已记账
func hasLedgerEntry(tx *gorm.DB, reference string) (bool, error) {
	var n int64
	if err := tx.Model(&model.LedgerTransaction{}).Where("reference = ?", reference).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func appendLedger(tx *gorm.DB, userID uint64, typ string, amount decimal.Decimal, reference, desc string) error {
	return tx.Create(&model.LedgerTransaction{
		UserID:      userID,
		Type:        typ,
		Amount:      amount,
		Reference:   reference,
		Description: desc,
	}).Error
}

// publishEvent 写入 Outbox，随业务事务一起提交，key 为分区键
func publishEvent(tx *gorm.DB, topic string, key interface{}, eventType string, data interface{}) error {
	env, err := event.NewEnvelope(eventType, data)
	if err != nil {
		return err
	}
	if err := model.CreateOutboxMessage(tx, topic, fmt.Sprint(key), env); err != nil {
		return fmt.Errorf("写入 outbox 失败: %w", err)
	}
	return nil
}
