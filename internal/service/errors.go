package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientBalance = errors.New("余额不足")
	ErrDepositNotFound     = errors.New("充值记录不存在")
	ErrWithdrawalNotFound  = errors.New("提现记录不存在")
	ErrInvalidState        = errors.New("提现状态不允许该操作")
	ErrAlreadyReviewed     = errors.New("该管理员已审核过此提现")
	ErrPriceUnavailable    = errors.New("实时价格不可用")
)

// 限额拒绝原因
const (
	LimitReasonDaily   = "DAILY_LIMIT_EXCEEDED"
	LimitReasonMonthly = "MONTHLY_LIMIT_EXCEEDED"
)

// ValidationError 请求参数或业务前置条件不满足，同步返回给调用方
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// LimitExceededError 超出日/月提现限额，Remaining 为剩余额度 (USD)
type LimitExceededError struct {
	Reason    string
	Remaining decimal.Decimal
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("%s: remaining %s USD", e.Reason, e.Remaining.StringFixed(2))
}

// InsufficientLiquidityError 热钱包余额不够，提现保持 APPROVED 等待补充
type InsufficientLiquidityError struct {
	Currency  string
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientLiquidityError) Error() string {
	return fmt.Sprintf("%s 热钱包余额不足: 需要 %s, 可用 %s", e.Currency, e.Required, e.Available)
}

// SigningOrBroadcastError 签名或广播失败，提现置为 FAILED 并退款
type SigningOrBroadcastError struct {
	Stage string // sign / broadcast
	Err   error
}

func (e *SigningOrBroadcastError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *SigningOrBroadcastError) Unwrap() error { return e.Err }
