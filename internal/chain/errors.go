package chain

import (
	"errors"
	"fmt"
)

// ErrNotFound 索引器暂时查不到，不代表交易不存在
var ErrNotFound = errors.New("chain: not found")

// TransientError 第三方 API 暂时不可用 (网络错误 / 429 / 5xx / 响应格式错误)
// 下一个周期重试即可，不对用户暴露
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient 包装为 TransientError，nil 原样返回，已是 TransientError 或 ErrNotFound 的不重复包装
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransientError
	if errors.As(err, &te) || errors.Is(err, ErrNotFound) {
		return err
	}
	return &TransientError{Op: op, Err: err}
}

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ErrInsufficientFunds 可花费输入不足以覆盖转账金额
var ErrInsufficientFunds = errors.New("chain: insufficient spendable funds")

// ErrAmountTooSmall 扣除手续费后金额不足 (BTC 低于粉尘线，ETH 小于等于 0)
var ErrAmountTooSmall = errors.New("chain: amount does not cover network fee")
