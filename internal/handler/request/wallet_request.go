package request

// CreateDepositAddressRequest 生成充值地址请求
type CreateDepositAddressRequest struct {
	UserID   *uint64 `json:"user_id" binding:"required"`
	Currency string  `json:"currency" binding:"required,currency"`
}

// SubmitDepositRequest 用户主动提交充值交易
type SubmitDepositRequest struct {
	UserID   *uint64 `json:"user_id" binding:"required"`
	Currency string  `json:"currency" binding:"required,currency"`
	TxHash   string  `json:"tx_hash" binding:"required,min=16,max=128"`
	Amount   string  `json:"amount" binding:"required,positive_decimal"`
}
