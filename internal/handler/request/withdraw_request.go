package request

// CreateWithdrawalRequest 提现申请，金额以 USD 计
type CreateWithdrawalRequest struct {
	UserID    *uint64 `json:"user_id" binding:"required"`
	AmountUSD string  `json:"amount_usd" binding:"required,positive_decimal"`
	Currency  string  `json:"currency" binding:"required,currency"`
	Address   string  `json:"address" binding:"required,max=128"`
}
