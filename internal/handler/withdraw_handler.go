package handler

import (
	"github.com/gin-gonic/gin"

	"custody-core/internal/handler/request"
	"custody-core/internal/handler/response"
	"custody-core/internal/service"
)

type WithdrawHandler struct {
	withdrawals *service.WithdrawService
}

func NewWithdrawHandler(withdrawals *service.WithdrawService) *WithdrawHandler {
	return &WithdrawHandler{withdrawals: withdrawals}
}

// CreateWithdrawal 申请提现
// @Summary 申请提现
// @Description 按 USD 金额提现，余额与限额在同一事务内扣减
// @Tags Wallet
// @Accept json
// @Produce json
// @Param request body request.CreateWithdrawalRequest true "Withdraw Request"
// @Success 200 {object} response.Response
// @Router /api/v1/withdrawals [post]
func (h *WithdrawHandler) CreateWithdrawal(c *gin.Context) {
	// 1. 绑定参数
	var req request.CreateWithdrawalRequest
	if !bind(c, &req) {
		return
	}

	// 2. 调用 Service
	w, err := h.withdrawals.RequestWithdrawal(c.Request.Context(), *req.UserID, mustDecimal(req.AmountUSD), req.Currency, req.Address)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"withdrawal_id": w.ID,
		"status":        w.Status,
		"crypto_amount": w.CryptoAmount,
		"usd_price":     w.UsdPrice,
	})
}

// GetWithdrawal 查询提现
// @Summary 查询提现
// @Tags Wallet
// @Produce json
// @Param id path int true "Withdrawal ID"
// @Success 200 {object} response.Response
// @Router /api/v1/withdrawals/{id} [get]
func (h *WithdrawHandler) GetWithdrawal(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	w, err := h.withdrawals.GetWithdrawal(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, w)
}
