package handler

import (
	"github.com/gin-gonic/gin"

	"custody-core/internal/handler/request"
	"custody-core/internal/handler/response"
	"custody-core/internal/service"
)

// WalletHandler 充值地址与充值单
type WalletHandler struct {
	addresses *service.AddressService
	deposits  *service.DepositService
}

func NewWalletHandler(addresses *service.AddressService, deposits *service.DepositService) *WalletHandler {
	return &WalletHandler{addresses: addresses, deposits: deposits}
}

// GenerateAddress 获取充值地址
// @Summary 获取充值地址
// @Description 每个用户每个币种一个地址，重复调用返回同一地址
// @Tags Wallet
// @Accept json
// @Produce json
// @Param request body request.CreateDepositAddressRequest true "Address Request"
// @Success 200 {object} response.Response
// @Router /api/v1/addresses [post]
func (h *WalletHandler) GenerateAddress(c *gin.Context) {
	var req request.CreateDepositAddressRequest
	if !bind(c, &req) {
		return
	}

	addr, err := h.addresses.GenerateAddress(c.Request.Context(), *req.UserID, req.Currency)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{
		"address":         addr.Address,
		"currency":        addr.Currency,
		"derivation_path": addr.DerivationPath,
	})
}

// SubmitDeposit 提交充值交易
// @Summary 提交充值交易
// @Description 按 tx_hash 幂等，金额以链上实际到账为准
// @Tags Wallet
// @Accept json
// @Produce json
// @Param request body request.SubmitDepositRequest true "Deposit Request"
// @Success 200 {object} response.Response
// @Router /api/v1/deposits [post]
func (h *WalletHandler) SubmitDeposit(c *gin.Context) {
	var req request.SubmitDepositRequest
	if !bind(c, &req) {
		return
	}

	id, err := h.deposits.SubmitDeposit(c.Request.Context(), *req.UserID, req.Currency, req.TxHash, mustDecimal(req.Amount))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"deposit_id": id})
}

// GetDeposit 查询充值状态
// @Summary 查询充值状态
// @Tags Wallet
// @Produce json
// @Param id path int true "Deposit ID"
// @Success 200 {object} response.Response
// @Router /api/v1/deposits/{id} [get]
func (h *WalletHandler) GetDeposit(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	d, err := h.deposits.GetDepositStatus(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, d)
}
