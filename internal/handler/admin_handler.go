package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"custody-core/internal/handler/request"
	"custody-core/internal/handler/response"
	"custody-core/internal/model"
	"custody-core/internal/service"
	"custody-core/pkg/errno"
)

type AdminHandler struct {
	withdrawals *service.WithdrawService
	limiter     *service.WithdrawalLimiter
	hotwallet   *service.HotWalletMonitor
}

func NewAdminHandler(withdrawals *service.WithdrawService, limiter *service.WithdrawalLimiter, hotwallet *service.HotWalletMonitor) *AdminHandler {
	return &AdminHandler{withdrawals: withdrawals, limiter: limiter, hotwallet: hotwallet}
}

// ListWithdrawals 按状态列出提现
// @Summary 按状态列出提现
// @Tags Admin
// @Produce json
// @Param status query string false "PENDING / APPROVED / PROCESSING ..."
// @Success 200 {object} response.Response
// @Router /api/v1/admin/withdrawals [get]
func (h *AdminHandler) ListWithdrawals(c *gin.Context) {
	status := strings.ToUpper(c.DefaultQuery("status", model.WithdrawalStatusPending))
	rows, err := h.withdrawals.ListByStatus(c.Request.Context(), status, 100)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, rows)
}

// ReviewWithdrawal 审核提现
// @Summary 审核提现
// @Description 管理员对提现申请进行审批 (Approve/Reject)
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path int true "Withdrawal ID"
// @Param X-Admin-ID header int true "Admin ID"
// @Param request body request.ReviewWithdrawalRequest true "Review Request"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/withdrawals/{id}/review [post]
func (h *AdminHandler) ReviewWithdrawal(c *gin.Context) {
	// 1. 获取 ID
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	admin, ok := adminID(c)
	if !ok {
		return
	}

	// 2. 绑定参数
	var req request.ReviewWithdrawalRequest
	if !bind(c, &req) {
		return
	}

	// 3. 调用 Service
	var (
		w   *model.Withdrawal
		err error
	)
	if req.Action == model.ReviewActionApprove {
		w, err = h.withdrawals.Approve(c.Request.Context(), id, admin, req.Remark)
	} else {
		if strings.TrimSpace(req.Remark) == "" {
			response.Error(c, errno.ErrBind.WithMessage("拒绝时 remark 不能为空"))
			return
		}
		w, err = h.withdrawals.Reject(c.Request.Context(), id, admin, req.Remark)
	}
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"withdrawal_id":      w.ID,
		"status":             w.Status,
		"current_approvals":  w.CurrentApprovals,
		"required_approvals": w.RequiredApprovals,
	})
}

// GetHotWallet 热钱包余额与补充建议
// @Summary 热钱包补充建议
// @Tags Admin
// @Produce json
// @Param currency path string true "BTC / ETH"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/hot-wallets/{currency} [get]
func (h *AdminHandler) GetHotWallet(c *gin.Context) {
	rec, err := h.hotwallet.GetRefillRecommendation(c.Request.Context(), c.Param("currency"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, rec)
}

// SetVIPTier 调整用户 VIP 等级
// @Summary 调整用户 VIP 等级
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param request body request.SetVIPTierRequest true "Tier"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/users/{id}/vip [put]
func (h *AdminHandler) SetVIPTier(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req request.SetVIPTierRequest
	if !bind(c, &req) {
		return
	}

	rec, err := h.limiter.SetVIPTier(c.Request.Context(), userID, *req.Tier)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, rec)
}

// GetLimits 用户当前限额
// @Summary 用户当前限额
// @Tags Admin
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} response.Response
// @Router /api/v1/admin/users/{id}/limits [get]
func (h *AdminHandler) GetLimits(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}
	rec, err := h.limiter.GetLimits(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, rec)
}
