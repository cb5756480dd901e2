package routes

import (
	"github.com/gin-gonic/gin"

	"custody-core/internal/handler"
)

// RegisterWalletRoutes 用户侧: 充值地址、充值、提现
func RegisterWalletRoutes(rg *gin.RouterGroup, wallet *handler.WalletHandler, withdraw *handler.WithdrawHandler) {
	// Auth middleware here
	rg.POST("/addresses", wallet.GenerateAddress)
	rg.POST("/deposits", wallet.SubmitDeposit)
	rg.GET("/deposits/:id", wallet.GetDeposit)

	rg.POST("/withdrawals", withdraw.CreateWithdrawal)
	rg.GET("/withdrawals/:id", withdraw.GetWithdrawal)
}
