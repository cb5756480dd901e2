package routes

import (
	"github.com/gin-gonic/gin"

	"custody-core/internal/handler"
)

func RegisterAdminRoutes(rg *gin.RouterGroup, admin *handler.AdminHandler) {
	adminGroup := rg.Group("/admin")
	// 可以在这里添加 AdminAuth 中间件
	{
		adminGroup.GET("/withdrawals", admin.ListWithdrawals)
		adminGroup.POST("/withdrawals/:id/review", admin.ReviewWithdrawal)
		adminGroup.GET("/hot-wallets/:currency", admin.GetHotWallet)
		adminGroup.PUT("/users/:id/vip", admin.SetVIPTier)
		adminGroup.GET("/users/:id/limits", admin.GetLimits)
	}
}
