package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"custody-core/internal/handler"
	"custody-core/internal/handler/response"
	"custody-core/internal/server/routes"
	"custody-core/pkg/monitor"
	"custody-core/pkg/validator"
)

// Handlers 路由依赖的全部 handler
type Handlers struct {
	Wallet   *handler.WalletHandler
	Withdraw *handler.WithdrawHandler
	Admin    *handler.AdminHandler
	Health   *handler.HealthHandler
}

// NewHTTPRouter 初始化并返回一个 Gin Engine
// 指标注册 (monitor.Init) 由 main 负责，这里只挂中间件
func NewHTTPRouter(h Handlers) *gin.Engine {
	// 0. 注册自定义校验规则
	validator.Init()

	// 1. 创建 Engine (使用默认中间件: Logger, Recovery)
	r := gin.Default()

	// 2. 注册通用中间件
	r.Use(monitor.PrometheusMiddleware())

	// 3. 注册基础路由
	r.GET("/health", h.Health.Check)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 4. 注册 API 路由组
	api := r.Group("/api/v1")
	{
		api.GET("/ping", func(c *gin.Context) {
			response.Success(c, gin.H{"pong": true})
		})
		routes.RegisterWalletRoutes(api, h.Wallet, h.Withdraw)
		routes.RegisterAdminRoutes(api, h.Admin)
	}

	return r
}
