package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"custody-core/internal/chain"
	"custody-core/internal/handler/response"
	"custody-core/pkg/logger"
)

const (
	healthUp       = "UP"
	healthDegraded = "DEGRADED"
)

// HealthHandler 存活检查，数据库不可用时报 DEGRADED，HTTP 仍返回 200，由调用方读 body 里的 status
type HealthHandler struct {
	db      *gorm.DB
	chains  *chain.Registry
	timeout time.Duration
}

func NewHealthHandler(db *gorm.DB, chains *chain.Registry) *HealthHandler {
	return &HealthHandler{db: db, chains: chains, timeout: 2 * time.Second}
}

// Check godoc
// @Summary Custody service health
// @Description Database reachability and the currencies this instance serves
// @Tags system
// @Produce  json
// @Success 200 {object} response.Response
// @Router /health [get]
func (h *HealthHandler) Check(c *gin.Context) {
	status := healthUp
	database := healthUp
	if err := h.pingDB(c.Request.Context()); err != nil {
		logger.Warn("[Health] 数据库不可用", zap.Error(err))
		status, database = healthDegraded, healthDegraded
	}

	currencies := make([]string, 0, 2)
	for _, ch := range h.chains.All() {
		currencies = append(currencies, ch.Symbol().String())
	}

	response.Success(c, gin.H{
		"service":    "custody-server",
		"status":     status,
		"database":   database,
		"currencies": currencies,
	})
}

func (h *HealthHandler) pingDB(ctx context.Context) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return sqlDB.PingContext(ctx)
}
