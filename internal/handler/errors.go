package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"custody-core/internal/chain"
	"custody-core/internal/handler/response"
	"custody-core/internal/service"
	"custody-core/pkg/errno"
	"custody-core/pkg/logger"
)

func writeError(c *gin.Context, err error) {
	mapped := toErrno(err)
	if mapped == errno.InternalServerError {
		logger.Error("[HTTP] 请求处理失败", zap.String("path", c.FullPath()), zap.Error(err))
	}

	// 超限时带上剩余额度，客户端据此提示可提金额
	var lerr *service.LimitExceededError
	if errors.As(err, &lerr) {
		response.ErrorWithData(c, mapped, gin.H{
			"reason":        lerr.Reason,
			"remaining_usd": lerr.Remaining.StringFixed(2),
		})
		return
	}
	response.Error(c, mapped)
}

// toErrno 把 service 层错误翻译成对外错误码，未知错误不透出内部信息
func toErrno(err error) error {
	var verr *service.ValidationError
	var lerr *service.LimitExceededError

	switch {
	case errors.As(err, &lerr):
		return errno.ErrWithdrawalLimit.WithMessage(lerr.Error())
	case errors.As(err, &verr):
		return errno.ErrValidation.WithMessage(verr.Error())
	case errors.Is(err, chain.ErrUnsupportedCurrency):
		return errno.ErrUnsupportedCurrency
	case errors.Is(err, service.ErrInsufficientBalance):
		return errno.ErrInsufficientBalance
	case errors.Is(err, service.ErrDepositNotFound):
		return errno.ErrDepositNotFound
	case errors.Is(err, service.ErrWithdrawalNotFound):
		return errno.ErrWithdrawalNotFound
	case errors.Is(err, service.ErrInvalidState):
		return errno.ErrWithdrawalState
	case errors.Is(err, service.ErrAlreadyReviewed):
		return errno.ErrAlreadyReviewed
	case errors.Is(err, service.ErrPriceUnavailable), chain.IsTransient(err):
		return errno.ErrUpstream
	}

	var ptr *errno.Errno
	if errors.As(err, &ptr) {
		return ptr
	}
	var val errno.Errno
	if errors.As(err, &val) {
		return val
	}
	return errno.InternalServerError
}
