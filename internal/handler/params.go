package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"custody-core/pkg/errno"
	"custody-core/pkg/validator"
)

// bind 绑定并校验请求体，失败时已经写好响应
func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeError(c, errno.ErrBind.WithMessage(validator.GetErrorMsg(err)))
		return false
	}
	return true
}

func pathID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		writeError(c, errno.ErrBind.WithMessage(name+" 必须是正整数"))
		return 0, false
	}
	return id, true
}

// adminID 从 X-Admin-ID 头读取审核人，鉴权由网关完成
func adminID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.GetHeader("X-Admin-ID"), 10, 64)
	if err != nil || id == 0 {
		writeError(c, errno.ErrTokenInvalid.WithMessage("缺少 X-Admin-ID"))
		return 0, false
	}
	return id, true
}

// 已经过 positive_decimal 校验
func mustDecimal(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}
