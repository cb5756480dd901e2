package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"custody-core/pkg/errno"
)

// Response 对外统一外壳，HTTP 状态码恒为 200，业务结果看 code
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"msg"`
	Data    interface{} `json:"data"`
}

// Success data 为 nil 时返回 {}，客户端不用判 null
func Success(c *gin.Context, data interface{}) {
	write(c, errno.OK.Code, errno.OK.Message, data)
}

// Error 错误码和提示来自 errno，未映射的错误统一成内部错误
func Error(c *gin.Context, err error) {
	ErrorWithData(c, err, nil)
}

// ErrorWithData 错误之外还要告诉客户端上下文，比如限额剩余额度
func ErrorWithData(c *gin.Context, err error, data interface{}) {
	code, msg := errno.Decode(err)
	write(c, code, msg, data)
}

func write(c *gin.Context, code int, msg string, data interface{}) {
	if data == nil {
		data = gin.H{}
	}
	c.JSON(http.StatusOK, Response{Code: code, Message: msg, Data: data})
}
