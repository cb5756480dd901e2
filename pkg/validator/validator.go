package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// SupportedCurrencies 请求层允许的币种
var SupportedCurrencies = []string{"BTC", "ETH"}

// Init 在 gin 的 validator 上注册自定义规则
func Init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		Register(v)
	}
}

// Register 注册 currency / positive_decimal 规则
func Register(v *validator.Validate) {
	_ = v.RegisterValidation("currency", validateCurrency)
	_ = v.RegisterValidation("positive_decimal", validatePositiveDecimal)
}

func validateCurrency(fl validator.FieldLevel) bool {
	s := strings.ToUpper(fl.Field().String())
	for _, c := range SupportedCurrencies {
		if s == c {
			return true
		}
	}
	return false
}

func validatePositiveDecimal(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	return err == nil && d.IsPositive()
}

// GetErrorMsg 把校验错误翻译成可读信息
func GetErrorMsg(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return "请求参数错误"
	}

	errMsgs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		field := e.Field()
		param := e.Param()

		switch e.Tag() {
		case "required":
			errMsgs = append(errMsgs, fmt.Sprintf("%s 不能为空", field))
		case "min":
			errMsgs = append(errMsgs, fmt.Sprintf("%s 至少为 %s", field, param))
		case "max":
			errMsgs = append(errMsgs, fmt.Sprintf("%s 不能超过 %s", field, param))
		case "oneof":
			errMsgs = append(errMsgs, fmt.Sprintf("%s 必须是 [%s] 之一", field, param))
		case "currency":
			errMsgs = append(errMsgs, fmt.Sprintf("%s 仅支持 %s", field, strings.Join(SupportedCurrencies, "/")))
		case "positive_decimal":
			errMsgs = append(errMsgs, fmt.Sprintf("%s 必须是正数", field))
		default:
			errMsgs = append(errMsgs, fmt.Sprintf("%s 校验失败 (%s)", field, e.Tag()))
		}
	}
	return strings.Join(errMsgs, "; ")
}
