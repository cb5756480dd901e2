package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

type withdrawForm struct {
	Currency string `validate:"required,currency"`
	Amount   string `validate:"required,positive_decimal"`
}

func TestCustomRules(t *testing.T) {
	v := validator.New()
	Register(v)

	assert.NoError(t, v.Struct(withdrawForm{Currency: "btc", Amount: "100.5"}))

	err := v.Struct(withdrawForm{Currency: "DOGE", Amount: "-1"})
	if assert.Error(t, err) {
		msg := GetErrorMsg(err)
		assert.Contains(t, msg, "Currency 仅支持 BTC/ETH")
		assert.Contains(t, msg, "Amount 必须是正数")
	}

	err = v.Struct(withdrawForm{Currency: "ETH", Amount: "abc"})
	assert.Contains(t, GetErrorMsg(err), "Amount 必须是正数")
}
