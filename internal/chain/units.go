package chain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	BTCDecimals int32 = 8
	ETHDecimals int32 = 18
)

// ToBaseUnits 币本位 -> 最小单位 (向下取整)
func ToBaseUnits(amount decimal.Decimal, decimals int32) *big.Int {
	return amount.Shift(decimals).Truncate(0).BigInt()
}

// FromBaseUnits 最小单位 -> 币本位
func FromBaseUnits(v *big.Int, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(v, -decimals)
}

func SatsToBTC(sats int64) decimal.Decimal {
	return decimal.New(sats, -BTCDecimals)
}

func BTCToSats(amount decimal.Decimal) int64 {
	return amount.Shift(BTCDecimals).Truncate(0).IntPart()
}
