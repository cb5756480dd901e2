// Package chain 屏蔽 BTC / ETH 的差异：业务层只面向 Chain 接口，
// 按币种分支只发生在 Registry 里。
package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"custody-core/pkg/wallet/types"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/shopspring/decimal"
)

// Symbol 币种
type Symbol string

const (
	BTC Symbol = "BTC"
	ETH Symbol = "ETH"
)

// ErrUnsupportedCurrency 不支持的币种
var ErrUnsupportedCurrency = errors.New("unsupported currency")

// ParseSymbol 大小写不敏感
func ParseSymbol(s string) (Symbol, error) {
	switch Symbol(strings.ToUpper(strings.TrimSpace(s))) {
	case BTC:
		return BTC, nil
	case ETH:
		return ETH, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedCurrency, s)
}

func (s Symbol) String() string { return string(s) }

// Transfer 交易中的一个转入
type Transfer struct {
	To     string
	Amount decimal.Decimal // 币本位
}

// TxInfo 链上交易的统一视图
// BlockHeight 为 0 表示尚未上链
type TxInfo struct {
	Hash        string
	BlockHeight int64
	Transfers   []Transfer
}

// AmountTo 汇总支付到 addr 的金额 (BTC 一笔交易可能有多个输出指向同一地址)
func (t *TxInfo) AmountTo(addr string) decimal.Decimal {
	total := decimal.Zero
	for _, tr := range t.Transfers {
		if strings.EqualFold(tr.To, addr) {
			total = total.Add(tr.Amount)
		}
	}
	return total
}

// Confirmations = tip - block + 1，未上链为 0
func Confirmations(tip, blockHeight int64) int64 {
	if blockHeight <= 0 || tip < blockHeight {
		return 0
	}
	return tip - blockHeight + 1
}

// SpendableInput 可花费输入。BTC 为 UTXO，ETH 为账户本身 (Value 为余额)
type SpendableInput struct {
	TxHash string
	Vout   uint32
	Value  int64 // 最小单位 (sat)，ETH 不使用
	Amount decimal.Decimal
}

// Client 第三方链数据 API
// 所有失败都包装为 TransientError；"查不到" 返回 ErrNotFound，调用方视为"暂时未知"
type Client interface {
	GetTransaction(ctx context.Context, hash string) (*TxInfo, error)
	GetAddressHistory(ctx context.Context, address string) ([]TxInfo, error)
	GetTipHeight(ctx context.Context) (int64, error)
	// GetFeeEstimate 返回费率，BTC 为 sat/vB，ETH 为 wei/gas
	GetFeeEstimate(ctx context.Context) (decimal.Decimal, error)
	// GetBalance 返回币本位余额
	GetBalance(ctx context.Context, address string) (decimal.Decimal, error)
	Broadcast(ctx context.Context, rawTx string) (string, error)
}

// Chain 单条链的全部能力
type Chain interface {
	Symbol() Symbol
	// CoinType BIP-44 coin type
	CoinType() uint32
	RequiredConfirmations() int64
	DeriveAddress(pub *btcec.PublicKey) (string, error)
	ValidateAddress(addr string) error
	FetchSpendableInputs(ctx context.Context, from string) ([]SpendableInput, error)
	// EstimateFee 估算 inputs 个输入的转账手续费 (币本位)
	EstimateFee(ctx context.Context, inputs int) (decimal.Decimal, error)
	// BuildAndSign 手续费从 amount 中扣除，NetAmount = amount - Fee
	BuildAndSign(ctx context.Context, key *btcec.PrivateKey, from, to string, amount decimal.Decimal) (*types.SignedTransaction, error)
	Broadcast(ctx context.Context, tx *types.SignedTransaction) (string, error)
	Client() Client
}
