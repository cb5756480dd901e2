package types

import "github.com/shopspring/decimal"

// SignedTransaction 签名完成、可直接广播的交易
// Fee / NetAmount 以币本位计 (BTC / ETH)，custody-cli broadcast 读取的也是这个结构
type SignedTransaction struct {
	Chain     string          `json:"chain"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	TxHash    string          `json:"tx_hash"`
	RawTx     string          `json:"raw_tx"` // hex，BTC 为序列化 MsgTx，ETH 为 RLP/typed 编码
	Fee       decimal.Decimal `json:"fee"`
	NetAmount decimal.Decimal `json:"net_amount"`
}
