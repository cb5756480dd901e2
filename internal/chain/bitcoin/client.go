package bitcoin

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"custody-core/internal/chain"
	"custody-core/pkg/logger"
	"custody-core/pkg/monitor"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Client Esplora HTTP API (blockstream.info / mempool.space)
type Client struct {
	apiURL         string
	feeURL         string
	defaultFeeRate int64
	hc             *http.Client
}

func NewClient(apiURL, feeURL string, defaultFeeRate int64, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		apiURL:         strings.TrimRight(apiURL, "/"),
		feeURL:         strings.TrimRight(feeURL, "/"),
		defaultFeeRate: defaultFeeRate,
		hc:             &http.Client{Timeout: timeout},
	}
}

type esploraStatus struct {
	Confirmed   bool  `json:"confirmed"`
	BlockHeight int64 `json:"block_height"`
}

type esploraTx struct {
	TxID string `json:"txid"`
	Vout []struct {
		ScriptPubKeyAddress string `json:"scriptpubkey_address"`
		Value               int64  `json:"value"`
	} `json:"vout"`
	Status esploraStatus `json:"status"`
}

type esploraUTXO struct {
	TxID   string        `json:"txid"`
	Vout   uint32        `json:"vout"`
	Value  int64         `json:"value"`
	Status esploraStatus `json:"status"`
}

type esploraStats struct {
	FundedTxoSum int64 `json:"funded_txo_sum"`
	SpentTxoSum  int64 `json:"spent_txo_sum"`
}

type esploraAddress struct {
	ChainStats   esploraStats `json:"chain_stats"`
	MempoolStats esploraStats `json:"mempool_stats"`
}

func (t *esploraTx) toInfo() chain.TxInfo {
	info := chain.TxInfo{Hash: t.TxID}
	if t.Status.Confirmed {
		info.BlockHeight = t.Status.BlockHeight
	}
	for _, out := range t.Vout {
		if out.ScriptPubKeyAddress == "" || out.Value <= 0 {
			continue
		}
		info.Transfers = append(info.Transfers, chain.Transfer{
			To:     out.ScriptPubKeyAddress,
			Amount: chain.SatsToBTC(out.Value),
		})
	}
	return info
}

func (c *Client) GetTransaction(ctx context.Context, hash string) (*chain.TxInfo, error) {
	var tx esploraTx
	if err := chain.GetJSON(ctx, c.hc, c.apiURL+"/tx/"+hash, &tx); err != nil {
		return nil, c.observe(err)
	}
	info := tx.toInfo()
	return &info, nil
}

// GetAddressHistory 最近的交易 (Esplora 默认返回 mempool + 最近 25 笔已确认)
func (c *Client) GetAddressHistory(ctx context.Context, address string) ([]chain.TxInfo, error) {
	var txs []esploraTx
	if err := chain.GetJSON(ctx, c.hc, c.apiURL+"/address/"+address+"/txs", &txs); err != nil {
		return nil, c.observe(err)
	}
	out := make([]chain.TxInfo, 0, len(txs))
	for i := range txs {
		out = append(out, txs[i].toInfo())
	}
	return out, nil
}

func (c *Client) GetTipHeight(ctx context.Context) (int64, error) {
	data, err := chain.DoRequest(ctx, c.hc, http.MethodGet, c.apiURL+"/blocks/tip/height", nil, "")
	if err != nil {
		return 0, c.observe(err)
	}
	h, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, c.observe(chain.Transient("parse tip height", err))
	}
	return h, nil
}

// GetUTXOs 包含 mempool 中的未确认输出 (热钱包找零)
func (c *Client) GetUTXOs(ctx context.Context, address string) ([]chain.SpendableInput, error) {
	var utxos []esploraUTXO
	if err := chain.GetJSON(ctx, c.hc, c.apiURL+"/address/"+address+"/utxo", &utxos); err != nil {
		return nil, c.observe(err)
	}
	out := make([]chain.SpendableInput, 0, len(utxos))
	for _, u := range utxos {
		out = append(out, chain.SpendableInput{
			TxHash: u.TxID,
			Vout:   u.Vout,
			Value:  u.Value,
			Amount: chain.SatsToBTC(u.Value),
		})
	}
	return out, nil
}

func (c *Client) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	var a esploraAddress
	if err := chain.GetJSON(ctx, c.hc, c.apiURL+"/address/"+address, &a); err != nil {
		return decimal.Zero, c.observe(err)
	}
	sats := a.ChainStats.FundedTxoSum - a.ChainStats.SpentTxoSum +
		a.MempoolStats.FundedTxoSum - a.MempoolStats.SpentTxoSum
	return chain.SatsToBTC(sats), nil
}

// GetFeeEstimate sat/vB
// 1. mempool.space /v1/fees/recommended 的 halfHourFee
// 2. Esplora /fee-estimates 的 3 块目标
// 3. 配置的默认值
func (c *Client) GetFeeEstimate(ctx context.Context) (decimal.Decimal, error) {
	if c.feeURL != "" {
		var rec struct {
			HalfHourFee float64 `json:"halfHourFee"`
		}
		err := chain.GetJSON(ctx, c.hc, c.feeURL+"/v1/fees/recommended", &rec)
		if err == nil && rec.HalfHourFee > 0 {
			return clampFeeRate(rec.HalfHourFee), nil
		}
		c.warnFee("mempool.space", err)
	}

	var estimates map[string]float64
	err := chain.GetJSON(ctx, c.hc, c.apiURL+"/fee-estimates", &estimates)
	if err == nil && estimates["3"] > 0 {
		return clampFeeRate(estimates["3"]), nil
	}
	c.warnFee("esplora", err)

	return decimal.NewFromInt(c.defaultFeeRate), nil
}

func (c *Client) Broadcast(ctx context.Context, rawTx string) (string, error) {
	data, err := chain.DoRequest(ctx, c.hc, http.MethodPost, c.apiURL+"/tx", strings.NewReader(rawTx), "text/plain")
	if err != nil {
		return "", c.observe(fmt.Errorf("广播交易失败: %w", err))
	}
	return strings.TrimSpace(string(data)), nil
}

func (c *Client) observe(err error) error {
	if chain.IsTransient(err) {
		monitor.Business.ExternalErrorsTotal.WithLabelValues("esplora").Inc()
	}
	return err
}

func (c *Client) warnFee(source string, err error) {
	if err == nil {
		err = fmt.Errorf("empty estimate")
	}
	monitor.Business.ExternalErrorsTotal.WithLabelValues("fee").Inc()
	logger.Warn("[BTC] 费率获取失败，降级", zap.String("source", source), zap.Error(err))
}

// 向上取整，最低 1 sat/vB
func clampFeeRate(rate float64) decimal.Decimal {
	d := decimal.NewFromFloat(rate).Ceil()
	if d.LessThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return d
}

var _ chain.Client = (*Client)(nil)
