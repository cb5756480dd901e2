package ethereum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"custody-core/internal/chain"
)

// Indexer Etherscan 兼容的 account/txlist 接口
type Indexer struct {
	baseURL  string
	apiKey   string
	pageSize int
	hc       *http.Client
}

func NewIndexer(baseURL, apiKey string, timeout time.Duration) *Indexer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Indexer{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		pageSize: 50,
		hc:       &http.Client{Timeout: timeout},
	}
}

type etherscanResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type etherscanTx struct {
	Hash        string `json:"hash"`
	BlockNumber string `json:"blockNumber"`
	To          string `json:"to"`
	Value       string `json:"value"`
	IsError     string `json:"isError"`
}

// TxList 最近的普通交易 (倒序)。失败交易和零值交易被过滤
func (i *Indexer) TxList(ctx context.Context, address string) ([]chain.TxInfo, error) {
	q := url.Values{}
	q.Set("module", "account")
	q.Set("action", "txlist")
	q.Set("address", address)
	q.Set("startblock", "0")
	q.Set("endblock", "99999999")
	q.Set("page", "1")
	q.Set("offset", strconv.Itoa(i.pageSize))
	q.Set("sort", "desc")
	if i.apiKey != "" {
		q.Set("apikey", i.apiKey)
	}

	var resp etherscanResponse
	if err := chain.GetJSON(ctx, i.hc, i.baseURL+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	if resp.Status != "1" {
		if strings.HasPrefix(resp.Message, "No transactions found") {
			return nil, nil
		}
		// 限流等错误时 result 是一段文字
		var reason string
		_ = json.Unmarshal(resp.Result, &reason)
		return nil, chain.Transient("etherscan txlist", fmt.Errorf("%s: %s", resp.Message, reason))
	}

	var txs []etherscanTx
	if err := json.Unmarshal(resp.Result, &txs); err != nil {
		return nil, chain.Transient("etherscan txlist decode", err)
	}

	out := make([]chain.TxInfo, 0, len(txs))
	for _, tx := range txs {
		if tx.IsError == "1" || tx.To == "" {
			continue
		}
		value, ok := new(big.Int).SetString(tx.Value, 10)
		if !ok {
			return nil, chain.Transient("etherscan txlist decode", errors.New("非法 value: "+tx.Value))
		}
		if value.Sign() <= 0 {
			continue
		}
		height, _ := strconv.ParseInt(tx.BlockNumber, 10, 64)
		out = append(out, chain.TxInfo{
			Hash:        tx.Hash,
			BlockHeight: height,
			Transfers: []chain.Transfer{{
				To:     tx.To,
				Amount: chain.FromBaseUnits(value, chain.ETHDecimals),
			}},
		})
	}
	return out, nil
}
