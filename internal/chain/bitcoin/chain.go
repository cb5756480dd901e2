package bitcoin

import (
	"context"
	"fmt"
	"sync"

	"custody-core/internal/chain"
	"custody-core/pkg/address"
	"custody-core/pkg/bip32"
	"custody-core/pkg/wallet/types"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/shopspring/decimal"
)

// NetworkParams 配置里的网络名转换为 chaincfg 参数
func NetworkParams(name string) (*chaincfg.Params, error) {
	switch name {
	case "", "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	}
	return nil, fmt.Errorf("未知的 BTC 网络: %s", name)
}

// utxoSource 便于测试替换
type utxoSource interface {
	chain.Client
	GetUTXOs(ctx context.Context, address string) ([]chain.SpendableInput, error)
}

// Chain 比特币实现
// 已广播但索引器还没反映的 UTXO 记在 spent 里，避免同一周期内重复花费
type Chain struct {
	client   utxoSource
	network  *chaincfg.Params
	gen      *address.BTCGenerator
	required int64

	mu      sync.Mutex
	pending map[string][]wire.OutPoint // txid -> 已签名未广播的输入
	spent   map[wire.OutPoint]struct{}
}

func NewChain(client utxoSource, network *chaincfg.Params, requiredConfirmations int64) *Chain {
	return &Chain{
		client:   client,
		network:  network,
		gen:      address.NewBTCGenerator(network),
		required: requiredConfirmations,
		pending:  make(map[string][]wire.OutPoint),
		spent:    make(map[wire.OutPoint]struct{}),
	}
}

func (c *Chain) Symbol() chain.Symbol { return chain.BTC }
func (c *Chain) CoinType() uint32 { return bip32.CoinTypeBTC }
func (c *Chain) RequiredConfirmations() int64 { return c.required }
func (c *Chain) Client() chain.Client { return c.client }
func (c *Chain) Network() *chaincfg.Params { return c.network }
func (c *Chain) ValidateAddress(a string) error { return c.gen.Validate(a) }

func (c *Chain) DeriveAddress(pub *btcec.PublicKey) (string, error) {
	return c.gen.PubKeyToAddress(pub.SerializeCompressed())
}

// FetchSpendableInputs 过滤掉本进程已广播的输入
// 索引器不再返回某个已记录的输入时，说明它已被确认花费，清理记录
func (c *Chain) FetchSpendableInputs(ctx context.Context, from string) ([]chain.SpendableInput, error) {
	utxos, err := c.client.GetUTXOs(ctx, from)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[wire.OutPoint]struct{}, len(utxos))
	out := make([]chain.SpendableInput, 0, len(utxos))
	for _, u := range utxos {
		op, err := outPoint(u)
		if err != nil {
			continue
		}
		seen[op] = struct{}{}
		if _, used := c.spent[op]; used {
			continue
		}
		out = append(out, u)
	}
	for op := range c.spent {
		if _, ok := seen[op]; !ok {
			delete(c.spent, op)
		}
	}
	return out, nil
}

// EstimateFee 按 inputs 个输入、两个输出 (收款 + 找零) 估算
func (c *Chain) EstimateFee(ctx context.Context, inputs int) (decimal.Decimal, error) {
	rate, err := c.client.GetFeeEstimate(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if inputs < 1 {
		inputs = 1
	}
	return chain.SatsToBTC(EstimateFeeSats(rate.IntPart(), inputs, 2)), nil
}

func (c *Chain) BuildAndSign(ctx context.Context, key *btcec.PrivateKey, from, to string, amount decimal.Decimal) (*types.SignedTransaction, error) {
	// 1. 可用 UTXO
	utxos, err := c.FetchSpendableInputs(ctx, from)
	if err != nil {
		return nil, err
	}

	// 2. 费率与选币
	rate, err := c.client.GetFeeEstimate(ctx)
	if err != nil {
		return nil, err
	}
	plan, err := PlanTx(utxos, chain.BTCToSats(amount), rate.IntPart())
	if err != nil {
		return nil, err
	}

	// 3. 签名
	tx, err := BuildSignedTx(key, c.network, from, to, plan)
	if err != nil {
		return nil, err
	}
	raw, err := SerializeTx(tx)
	if err != nil {
		return nil, err
	}

	txid := tx.TxHash().String()
	ops := make([]wire.OutPoint, 0, len(tx.TxIn))
	for _, in := range tx.TxIn {
		ops = append(ops, in.PreviousOutPoint)
	}
	c.mu.Lock()
	c.pending[txid] = ops
	c.mu.Unlock()

	return &types.SignedTransaction{
		Chain:     chain.BTC.String(),
		From:      from,
		To:        to,
		TxHash:    txid,
		RawTx:     raw,
		Fee:       chain.SatsToBTC(plan.Fee),
		NetAmount: chain.SatsToBTC(plan.Net),
	}, nil
}

func (c *Chain) Broadcast(ctx context.Context, tx *types.SignedTransaction) (string, error) {
	txid, err := c.client.Broadcast(ctx, tx.RawTx)

	c.mu.Lock()
	defer c.mu.Unlock()
	ops := c.pending[tx.TxHash]
	delete(c.pending, tx.TxHash)
	if err != nil {
		return "", err
	}
	for _, op := range ops {
		c.spent[op] = struct{}{}
	}
	if txid == "" {
		txid = tx.TxHash
	}
	return txid, nil
}

func outPoint(u chain.SpendableInput) (wire.OutPoint, error) {
	op, err := wire.NewOutPointFromString(fmt.Sprintf("%s:%d", u.TxHash, u.Vout))
	if err != nil {
		return wire.OutPoint{}, err
	}
	return *op, nil
}

var _ chain.Chain = (*Chain)(nil)
