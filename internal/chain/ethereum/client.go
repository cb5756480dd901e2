package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"custody-core/internal/chain"
	"custody-core/pkg/monitor"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

// RPC ethclient.Client 用到的子集，测试里用假实现替换
type RPC interface {
	BlockNumber(ctx context.Context) (uint64, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (tx *types.Transaction, isPending bool, err error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Client JSON-RPC 查询链状态，地址历史走 Etherscan 兼容索引器
type Client struct {
	rpc     RPC
	indexer *Indexer
}

func NewClient(rpc RPC, indexer *Indexer) *Client {
	return &Client{rpc: rpc, indexer: indexer}
}

// Dial 连接节点
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	c, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("连接以太坊节点失败: %w", err)
	}
	return c, nil
}

// GetTransaction pending 交易高度为 0；执行失败的交易不计入转账
func (c *Client) GetTransaction(ctx context.Context, hash string) (*chain.TxInfo, error) {
	h := common.HexToHash(hash)
	tx, pending, err := c.rpc.TransactionByHash(ctx, h)
	if errors.Is(err, geth.NotFound) {
		return nil, fmt.Errorf("%w: %s", chain.ErrNotFound, hash)
	}
	if err != nil {
		return nil, c.transient("eth_getTransactionByHash", err)
	}

	info := &chain.TxInfo{Hash: h.Hex()}
	if pending {
		info.Transfers = transfersOf(tx)
		return info, nil
	}

	receipt, err := c.rpc.TransactionReceipt(ctx, h)
	if errors.Is(err, geth.NotFound) {
		// 刚出块，回执还没索引
		info.Transfers = transfersOf(tx)
		return info, nil
	}
	if err != nil {
		return nil, c.transient("eth_getTransactionReceipt", err)
	}

	info.BlockHeight = receipt.BlockNumber.Int64()
	if receipt.Status == types.ReceiptStatusSuccessful {
		info.Transfers = transfersOf(tx)
	}
	return info, nil
}

func (c *Client) GetAddressHistory(ctx context.Context, address string) ([]chain.TxInfo, error) {
	if c.indexer == nil {
		return nil, chain.Transient("address history", errors.New("未配置 ETH 索引器"))
	}
	txs, err := c.indexer.TxList(ctx, address)
	if err != nil {
		monitor.Business.ExternalErrorsTotal.WithLabelValues("etherscan").Inc()
		return nil, err
	}
	return txs, nil
}

func (c *Client) GetTipHeight(ctx context.Context) (int64, error) {
	n, err := c.rpc.BlockNumber(ctx)
	if err != nil {
		return 0, c.transient("eth_blockNumber", err)
	}
	return int64(n), nil
}

// GetFeeEstimate wei/gas
func (c *Client) GetFeeEstimate(ctx context.Context) (decimal.Decimal, error) {
	gp, err := c.GasPrice(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromBigInt(gp, 0), nil
}

func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	gp, err := c.rpc.SuggestGasPrice(ctx)
	if err != nil {
		return nil, c.transient("eth_gasPrice", err)
	}
	return gp, nil
}

func (c *Client) PendingNonce(ctx context.Context, address string) (uint64, error) {
	n, err := c.rpc.PendingNonceAt(ctx, common.HexToAddress(address))
	if err != nil {
		return 0, c.transient("eth_getTransactionCount", err)
	}
	return n, nil
}

func (c *Client) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	wei, err := c.rpc.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return decimal.Zero, c.transient("eth_getBalance", err)
	}
	return chain.FromBaseUnits(wei, chain.ETHDecimals), nil
}

// Broadcast rawTx 为 0x 前缀的 typed/RLP 编码
func (c *Client) Broadcast(ctx context.Context, rawTx string) (string, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(common.FromHex(rawTx)); err != nil {
		return "", fmt.Errorf("反序列化交易失败: %w", err)
	}
	if err := c.rpc.SendTransaction(ctx, tx); err != nil {
		// 节点已有同一笔交易，视为广播成功
		if strings.Contains(strings.ToLower(err.Error()), "already known") {
			return tx.Hash().Hex(), nil
		}
		return "", c.transient("eth_sendRawTransaction", err)
	}
	return tx.Hash().Hex(), nil
}

func (c *Client) transient(op string, err error) error {
	monitor.Business.ExternalErrorsTotal.WithLabelValues("eth_rpc").Inc()
	return chain.Transient(op, err)
}

func transfersOf(tx *types.Transaction) []chain.Transfer {
	if tx.To() == nil || tx.Value().Sign() <= 0 {
		return nil
	}
	return []chain.Transfer{{
		To:     tx.To().Hex(),
		Amount: chain.FromBaseUnits(tx.Value(), chain.ETHDecimals),
	}}
}

var _ chain.Client = (*Client)(nil)
