package ethereum

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"custody-core/internal/chain"

	"github.com/btcsuite/btcd/btcec/v2"
	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const depositAddr = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"

var oneEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

type fakeRPC struct {
	tip      uint64
	gasPrice *big.Int
	nonce    uint64
	balance  *big.Int

	tx      *types.Transaction
	pending bool
	receipt *types.Receipt
	txErr   error

	sendErr error
	sent    []*types.Transaction
}

func (f *fakeRPC) BlockNumber(context.Context) (uint64, error) { return f.tip, nil }
func (f *fakeRPC) TransactionByHash(context.Context, common.Hash) (*types.Transaction, bool, error) {
	if f.txErr != nil {
		return nil, false, f.txErr
	}
	return f.tx, f.pending, nil
}
func (f *fakeRPC) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	if f.receipt == nil {
		return nil, geth.NotFound
	}
	return f.receipt, nil
}
func (f *fakeRPC) SuggestGasPrice(context.Context) (*big.Int, error) { return f.gasPrice, nil }
func (f *fakeRPC) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return f.nonce, nil
}
func (f *fakeRPC) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return f.balance, nil
}
func (f *fakeRPC) SendTransaction(_ context.Context, tx *types.Transaction) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func hotKey(t *testing.T) (*btcec.PrivateKey, string) {
	t.Helper()
	priv, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{7}, 32))
	return priv, crypto.PubkeyToAddress(priv.ToECDSA().PublicKey).Hex()
}

func TestChain_BuildAndSignAndBroadcast(t *testing.T) {
	ctx := context.Background()
	rpc := &fakeRPC{gasPrice: big.NewInt(20_000_000_000), nonce: 7}
	c := NewChain(NewClient(rpc, nil), 1, 12)
	key, from := hotKey(t)

	signed, err := c.BuildAndSign(ctx, key, from, depositAddr, decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.Equal(t, "0.00042", signed.Fee.String())
	assert.Equal(t, "0.99958", signed.NetAmount.String())

	// 解码后检查签名者与字段
	var tx types.Transaction
	require.NoError(t, tx.UnmarshalBinary(common.FromHex(signed.RawTx)))
	sender, err := types.Sender(types.NewEIP155Signer(big.NewInt(1)), &tx)
	require.NoError(t, err)
	assert.Equal(t, from, sender.Hex())
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, TransferGasLimit, tx.Gas())
	assert.Equal(t, depositAddr, tx.To().Hex())
	assert.Equal(t, signed.TxHash, tx.Hash().Hex())

	fee, err := c.EstimateFee(ctx, 1)
	require.NoError(t, err)
	assert.True(t, fee.Equal(signed.Fee))

	txid, err := c.Broadcast(ctx, signed)
	require.NoError(t, err)
	assert.Equal(t, signed.TxHash, txid)
	require.Len(t, rpc.sent, 1)
}

func TestChain_BuildAndSign_Errors(t *testing.T) {
	ctx := context.Background()
	rpc := &fakeRPC{gasPrice: big.NewInt(20_000_000_000)}
	c := NewChain(NewClient(rpc, nil), 1, 12)
	key, from := hotKey(t)

	// 金额不够付手续费
	_, err := c.BuildAndSign(ctx, key, from, depositAddr, decimal.RequireFromString("0.0001"))
	assert.True(t, errors.Is(err, chain.ErrAmountTooSmall))

	// 私钥与地址不匹配
	_, err = c.BuildAndSign(ctx, key, depositAddr, from, decimal.NewFromInt(1))
	assert.Error(t, err)
}

func TestClient_BroadcastErrors(t *testing.T) {
	ctx := context.Background()
	rpc := &fakeRPC{gasPrice: big.NewInt(1), nonce: 0}
	c := NewChain(NewClient(rpc, nil), 1, 12)
	key, from := hotKey(t)
	signed, err := c.BuildAndSign(ctx, key, from, depositAddr, decimal.NewFromInt(1))
	require.NoError(t, err)

	rpc.sendErr = errors.New("already known")
	txid, err := c.Broadcast(ctx, signed)
	require.NoError(t, err)
	assert.Equal(t, signed.TxHash, txid)

	rpc.sendErr = errors.New("insufficient funds for gas * price + value")
	_, err = c.Broadcast(ctx, signed)
	assert.True(t, chain.IsTransient(err))

	_, err = NewClient(rpc, nil).Broadcast(ctx, "0xzz")
	assert.Error(t, err)
}

func TestClient_GetTransaction(t *testing.T) {
	ctx := context.Background()
	tx := types.NewTransaction(0, common.HexToAddress(depositAddr), oneEther, 21000, big.NewInt(1), nil)
	rpc := &fakeRPC{tx: tx, tip: 111, balance: new(big.Int).Mul(oneEther, big.NewInt(2))}
	c := NewClient(rpc, nil)

	// 出块但回执未索引
	info, err := c.GetTransaction(ctx, tx.Hash().Hex())
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.BlockHeight)

	rpc.receipt = &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(100)}
	info, err = c.GetTransaction(ctx, tx.Hash().Hex())
	require.NoError(t, err)
	assert.Equal(t, int64(100), info.BlockHeight)
	assert.True(t, info.AmountTo("0x9858effd232b4033e47d90003d41ec34ecaeda94").Equal(decimal.NewFromInt(1)))

	tip, err := c.GetTipHeight(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(12), chain.Confirmations(tip, info.BlockHeight))

	// 执行失败的交易没有转账
	rpc.receipt = &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(100)}
	info, err = c.GetTransaction(ctx, tx.Hash().Hex())
	require.NoError(t, err)
	assert.True(t, info.AmountTo(depositAddr).IsZero())

	rpc.txErr = geth.NotFound
	_, err = c.GetTransaction(ctx, tx.Hash().Hex())
	assert.True(t, errors.Is(err, chain.ErrNotFound))

	rpc.txErr = errors.New("connection reset")
	_, err = c.GetTransaction(ctx, tx.Hash().Hex())
	assert.True(t, chain.IsTransient(err))

	bal, err := c.GetBalance(ctx, depositAddr)
	require.NoError(t, err)
	assert.Equal(t, "2", bal.String())
}

func TestIndexer_TxList(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "txlist", r.URL.Query().Get("action"))
		assert.Equal(t, "key", r.URL.Query().Get("apikey"))
		_, _ = io.WriteString(w, body)
	}))
	defer srv.Close()

	ix := NewIndexer(srv.URL+"/api", "key", time.Second)
	ctx := context.Background()

	body = `{"status":"1","message":"OK","result":[
		{"hash":"0xaa","blockNumber":"100","to":"` + depositAddr + `","value":"500000000000000000","isError":"0"},
		{"hash":"0xbb","blockNumber":"101","to":"` + depositAddr + `","value":"1","isError":"1"},
		{"hash":"0xcc","blockNumber":"102","to":"` + depositAddr + `","value":"0","isError":"0"}
	]}`
	txs, err := ix.TxList(ctx, depositAddr)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, int64(100), txs[0].BlockHeight)
	assert.Equal(t, "0.5", txs[0].AmountTo(depositAddr).String())

	body = `{"status":"0","message":"No transactions found","result":[]}`
	txs, err = ix.TxList(ctx, depositAddr)
	require.NoError(t, err)
	assert.Empty(t, txs)

	body = `{"status":"0","message":"NOTOK","result":"Max rate limit reached"}`
	_, err = ix.TxList(ctx, depositAddr)
	assert.True(t, chain.IsTransient(err))

	// 未配置索引器
	_, err = NewClient(&fakeRPC{}, nil).GetAddressHistory(ctx, depositAddr)
	assert.True(t, chain.IsTransient(err))
}
