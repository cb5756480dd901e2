package bitcoin

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"custody-core/internal/chain"
	"custody-core/pkg/address"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const destAddr = "1LqBGSKuX5yYUonjxT5qGfpUsXKYYWeabA"

func testKey(t *testing.T, b byte) (*btcec.PrivateKey, string) {
	t.Helper()
	priv, pub := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{b}, 32))
	addr, err := address.NewBTCGenerator(&chaincfg.MainNetParams).PubKeyToAddress(pub.SerializeCompressed())
	require.NoError(t, err)
	return priv, addr
}

func utxo(seed string, vout uint32, value int64) chain.SpendableInput {
	return chain.SpendableInput{
		TxHash: strings.Repeat(seed, 32),
		Vout:   vout,
		Value:  value,
		Amount: chain.SatsToBTC(value),
	}
}

func TestEstimateTxSize(t *testing.T) {
	assert.Equal(t, int64(226), EstimateTxSize(1, 2))
	assert.Equal(t, int64(374), EstimateTxSize(2, 2))
	assert.Equal(t, int64(2260), EstimateFeeSats(10, 1, 2))
}

func TestPlanTx(t *testing.T) {
	t.Run("大额优先并找零", func(t *testing.T) {
		plan, err := PlanTx([]chain.SpendableInput{utxo("aa", 0, 50000), utxo("bb", 1, 100000)}, 120000, 10)
		require.NoError(t, err)
		assert.Len(t, plan.Inputs, 2)
		assert.Equal(t, int64(100000), plan.Inputs[0].Value)
		assert.Equal(t, int64(150000), plan.Total)
		assert.Equal(t, int64(30000), plan.Change)
		assert.Equal(t, int64(3740), plan.Fee)
		assert.Equal(t, int64(116260), plan.Net)
	})

	t.Run("单个输入足够时只选一个", func(t *testing.T) {
		plan, err := PlanTx([]chain.SpendableInput{utxo("aa", 0, 50000), utxo("bb", 1, 100000)}, 60000, 1)
		require.NoError(t, err)
		assert.Len(t, plan.Inputs, 1)
		assert.Equal(t, int64(40000), plan.Change)
	})

	t.Run("粉尘找零并入手续费", func(t *testing.T) {
		plan, err := PlanTx([]chain.SpendableInput{utxo("aa", 0, 100300)}, 100000, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(0), plan.Change)
		assert.Equal(t, int64(99808), plan.Net)
		assert.Equal(t, int64(492), plan.Fee)
		assert.Equal(t, plan.Total, plan.Net+plan.Change+plan.Fee)
	})

	t.Run("余额不足", func(t *testing.T) {
		_, err := PlanTx([]chain.SpendableInput{utxo("aa", 0, 1000)}, 5000, 1)
		assert.True(t, errors.Is(err, chain.ErrInsufficientFunds))
	})

	t.Run("不够付手续费", func(t *testing.T) {
		_, err := PlanTx([]chain.SpendableInput{utxo("aa", 0, 10000)}, 1000, 10)
		assert.True(t, errors.Is(err, chain.ErrAmountTooSmall))
	})
}

func TestBuildSignedTx(t *testing.T) {
	key, from := testKey(t, 1)

	plan, err := PlanTx([]chain.SpendableInput{utxo("aa", 0, 50000), utxo("bb", 1, 100000)}, 120000, 10)
	require.NoError(t, err)

	tx, err := BuildSignedTx(key, &chaincfg.MainNetParams, from, destAddr, plan)
	require.NoError(t, err)
	require.Len(t, tx.TxIn, 2)
	require.Len(t, tx.TxOut, 2)
	assert.Equal(t, int64(116260), tx.TxOut[0].Value)
	assert.Equal(t, int64(30000), tx.TxOut[1].Value)
	for _, in := range tx.TxIn {
		assert.Equal(t, rbfSequence, in.Sequence)
		assert.NotEmpty(t, in.SignatureScript)
	}

	// 序列化后能还原出同一笔交易
	raw, err := SerializeTx(tx)
	require.NoError(t, err)
	b, err := hex.DecodeString(raw)
	require.NoError(t, err)
	var decoded wire.MsgTx
	require.NoError(t, decoded.Deserialize(bytes.NewReader(b)))
	assert.Equal(t, tx.TxHash(), decoded.TxHash())
}

func TestBuildSignedTx_KeyMismatch(t *testing.T) {
	key, _ := testKey(t, 1)
	_, otherFrom := testKey(t, 2)

	plan, err := PlanTx([]chain.SpendableInput{utxo("aa", 0, 100000)}, 50000, 1)
	require.NoError(t, err)

	_, err = BuildSignedTx(key, &chaincfg.MainNetParams, otherFrom, destAddr, plan)
	assert.Error(t, err)
}
