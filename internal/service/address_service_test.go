package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custody-core/internal/chain"
	"custody-core/internal/model"
)

func TestGenerateAddress_DeterministicAndCached(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	btc, err := env.addresses.GenerateAddress(ctx, 0, "btc")
	require.NoError(t, err)
	assert.Equal(t, "1LqBGSKuX5yYUonjxT5qGfpUsXKYYWeabA", btc.Address)
	assert.Equal(t, "m/44'/0'/0'/0/0", btc.DerivationPath)
	assert.Equal(t, "BTC", btc.Currency)

	eth, err := env.addresses.GenerateAddress(ctx, 0, "ETH")
	require.NoError(t, err)
	assert.Equal(t, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", eth.Address)

	again, err := env.addresses.GenerateAddress(ctx, 0, "BTC")
	require.NoError(t, err)
	assert.Equal(t, btc.ID, again.ID)

	var n int64
	env.db.Model(&model.DepositAddress{}).Count(&n)
	assert.Equal(t, int64(2), n)

	other, err := env.addresses.GenerateAddress(ctx, 1, "BTC")
	require.NoError(t, err)
	assert.NotEqual(t, btc.Address, other.Address)
	assert.Equal(t, uint32(1), other.DerivationIndex)
}

func TestGenerateAddress_Unsupported(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.addresses.GenerateAddress(context.Background(), 1, "DOGE")
	if !errors.Is(err, chain.ErrUnsupportedCurrency) {
		t.Fatalf("期望 ErrUnsupportedCurrency, 实际: %v", err)
	}
}

func TestVerifyAddress(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ok, err := env.addresses.VerifyAddress(ctx, 0, "ETH", strings.ToLower(ethExternal))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = env.addresses.VerifyAddress(ctx, 1, "ETH", ethExternal)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = env.addresses.VerifyAddress(ctx, 0, "BTC", "not-an-address")
	require.NoError(t, err)
	assert.False(t, ok)
}
