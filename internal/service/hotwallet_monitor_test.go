package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custody-core/internal/event"
	"custody-core/internal/model"
)

func alertLevels(t *testing.T, env *testEnv, currency string) []string {
	t.Helper()
	var rows []model.HotWalletAlert
	require.NoError(t, env.db.Where("currency = ?", currency).Order("id").Find(&rows).Error)
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Level)
	}
	return out
}

func TestHotWallet_CriticalAlertWithCooldown(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.eth.client.setBalance(env.hotAddress(t, env.eth), "0.5")

	bal, err := env.hotwallet.Sample(ctx, env.eth)
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.RequireFromString("0.5")))
	assert.Equal(t, []string{model.AlertLevelCritical}, alertLevels(t, env, "ETH"))
	assert.Contains(t, env.outboxTypes(t), event.TypeHotWalletAlert)

	// 冷却期内只记采样
	env.clock.Add(30 * time.Minute)
	_, err = env.hotwallet.Sample(ctx, env.eth)
	require.NoError(t, err)
	assert.Len(t, alertLevels(t, env, "ETH"), 1)

	env.clock.Add(31 * time.Minute)
	_, err = env.hotwallet.Sample(ctx, env.eth)
	require.NoError(t, err)
	assert.Len(t, alertLevels(t, env, "ETH"), 2)

	var samples int64
	env.db.Model(&model.HotWalletBalanceSample{}).Count(&samples)
	assert.Equal(t, int64(3), samples)
}

func TestHotWallet_WarningAndHealthy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.btc.client.setBalance(env.hotAddress(t, env.btc), "0.3")
	env.eth.client.setBalance(env.hotAddress(t, env.eth), "10")

	require.NoError(t, env.hotwallet.RunOnce(ctx))
	assert.Equal(t, []string{model.AlertLevelWarning}, alertLevels(t, env, "BTC"))
	assert.Empty(t, alertLevels(t, env, "ETH"))
}

func TestHotWallet_RefillAndSufficiency(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	hot := env.hotAddress(t, env.btc)
	env.btc.client.setBalance(hot, "0.05")

	rec, err := env.hotwallet.GetRefillRecommendation(ctx, "btc")
	require.NoError(t, err)
	assert.Equal(t, "BTC", rec.Currency)
	assert.Equal(t, hot, rec.Address)
	assert.True(t, rec.Amount.Equal(decimal.RequireFromString("1.95")), "amount = %s", rec.Amount)

	env.btc.client.setBalance(hot, "3")
	rec, err = env.hotwallet.GetRefillRecommendation(ctx, "BTC")
	require.NoError(t, err)
	assert.True(t, rec.Amount.IsZero())

	ok, err := env.hotwallet.HasSufficientBalance(ctx, "BTC", decimal.NewFromInt(3))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = env.hotwallet.HasSufficientBalance(ctx, "BTC", decimal.RequireFromString("3.00000001"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = env.hotwallet.GetRefillRecommendation(ctx, "DOGE")
	assert.Error(t, err)

	snap := env.hotwallet.Snapshot(ctx)
	assert.True(t, snap["BTC"].Equal(decimal.NewFromInt(3)))
	assert.Contains(t, snap, "ETH")
}
