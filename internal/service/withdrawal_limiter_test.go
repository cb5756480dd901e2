package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usd(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// 日限额 10000，已提 9500，再提 700 被拒，剩余 500
func TestLimiter_DailyLimitExceeded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.limiter.RecordWithdrawal(ctx, 9, usd(9500)))

	err := env.limiter.CheckLimit(ctx, 9, usd(700))
	var le *LimitExceededError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, LimitReasonDaily, le.Reason)
	assert.True(t, le.Remaining.Equal(usd(500)), "remaining = %s", le.Remaining)

	assert.NoError(t, env.limiter.CheckLimit(ctx, 9, usd(500)))

	// 跨过 UTC 零点后日额度重置，月额度保留
	env.clock.Add(24 * time.Hour)
	assert.NoError(t, env.limiter.CheckLimit(ctx, 9, usd(700)))
	rec, err := env.limiter.GetLimits(ctx, 9)
	require.NoError(t, err)
	assert.True(t, rec.DailyWithdrawn.IsZero())
	assert.True(t, rec.MonthlyWithdrawn.Equal(usd(9500)))
}

func TestLimiter_MonthlyLimitAndReset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	l := NewWithdrawalLimiter(env.db, LimitConfig{
		BaseDaily:      usd(10000),
		BaseMonthly:    usd(15000),
		VIPMultipliers: []decimal.Decimal{usd(1)},
	}, env.clock)

	require.NoError(t, l.RecordWithdrawal(ctx, 1, usd(9000)))
	env.clock.Add(24 * time.Hour)

	err := l.CheckLimit(ctx, 1, usd(7000))
	var le *LimitExceededError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, LimitReasonMonthly, le.Reason)
	assert.True(t, le.Remaining.Equal(usd(6000)))

	// 3 月 16 日 -> 4 月 1 日
	env.clock.Add(16 * 24 * time.Hour)
	assert.NoError(t, l.CheckLimit(ctx, 1, usd(7000)))
}

func TestLimiter_RefundFloorsAtZero(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.limiter.RecordWithdrawal(ctx, 2, usd(100)))
	require.NoError(t, env.limiter.RefundWithdrawal(ctx, 2, usd(300)))

	rec, err := env.limiter.GetLimits(ctx, 2)
	require.NoError(t, err)
	assert.True(t, rec.DailyWithdrawn.IsZero())
	assert.True(t, rec.MonthlyWithdrawn.IsZero())
}

func TestLimiter_SetVIPTier(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec, err := env.limiter.SetVIPTier(ctx, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.VIPTier)
	assert.True(t, rec.DailyLimit.Equal(usd(20000)))
	assert.True(t, rec.MonthlyLimit.Equal(usd(200000)))

	assert.NoError(t, env.limiter.CheckLimit(ctx, 4, usd(15000)))

	_, err = env.limiter.SetVIPTier(ctx, 4, 5)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}
