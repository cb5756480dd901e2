package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custody-core/internal/model"
)

func TestCron_PruneSamples(t *testing.T) {
	env := newTestEnv(t)
	now := env.clock.Now().UTC()
	for _, age := range []time.Duration{48 * time.Hour, 25 * time.Hour, time.Hour} {
		require.NoError(t, env.db.Create(&model.HotWalletBalanceSample{
			Currency:  "BTC",
			Address:   "hot",
			Balance:   decimal.NewFromInt(1),
			SampledAt: now.Add(-age),
		}).Error)
	}

	s := NewCronService(env.db, nil, nil, 24*time.Hour)
	s.clock = env.clock
	s.PruneSamples()

	var left []model.HotWalletBalanceSample
	require.NoError(t, env.db.Find(&left).Error)
	require.Len(t, left, 1)
	assert.WithinDuration(t, now.Add(-time.Hour), left[0].SampledAt, time.Second)

	n, err := s.pruneSamplesBefore(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
