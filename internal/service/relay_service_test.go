package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custody-core/internal/event"
	"custody-core/internal/model"
)

type published struct {
	topic, key string
	payload    []byte
}

type fakeProducer struct {
	mu   sync.Mutex
	err  error
	sent []published
}

func (p *fakeProducer) Publish(_ context.Context, topic, key string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, published{topic: topic, key: key, payload: payload})
	return nil
}

func (p *fakeProducer) Close() error { return nil }

func TestRelay_PublishesInOrderAndMarksSent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.fund(t, 1, "1000")
	_, err := env.withdrawals.RequestWithdrawal(ctx, 1, usd(100), "BTC", btcExternal)
	require.NoError(t, err)
	_, err = env.addresses.GenerateAddress(ctx, 1, "ETH")
	require.NoError(t, err)

	producer := &fakeProducer{}
	relay := NewRelayService(env.db, producer)
	require.NoError(t, relay.RunOnce(ctx))

	require.Len(t, producer.sent, 1)
	assert.Equal(t, event.TopicWithdrawal, producer.sent[0].topic)
	assert.Equal(t, "1", producer.sent[0].key)

	var pending int64
	env.db.Model(&model.OutboxMessage{}).Where("status = ?", model.OutboxStatusPending).Count(&pending)
	assert.Zero(t, pending)

	// 已发送的不会重发
	require.NoError(t, relay.RunOnce(ctx))
	assert.Len(t, producer.sent, 1)
}

func TestRelay_FailedAfterMaxAttempts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, model.CreateOutboxMessage(env.db, event.TopicDeposit, "7", map[string]string{"type": "x"}))

	producer := &fakeProducer{err: errors.New("broker down")}
	relay := NewRelayService(env.db, producer)
	for i := 0; i < relayMaxAttempts-1; i++ {
		require.NoError(t, relay.RunOnce(ctx))
	}

	var msg model.OutboxMessage
	require.NoError(t, env.db.First(&msg).Error)
	assert.Equal(t, model.OutboxStatusPending, msg.Status)
	assert.Equal(t, relayMaxAttempts-1, msg.Attempts)

	require.NoError(t, relay.RunOnce(ctx))
	require.NoError(t, env.db.First(&msg).Error)
	assert.Equal(t, model.OutboxStatusFailed, msg.Status)

	// FAILED 不再重试
	producer.err = nil
	require.NoError(t, relay.RunOnce(ctx))
	assert.Empty(t, producer.sent)
}
