package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custody-core/internal/event"
	"custody-core/internal/service/mq"
	"custody-core/internal/worker/tasks"
)

type fakeConsumer struct {
	topics []string
}

func (c *fakeConsumer) Subscribe(_ context.Context, topic string, _ mq.Handler) error {
	c.topics = append(c.topics, topic)
	return nil
}

func (c *fakeConsumer) Close() error { return nil }

type fakeEnqueuer struct {
	err   error
	tasks []*asynq.Task
	opts  [][]asynq.Option
}

func (e *fakeEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.tasks = append(e.tasks, task)
	e.opts = append(e.opts, opts)
	return &asynq.TaskInfo{ID: "t1", Type: task.Type()}, nil
}

func TestNotificationConsumer_SubscribesAllTopics(t *testing.T) {
	consumer := &fakeConsumer{}
	nc := NewNotificationConsumer(consumer, &fakeEnqueuer{})
	require.NoError(t, nc.Start(context.Background()))
	assert.ElementsMatch(t, event.AllTopics(), consumer.topics)
}

func TestNotificationConsumer_Handle(t *testing.T) {
	enq := &fakeEnqueuer{}
	nc := NewNotificationConsumer(&fakeConsumer{}, enq)

	env, err := event.NewEnvelope(event.TypeDepositCredited, event.DepositCreditedEvent{DepositID: 3, UserID: 1})
	require.NoError(t, err)
	payload, err := json.Marshal(env)
	require.NoError(t, err)

	require.NoError(t, nc.Handle(&mq.Message{ID: "0/1", Topic: event.TopicDeposit, Payload: payload}))
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, tasks.TypeNotificationDeliver, enq.tasks[0].Type())
	require.Len(t, enq.opts[0], 1)
	assert.Equal(t, asynq.TaskIDOpt, enq.opts[0][0].Type())
	assert.Equal(t, "notify:"+event.TopicDeposit+":0/1", enq.opts[0][0].Value())

	// 坏消息丢弃，不重投
	assert.NoError(t, nc.Handle(&mq.Message{ID: "0/2", Topic: event.TopicDeposit, Payload: []byte("{oops")}))
	assert.Len(t, enq.tasks, 1)

	enq.err = errors.New("redis down")
	assert.Error(t, nc.Handle(&mq.Message{ID: "0/3", Topic: event.TopicDeposit, Payload: payload}))
}
