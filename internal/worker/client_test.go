package worker

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custody-core/internal/worker/tasks"
)

func TestClient_EnqueueSkipsDuplicateTaskID(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })

	task := asynq.NewTask(tasks.TypeNotificationDeliver, []byte(`{"type":"deposit.credited"}`))

	info, err := c.Enqueue(task, asynq.TaskID("notify:custody_events_deposit:0-1"))
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "notify:custody_events_deposit:0-1", info.ID)

	// 同一事件重复投递
	info, err = c.Enqueue(task, asynq.TaskID("notify:custody_events_deposit:0-1"))
	assert.NoError(t, err)
	assert.Nil(t, info)

	info, err = c.Enqueue(task, asynq.TaskID("notify:custody_events_deposit:0-2"))
	require.NoError(t, err)
	assert.Equal(t, "notify:custody_events_deposit:0-2", info.ID)
}
