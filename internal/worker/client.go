package worker

import (
	"errors"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"custody-core/pkg/logger"
)

// Client 通知任务入队端，由 NotificationConsumer 调用
// MQ 至少一次投递，同一事件可能被重复消费，靠 TaskID 在队列侧去重
type Client struct {
	client *asynq.Client
}

// NewClient addr: "localhost:6379"，与 MQ 共用同一个 Redis
func NewClient(addr string, password string, db int) *Client {
	return &Client{client: asynq.NewClient(asynq.RedisClientOpt{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

// Enqueue 入队通知任务
// TaskID 已存在说明这条事件之前入过队，视为成功，返回的 TaskInfo 为 nil
func (c *Client) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	info, err := c.client.Enqueue(task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		logger.Debug("[Worker] 通知已入队，跳过重复投递", zap.String("type", task.Type()))
		return nil, nil
	}
	return info, err
}

func (c *Client) Close() error {
	return c.client.Close()
}
