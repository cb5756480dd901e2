package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"custody-core/internal/event"
	"custody-core/internal/service/mq"
	"custody-core/internal/worker/tasks"
	"custody-core/pkg/logger"
)

// TaskEnqueuer worker.Client 实现
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NotificationConsumer 订阅领域事件，转成异步通知任务
type NotificationConsumer struct {
	consumer mq.Consumer
	enqueuer TaskEnqueuer
}

func NewNotificationConsumer(consumer mq.Consumer, enqueuer TaskEnqueuer) *NotificationConsumer {
	return &NotificationConsumer{consumer: consumer, enqueuer: enqueuer}
}

// Start 订阅全部事件 topic
func (c *NotificationConsumer) Start(ctx context.Context) error {
	for _, topic := range event.AllTopics() {
		if err := c.consumer.Subscribe(ctx, topic, c.Handle); err != nil {
			return fmt.Errorf("订阅 %s 失败: %w", topic, err)
		}
	}
	return nil
}

// Handle 格式错误的消息直接丢弃，入队失败返回 error 让 MQ 重投
// TaskID 由 topic 和消息 ID 拼成，重投的同一条消息不会产生第二条通知
func (c *NotificationConsumer) Handle(msg *mq.Message) error {
	var env event.Envelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil || env.Type == "" {
		logger.Warn("[Notify] 无法解析的事件，丢弃", zap.String("topic", msg.Topic), zap.String("id", msg.ID))
		return nil
	}

	task, err := tasks.NewNotificationTask(env)
	if err != nil {
		return err
	}
	if _, err := c.enqueuer.Enqueue(task, asynq.TaskID(notificationTaskID(msg))); err != nil {
		return fmt.Errorf("通知入队失败: %w", err)
	}
	return nil
}

func notificationTaskID(msg *mq.Message) string {
	return "notify:" + msg.Topic + ":" + msg.ID
}
