package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"custody-core/internal/event"
	"custody-core/pkg/logger"
)

// 任务类型常量
const (
	TypeNotificationDeliver = "notification:deliver"
)

// 队列
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
)

// NewNotificationTask 把领域事件包装成通知任务
// 热钱包告警走 critical 队列
func NewNotificationTask(env event.Envelope) (*asynq.Task, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	queue := QueueDefault
	if env.Type == event.TypeHotWalletAlert {
		queue = QueueCritical
	}
	return asynq.NewTask(TypeNotificationDeliver, payload,
		asynq.MaxRetry(5),
		asynq.Timeout(time.Minute),
		asynq.Queue(queue),
	), nil
}

// HandleNotificationTask 通知内容与渠道不在本服务范围内，这里只记录
func HandleNotificationTask(ctx context.Context, t *asynq.Task) error {
	var env event.Envelope
	if err := json.Unmarshal(t.Payload(), &env); err != nil {
		// 解析失败重试也没用，直接进入 Archived 队列
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	logger.Info("[Notify] 投递通知",
		zap.String("type", env.Type),
		zap.Time("occurred_at", env.OccurredAt),
		zap.ByteString("data", env.Data),
	)
	return nil
}
