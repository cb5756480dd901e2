package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"custody-core/internal/model"
	"custody-core/internal/service/mq"
	"custody-core/pkg/logger"
	"custody-core/pkg/monitor"
)

const (
	relayBatchSize   = 50
	relayMaxAttempts = 10
)

// RelayService 负责将本地消息表的消息搬运到 MQ
// 先发送后标记 SENT，至少一次投递，消费端需幂等
type RelayService struct {
	db       *gorm.DB
	producer mq.Producer
}

func NewRelayService(db *gorm.DB, producer mq.Producer) *RelayService {
	return &RelayService{db: db, producer: producer}
}

func (s *RelayService) Name() string { return "outbox_relay" }

// RunOnce 搬运一批，单条失败只累加重试次数
func (s *RelayService) RunOnce(ctx context.Context) error {
	// 1. 获取一批 Pending 消息
	var messages []model.OutboxMessage
	if err := s.db.WithContext(ctx).
		Where("status = ?", model.OutboxStatusPending).
		Order("id").Limit(relayBatchSize).
		Find(&messages).Error; err != nil {
		return fmt.Errorf("查询 outbox 失败: %w", err)
	}

	for i := range messages {
		msg := &messages[i]

		// 2. 发送 MQ
		if err := s.producer.Publish(ctx, msg.Topic, msg.Key, msg.Payload); err != nil {
			s.markFailedAttempt(ctx, msg, err)
			continue
		}

		// 3. 更新状态为 SENT，失败则下次重发
		if err := s.db.WithContext(ctx).Model(msg).Update("status", model.OutboxStatusSent).Error; err != nil {
			logger.Warn("[Relay] 更新状态失败", zap.Uint64("id", msg.ID), zap.Error(err))
			continue
		}
		monitor.Business.OutboxRelayedTotal.WithLabelValues(msg.Topic, "sent").Inc()
	}
	return nil
}

func (s *RelayService) markFailedAttempt(ctx context.Context, msg *model.OutboxMessage, cause error) {
	attempts := msg.Attempts + 1
	updates := map[string]interface{}{"attempts": attempts}
	result := "retry"
	if attempts >= relayMaxAttempts {
		updates["status"] = model.OutboxStatusFailed
		result = "failed"
	}
	if err := s.db.WithContext(ctx).Model(msg).Updates(updates).Error; err != nil {
		logger.Warn("[Relay] 更新重试次数失败", zap.Uint64("id", msg.ID), zap.Error(err))
	}
	monitor.Business.OutboxRelayedTotal.WithLabelValues(msg.Topic, result).Inc()
	logger.Warn("[Relay] 发送消息失败",
		zap.Uint64("id", msg.ID), zap.Int("attempts", attempts), zap.String("result", result), zap.Error(cause))
}
