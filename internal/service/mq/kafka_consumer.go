package mq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"custody-core/pkg/logger"
)

// KafkaConsumer 实现 Consumer 接口，每个 topic 一个 Reader
type KafkaConsumer struct {
	brokers []string
	groupID string

	mu      sync.Mutex
	readers []*kafka.Reader
}

func NewKafkaConsumer(brokers []string, groupID string) *KafkaConsumer {
	return &KafkaConsumer{brokers: brokers, groupID: groupID}
}

// Subscribe 订阅 Kafka 主题
// GroupID 保证同组内同一分区只有一个消费者；新组从最早的消息开始，避免漏掉通知
func (c *KafkaConsumer) Subscribe(ctx context.Context, topic string, handler Handler) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     c.brokers,
		GroupID:     c.groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
		StartOffset: kafka.FirstOffset,
	})

	c.mu.Lock()
	c.readers = append(c.readers, reader)
	c.mu.Unlock()

	logger.Info("[Kafka MQ] 开始监听主题", zap.String("topic", topic), zap.String("group", c.groupID))
	go c.consumeLoop(ctx, reader, topic, handler)
	return nil
}

func (c *KafkaConsumer) consumeLoop(ctx context.Context, reader *kafka.Reader, topic string, handler Handler) {
	for {
		// 1. 读取 (阻塞直到有消息)
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("[Kafka MQ] 读取消息错误", zap.String("topic", topic), zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		// 2. 处理
		msg := &Message{
			ID:      fmt.Sprintf("%d/%d", m.Partition, m.Offset),
			Topic:   topic,
			Key:     string(m.Key),
			Payload: m.Value,
		}
		if err := handler(msg); err != nil {
			// Kafka 不支持单条 Nack，不提交 offset，下次重平衡后重新投递
			logger.Warn("[Kafka MQ] 业务处理失败", zap.String("id", msg.ID), zap.Error(err))
			continue
		}

		// 3. 手动提交 Offset
		if err := reader.CommitMessages(ctx, m); err != nil {
			logger.Warn("[Kafka MQ] 提交 Offset 失败", zap.Error(err))
		}
	}
}

func (c *KafkaConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for _, r := range c.readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.readers = nil
	return firstErr
}
