package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"custody-core/pkg/logger"
)

// RedisProducer 基于 Redis Streams (XADD)
type RedisProducer struct {
	client redis.UniversalClient
	maxLen int64
}

// NewRedisProducer maxLen > 0 时按近似长度裁剪 Stream
func NewRedisProducer(client redis.UniversalClient, maxLen int64) *RedisProducer {
	return &RedisProducer{client: client, maxLen: maxLen}
}

// Publish Stream 名即 topic
func (p *RedisProducer) Publish(ctx context.Context, topic string, key string, payload []byte) error {
	args := &redis.XAddArgs{
		Stream: topic,
		Values: map[string]interface{}{
			"key":     key,
			"payload": payload,
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		logger.Warn("[Redis MQ] Publish 失败", zap.String("topic", topic), zap.Error(err))
		return fmt.Errorf("redis xadd error: %w", err)
	}
	return nil
}

// Close 连接由调用方管理
func (p *RedisProducer) Close() error { return nil }

// RedisConsumer 基于 Consumer Group (XREADGROUP)
type RedisConsumer struct {
	client redis.UniversalClient
	group  string
	name   string
	block  time.Duration
}

func NewRedisConsumer(client redis.UniversalClient, group, name string) *RedisConsumer {
	return &RedisConsumer{client: client, group: group, name: name, block: 2 * time.Second}
}

// Subscribe 创建消费组 (如不存在) 后在后台消费
func (c *RedisConsumer) Subscribe(ctx context.Context, topic string, handler Handler) error {
	// XGROUP CREATE <stream> <group> 0 MKSTREAM
	err := c.client.XGroupCreateMkStream(ctx, topic, c.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("创建消费者组失败: %w", err)
	}

	logger.Info("[Redis MQ] 开始监听主题", zap.String("topic", topic), zap.String("group", c.group))
	go c.consumeLoop(ctx, topic, handler)
	return nil
}

func (c *RedisConsumer) consumeLoop(ctx context.Context, topic string, handler Handler) {
	for {
		if ctx.Err() != nil {
			return
		}

		// XREADGROUP GROUP <group> <consumer> BLOCK 2000 COUNT 10 STREAMS <topic> >
		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.name,
			Streams:  []string{topic, ">"},
			Count:    10,
			Block:    c.block,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("[Redis MQ] 读取消息错误", zap.String("topic", topic), zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, x := range stream.Messages {
				c.handle(ctx, topic, x, handler)
			}
		}
	}
}

func (c *RedisConsumer) handle(ctx context.Context, topic string, x redis.XMessage, handler Handler) {
	payload, ok := x.Values["payload"].(string)
	if !ok {
		logger.Warn("[Redis MQ] 消息格式错误: payload 缺失", zap.String("id", x.ID))
		c.ack(ctx, topic, x.ID)
		return
	}
	key, _ := x.Values["key"].(string)

	msg := &Message{ID: x.ID, Topic: topic, Key: key, Payload: []byte(payload)}
	if err := handler(msg); err != nil {
		// 不 ACK，留在 PEL 里
		logger.Warn("[Redis MQ] 消息处理失败", zap.String("id", x.ID), zap.Error(err))
		return
	}
	c.ack(ctx, topic, x.ID)
}

func (c *RedisConsumer) ack(ctx context.Context, topic, id string) {
	if err := c.client.XAck(ctx, topic, c.group, id).Err(); err != nil {
		logger.Warn("[Redis MQ] ACK 失败", zap.String("id", id), zap.Error(err))
	}
}

// Close 连接由调用方管理
func (c *RedisConsumer) Close() error { return nil }
