package mq

import "context"

// Message 代表一条通用的业务消息
type Message struct {
	ID      string // Redis Stream ID 或 Kafka partition/offset
	Topic   string
	Key     string // 分区键，同一实体的事件保持顺序
	Payload []byte // JSON
}

// Producer 生产者接口
type Producer interface {
	// Publish key 用于分区，空字符串则随机分区
	Publish(ctx context.Context, topic string, key string, payload []byte) error
	Close() error
}

// Handler 返回 error 表示处理失败，消息不会被确认
type Handler func(msg *Message) error

// Consumer 消费者接口
type Consumer interface {
	// Subscribe 非阻塞，消费循环在后台运行直到 ctx 取消
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}
