package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher 把周期结果以事件形式对外发布，供外部监控消费。
// 发布是尽力而为的，失败不影响调度。
type Publisher interface {
	Publish(ctx context.Context, outcome *Outcome) error
	Close() error
}

// MemoryPublisher 把事件留在内存里，主要用于测试与默认关闭场景。
type MemoryPublisher struct {
	mu     sync.Mutex
	events []*Outcome
}

// NewMemoryPublisher 创建内存发布器。
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Publish 记录事件。
func (p *MemoryPublisher) Publish(_ context.Context, outcome *Outcome) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, outcome)
	return nil
}

// Events 返回已发布的事件。
func (p *MemoryPublisher) Events() []*Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Outcome, len(p.events))
	copy(out, p.events)
	return out
}

// Close 实现 Publisher 接口。
func (p *MemoryPublisher) Close() error { return nil }

// RabbitMQConfig 描述 RabbitMQ 事件发布的连接参数。
type RabbitMQConfig struct {
	URL   string
	Queue string
}

// RabbitMQPublisher 把周期结果发布到 RabbitMQ 队列。
type RabbitMQPublisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// NewRabbitMQPublisher 创建 RabbitMQ 发布器。
func NewRabbitMQPublisher(cfg RabbitMQConfig) (*RabbitMQPublisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("RabbitMQ URL 不能为空")
	}
	queue := cfg.Queue
	if queue == "" {
		queue = "openfarm.cycles"
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("连接 RabbitMQ 失败: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("创建 RabbitMQ channel 失败: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("声明 RabbitMQ 队列失败: %w", err)
	}
	return &RabbitMQPublisher{conn: conn, ch: ch, queue: queue}, nil
}

// Publish 把结果以 JSON 投递到队列。
func (p *RabbitMQPublisher) Publish(ctx context.Context, outcome *Outcome) error {
	if p == nil || p.ch == nil {
		return errors.New("RabbitMQ 发布器未初始化")
	}
	body, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("序列化周期事件失败: %w", err)
	}
	return p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   outcome.ID,
		Body:        body,
	})
}

// Close 释放连接。
func (p *RabbitMQPublisher) Close() error {
	if p == nil {
		return nil
	}
	var err error
	if p.ch != nil {
		err = errors.Join(err, p.ch.Close())
	}
	if p.conn != nil {
		err = errors.Join(err, p.conn.Close())
	}
	return err
}
