// Package messaging 计算事件的发布实现：Kafka、日志与组合发布者
package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wyfcoding/insurancefundamentals/internal/fundamentals/domain"
	"github.com/wyfcoding/insurancefundamentals/pkg/logger"
)

// MessageSender 消息发送接口，由 mq.KafkaProducer 实现
type MessageSender interface {
	SendMessage(ctx context.Context, topic string, key string, value any) error
}

// BreakerConfig 熔断配置
type BreakerConfig struct {
	// 连续失败多少次后熔断
	ConsecutiveFailures uint32
	// 熔断后多久进入半开状态
	OpenTimeout time.Duration
}

// KafkaPublisher 将计算事件发布到 Kafka，消息 key 为模块名。
// broker 不可用时熔断，避免每次计算都等待写超时。
type KafkaPublisher struct {
	sender  MessageSender
	topic   string
	breaker *gobreaker.CircuitBreaker
}

// NewKafkaPublisher 创建 Kafka 事件发布者
func NewKafkaPublisher(sender MessageSender, topic string, cfg BreakerConfig) *KafkaPublisher {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "kafka:" + topic,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(context.Background(), "event publisher circuit state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &KafkaPublisher{sender: sender, topic: topic, breaker: breaker}
}

// Publish 发布事件
func (p *KafkaPublisher) Publish(ctx context.Context, event domain.SimulationEvent) error {
	_, err := p.breaker.Execute(func() (interface{}, error) {
		return nil, p.sender.SendMessage(ctx, p.topic, string(event.Module), event)
	})
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", event.Type, p.topic, err)
	}
	return nil
}

// State 熔断器状态
func (p *KafkaPublisher) State() gobreaker.State {
	return p.breaker.State()
}

// LogPublisher 将事件写入结构化日志，未配置 broker 时使用
type LogPublisher struct{}

// Publish 发布事件
func (LogPublisher) Publish(ctx context.Context, event domain.SimulationEvent) error {
	args := []any{"type", event.Type, "module", event.Module}
	if event.Report != nil {
		args = append(args, "report_id", event.Report.ID, "duration_ms", event.Report.DurationMs)
	}
	if event.Error != "" {
		args = append(args, "error", event.Error, "field", event.Field)
	}
	logger.Info(ctx, "simulation event", args...)
	return nil
}

// MultiPublisher 依次发布到多个发布者，汇总全部错误
type MultiPublisher []domain.EventPublisher

// Publish 发布事件
func (m MultiPublisher) Publish(ctx context.Context, event domain.SimulationEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
