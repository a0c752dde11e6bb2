package domain

import (
	"context"
	"errors"
	"time"
)

// 事件类型
const (
	EventSimulationCompleted = "simulation.completed"
	EventSimulationRejected  = "simulation.rejected"
)

// SimulationEvent 计算完成或参数被拒绝时发出的事件；完成事件只携带报告摘要
type SimulationEvent struct {
	Type   string         `json:"type"`
	Module Module         `json:"module"`
	Report *ReportSummary `json:"report,omitempty"`
	// 拒绝原因
	Error      string    `json:"error,omitempty"`
	Field      string    `json:"field,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewCompletedEvent 计算完成事件
func NewCompletedEvent(report *Report) SimulationEvent {
	return SimulationEvent{
		Type:       EventSimulationCompleted,
		Module:     report.Module,
		Report:     report.Summary(),
		OccurredAt: time.Now(),
	}
}

// NewRejectedEvent 参数校验失败事件
func NewRejectedEvent(module Module, err error) SimulationEvent {
	ev := SimulationEvent{
		Type:       EventSimulationRejected,
		Module:     module,
		Error:      err.Error(),
		OccurredAt: time.Now(),
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		ev.Field = ve.Field
	}
	return ev
}

// EventPublisher 事件发布者接口
type EventPublisher interface {
	// Publish 发布计算事件，失败不影响计算结果
	Publish(ctx context.Context, event SimulationEvent) error
}

// ResultCache 计算结果缓存，值为序列化后的 Report
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}
