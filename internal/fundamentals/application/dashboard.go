package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/wyfcoding/insurancefundamentals/internal/fundamentals/domain"
	"github.com/wyfcoding/insurancefundamentals/pkg/logger"
)

var (
	// ErrDashboardStopped 事件循环已退出
	ErrDashboardStopped = errors.New("dashboard stopped")
	// ErrRecomputeFailed 重算过程中发生 panic
	ErrRecomputeFailed = errors.New("dashboard recompute failed")
)

const subscriberBuffer = 8

// ParameterChanged 仪表盘参数变更事件
type ParameterChanged struct {
	Module domain.Module   `json:"module"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Update 一次重算的结果；Err 非空时 Report 为该模块上一次成功的报告（可能为空）
type Update struct {
	Module domain.Module  `json:"module"`
	Report *domain.Report `json:"report,omitempty"`
	Err    error          `json:"-"`
}

// Dashboard 仪表盘事件循环
// 单个 goroutine 顺序消费参数变更事件并同步重算对应模块，积压的同模块事件只计算最后一个。
type Dashboard struct {
	service *SimulationService
	events  chan ParameterChanged
	done    chan struct{}

	mu          sync.RWMutex
	latest      map[domain.Module]*domain.Report
	subscribers map[int]chan Update
	nextID      int
}

// NewDashboard 创建仪表盘，buffer 为事件队列长度
func NewDashboard(service *SimulationService, buffer int) *Dashboard {
	if buffer < 1 {
		buffer = 1
	}
	return &Dashboard{
		service:     service,
		events:      make(chan ParameterChanged, buffer),
		done:        make(chan struct{}),
		latest:      make(map[domain.Module]*domain.Report),
		subscribers: make(map[int]chan Update),
	}
}

// Submit 提交参数变更事件，队列满时阻塞直到 ctx 取消或事件循环退出
func (d *Dashboard) Submit(ctx context.Context, ev ParameterChanged) error {
	if _, err := domain.ParseModule(string(ev.Module)); err != nil {
		return err
	}
	select {
	case <-d.done:
		return ErrDashboardStopped
	default:
	}
	select {
	case d.events <- ev:
		return nil
	case <-d.done:
		return ErrDashboardStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe 订阅重算结果，返回的函数用于取消订阅。
// 订阅者消费过慢时丢弃其更新，不阻塞事件循环。
func (d *Dashboard) Subscribe() (<-chan Update, func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextID
	d.nextID++
	ch := make(chan Update, subscriberBuffer)
	select {
	case <-d.done:
		close(ch)
		return ch, func() {}
	default:
	}
	d.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			if _, ok := d.subscribers[id]; ok {
				delete(d.subscribers, id)
				close(ch)
			}
		})
	}
}

// Latest 返回模块最近一次成功的报告
func (d *Dashboard) Latest(module domain.Module) (*domain.Report, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.latest[module]
	return r, ok
}

// Run 运行事件循环，ctx 取消时返回并关闭所有订阅；只能调用一次
func (d *Dashboard) Run(ctx context.Context) error {
	defer d.shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-d.events:
			for _, pending := range d.coalesce(ev) {
				d.recompute(ctx, pending)
			}
		}
	}
}

// coalesce 取出已积压的事件，同一模块只保留最后一次参数，保持首次出现的顺序
func (d *Dashboard) coalesce(first ParameterChanged) []ParameterChanged {
	batch := []ParameterChanged{first}
	index := map[domain.Module]int{first.Module: 0}
	for {
		select {
		case ev := <-d.events:
			if i, ok := index[ev.Module]; ok {
				batch[i] = ev
				continue
			}
			index[ev.Module] = len(batch)
			batch = append(batch, ev)
		default:
			return batch
		}
	}
}

func (d *Dashboard) recompute(ctx context.Context, ev ParameterChanged) {
	report, err := d.run(ctx, ev)

	d.mu.Lock()
	if err == nil {
		d.latest[ev.Module] = report
	} else {
		report = d.latest[ev.Module]
		logger.Info(ctx, "keeping previous dashboard view", "module", ev.Module, "error", err)
	}
	update := Update{Module: ev.Module, Report: report, Err: err}
	for id, ch := range d.subscribers {
		select {
		case ch <- update:
		default:
			logger.Warn(ctx, "dropping dashboard update for slow subscriber", "subscriber", id, "module", ev.Module)
		}
	}
	d.mu.Unlock()
}

// run 执行一次计算；计算中的 panic 只影响本次更新，不终止事件循环
func (d *Dashboard) run(ctx context.Context, ev ParameterChanged) (report *domain.Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "dashboard recompute panicked", "module", ev.Module, "panic", r)
			report, err = nil, fmt.Errorf("%w: %v", ErrRecomputeFailed, r)
		}
	}()
	return d.service.Run(ctx, ev.Module, ev.Params)
}

func (d *Dashboard) shutdown() {
	close(d.done)

	d.mu.Lock()
	defer d.mu.Unlock()
	for id, ch := range d.subscribers {
		delete(d.subscribers, id)
		close(ch)
	}
}
