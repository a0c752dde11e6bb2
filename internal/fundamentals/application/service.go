// Package application 保险基础演示的用例层：参数校验、结果缓存、解读文字、指标与事件发布
package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wyfcoding/insurancefundamentals/internal/fundamentals/domain"
	"github.com/wyfcoding/insurancefundamentals/pkg/logger"
	"github.com/wyfcoding/insurancefundamentals/pkg/metrics"
)

const tracerName = "github.com/wyfcoding/insurancefundamentals/internal/fundamentals/application"

// 计算结果
const (
	outcomeOK      = "ok"
	outcomeInvalid = "invalid"
	outcomeError   = "error"
)

// SimulationService 计算应用服务
// 每次调用：校验 → 查缓存 → 计算 → 解读 → 记录指标 → 发布事件
type SimulationService struct {
	cache       domain.ResultCache
	publisher   domain.EventPublisher
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	defaultSeed *uint64
	defaults    Defaults
}

// Defaults 覆盖模块默认参数中的规模项，零值表示沿用模块默认值
type Defaults struct {
	MaxSampleSize int
	PoolingTrials int
	CapitalTrials int
}

// Option 服务选项
type Option func(*SimulationService)

// WithCache 启用结果缓存
func WithCache(c domain.ResultCache) Option {
	return func(s *SimulationService) { s.cache = c }
}

// WithPublisher 设置事件发布者
func WithPublisher(p domain.EventPublisher) Option {
	return func(s *SimulationService) { s.publisher = p }
}

// WithMetrics 设置指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *SimulationService) { s.metrics = m }
}

// WithTracer 设置 Tracer，默认使用全局 TracerProvider
func WithTracer(t trace.Tracer) Option {
	return func(s *SimulationService) { s.tracer = t }
}

// WithDefaultSeed 未指定种子的随机请求使用该种子
func WithDefaultSeed(seed uint64) Option {
	return func(s *SimulationService) { s.defaultSeed = &seed }
}

// WithDefaults 设置规模类参数的默认值
func WithDefaults(d Defaults) Option {
	return func(s *SimulationService) { s.defaults = d }
}

// NewSimulationService 创建计算应用服务
func NewSimulationService(opts ...Option) *SimulationService {
	s := &SimulationService{}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	return s
}

// LawOfLargeNumbers 大数定律演示
func (s *SimulationService) LawOfLargeNumbers(ctx context.Context, req domain.LawOfLargeNumbersRequest) (*domain.Report, error) {
	if req.Seed == nil {
		req.Seed = s.defaultSeed
	}
	return execute(ctx, s, domain.ModuleLawOfLargeNumbers, req, domain.SimulateLawOfLargeNumbers, InterpretLawOfLargeNumbers)
}

// RiskPooling 风险池演示
func (s *SimulationService) RiskPooling(ctx context.Context, req domain.RiskPoolingRequest) (*domain.Report, error) {
	if req.Seed == nil {
		req.Seed = s.defaultSeed
	}
	return execute(ctx, s, domain.ModuleRiskPooling, req, domain.SimulateRiskPooling, InterpretRiskPooling)
}

// BalanceSheet 资产负债表演示
func (s *SimulationService) BalanceSheet(ctx context.Context, req domain.BalanceSheetRequest) (*domain.Report, error) {
	return execute(ctx, s, domain.ModuleBalanceSheet, req, domain.BuildBalanceSheet, InterpretBalanceSheet)
}

// Premium 保费计算演示
func (s *SimulationService) Premium(ctx context.Context, req domain.PremiumRequest) (*domain.Report, error) {
	return execute(ctx, s, domain.ModulePremium, req, domain.CalculatePremium, InterpretPremium)
}

// Capital 资本作用演示
func (s *SimulationService) Capital(ctx context.Context, req domain.CapitalRequest) (*domain.Report, error) {
	if req.Seed == nil {
		req.Seed = s.defaultSeed
	}
	return execute(ctx, s, domain.ModuleCapital, req, domain.SimulateCapital, InterpretCapital)
}

// DefaultRequest 返回模块的默认参数，已应用服务级的规模默认值
func (s *SimulationService) DefaultRequest(module domain.Module) any {
	switch module {
	case domain.ModuleLawOfLargeNumbers:
		req := domain.DefaultLawOfLargeNumbersRequest()
		if s.defaults.MaxSampleSize > 0 {
			req.MaxSampleSize = s.defaults.MaxSampleSize
		}
		return &req
	case domain.ModuleRiskPooling:
		req := domain.DefaultRiskPoolingRequest()
		if s.defaults.PoolingTrials > 0 {
			req.Trials = s.defaults.PoolingTrials
		}
		return &req
	case domain.ModuleCapital:
		req := domain.DefaultCapitalRequest()
		if s.defaults.CapitalTrials > 0 {
			req.Trials = s.defaults.CapitalTrials
		}
		return &req
	case domain.ModuleBalanceSheet:
		req := domain.DefaultBalanceSheetRequest()
		return &req
	case domain.ModulePremium:
		req := domain.DefaultPremiumRequest()
		return &req
	default:
		return nil
	}
}

// Run 以 JSON 参数运行指定模块，参数覆盖在模块默认值之上；params 为空时使用默认值
func (s *SimulationService) Run(ctx context.Context, module domain.Module, params json.RawMessage) (*domain.Report, error) {
	req := s.DefaultRequest(module)
	if req == nil {
		_, err := domain.ParseModule(string(module))
		return nil, err
	}
	if err := decodeParams(params, req); err != nil {
		return nil, s.reject(ctx, module, err)
	}

	switch r := req.(type) {
	case *domain.LawOfLargeNumbersRequest:
		return s.LawOfLargeNumbers(ctx, *r)
	case *domain.RiskPoolingRequest:
		return s.RiskPooling(ctx, *r)
	case *domain.BalanceSheetRequest:
		return s.BalanceSheet(ctx, *r)
	case *domain.PremiumRequest:
		return s.Premium(ctx, *r)
	case *domain.CapitalRequest:
		return s.Capital(ctx, *r)
	default:
		return nil, fmt.Errorf("unsupported request type %T", req)
	}
}

func decodeParams(raw json.RawMessage, dst any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &domain.ValidationError{Field: "params", Reason: err.Error()}
	}
	return nil
}

// request 请求参数约束
type request interface {
	Validate() error
}

func execute[Req request, Res any](
	ctx context.Context,
	s *SimulationService,
	module domain.Module,
	req Req,
	compute func(Req) (*Res, error),
	interpret func(Req, *Res) []string,
) (*domain.Report, error) {
	ctx, span := s.tracer.Start(ctx, "simulation."+string(module), trace.WithAttributes(
		attribute.String("simulation.module", string(module)),
	))
	defer span.End()

	if err := req.Validate(); err != nil {
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, s.reject(ctx, module, err)
	}

	key, cacheable := cacheKey(module, req)
	if cacheable {
		if report, ok := lookup[Res](ctx, s, module, key); ok {
			span.SetAttributes(attribute.Bool("simulation.cached", true))
			return report, nil
		}
	}

	start := time.Now()
	result, err := compute(req)
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		if errors.Is(err, domain.ErrInvalidParameter) {
			return nil, s.reject(ctx, module, err)
		}
		s.recordSimulation(module, outcomeError, elapsed)
		logger.Error(ctx, "simulation failed", "module", module, "error", err)
		return nil, fmt.Errorf("%s simulation failed: %w", module, err)
	}

	report := &domain.Report{
		ID:             uuid.NewString(),
		Module:         module,
		Seed:           domain.ResultSeed(result),
		Result:         result,
		Interpretation: interpret(req, result),
		DurationMs:     float64(elapsed.Microseconds()) / 1000,
		CreatedAt:      time.Now().UTC(),
	}
	if report.Seed != nil {
		span.SetAttributes(attribute.String("simulation.seed", strconv.FormatUint(*report.Seed, 10)))
	}
	s.recordSimulation(module, outcomeOK, elapsed)
	logger.Debug(ctx, "simulation completed", "module", module, "report_id", report.ID, "duration_ms", report.DurationMs)

	if cacheable {
		s.store(ctx, key, report)
	}
	s.publish(ctx, domain.NewCompletedEvent(report))
	return report, nil
}

// cacheKey 确定性模块或显式指定种子的随机请求才可缓存
func cacheKey(module domain.Module, req any) (string, bool) {
	if seeded, ok := req.(domain.Seeded); ok && seeded.SeedValue() == nil {
		return "", false
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("fundamentals:%s:%016x", module, xxhash.Sum64(payload)), true
}

func lookup[Res any](ctx context.Context, s *SimulationService, module domain.Module, key string) (*domain.Report, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, found, err := s.cache.Get(ctx, key)
	if err != nil {
		logger.Warn(ctx, "result cache lookup failed", "module", module, "error", err)
		s.recordCacheLookup(module, "error")
		return nil, false
	}
	if !found {
		s.recordCacheLookup(module, "miss")
		return nil, false
	}

	report := &domain.Report{Result: new(Res)}
	if err := json.Unmarshal(data, report); err != nil {
		logger.Warn(ctx, "discarding corrupt cache entry", "module", module, "error", err)
		s.recordCacheLookup(module, "miss")
		return nil, false
	}
	report.Cached = true
	s.recordCacheLookup(module, "hit")
	return report, true
}

func (s *SimulationService) store(ctx context.Context, key string, report *domain.Report) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(report)
	if err != nil {
		logger.Warn(ctx, "failed to encode report for cache", "module", report.Module, "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, data); err != nil {
		logger.Warn(ctx, "result cache store failed", "module", report.Module, "error", err)
	}
}

// reject 记录校验失败并发布拒绝事件，原样返回错误
func (s *SimulationService) reject(ctx context.Context, module domain.Module, err error) error {
	field := ""
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		field = ve.Field
	}
	if s.metrics != nil {
		s.metrics.RecordValidationFailure(string(module), field)
	}
	s.recordSimulation(module, outcomeInvalid, 0)
	logger.Info(ctx, "simulation rejected", "module", module, "field", field, "error", err)
	s.publish(ctx, domain.NewRejectedEvent(module, err))
	return err
}

func (s *SimulationService) publish(ctx context.Context, event domain.SimulationEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		if s.metrics != nil {
			s.metrics.RecordPublishFailure("simulation_events")
		}
		logger.Warn(ctx, "failed to publish simulation event", "type", event.Type, "module", event.Module, "error", err)
	}
}

func (s *SimulationService) recordSimulation(module domain.Module, outcome string, elapsed time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordSimulation(string(module), outcome, elapsed.Seconds())
	}
}

func (s *SimulationService) recordCacheLookup(module domain.Module, result string) {
	if s.metrics != nil {
		s.metrics.RecordCacheLookup(string(module), result)
	}
}
