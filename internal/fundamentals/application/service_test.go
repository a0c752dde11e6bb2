package application

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/insurancefundamentals/internal/fundamentals/domain"
	"github.com/wyfcoding/insurancefundamentals/pkg/metrics"
)

type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, false, c.err
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memoryCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.SimulationEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev domain.SimulationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) snapshot() []domain.SimulationEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.SimulationEvent(nil), p.events...)
}

func TestSimulationService_PremiumDefaults(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewSimulationService(WithPublisher(pub))

	report, err := svc.Run(context.Background(), domain.ModulePremium, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.ModulePremium, report.Module)
	assert.NotEmpty(t, report.ID)
	assert.Nil(t, report.Seed)

	res, ok := report.Result.(*domain.PremiumResult)
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("571.43").Equal(res.Breakdown.Total))
	assert.Contains(t, report.Interpretation, "Final Premium: $571.43")
	assert.Contains(t, report.Interpretation, "Average Claim Severity: $8,000 (average cost when a claim occurs)")

	events := pub.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventSimulationCompleted, events[0].Type)
	require.NotNil(t, events[0].Report)
	assert.Equal(t, report.ID, events[0].Report.ID)
	assert.Equal(t, report.Interpretation, events[0].Report.Interpretation)
	assert.Equal(t, 571.43, events[0].Report.Headline["total"])
}

func TestSimulationService_RunOverlaysDefaults(t *testing.T) {
	svc := NewSimulationService()

	report, err := svc.Run(context.Background(), domain.ModuleBalanceSheet, json.RawMessage(`{"loss_ratios":["0.4","1.2"]}`))
	require.NoError(t, err)

	res := report.Result.(*domain.BalanceSheetResult)
	require.Len(t, res.Scenarios, 2)
	assert.True(t, res.Scenarios[0].Income.Premium.Equal(decimal.NewFromInt(100)))
	assert.False(t, res.Scenarios[1].Position.Solvent)
}

func TestSimulationService_ConfiguredDefaults(t *testing.T) {
	svc := NewSimulationService(WithDefaults(Defaults{MaxSampleSize: 200, CapitalTrials: 20}))

	report, err := svc.Run(context.Background(), domain.ModuleCapital, json.RawMessage(`{"seed": 3}`))
	require.NoError(t, err)
	assert.Equal(t, 20, report.Result.(*domain.CapitalResult).Trials)

	report, err = svc.Run(context.Background(), domain.ModuleCapital, json.RawMessage(`{"seed": 3, "trials": 30}`))
	require.NoError(t, err)
	assert.Equal(t, 30, report.Result.(*domain.CapitalResult).Trials)

	req := svc.DefaultRequest(domain.ModuleLawOfLargeNumbers).(*domain.LawOfLargeNumbersRequest)
	assert.Equal(t, 200, req.MaxSampleSize)
	assert.Nil(t, svc.DefaultRequest(domain.Module("reinsurance")))
}

func TestSimulationService_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		module domain.Module
		params string
		field  string
	}{
		{"unknown field", domain.ModuleCapital, `{"initial_capitol": 10}`, "params"},
		{"malformed json", domain.ModuleLawOfLargeNumbers, `{"probability":`, "params"},
		{"out of range", domain.ModuleLawOfLargeNumbers, `{"probability": 1.5}`, "probability"},
		{"zero policyholders", domain.ModuleRiskPooling, `{"policyholders": 0}`, "policyholders"},
		{"huge severity", domain.ModuleRiskPooling, `{"severity_mean": 1e160, "claim_probability": 0.5, "seed": 1}`, "severity_mean"},
		{"capital overflow", domain.ModuleCapital, `{"initial_capital": 1e12, "investment_return": 1, "years": 1000, "trials": 10, "seed": 1}`, "investment_return"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &recordingPublisher{}
			m := metrics.New("test")
			svc := NewSimulationService(WithPublisher(pub), WithMetrics(m))

			_, err := svc.Run(context.Background(), tt.module, json.RawMessage(tt.params))
			require.ErrorIs(t, err, domain.ErrInvalidParameter)

			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)

			events := pub.snapshot()
			require.Len(t, events, 1)
			assert.Equal(t, domain.EventSimulationRejected, events[0].Type)
			assert.Equal(t, tt.field, events[0].Field)

			assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationFailures.WithLabelValues(string(tt.module), tt.field)))
			assert.Equal(t, 1.0, testutil.ToFloat64(m.SimulationsTotal.WithLabelValues(string(tt.module), "invalid")))
		})
	}
}

func TestSimulationService_ReportsAlwaysEncode(t *testing.T) {
	svc := NewSimulationService()
	for _, params := range []string{
		`{"severity_mean": 1e12, "severity_std_dev": 1e12, "claim_probability": 1, "seed": 1}`,
		`{"severity_mean": 1e-300, "severity_std_dev": 1e12, "claim_probability": 1, "seed": 1}`,
	} {
		report, err := svc.Run(context.Background(), domain.ModuleRiskPooling, json.RawMessage(params))
		if err != nil {
			assert.ErrorIs(t, err, domain.ErrInvalidParameter, params)
			continue
		}
		_, err = json.Marshal(report)
		assert.NoError(t, err, params)
	}
}

func TestSimulationService_UnknownModule(t *testing.T) {
	_, err := NewSimulationService().Run(context.Background(), domain.Module("reinsurance"), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestSimulationService_CachesSeededRequests(t *testing.T) {
	cache := newMemoryCache()
	m := metrics.New("test")
	svc := NewSimulationService(WithCache(cache), WithMetrics(m))
	ctx := context.Background()

	seed := uint64(42)
	req := domain.LawOfLargeNumbersRequest{Probability: 0.05, MaxSampleSize: 1000, Seed: &seed}

	first, err := svc.LawOfLargeNumbers(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	require.NotNil(t, first.Seed)
	assert.Equal(t, seed, *first.Seed)
	assert.Equal(t, 1, cache.len())

	second, err := svc.LawOfLargeNumbers(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.ID, second.ID)

	a, err := json.Marshal(first.Result)
	require.NoError(t, err)
	b, err := json.Marshal(second.Result)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
	assert.Equal(t, first.Interpretation, second.Interpretation)

	_, ok := second.Result.(*domain.LawOfLargeNumbersResult)
	assert.True(t, ok)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("lln", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("lln", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SimulationsTotal.WithLabelValues("lln", "ok")))
}

func TestSimulationService_SkipsCacheForUnseededRequests(t *testing.T) {
	cache := newMemoryCache()
	svc := NewSimulationService(WithCache(cache))

	report, err := svc.Capital(context.Background(), domain.CapitalRequest{
		InitialCapital: 50, Premium: 100, ExpectedLossRatio: 0.65, LossRatioStdDev: 0.15,
		LossRatioFloor: 0.2, ExpenseRatio: 0.3, InvestmentReturn: 0.05, Years: 5, Trials: 50,
	})
	require.NoError(t, err)
	require.NotNil(t, report.Seed)
	assert.Zero(t, cache.len())
}

func TestSimulationService_DefaultSeed(t *testing.T) {
	cache := newMemoryCache()
	svc := NewSimulationService(WithCache(cache), WithDefaultSeed(7))

	a, err := svc.Run(context.Background(), domain.ModuleRiskPooling, json.RawMessage(`{"trials": 10}`))
	require.NoError(t, err)
	require.NotNil(t, a.Seed)
	assert.Equal(t, uint64(7), *a.Seed)
	assert.Equal(t, 1, cache.len())

	b, err := svc.Run(context.Background(), domain.ModuleRiskPooling, json.RawMessage(`{"trials": 10, "seed": 8}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(8), *b.Seed)
}

func TestSimulationService_CacheFailureFallsThrough(t *testing.T) {
	cache := newMemoryCache()
	cache.err = errors.New("connection refused")
	svc := NewSimulationService(WithCache(cache))

	report, err := svc.Premium(context.Background(), domain.DefaultPremiumRequest())
	require.NoError(t, err)
	assert.False(t, report.Cached)
}

func TestSimulationService_PublishFailureDoesNotFailRun(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	m := metrics.New("test")
	svc := NewSimulationService(WithPublisher(pub), WithMetrics(m))

	_, err := svc.Run(context.Background(), domain.ModuleBalanceSheet, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PublishFailures.WithLabelValues("simulation_events")))
}
