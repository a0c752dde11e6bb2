// Package metrics 提供 Prometheus 指标集合：HTTP 请求、模拟计算、参数校验、结果缓存与事件发布
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "insurance"

// Metrics 指标集合
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求计数
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时
	HTTPRequestDuration *prometheus.HistogramVec

	// 模拟计算次数，按模块与结果（ok, invalid, error）区分
	SimulationsTotal *prometheus.CounterVec
	// 模拟计算耗时
	SimulationDuration *prometheus.HistogramVec
	// 参数校验失败次数
	ValidationFailures *prometheus.CounterVec

	// 结果缓存命中/未命中
	CacheLookups *prometheus.CounterVec
	// 事件发布失败次数
	PublishFailures *prometheus.CounterVec
}

// New 创建指标实例，使用独立的 Registry 并注册 Go 运行时与进程指标
func New(serviceName string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		SimulationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "simulations_total",
			Help:      "Total simulation runs by module and outcome",
		}, []string{"module", "outcome"}),
		SimulationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "simulation_duration_seconds",
			Help:      "Simulation duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"module"}),
		ValidationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "validation_failures_total",
			Help:      "Rejected simulation requests by module and field",
		}, []string{"module", "field"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by module and result",
		}, []string{"module", "result"}),
		PublishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "publish_failures_total",
			Help:      "Failed simulation event publications by publisher",
		}, []string{"publisher"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SimulationsTotal,
		m.SimulationDuration,
		m.ValidationFailures,
		m.CacheLookups,
		m.PublishFailures,
	)
	return m
}

// Registry 返回底层 Registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回 Prometheus 抓取端点
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, route, status string, seconds float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(seconds)
}

// RecordSimulation 记录一次模拟计算
func (m *Metrics) RecordSimulation(module, outcome string, seconds float64) {
	m.SimulationsTotal.WithLabelValues(module, outcome).Inc()
	if outcome == "ok" {
		m.SimulationDuration.WithLabelValues(module).Observe(seconds)
	}
}

// RecordValidationFailure 记录参数校验失败
func (m *Metrics) RecordValidationFailure(module, field string) {
	m.ValidationFailures.WithLabelValues(module, field).Inc()
}

// RecordCacheLookup 记录缓存查询结果（hit, miss, error）
func (m *Metrics) RecordCacheLookup(module, result string) {
	m.CacheLookups.WithLabelValues(module, result).Inc()
}

// RecordPublishFailure 记录事件发布失败
func (m *Metrics) RecordPublishFailure(publisher string) {
	m.PublishFailures.WithLabelValues(publisher).Inc()
}
