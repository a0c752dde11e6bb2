package domain

import (
	"math"
	"math/rand/v2"
	"slices"

	"github.com/montanaflynn/stats"
)

const (
	// MaxPolicyholders 单个风险池的人数上限
	MaxPolicyholders = 100_000
	// maxPoolingDraws 池规模曲线的总抽样次数上限
	maxPoolingDraws      = 50_000_000
	poolingHistogramBins = 10
)

// poolCurveSizes 池规模曲线的固定刻度
var poolCurveSizes = []int{1, 10, 100, 1000}

// RiskPoolingRequest 风险池演示参数
type RiskPoolingRequest struct {
	// 投保人数 M
	Policyholders int `json:"policyholders"`
	// 每位投保人的出险概率
	ClaimProbability float64 `json:"claim_probability"`
	// 理赔金额均值
	SeverityMean float64 `json:"severity_mean"`
	// 理赔金额标准差，0 表示固定金额，大于 0 时按对数正态分布抽样
	SeverityStdDev float64 `json:"severity_std_dev"`
	// 池规模曲线每个刻度的重复次数
	Trials int     `json:"trials"`
	Seed   *uint64 `json:"seed,omitempty"`
}

// DefaultRiskPoolingRequest 仪表盘默认参数
func DefaultRiskPoolingRequest() RiskPoolingRequest {
	return RiskPoolingRequest{
		Policyholders:    100,
		ClaimProbability: 0.05,
		SeverityMean:     20000,
		Trials:           200,
	}
}

func (r RiskPoolingRequest) SeedValue() *uint64 { return r.Seed }

// Validate 校验参数
func (r RiskPoolingRequest) Validate() error {
	if r.Policyholders < 1 {
		return invalid("policyholders", "must be at least 1, got %d", r.Policyholders)
	}
	if r.Policyholders > MaxPolicyholders {
		return invalid("policyholders", "must not exceed %d, got %d", MaxPolicyholders, r.Policyholders)
	}
	if err := checkProbability("claim_probability", r.ClaimProbability); err != nil {
		return err
	}
	if err := checkRange("severity_mean", r.SeverityMean, 0, MaxAmount); err != nil {
		return err
	}
	if err := checkRange("severity_std_dev", r.SeverityStdDev, 0, MaxAmount); err != nil {
		return err
	}
	if r.SeverityStdDev > 0 && r.SeverityMean == 0 {
		return invalid("severity_std_dev", "must be 0 when severity_mean is 0")
	}
	if r.Trials < 1 {
		return invalid("trials", "must be at least 1, got %d", r.Trials)
	}
	draws := 0
	for _, n := range r.curveSizes() {
		draws += n
	}
	if int64(draws)*int64(r.Trials) > maxPoolingDraws {
		return invalid("trials", "%d trials over pool sizes up to %d exceed the simulation budget", r.Trials, r.Policyholders)
	}
	return nil
}

// curveSizes 固定刻度与 M 的并集，升序
func (r RiskPoolingRequest) curveSizes() []int {
	sizes := append([]int(nil), poolCurveSizes...)
	if !slices.Contains(sizes, r.Policyholders) {
		sizes = append(sizes, r.Policyholders)
	}
	slices.Sort(sizes)
	return sizes
}

// SingleLossVariance 单个投保人损失的理论方差：p(s²+μ²) - (pμ)²
func (r RiskPoolingRequest) SingleLossVariance() float64 {
	p, mu, s := r.ClaimProbability, r.SeverityMean, r.SeverityStdDev
	return p*(s*s+mu*mu) - (p*mu)*(p*mu)
}

// LossSummary 损失样本的汇总统计
type LossSummary struct {
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
	StdDev   float64 `json:"std_dev"`
}

// PoolSizePoint 某一池规模下池均损失的分布
type PoolSizePoint struct {
	PoolSize            int     `json:"pool_size"`
	MeanOfAverage       float64 `json:"mean_of_average"`
	Variance            float64 `json:"variance"`
	TheoreticalVariance float64 `json:"theoretical_variance"`
}

// RiskPoolingResult 风险池演示结果
type RiskPoolingResult struct {
	Seed          uint64    `json:"seed"`
	Policyholders int       `json:"policyholders"`
	Losses        []float64 `json:"losses"`
	// Individual 单个投保人损失的样本统计
	Individual  LossSummary `json:"individual"`
	PoolAverage float64     `json:"pool_average"`

	NumWithLoss     int     `json:"num_with_loss"`
	PercentWithLoss float64 `json:"percent_with_loss"`
	// FairPremium 纯保费 p·E[severity]
	FairPremium  float64 `json:"fair_premium"`
	TotalPremium float64 `json:"total_premium"`
	TotalLosses  float64 `json:"total_losses"`
	// PoolPerformance 实际/预期，即 TotalLosses / TotalPremium
	PoolPerformance float64 `json:"pool_performance"`
	// Surplus 保费减损失，负数表示亏损
	Surplus float64 `json:"surplus"`

	Histogram          []Bin           `json:"histogram"`
	SingleLossVariance float64         `json:"single_loss_variance"`
	PoolSizeCurve      []PoolSizePoint `json:"pool_size_curve"`
}

// lossSampler 单个投保人损失的抽样器
type lossSampler struct {
	p        float64
	mean     float64
	logMu    float64
	logSigma float64
	fixed    bool
}

func newLossSampler(req RiskPoolingRequest) lossSampler {
	s := lossSampler{p: req.ClaimProbability, mean: req.SeverityMean, fixed: req.SeverityStdDev == 0}
	if !s.fixed {
		ratio := req.SeverityStdDev / req.SeverityMean
		variance := math.Log1p(ratio * ratio)
		s.logSigma = math.Sqrt(variance)
		s.logMu = math.Log(req.SeverityMean) - variance/2
	}
	return s
}

func (s lossSampler) draw(r *rand.Rand) float64 {
	if r.Float64() >= s.p {
		return 0
	}
	if s.fixed {
		return s.mean
	}
	return math.Exp(s.logMu + s.logSigma*r.NormFloat64())
}

// SimulateRiskPooling 抽取 M 个投保人的损失并比较个体损失与池均损失的波动
func SimulateRiskPooling(req RiskPoolingRequest) (*RiskPoolingResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	seed := resolveSeed(req.Seed)
	r := newRand(seed)
	sampler := newLossSampler(req)

	losses := make(stats.Float64Data, req.Policyholders)
	numWithLoss := 0
	for i := range losses {
		losses[i] = sampler.draw(r)
		if losses[i] > 0 {
			numWithLoss++
		}
	}

	individual, err := summarize(losses)
	if err != nil {
		return nil, err
	}
	total, err := losses.Sum()
	if err != nil {
		return nil, err
	}

	fairPremium := req.ClaimProbability * req.SeverityMean
	totalPremium := fairPremium * float64(req.Policyholders)
	performance := 0.0
	if totalPremium > 0 {
		performance = total / totalPremium
	}

	curve, err := poolSizeCurve(r, sampler, req)
	if err != nil {
		return nil, err
	}
	// 均值极小而标准差很大时对数正态参数会溢出
	if err := checkFinite("severity_std_dev", individual.Variance, total, req.SingleLossVariance()); err != nil {
		return nil, err
	}
	for _, p := range curve {
		if err := checkFinite("severity_std_dev", p.Variance, p.TheoreticalVariance); err != nil {
			return nil, err
		}
	}

	return &RiskPoolingResult{
		Seed:               seed,
		Policyholders:      req.Policyholders,
		Losses:             losses,
		Individual:         individual,
		PoolAverage:        individual.Mean,
		NumWithLoss:        numWithLoss,
		PercentWithLoss:    100 * float64(numWithLoss) / float64(req.Policyholders),
		FairPremium:        fairPremium,
		TotalPremium:       totalPremium,
		TotalLosses:        total,
		PoolPerformance:    performance,
		Surplus:            totalPremium - total,
		Histogram:          histogram(losses, poolingHistogramBins),
		SingleLossVariance: req.SingleLossVariance(),
		PoolSizeCurve:      curve,
	}, nil
}

// poolSizeCurve 对每个池规模重复 Trials 次，度量池均损失的方差，理论值为 σ²/M
func poolSizeCurve(r *rand.Rand, sampler lossSampler, req RiskPoolingRequest) ([]PoolSizePoint, error) {
	sigma2 := req.SingleLossVariance()
	sizes := req.curveSizes()
	out := make([]PoolSizePoint, 0, len(sizes))

	averages := make(stats.Float64Data, req.Trials)
	for _, n := range sizes {
		for t := range averages {
			sum := 0.0
			for i := 0; i < n; i++ {
				sum += sampler.draw(r)
			}
			averages[t] = sum / float64(n)
		}

		mean, err := averages.Mean()
		if err != nil {
			return nil, err
		}
		variance, err := averages.PopulationVariance()
		if err != nil {
			return nil, err
		}
		out = append(out, PoolSizePoint{
			PoolSize:            n,
			MeanOfAverage:       mean,
			Variance:            variance,
			TheoreticalVariance: sigma2 / float64(n),
		})
	}
	return out, nil
}

func summarize(data stats.Float64Data) (LossSummary, error) {
	mean, err := data.Mean()
	if err != nil {
		return LossSummary{}, err
	}
	variance, err := data.PopulationVariance()
	if err != nil {
		return LossSummary{}, err
	}
	return LossSummary{Mean: mean, Variance: variance, StdDev: math.Sqrt(variance)}, nil
}
