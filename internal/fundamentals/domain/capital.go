package domain

import (
	"math"
	"slices"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"
)

const (
	// MaxCapitalTrials 模拟公司数量上限
	MaxCapitalTrials = 100_000
	// MaxCapitalYears 模拟年限上限
	MaxCapitalYears = 1000
	// maxCapitalDraws 赔付率抽样总量上限（trials × years）
	maxCapitalDraws = 5_000_000
	// MaxCapitalRatio 赔付率、费用率等比率参数上限
	MaxCapitalRatio = 10.0
	// MaxInvestmentReturn 年投资收益率上限
	MaxInvestmentReturn = 1.0
)

// CapitalRequest 资本作用演示参数，金额单位为百万美元
type CapitalRequest struct {
	InitialCapital    float64 `json:"initial_capital"`
	Premium           float64 `json:"premium"`
	ExpectedLossRatio float64 `json:"expected_loss_ratio"`
	LossRatioStdDev   float64 `json:"loss_ratio_std_dev"`
	// 赔付率下限
	LossRatioFloor   float64 `json:"loss_ratio_floor"`
	ExpenseRatio     float64 `json:"expense_ratio"`
	InvestmentReturn float64 `json:"investment_return"`
	Years            int     `json:"years"`
	Trials           int     `json:"trials"`
	// CapitalLevels 破产概率曲线的资本刻度，为空时使用 10 至 100，步长 10
	CapitalLevels []float64 `json:"capital_levels,omitempty"`
	Seed          *uint64   `json:"seed,omitempty"`
}

// DefaultCapitalRequest 仪表盘默认参数
func DefaultCapitalRequest() CapitalRequest {
	return CapitalRequest{
		InitialCapital:    50,
		Premium:           100,
		ExpectedLossRatio: 0.65,
		LossRatioStdDev:   0.15,
		LossRatioFloor:    0.20,
		ExpenseRatio:      0.30,
		InvestmentReturn:  0.05,
		Years:             10,
		Trials:            500,
	}
}

func (r CapitalRequest) SeedValue() *uint64 { return r.Seed }

// Validate 校验参数
func (r CapitalRequest) Validate() error {
	for _, c := range []struct {
		field string
		value float64
		max   float64
	}{
		{"initial_capital", r.InitialCapital, MaxAmount},
		{"premium", r.Premium, MaxAmount},
		{"expected_loss_ratio", r.ExpectedLossRatio, MaxCapitalRatio},
		{"loss_ratio_std_dev", r.LossRatioStdDev, MaxCapitalRatio},
		{"loss_ratio_floor", r.LossRatioFloor, MaxCapitalRatio},
		{"expense_ratio", r.ExpenseRatio, MaxCapitalRatio},
		{"investment_return", r.InvestmentReturn, MaxInvestmentReturn},
	} {
		if err := checkNonNegative(c.field, c.value); err != nil {
			return err
		}
		if err := checkRange(c.field, c.value, 0, c.max); err != nil {
			return err
		}
	}
	if r.Trials < 1 {
		return invalid("trials", "must be at least 1, got %d", r.Trials)
	}
	if r.Trials > MaxCapitalTrials {
		return invalid("trials", "must not exceed %d, got %d", MaxCapitalTrials, r.Trials)
	}
	if r.Years < 1 {
		return invalid("years", "must be at least 1, got %d", r.Years)
	}
	if r.Years > MaxCapitalYears {
		return invalid("years", "must not exceed %d, got %d", MaxCapitalYears, r.Years)
	}
	if int64(r.Trials)*int64(r.Years) > maxCapitalDraws {
		return invalid("trials", "%d trials over %d years exceed the simulation budget", r.Trials, r.Years)
	}
	for _, level := range r.CapitalLevels {
		if err := checkRange("capital_levels", level, 0, MaxAmount); err != nil {
			return err
		}
	}
	return nil
}

// levels 破产概率曲线的资本刻度（含初始资本），升序去重
func (r CapitalRequest) levels() []float64 {
	levels := append([]float64(nil), r.CapitalLevels...)
	if len(levels) == 0 {
		for c := 10; c <= 100; c += 10 {
			levels = append(levels, float64(c))
		}
	}
	levels = append(levels, r.InitialCapital)
	slices.Sort(levels)
	return slices.Compact(levels)
}

// CapitalResult 资本作用演示结果
type CapitalResult struct {
	Seed           uint64  `json:"seed"`
	InitialCapital float64 `json:"initial_capital"`
	Years          int     `json:"years"`
	Trials         int     `json:"trials"`
	// SurvivalRate 在全部年限内未破产的公司比例
	SurvivalRate    float64 `json:"survival_rate"`
	RuinProbability float64 `json:"ruin_probability"`
	// AverageYearsSurvived 破产前完整经营的平均年数。
	// 破产当年不计入，最后一年破产也算破产，因此数值比原仪表盘（把破产当年计为存活）低。
	AverageYearsSurvived float64 `json:"average_years_survived"`
	// AverageFinalCapital 存活公司的期末资本均值
	AverageFinalCapital decimal.Decimal `json:"average_final_capital"`
	// YearsSurvived 经营年数的分布：X 为年数，Y 为公司数量
	YearsSurvived []Point `json:"years_survived"`
	// RuinCurve 破产概率随初始资本的变化
	RuinCurve []Point `json:"ruin_curve"`
}

// capitalPath 单次模拟的结局
type capitalPath struct {
	yearsSurvived int
	finalCapital  float64
	ruined        bool
}

// SimulateCapital 模拟多家公司在随机赔付率下的资本演变，并计算不同初始资本下的破产概率。
// 所有资本刻度共用同一组赔付率抽样，因此破产概率曲线在每条路径上单调不增。
func SimulateCapital(req CapitalRequest) (*CapitalResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	seed := resolveSeed(req.Seed)
	r := newRand(seed)

	lossRatios := make([][]float64, req.Trials)
	for t := range lossRatios {
		row := make([]float64, req.Years)
		for y := range row {
			row[y] = math.Max(req.LossRatioFloor, req.ExpectedLossRatio+req.LossRatioStdDev*r.NormFloat64())
		}
		lossRatios[t] = row
	}

	paths := make([]capitalPath, req.Trials)
	survivors := 0
	years := make(stats.Float64Data, req.Trials)
	var finalCapital stats.Float64Data
	counts := make([]float64, req.Years+1)
	for t, row := range lossRatios {
		paths[t] = req.simulatePath(req.InitialCapital, row)
		years[t] = float64(paths[t].yearsSurvived)
		counts[paths[t].yearsSurvived]++
		if !paths[t].ruined {
			survivors++
			finalCapital = append(finalCapital, paths[t].finalCapital)
		}
	}

	avgYears, err := years.Mean()
	if err != nil {
		return nil, err
	}
	avgFinal := 0.0
	if len(finalCapital) > 0 {
		if avgFinal, err = finalCapital.Mean(); err != nil {
			return nil, err
		}
	}
	// 资本按 (1+r)^years 复利增长，长期限下可能溢出
	if err := checkFinite("investment_return", avgFinal); err != nil {
		return nil, err
	}

	survival := float64(survivors) / float64(req.Trials)
	result := &CapitalResult{
		Seed:                 seed,
		InitialCapital:       req.InitialCapital,
		Years:                req.Years,
		Trials:               req.Trials,
		SurvivalRate:         survival,
		RuinProbability:      1 - survival,
		AverageYearsSurvived: avgYears,
		AverageFinalCapital:  decimal.NewFromFloat(avgFinal).Round(2),
		YearsSurvived:        make([]Point, len(counts)),
	}
	for y, c := range counts {
		result.YearsSurvived[y] = Point{X: float64(y), Y: c}
	}

	for _, level := range req.levels() {
		ruined := 0
		for _, row := range lossRatios {
			if req.simulatePath(level, row).ruined {
				ruined++
			}
		}
		result.RuinCurve = append(result.RuinCurve, Point{X: level, Y: float64(ruined) / float64(req.Trials)})
	}

	return result, nil
}

// simulatePath 逐年更新资本：资本 += 保费 - 赔款 - 费用 + 期初资本投资收益；年末资本 ≤ 0 即破产
func (r CapitalRequest) simulatePath(initial float64, lossRatios []float64) capitalPath {
	capital := initial
	expenses := r.Premium * r.ExpenseRatio
	for y, lr := range lossRatios {
		underwriting := r.Premium - r.Premium*lr - expenses
		capital += underwriting + capital*r.InvestmentReturn
		if capital <= 0 {
			return capitalPath{yearsSurvived: y, finalCapital: capital, ruined: true}
		}
	}
	return capitalPath{yearsSurvived: len(lossRatios), finalCapital: capital}
}
