package domain

import (
	"time"
)

// Report 一次计算的完整输出：结果、解读文字与种子
type Report struct {
	ID     string `json:"id"`
	Module Module `json:"module"`
	// Seed 随机计算单元实际使用的种子，确定性单元为空；以字符串编码，避免 JavaScript 丢失精度
	Seed           *uint64   `json:"seed,omitempty,string"`
	Result         any       `json:"result"`
	Interpretation []string  `json:"interpretation"`
	Cached         bool      `json:"cached"`
	DurationMs     float64   `json:"duration_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// ResultSeed 从结果中取出实际使用的种子
func ResultSeed(result any) *uint64 {
	switch r := result.(type) {
	case *LawOfLargeNumbersResult:
		return seedPtr(r.Seed)
	case *RiskPoolingResult:
		return seedPtr(r.Seed)
	case *CapitalResult:
		return seedPtr(r.Seed)
	default:
		return nil
	}
}

// ReportSummary 报告摘要：解读文字与关键数值，不含图表序列
type ReportSummary struct {
	ID             string             `json:"id"`
	Module         Module             `json:"module"`
	Seed           *uint64            `json:"seed,omitempty,string"`
	Headline       map[string]float64 `json:"headline,omitempty"`
	Interpretation []string           `json:"interpretation"`
	Cached         bool               `json:"cached"`
	DurationMs     float64            `json:"duration_ms"`
	CreatedAt      time.Time          `json:"created_at"`
}

// Summary 生成报告摘要
func (r *Report) Summary() *ReportSummary {
	return &ReportSummary{
		ID:             r.ID,
		Module:         r.Module,
		Seed:           r.Seed,
		Headline:       Headline(r.Result),
		Interpretation: r.Interpretation,
		Cached:         r.Cached,
		DurationMs:     r.DurationMs,
		CreatedAt:      r.CreatedAt,
	}
}

// Headline 各计算单元的关键数值
func Headline(result any) map[string]float64 {
	switch r := result.(type) {
	case *LawOfLargeNumbersResult:
		if len(r.Checkpoints) == 0 {
			return nil
		}
		large := r.LargeSample()
		return map[string]float64{
			"probability": r.Probability,
			"sample_size": float64(large.SampleSize),
			"observed":    large.Observed,
			"error":       large.Error,
		}
	case *RiskPoolingResult:
		return map[string]float64{
			"fair_premium":     r.FairPremium,
			"pool_performance": r.PoolPerformance,
			"surplus":          r.Surplus,
			"individual_std":   r.Individual.StdDev,
		}
	case *BalanceSheetResult:
		if len(r.Scenarios) == 0 {
			return nil
		}
		first := r.Scenarios[0]
		return map[string]float64{
			"loss_ratio":    first.LossRatio.InexactFloat64(),
			"equity":        first.Position.Equity.InexactFloat64(),
			"capital_ratio": first.CapitalRatio.InexactFloat64(),
		}
	case *PremiumResult:
		return map[string]float64{
			"pure_premium": r.Breakdown.PurePremium.InexactFloat64(),
			"total":        r.Breakdown.Total.InexactFloat64(),
		}
	case *CapitalResult:
		return map[string]float64{
			"survival_rate":          r.SurvivalRate,
			"ruin_probability":       r.RuinProbability,
			"average_years_survived": r.AverageYearsSurvived,
		}
	default:
		return nil
	}
}
