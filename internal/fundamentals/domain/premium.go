package domain

import (
	"github.com/shopspring/decimal"
)

// LoadingConvention 附加费用的计算口径
type LoadingConvention string

const (
	// ConventionAdditive 附加费用为金额，总保费 = 纯保费 + 各项附加
	ConventionAdditive LoadingConvention = "additive"
	// ConventionMultiplicative 附加费用为纯保费的比例
	ConventionMultiplicative LoadingConvention = "multiplicative"
	// ConventionGrossUp 附加费用为最终保费的比例，总保费 = 纯保费 / (1 - Σ附加比例)
	ConventionGrossUp LoadingConvention = "gross_up"
)

// PremiumRequest 保费计算参数
type PremiumRequest struct {
	// 出险频率
	Frequency decimal.Decimal `json:"frequency"`
	// 案均赔款
	Severity decimal.Decimal `json:"severity"`
	// PurePremium 非空时直接作为纯保费，忽略 Frequency × Severity
	PurePremium *decimal.Decimal  `json:"pure_premium,omitempty"`
	ExpenseLoad decimal.Decimal   `json:"expense_load"`
	ProfitLoad  decimal.Decimal   `json:"profit_load"`
	RiskMargin  decimal.Decimal   `json:"risk_margin"`
	Convention  LoadingConvention `json:"convention"`
}

// DefaultPremiumRequest 仪表盘默认参数：频率 5%，案均 8000，费用率 25%，风险边际 5%（占保费比例）
func DefaultPremiumRequest() PremiumRequest {
	return PremiumRequest{
		Frequency:   decimal.RequireFromString("0.05"),
		Severity:    decimal.NewFromInt(8000),
		ExpenseLoad: decimal.RequireFromString("0.25"),
		RiskMargin:  decimal.RequireFromString("0.05"),
		Convention:  ConventionGrossUp,
	}
}

func (r PremiumRequest) convention() LoadingConvention {
	if r.Convention == "" {
		return ConventionAdditive
	}
	return r.Convention
}

// Validate 校验参数
func (r PremiumRequest) Validate() error {
	switch r.convention() {
	case ConventionAdditive, ConventionMultiplicative, ConventionGrossUp:
	default:
		return invalid("convention", "unknown loading convention %q", r.Convention)
	}
	if r.Frequency.IsNegative() || r.Frequency.GreaterThan(decimal.NewFromInt(1)) {
		return invalid("frequency", "must be within [0, 1], got %s", r.Frequency.String())
	}
	if err := checkDecimalNonNegative("severity", r.Severity); err != nil {
		return err
	}
	if r.PurePremium != nil {
		if err := checkDecimalNonNegative("pure_premium", *r.PurePremium); err != nil {
			return err
		}
	}
	if err := checkDecimalNonNegative("expense_load", r.ExpenseLoad); err != nil {
		return err
	}
	if err := checkDecimalNonNegative("profit_load", r.ProfitLoad); err != nil {
		return err
	}
	if err := checkDecimalNonNegative("risk_margin", r.RiskMargin); err != nil {
		return err
	}
	if r.convention() == ConventionGrossUp && r.loadSum().GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return invalid("expense_load", "gross-up loadings must sum to less than 1, got %s", r.loadSum().String())
	}
	return nil
}

func (r PremiumRequest) loadSum() decimal.Decimal {
	return r.ExpenseLoad.Add(r.ProfitLoad).Add(r.RiskMargin)
}

func (r PremiumRequest) purePremium() decimal.Decimal {
	if r.PurePremium != nil {
		return *r.PurePremium
	}
	return r.Frequency.Mul(r.Severity)
}

// PremiumBreakdown 保费构成，各项之和恒等于 Total
type PremiumBreakdown struct {
	PurePremium decimal.Decimal `json:"pure_premium"`
	ExpenseLoad decimal.Decimal `json:"expense_load"`
	ProfitLoad  decimal.Decimal `json:"profit_load"`
	RiskMargin  decimal.Decimal `json:"risk_margin"`
	Total       decimal.Decimal `json:"total"`
}

// Components 按堆叠柱状图顺序返回各构成项
func (b PremiumBreakdown) Components() []LineItem {
	return []LineItem{
		{Name: "Pure Premium", Amount: b.PurePremium},
		{Name: "Expense Load", Amount: b.ExpenseLoad},
		{Name: "Profit Load", Amount: b.ProfitLoad},
		{Name: "Risk Margin", Amount: b.RiskMargin},
	}
}

// PremiumResult 保费计算结果
type PremiumResult struct {
	Convention LoadingConvention `json:"convention"`
	Breakdown  PremiumBreakdown  `json:"breakdown"`
	// Sensitivity 总保费随出险频率（0.01 至 0.20）的变化
	Sensitivity []Point `json:"sensitivity"`
}

// CalculatePremium 计算保费构成与频率敏感性
func CalculatePremium(req PremiumRequest) (*PremiumResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	result := &PremiumResult{
		Convention: req.convention(),
		Breakdown:  req.price(req.purePremium()),
	}

	step := decimal.RequireFromString("0.01")
	upper := decimal.RequireFromString("0.20")
	for f := step; f.LessThanOrEqual(upper); f = f.Add(step) {
		b := req.price(f.Mul(req.Severity))
		result.Sensitivity = append(result.Sensitivity, Point{X: f.InexactFloat64(), Y: b.Total.InexactFloat64()})
	}
	return result, nil
}

// price 按口径计算各附加项；纯保费与各附加项均四舍五入到分，总保费的尾差计入风险边际
func (r PremiumRequest) price(pure decimal.Decimal) PremiumBreakdown {
	pure = pure.Round(2)
	b := PremiumBreakdown{PurePremium: pure}

	switch r.convention() {
	case ConventionAdditive:
		b.ExpenseLoad = r.ExpenseLoad.Round(2)
		b.ProfitLoad = r.ProfitLoad.Round(2)
		b.RiskMargin = r.RiskMargin.Round(2)
		b.Total = pure.Add(b.ExpenseLoad).Add(b.ProfitLoad).Add(b.RiskMargin)
		return b
	case ConventionMultiplicative:
		b.ExpenseLoad = pure.Mul(r.ExpenseLoad).Round(2)
		b.ProfitLoad = pure.Mul(r.ProfitLoad).Round(2)
		b.RiskMargin = pure.Mul(r.RiskMargin).Round(2)
		b.Total = pure.Add(b.ExpenseLoad).Add(b.ProfitLoad).Add(b.RiskMargin)
		return b
	default:
		total := pure.Div(decimal.NewFromInt(1).Sub(r.loadSum())).Round(2)
		b.ExpenseLoad = total.Mul(r.ExpenseLoad).Round(2)
		b.ProfitLoad = total.Mul(r.ProfitLoad).Round(2)
		b.RiskMargin = total.Sub(pure).Sub(b.ExpenseLoad).Sub(b.ProfitLoad)
		// 附加项向上取整导致尾差为负时，从较大的附加项中扣除
		if b.RiskMargin.IsNegative() {
			load := &b.ExpenseLoad
			if b.ProfitLoad.GreaterThan(b.ExpenseLoad) {
				load = &b.ProfitLoad
			}
			*load = load.Add(b.RiskMargin)
			b.RiskMargin = decimal.Zero
		}
		b.Total = total
		return b
	}
}
