package domain

import (
	"github.com/shopspring/decimal"
)

// BalanceSheet 资产负债表头寸：权益 = 资产 - 负债
type BalanceSheet struct {
	Assets      decimal.Decimal `json:"assets"`
	Liabilities decimal.Decimal `json:"liabilities"`
	Equity      decimal.Decimal `json:"equity"`
	// Solvent 负债不超过资产；负债大于资产即资不抵债
	Solvent bool `json:"solvent"`
}

// NewBalanceSheet 由资产与负债计算权益与偿付能力
func NewBalanceSheet(assets, liabilities decimal.Decimal) BalanceSheet {
	return BalanceSheet{
		Assets:      assets,
		Liabilities: liabilities,
		Equity:      assets.Sub(liabilities),
		Solvent:     !liabilities.GreaterThan(assets),
	}
}

// BalanceSheetRequest 资产负债表情景参数，金额单位为百万美元
type BalanceSheetRequest struct {
	// 年保费收入
	Premium decimal.Decimal `json:"premium"`
	// 期初投资资本
	BaselineAssets decimal.Decimal `json:"baseline_assets"`
	// 其他准备金
	BaselineLiabilities decimal.Decimal `json:"baseline_liabilities"`
	// 每个赔付率对应一个情景
	LossRatios       []decimal.Decimal `json:"loss_ratios"`
	ExpenseRatio     decimal.Decimal   `json:"expense_ratio"`
	InvestmentReturn decimal.Decimal   `json:"investment_return"`
	// 应收保费占保费比例
	ReceivableRatio decimal.Decimal `json:"receivable_ratio"`
	// 未到期保费准备金占保费比例
	UnearnedRatio decimal.Decimal `json:"unearned_ratio"`
	// 监管最低资本占保费比例
	MinCapitalRatio decimal.Decimal `json:"min_capital_ratio"`
}

// DefaultBalanceSheetRequest 仪表盘默认参数：保费 1 亿，期初资本 5000 万，赔付率 65%
func DefaultBalanceSheetRequest() BalanceSheetRequest {
	return BalanceSheetRequest{
		Premium:          decimal.NewFromInt(100),
		BaselineAssets:   decimal.NewFromInt(50),
		LossRatios:       []decimal.Decimal{decimal.RequireFromString("0.65")},
		ExpenseRatio:     decimal.RequireFromString("0.25"),
		InvestmentReturn: decimal.RequireFromString("0.05"),
		ReceivableRatio:  decimal.RequireFromString("0.10"),
		UnearnedRatio:    decimal.RequireFromString("0.50"),
		MinCapitalRatio:  decimal.RequireFromString("0.50"),
	}
}

// Validate 校验参数
func (r BalanceSheetRequest) Validate() error {
	checks := []struct {
		field string
		value decimal.Decimal
	}{
		{"premium", r.Premium},
		{"baseline_assets", r.BaselineAssets},
		{"baseline_liabilities", r.BaselineLiabilities},
		{"expense_ratio", r.ExpenseRatio},
		{"investment_return", r.InvestmentReturn},
		{"receivable_ratio", r.ReceivableRatio},
		{"unearned_ratio", r.UnearnedRatio},
		{"min_capital_ratio", r.MinCapitalRatio},
	}
	for _, c := range checks {
		if err := checkDecimalNonNegative(c.field, c.value); err != nil {
			return err
		}
	}
	if len(r.LossRatios) == 0 {
		return invalid("loss_ratios", "at least one loss ratio scenario is required")
	}
	for _, lr := range r.LossRatios {
		if err := checkDecimalNonNegative("loss_ratios", lr); err != nil {
			return err
		}
	}
	return nil
}

// IncomeStatement 利润表（瀑布图）
type IncomeStatement struct {
	Premium            decimal.Decimal `json:"premium"`
	Losses             decimal.Decimal `json:"losses"`
	Expenses           decimal.Decimal `json:"expenses"`
	UnderwritingResult decimal.Decimal `json:"underwriting_result"`
	InvestmentIncome   decimal.Decimal `json:"investment_income"`
	TotalProfit        decimal.Decimal `json:"total_profit"`
}

// BalanceSheetScenario 单个赔付率情景下的报表
type BalanceSheetScenario struct {
	LossRatio   decimal.Decimal `json:"loss_ratio"`
	Assets      []LineItem      `json:"assets"`
	Liabilities []LineItem      `json:"liabilities"`
	Position    BalanceSheet    `json:"position"`
	// CapitalRatio 权益 / 保费
	CapitalRatio   decimal.Decimal `json:"capital_ratio"`
	MinimumCapital decimal.Decimal `json:"minimum_capital"`
	Adequate       bool            `json:"adequate"`
	// CapitalGap 权益减最低资本，负数为缺口
	CapitalGap decimal.Decimal `json:"capital_gap"`
	Income     IncomeStatement `json:"income"`
}

// BalanceSheetResult 资产负债表演示结果
type BalanceSheetResult struct {
	Scenarios []BalanceSheetScenario `json:"scenarios"`
	// Sweep 权益随赔付率（0.40 至 1.00）的变化
	Sweep []Point `json:"sweep"`
}

// BuildBalanceSheet 为每个赔付率情景计算资产负债表、利润表与资本充足情况
func BuildBalanceSheet(req BalanceSheetRequest) (*BalanceSheetResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	result := &BalanceSheetResult{
		Scenarios: make([]BalanceSheetScenario, 0, len(req.LossRatios)),
	}
	for _, lr := range req.LossRatios {
		result.Scenarios = append(result.Scenarios, req.scenario(lr))
	}

	step := decimal.RequireFromString("0.05")
	upper := decimal.NewFromInt(1)
	for lr := decimal.RequireFromString("0.40"); lr.LessThanOrEqual(upper); lr = lr.Add(step) {
		s := req.scenario(lr)
		result.Sweep = append(result.Sweep, Point{X: lr.InexactFloat64(), Y: s.Position.Equity.InexactFloat64()})
	}
	return result, nil
}

func (r BalanceSheetRequest) scenario(lossRatio decimal.Decimal) BalanceSheetScenario {
	p := r.Premium
	losses := p.Mul(lossRatio)
	expenses := p.Mul(r.ExpenseRatio)
	invested := p.Add(r.BaselineAssets)

	assets := []LineItem{
		{Name: "Premiums Receivable", Amount: p.Mul(r.ReceivableRatio)},
		{Name: "Cash & Investments", Amount: invested},
	}
	liabilities := []LineItem{
		{Name: "Loss Reserves", Amount: losses},
		{Name: "Unearned Premium", Amount: p.Mul(r.UnearnedRatio)},
	}
	if !r.BaselineLiabilities.IsZero() {
		liabilities = append(liabilities, LineItem{Name: "Other Reserves", Amount: r.BaselineLiabilities})
	}

	position := NewBalanceSheet(sumItems(assets), sumItems(liabilities))

	capitalRatio := decimal.Zero
	if !p.IsZero() {
		capitalRatio = position.Equity.Div(p)
	}
	minimum := p.Mul(r.MinCapitalRatio)

	underwriting := p.Sub(losses).Sub(expenses)
	investment := invested.Mul(r.InvestmentReturn)

	return BalanceSheetScenario{
		LossRatio:      lossRatio,
		Assets:         assets,
		Liabilities:    liabilities,
		Position:       position,
		CapitalRatio:   capitalRatio,
		MinimumCapital: minimum,
		Adequate:       position.Equity.GreaterThanOrEqual(minimum),
		CapitalGap:     position.Equity.Sub(minimum),
		Income: IncomeStatement{
			Premium:            p,
			Losses:             losses,
			Expenses:           expenses,
			UnderwritingResult: underwriting,
			InvestmentIncome:   investment,
			TotalProfit:        underwriting.Add(investment),
		},
	}
}

func sumItems(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Amount)
	}
	return total
}
