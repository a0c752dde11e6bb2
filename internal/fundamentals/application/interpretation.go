package application

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/wyfcoding/insurancefundamentals/internal/fundamentals/domain"
)

// survivalAdequacyThreshold 存活率低于该值时提示资本不足
const survivalAdequacyThreshold = 0.90

var printer = message.NewPrinter(language.English)

// InterpretLawOfLargeNumbers 大数定律结果的保险解读
func InterpretLawOfLargeNumbers(req domain.LawOfLargeNumbersRequest, res *domain.LawOfLargeNumbersResult) []string {
	small, large := res.SmallSample(), res.LargeSample()
	lines := []string{
		printer.Sprintf("With only %d drivers, the observed accident rate was %.1f%%, which is %.1f percentage points away from the true rate of %.1f%%.",
			small.SampleSize, small.Observed*100, small.Error*100, req.Probability*100),
	}
	if large.SampleSize != small.SampleSize {
		lines = append(lines, printer.Sprintf("With %d drivers, the observed accident rate was %.1f%%, which is %.1f percentage points away from the true rate.",
			large.SampleSize, large.Observed*100, large.Error*100))
	}
	return append(lines, "Insurance companies rely on large numbers of policyholders to make accurate predictions!")
}

// InterpretRiskPooling 风险池结果的保险解读
func InterpretRiskPooling(req domain.RiskPoolingRequest, res *domain.RiskPoolingResult) []string {
	lines := []string{
		printer.Sprintf("Individual Risk: Each person has a %.1f%% chance of a $%.0f loss.", req.ClaimProbability*100, req.SeverityMean),
		printer.Sprintf("Without Insurance: %d people (%.1f%%) faced a loss in this simulation.", res.NumWithLoss, res.PercentWithLoss),
		printer.Sprintf("With Insurance: Everyone pays a premium of $%.0f.", res.FairPremium),
		printer.Sprintf("Risk Pooling Result: The insurer collected $%.0f and paid $%.0f in claims.", res.TotalPremium, res.TotalLosses),
	}
	switch {
	case res.TotalPremium == 0:
		lines = append(lines,
			"No losses are expected at these parameters, so the fair premium is $0 and the pool simply breaks even.",
			"Raise the claim probability or the average loss to see how pooling spreads risk.")
	case res.PoolPerformance < 1:
		lines = append(lines,
			printer.Sprintf("This year the insurance pool had a $%.0f surplus.", math.Abs(res.Surplus)),
			"The surplus can be held as capital to handle future years when claims exceed premiums.")
	default:
		lines = append(lines,
			printer.Sprintf("This year the insurance pool had a $%.0f deficit.", math.Abs(res.Surplus)),
			"The deficit must be covered by the insurer's capital reserves.")
	}
	return append(lines, "Key Insight: As the number of policyholders increases, the 'Actual/Expected' ratio approaches 1.0, making the insurance pool's results more predictable and stable.")
}

// InterpretBalanceSheet 资产负债表结果的保险解读，以第一个情景为准
func InterpretBalanceSheet(req domain.BalanceSheetRequest, res *domain.BalanceSheetResult) []string {
	s := res.Scenarios[0]
	in := s.Income
	lines := []string{
		printer.Sprintf("Loss Ratio: %.2f ($%.1fM in losses per $%.1fM in premium)", s.LossRatio.InexactFloat64(), in.Losses.InexactFloat64(), in.Premium.InexactFloat64()),
		printer.Sprintf("Underwriting Result: $%.1fM", in.UnderwritingResult.InexactFloat64()),
		printer.Sprintf("Investment Income: $%.1fM", in.InvestmentIncome.InexactFloat64()),
		printer.Sprintf("Total Profit: $%.1fM", in.TotalProfit.InexactFloat64()),
		printer.Sprintf("Capital: $%.1fM (Capital Ratio: %.2f)", s.Position.Equity.InexactFloat64(), s.CapitalRatio.InexactFloat64()),
	}
	if !s.Position.Solvent {
		lines = append(lines, "ALERT: Liabilities exceed assets and the company is insolvent.")
	}
	if s.Adequate {
		lines = append(lines, printer.Sprintf("The company has $%.1fM of capital surplus above the regulatory minimum.", s.CapitalGap.InexactFloat64()))
	} else {
		lines = append(lines,
			printer.Sprintf("ALERT: Capital ratio is below the regulatory minimum of %.2f!", req.MinCapitalRatio.InexactFloat64()),
			printer.Sprintf("The company needs at least $%.1fM more capital to meet minimum requirements.", s.CapitalGap.Neg().InexactFloat64()))
	}
	if len(res.Scenarios) > 1 {
		lines = append(lines, printer.Sprintf("%d loss ratio scenarios were evaluated; the chart compares each position.", len(res.Scenarios)))
	}
	return lines
}

// InterpretPremium 保费计算结果的保险解读
func InterpretPremium(req domain.PremiumRequest, res *domain.PremiumResult) []string {
	b := res.Breakdown
	var lines []string
	if req.PurePremium == nil {
		lines = append(lines,
			printer.Sprintf("Accident Frequency: %.1f%% (probability of claim per year)", req.Frequency.InexactFloat64()*100),
			printer.Sprintf("Average Claim Severity: $%.0f (average cost when a claim occurs)", req.Severity.InexactFloat64()))
	}
	lines = append(lines, printer.Sprintf("Expected Loss: $%.2f (pure cost of risk)", b.PurePremium.InexactFloat64()))

	switch res.Convention {
	case domain.ConventionGrossUp:
		lines = append(lines,
			printer.Sprintf("Expenses: $%.2f (%.0f%% of premium for administration, commissions, etc.)", b.ExpenseLoad.InexactFloat64(), req.ExpenseLoad.InexactFloat64()*100),
			printer.Sprintf("Profit Load: $%.2f (%.0f%% of premium)", b.ProfitLoad.InexactFloat64(), req.ProfitLoad.InexactFloat64()*100),
			printer.Sprintf("Risk Margin: $%.2f (%.0f%% of premium for profit and uncertainty)", b.RiskMargin.InexactFloat64(), req.RiskMargin.InexactFloat64()*100))
	case domain.ConventionMultiplicative:
		lines = append(lines,
			printer.Sprintf("Expenses: $%.2f (%.0f%% of the expected loss)", b.ExpenseLoad.InexactFloat64(), req.ExpenseLoad.InexactFloat64()*100),
			printer.Sprintf("Profit Load: $%.2f (%.0f%% of the expected loss)", b.ProfitLoad.InexactFloat64(), req.ProfitLoad.InexactFloat64()*100),
			printer.Sprintf("Risk Margin: $%.2f (%.0f%% of the expected loss)", b.RiskMargin.InexactFloat64(), req.RiskMargin.InexactFloat64()*100))
	default:
		lines = append(lines,
			printer.Sprintf("Expenses: $%.2f", b.ExpenseLoad.InexactFloat64()),
			printer.Sprintf("Profit Load: $%.2f", b.ProfitLoad.InexactFloat64()),
			printer.Sprintf("Risk Margin: $%.2f", b.RiskMargin.InexactFloat64()))
	}

	return append(lines,
		printer.Sprintf("Final Premium: $%.2f", b.Total.InexactFloat64()),
		"This is the base premium before applying individual rating factors like age, driving history, etc.")
}

// InterpretCapital 资本作用结果的保险解读
func InterpretCapital(req domain.CapitalRequest, res *domain.CapitalResult) []string {
	lines := []string{"Capital serves as a buffer against unexpected losses."}
	if req.Premium > 0 {
		lines = append(lines, printer.Sprintf("With $%.1fM of initial capital (%.1fx annual premium), %.1f%% of companies survived all %d years.",
			req.InitialCapital, req.InitialCapital/req.Premium, res.SurvivalRate*100, req.Years))
	} else {
		lines = append(lines, printer.Sprintf("With $%.1fM of initial capital, %.1f%% of companies survived all %d years.",
			req.InitialCapital, res.SurvivalRate*100, req.Years))
	}
	lines = append(lines,
		"Higher capital amounts mean better protection against insolvency.",
		"Insurance regulators require minimum capital levels to ensure companies can pay claims.")

	if res.SurvivalRate < survivalAdequacyThreshold {
		return append(lines,
			"Warning: This capital level may be inadequate for long-term stability.",
			"Recommendation: Increase capital to improve survival probability.")
	}
	return append(lines, "This capital level appears adequate with a high survival probability.")
}
