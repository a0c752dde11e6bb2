package chart

import (
	"fmt"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/wyfcoding/insurancefundamentals/internal/fundamentals/domain"
)

func runningMeanChart(res *domain.LawOfLargeNumbersResult) *charts.Line {
	line := valueLine("Law of Large Numbers",
		fmt.Sprintf("True accident probability %.2f%%", res.Probability*100),
		"Number of drivers", "Observed accident rate")
	line.SetGlobalOptions(charts.WithXAxisOpts(opts.XAxis{Name: "Number of drivers", Type: "log"}))
	line.AddSeries("Observed rate", xyData(res.RunningMean),
		lineOpts(),
		charts.WithMarkLineNameYAxisItemOpts(opts.MarkLineNameYAxisItem{Name: "True probability", YAxis: res.Probability}),
	)
	return line
}

func checkpointChart(res *domain.LawOfLargeNumbersResult) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(globalOpts("Estimation error by sample size", "", "Number of drivers", "|observed - true|")...)

	labels := make([]string, len(res.Checkpoints))
	data := make([]opts.BarData, len(res.Checkpoints))
	for i, c := range res.Checkpoints {
		labels[i] = strconv.Itoa(c.SampleSize)
		data[i] = opts.BarData{Value: c.Error}
	}
	bar.SetXAxis(labels).AddSeries("Absolute error", data)
	return bar
}

func lossHistogramChart(res *domain.RiskPoolingResult) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(globalOpts("Individual losses",
		fmt.Sprintf("%d of %d policyholders had a loss", res.NumWithLoss, res.Policyholders),
		"Loss amount", "Policyholders")...)

	labels := make([]string, len(res.Histogram))
	data := make([]opts.BarData, len(res.Histogram))
	for i, b := range res.Histogram {
		labels[i] = fmt.Sprintf("%.0f-%.0f", b.Lower, b.Upper)
		data[i] = opts.BarData{Value: b.Count}
	}
	bar.SetXAxis(labels).AddSeries("Policyholders", data)
	return bar
}

func poolSizeChart(res *domain.RiskPoolingResult) *charts.Line {
	line := valueLine("Risk pooling reduces variance",
		fmt.Sprintf("Actual/Expected %.2f", res.PoolPerformance),
		"Pool size", "Variance of average loss")
	line.SetGlobalOptions(
		charts.WithXAxisOpts(opts.XAxis{Name: "Pool size", Type: "log"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Variance of average loss", Type: "log"}),
	)

	empirical := make([]opts.LineData, len(res.PoolSizeCurve))
	theoretical := make([]opts.LineData, len(res.PoolSizeCurve))
	for i, p := range res.PoolSizeCurve {
		empirical[i] = opts.LineData{Value: []any{p.PoolSize, p.Variance}}
		theoretical[i] = opts.LineData{Value: []any{p.PoolSize, p.TheoreticalVariance}}
	}
	line.AddSeries("Simulated", empirical).
		AddSeries("σ²/M", theoretical, charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"}))
	return line
}

func balanceSheetChart(res *domain.BalanceSheetResult) *charts.Bar {
	s := res.Scenarios[0]
	bar := charts.NewBar()
	bar.SetGlobalOptions(globalOpts("Balance sheet",
		fmt.Sprintf("Loss ratio %s, equity $%sM", s.LossRatio.StringFixed(2), s.Position.Equity.StringFixed(1)),
		"", "$M")...)
	bar.SetXAxis([]string{"Assets", "Liabilities & Equity"})

	stack := charts.WithBarChartOpts(opts.BarChart{Stack: "balance"})
	for _, item := range s.Assets {
		bar.AddSeries(item.Name, []opts.BarData{{Value: item.Amount.InexactFloat64()}, {Value: 0}}, stack)
	}
	for _, item := range s.Liabilities {
		bar.AddSeries(item.Name, []opts.BarData{{Value: 0}, {Value: item.Amount.InexactFloat64()}}, stack)
	}
	bar.AddSeries("Equity", []opts.BarData{{Value: 0}, {Value: s.Position.Equity.InexactFloat64()}}, stack)
	return bar
}

// incomeWaterfallChart 瀑布图：透明底座序列抬高每一步的增减柱
func incomeWaterfallChart(res *domain.BalanceSheetResult) *charts.Bar {
	in := res.Scenarios[0].Income
	bar := charts.NewBar()
	bar.SetGlobalOptions(globalOpts("Income statement", "", "", "$M")...)

	steps := []struct {
		name  string
		delta float64
		total bool
	}{
		{"Premium", in.Premium.InexactFloat64(), false},
		{"Losses", -in.Losses.InexactFloat64(), false},
		{"Expenses", -in.Expenses.InexactFloat64(), false},
		{"Underwriting Result", in.UnderwritingResult.InexactFloat64(), true},
		{"Investment Income", in.InvestmentIncome.InexactFloat64(), false},
		{"Total Profit", in.TotalProfit.InexactFloat64(), true},
	}

	labels := make([]string, len(steps))
	base := make([]opts.BarData, len(steps))
	up := make([]opts.BarData, len(steps))
	down := make([]opts.BarData, len(steps))
	running := 0.0
	for i, st := range steps {
		labels[i] = st.name
		var lo, hi float64
		if st.total {
			lo, hi = min(0, st.delta), max(0, st.delta)
			running = st.delta
		} else {
			lo, hi = min(running, running+st.delta), max(running, running+st.delta)
			running += st.delta
		}
		// 跨越零轴时底座为 0
		if lo < 0 && hi > 0 {
			lo = 0
		}
		base[i] = opts.BarData{Value: lo, ItemStyle: &opts.ItemStyle{Color: "transparent"}}
		if st.delta >= 0 {
			up[i] = opts.BarData{Value: hi - lo}
			down[i] = opts.BarData{Value: 0}
		} else {
			up[i] = opts.BarData{Value: 0}
			down[i] = opts.BarData{Value: hi - lo}
		}
	}

	stack := charts.WithBarChartOpts(opts.BarChart{Stack: "waterfall"})
	bar.SetXAxis(labels).
		AddSeries("", base, stack).
		AddSeries("Increase", up, stack, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#2e7d32"})).
		AddSeries("Decrease", down, stack, charts.WithItemStyleOpts(opts.ItemStyle{Color: "#c62828"}))
	return bar
}

func equitySweepChart(res *domain.BalanceSheetResult) *charts.Line {
	line := valueLine("Equity across loss ratios", "", "Loss ratio", "Equity ($M)")
	line.AddSeries("Equity", xyData(res.Sweep),
		charts.WithMarkLineNameYAxisItemOpts(opts.MarkLineNameYAxisItem{Name: "Insolvency", YAxis: 0}),
	)
	return line
}

func premiumBreakdownChart(res *domain.PremiumResult) *charts.Bar {
	b := res.Breakdown
	bar := charts.NewBar()
	bar.SetGlobalOptions(globalOpts("Premium components",
		fmt.Sprintf("Final premium $%s (%s)", b.Total.StringFixed(2), res.Convention),
		"", "$")...)
	bar.SetXAxis([]string{"Premium"})

	stack := charts.WithBarChartOpts(opts.BarChart{Stack: "premium"})
	for _, c := range b.Components() {
		bar.AddSeries(c.Name, []opts.BarData{{Value: c.Amount.InexactFloat64()}}, stack)
	}
	return bar
}

func premiumSensitivityChart(res *domain.PremiumResult) *charts.Line {
	line := valueLine("Premium sensitivity to claim frequency", "", "Accident frequency", "Final premium ($)")
	line.AddSeries("Final premium", xyData(res.Sensitivity))
	return line
}

func yearsSurvivedChart(res *domain.CapitalResult) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(globalOpts("Years survived",
		fmt.Sprintf("%.1f%% of %d companies survived %d years", res.SurvivalRate*100, res.Trials, res.Years),
		"Years", "Companies")...)

	labels := make([]string, len(res.YearsSurvived))
	data := make([]opts.BarData, len(res.YearsSurvived))
	for i, p := range res.YearsSurvived {
		labels[i] = strconv.Itoa(int(p.X))
		data[i] = opts.BarData{Value: p.Y}
	}
	bar.SetXAxis(labels).AddSeries("Companies", data)
	return bar
}

func ruinCurveChart(res *domain.CapitalResult) *charts.Line {
	line := valueLine("Probability of ruin by initial capital",
		fmt.Sprintf("Initial capital $%.1fM", res.InitialCapital),
		"Initial capital ($M)", "Probability of ruin")
	line.AddSeries("Ruin probability", xyData(res.RuinCurve),
		charts.WithMarkLineNameXAxisItemOpts(opts.MarkLineNameXAxisItem{Name: "Selected capital", XAxis: res.InitialCapital}),
	)
	return line
}
