// Package chart 将计算报告渲染为 ECharts HTML 页面
package chart

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/wyfcoding/insurancefundamentals/internal/fundamentals/domain"
)

// maxLinePoints 单条折线的最大点数，超出时等距抽样
const maxLinePoints = 2000

const (
	chartWidth  = "900px"
	chartHeight = "420px"
)

// Render 按报告的模块类型渲染图表页
func Render(w io.Writer, report *domain.Report) error {
	page := components.NewPage()
	page.PageTitle = report.Module.Title()
	page.SetLayout(components.PageFlexLayout)

	switch res := report.Result.(type) {
	case *domain.LawOfLargeNumbersResult:
		page.AddCharts(runningMeanChart(res), checkpointChart(res))
	case *domain.RiskPoolingResult:
		page.AddCharts(lossHistogramChart(res), poolSizeChart(res))
	case *domain.BalanceSheetResult:
		page.AddCharts(balanceSheetChart(res), incomeWaterfallChart(res), equitySweepChart(res))
	case *domain.PremiumResult:
		page.AddCharts(premiumBreakdownChart(res), premiumSensitivityChart(res))
	case *domain.CapitalResult:
		page.AddCharts(yearsSurvivedChart(res), ruinCurveChart(res))
	default:
		return fmt.Errorf("no chart for result type %T", report.Result)
	}
	return page.Render(w)
}

func globalOpts(title, subtitle, xName, yName string) []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: xName}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName}),
	}
}

// xyData 数值坐标的折线数据
func xyData(points []domain.Point) []opts.LineData {
	points = downsample(points, maxLinePoints)
	out := make([]opts.LineData, len(points))
	for i, p := range points {
		out[i] = opts.LineData{Value: []any{p.X, p.Y}}
	}
	return out
}

// downsample 等距抽样到不超过 limit 个点，保留首尾
func downsample(points []domain.Point, limit int) []domain.Point {
	if len(points) <= limit || limit < 2 {
		return points
	}
	step := float64(len(points)-1) / float64(limit-1)
	out := make([]domain.Point, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, points[int(float64(i)*step+0.5)])
	}
	return out
}

func valueLine(title, subtitle, xName, yName string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(globalOpts(title, subtitle, xName, yName)...)
	line.SetGlobalOptions(charts.WithXAxisOpts(opts.XAxis{Name: xName, Type: "value"}))
	return line
}

func lineOpts() charts.SeriesOpts {
	return charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)})
}
