package chart

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/insurancefundamentals/internal/fundamentals/domain"
)

func seed(v uint64) *uint64 { return &v }

func TestRender_AllModules(t *testing.T) {
	lln := domain.DefaultLawOfLargeNumbersRequest()
	lln.Seed = seed(1)
	llnRes, err := domain.SimulateLawOfLargeNumbers(lln)
	require.NoError(t, err)

	pool := domain.DefaultRiskPoolingRequest()
	pool.Seed, pool.Trials = seed(1), 20
	poolRes, err := domain.SimulateRiskPooling(pool)
	require.NoError(t, err)

	bsRes, err := domain.BuildBalanceSheet(domain.DefaultBalanceSheetRequest())
	require.NoError(t, err)

	premRes, err := domain.CalculatePremium(domain.DefaultPremiumRequest())
	require.NoError(t, err)

	capReq := domain.DefaultCapitalRequest()
	capReq.Seed = seed(1)
	capRes, err := domain.SimulateCapital(capReq)
	require.NoError(t, err)

	tests := []struct {
		module domain.Module
		result any
		titles []string
	}{
		{domain.ModuleLawOfLargeNumbers, llnRes, []string{"Law of Large Numbers", "Estimation error by sample size"}},
		{domain.ModuleRiskPooling, poolRes, []string{"Individual losses", "Risk pooling reduces variance"}},
		{domain.ModuleBalanceSheet, bsRes, []string{"Balance sheet", "Income statement", "Equity across loss ratios"}},
		{domain.ModulePremium, premRes, []string{"Premium components", "Final premium $571.43 (gross_up)"}},
		{domain.ModuleCapital, capRes, []string{"Years survived", "Probability of ruin by initial capital"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.module), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Render(&buf, &domain.Report{Module: tt.module, Result: tt.result}))

			html := buf.String()
			assert.Contains(t, html, "echarts")
			assert.Contains(t, html, "<title>"+tt.module.Title()+"</title>")
			for _, title := range tt.titles {
				assert.Contains(t, html, title)
			}
		})
	}
}

func TestRender_UnknownResult(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, &domain.Report{Module: domain.ModulePremium, Result: "nope"})
	assert.Error(t, err)
}

func TestDownsample(t *testing.T) {
	points := make([]domain.Point, 10001)
	for i := range points {
		points[i] = domain.Point{X: float64(i + 1)}
	}

	out := downsample(points, 100)
	require.Len(t, out, 100)
	assert.Equal(t, points[0], out[0])
	assert.Equal(t, points[len(points)-1], out[99])

	short := points[:5]
	assert.Equal(t, short, downsample(short, 100))
}
