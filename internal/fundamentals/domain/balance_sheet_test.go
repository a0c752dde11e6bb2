package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, d(want).Equal(got), append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

func TestNewBalanceSheet(t *testing.T) {
	tests := []struct {
		name        string
		assets      string
		liabilities string
		equity      string
		solvent     bool
	}{
		{"healthy", "100", "80", "20", true},
		{"exactly matched", "100", "100", "0", true},
		{"insolvent", "100", "110", "-10", false},
		{"empty", "0", "0", "0", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bs := NewBalanceSheet(d(tt.assets), d(tt.liabilities))
			assertDecimal(t, tt.equity, bs.Equity)
			assert.Equal(t, tt.solvent, bs.Solvent)
		})
	}
}

func TestBuildBalanceSheet_Defaults(t *testing.T) {
	res, err := BuildBalanceSheet(DefaultBalanceSheetRequest())
	require.NoError(t, err)
	require.Len(t, res.Scenarios, 1)

	s := res.Scenarios[0]
	assertDecimal(t, "160", s.Position.Assets)
	assertDecimal(t, "115", s.Position.Liabilities)
	assertDecimal(t, "45", s.Position.Equity)
	assert.True(t, s.Position.Solvent)

	assertDecimal(t, "0.45", s.CapitalRatio)
	assertDecimal(t, "50", s.MinimumCapital)
	assert.False(t, s.Adequate)
	assertDecimal(t, "-5", s.CapitalGap)

	require.Len(t, s.Assets, 2)
	require.Len(t, s.Liabilities, 2)
	assertDecimal(t, "10", s.Assets[0].Amount)
	assertDecimal(t, "150", s.Assets[1].Amount)
	assertDecimal(t, "65", s.Liabilities[0].Amount)
	assertDecimal(t, "50", s.Liabilities[1].Amount)

	assertDecimal(t, "65", s.Income.Losses)
	assertDecimal(t, "25", s.Income.Expenses)
	assertDecimal(t, "10", s.Income.UnderwritingResult)
	assertDecimal(t, "7.5", s.Income.InvestmentIncome)
	assertDecimal(t, "17.5", s.Income.TotalProfit)
}

func TestBuildBalanceSheet_Scenarios(t *testing.T) {
	req := DefaultBalanceSheetRequest()
	req.BaselineLiabilities = d("20")
	req.LossRatios = []decimal.Decimal{d("0.40"), d("1.00"), d("1.20")}

	res, err := BuildBalanceSheet(req)
	require.NoError(t, err)
	require.Len(t, res.Scenarios, 3)

	// 资产 160，负债 = 100·LR + 50 + 20
	assertDecimal(t, "50", res.Scenarios[0].Position.Equity)
	assert.True(t, res.Scenarios[0].Adequate)
	assertDecimal(t, "-10", res.Scenarios[1].Position.Equity)
	assert.False(t, res.Scenarios[1].Position.Solvent)
	assertDecimal(t, "-30", res.Scenarios[2].Position.Equity)
	assert.Len(t, res.Scenarios[0].Liabilities, 3)

	for _, s := range res.Scenarios {
		assert.True(t, s.Position.Equity.Equal(s.Position.Assets.Sub(s.Position.Liabilities)))
	}
}

func TestBuildBalanceSheet_Sweep(t *testing.T) {
	res, err := BuildBalanceSheet(DefaultBalanceSheetRequest())
	require.NoError(t, err)

	require.Len(t, res.Sweep, 13)
	assert.InDelta(t, 0.40, res.Sweep[0].X, 1e-12)
	assert.InDelta(t, 1.00, res.Sweep[12].X, 1e-12)
	assert.InDelta(t, 70, res.Sweep[0].Y, 1e-9)
	assert.InDelta(t, 10, res.Sweep[12].Y, 1e-9)
	for i := 1; i < len(res.Sweep); i++ {
		assert.Less(t, res.Sweep[i].Y, res.Sweep[i-1].Y)
	}
}

func TestBalanceSheetRequest_Validate(t *testing.T) {
	req := DefaultBalanceSheetRequest()
	req.LossRatios = nil
	_, err := BuildBalanceSheet(req)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "loss_ratios", ve.Field)

	req = DefaultBalanceSheetRequest()
	req.Premium = d("-1")
	_, err = BuildBalanceSheet(req)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "premium", ve.Field)

	req = DefaultBalanceSheetRequest()
	req.LossRatios = []decimal.Decimal{d("0.5"), d("-0.1")}
	_, err = BuildBalanceSheet(req)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestBuildBalanceSheet_ZeroPremium(t *testing.T) {
	req := DefaultBalanceSheetRequest()
	req.Premium = decimal.Zero

	res, err := BuildBalanceSheet(req)
	require.NoError(t, err)
	s := res.Scenarios[0]
	assertDecimal(t, "50", s.Position.Equity)
	assert.True(t, s.CapitalRatio.IsZero())
	assert.True(t, s.Adequate)
}
