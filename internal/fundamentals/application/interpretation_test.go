package application

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/insurancefundamentals/internal/fundamentals/domain"
)

func TestInterpretLawOfLargeNumbers(t *testing.T) {
	req := domain.LawOfLargeNumbersRequest{Probability: 0.05, MaxSampleSize: 50000}
	res := &domain.LawOfLargeNumbersResult{
		Probability: 0.05,
		Checkpoints: []domain.Checkpoint{
			{SampleSize: 10, Observed: 0.1, Error: 0.05},
			{SampleSize: 50000, Observed: 0.0502, Error: 0.0002},
		},
	}

	lines := InterpretLawOfLargeNumbers(req, res)
	require.Len(t, lines, 3)
	assert.Equal(t, "With only 10 drivers, the observed accident rate was 10.0%, which is 5.0 percentage points away from the true rate of 5.0%.", lines[0])
	assert.Equal(t, "With 50,000 drivers, the observed accident rate was 5.0%, which is 0.0 percentage points away from the true rate.", lines[1])
}

func TestInterpretRiskPooling(t *testing.T) {
	req := domain.DefaultRiskPoolingRequest()
	surplus := &domain.RiskPoolingResult{
		NumWithLoss: 3, PercentWithLoss: 3, FairPremium: 1000,
		TotalPremium: 100000, TotalLosses: 60000, PoolPerformance: 0.6, Surplus: 40000,
	}
	lines := InterpretRiskPooling(req, surplus)
	assert.Contains(t, lines, "Individual Risk: Each person has a 5.0% chance of a $20,000 loss.")
	assert.Contains(t, lines, "Risk Pooling Result: The insurer collected $100,000 and paid $60,000 in claims.")
	assert.Contains(t, lines, "This year the insurance pool had a $40,000 surplus.")

	deficit := &domain.RiskPoolingResult{
		NumWithLoss: 7, PercentWithLoss: 7, FairPremium: 1000,
		TotalPremium: 100000, TotalLosses: 140000, PoolPerformance: 1.4, Surplus: -40000,
	}
	lines = InterpretRiskPooling(req, deficit)
	assert.Contains(t, lines, "This year the insurance pool had a $40,000 deficit.")
	assert.Contains(t, lines, "The deficit must be covered by the insurer's capital reserves.")
}

func TestInterpretRiskPooling_NoClaimsExpected(t *testing.T) {
	req := domain.DefaultRiskPoolingRequest()
	req.ClaimProbability = 0
	seed := uint64(1)
	req.Seed = &seed
	res, err := domain.SimulateRiskPooling(req)
	require.NoError(t, err)
	require.Zero(t, res.TotalPremium)

	lines := InterpretRiskPooling(req, res)
	assert.Contains(t, lines, "No losses are expected at these parameters, so the fair premium is $0 and the pool simply breaks even.")
	for _, line := range lines {
		assert.NotContains(t, line, "surplus")
		assert.NotContains(t, line, "deficit")
	}
}

func TestInterpretBalanceSheet(t *testing.T) {
	req := domain.DefaultBalanceSheetRequest()
	res, err := domain.BuildBalanceSheet(req)
	require.NoError(t, err)

	lines := InterpretBalanceSheet(req, res)
	assert.Contains(t, lines, "Loss Ratio: 0.65 ($65.0M in losses per $100.0M in premium)")
	assert.Contains(t, lines, "Capital: $45.0M (Capital Ratio: 0.45)")
	assert.Contains(t, lines, "ALERT: Capital ratio is below the regulatory minimum of 0.50!")
	assert.Contains(t, lines, "The company needs at least $5.0M more capital to meet minimum requirements.")
}

func TestInterpretCapital(t *testing.T) {
	req := domain.DefaultCapitalRequest()

	lines := InterpretCapital(req, &domain.CapitalResult{SurvivalRate: 0.95})
	assert.Contains(t, lines, "With $50.0M of initial capital (0.5x annual premium), 95.0% of companies survived all 10 years.")
	assert.Contains(t, lines, "This capital level appears adequate with a high survival probability.")

	lines = InterpretCapital(req, &domain.CapitalResult{SurvivalRate: 0.5})
	assert.Contains(t, lines, "Recommendation: Increase capital to improve survival probability.")

	req.Premium = 0
	lines = InterpretCapital(req, &domain.CapitalResult{SurvivalRate: 1})
	assert.Contains(t, lines, "With $50.0M of initial capital, 100.0% of companies survived all 10 years.")
}
