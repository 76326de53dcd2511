package tax

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/tax-engine/fact"
	"github.com/warp/tax-engine/rules"
)

func newCalculator(t *testing.T) *Calculator {
	t.Helper()
	engine, err := rules.NewDefault()
	require.NoError(t, err)
	return New(engine)
}

// frozenLedger builds, bulk-confirms, and freezes a ledger from raw fields.
func frozenLedger(t *testing.T, fields map[string]any) *fact.Ledger {
	t.Helper()
	l, err := fact.Create(fields, "test")
	require.NoError(t, err)
	require.NoError(t, l.ConfirmAll("test"))
	require.NoError(t, l.Freeze())
	return l
}

func assertAmount(t *testing.T, want int64, got decimal.Decimal, label string) {
	t.Helper()
	assert.True(t, got.Equal(decimal.NewFromInt(want)),
		"%s: want %d, got %s", label, want, got)
}

func TestCalculateStandardProgressiveCase(t *testing.T) {
	// GIVEN a three-year residential holding with a 300M gain
	c := newCalculator(t)
	l := frozenLedger(t, map[string]any{
		fact.FieldAcquisitionDate:  "2020-01-01",
		fact.FieldAcquisitionPrice: 500_000_000,
		fact.FieldDisposalDate:     "2023-01-01",
		fact.FieldDisposalPrice:    800_000_000,
	})

	// WHEN the tax is calculated
	r, err := c.Calculate(l, false)
	require.NoError(t, err)

	// THEN every pipeline line matches the hand calculation:
	//   300M gain, 6% long-term deduction, 2.5M basic deduction,
	//   38% bracket with 19.94M progressive deduction, 10% local tax
	assert.Equal(t, 3, r.HoldingPeriodYears)
	assertAmount(t, 300_000_000, r.TransferIncome, "transfer income")
	assert.Equal(t, 0.06, r.LongTermDeductionRate)
	assertAmount(t, 18_000_000, r.LongTermDeduction, "long-term deduction")
	assertAmount(t, 282_000_000, r.TransferIncomeAmount, "income amount")
	assertAmount(t, 279_500_000, r.TaxableIncome, "taxable income")
	assert.Equal(t, 0.38, r.AppliedRate)
	assertAmount(t, 86_270_000, r.CalculatedTax, "calculated tax")
	assertAmount(t, 8_627_000, r.LocalTax, "local tax")
	assertAmount(t, 94_897_000, r.FinalTax, "final tax")

	assert.False(t, r.IsExempt)
	assert.False(t, r.IsShortTerm)
	assert.Empty(t, r.Warnings)
	assert.Equal(t, "2024.11", r.RuleVersion)
	assert.Len(t, r.Traces, 7, "every step leaves a trace, exemption check included")
}

func TestCalculateShortTermFlatRate(t *testing.T) {
	// GIVEN a six-month residential flip with a 500M gain
	c := newCalculator(t)
	l := frozenLedger(t, map[string]any{
		fact.FieldAcquisitionDate:  "2023-01-01",
		fact.FieldAcquisitionPrice: 1_000_000_000,
		fact.FieldDisposalDate:     "2023-07-01",
		fact.FieldDisposalPrice:    1_500_000_000,
	})

	// WHEN the tax is calculated
	r, err := c.Calculate(l, false)
	require.NoError(t, err)

	// THEN the 70% flat rate applies with no long-term deduction:
	//   (500M - 2.5M) * 0.70 = 348.25M, +10% local = 383,075,000
	require.True(t, r.IsShortTerm)
	assert.Equal(t, 0, r.HoldingPeriodYears)
	assert.Equal(t, 0.70, r.AppliedRate)
	assert.Zero(t, r.LongTermDeductionRate)
	assertAmount(t, 0, r.LongTermDeduction, "long-term deduction")
	assertAmount(t, 497_500_000, r.TaxableIncome, "taxable income")
	assertAmount(t, 348_250_000, r.CalculatedTax, "calculated tax")
	assertAmount(t, 383_075_000, r.FinalTax, "final tax")
}

func TestCalculateOneHouseExemption(t *testing.T) {
	// GIVEN a primary residence held and resided in for three years,
	// sold under the 1.2B exemption limit
	c := newCalculator(t)
	l := frozenLedger(t, map[string]any{
		fact.FieldAcquisitionDate:      "2020-01-01",
		fact.FieldAcquisitionPrice:     500_000_000,
		fact.FieldDisposalDate:         "2023-01-01",
		fact.FieldDisposalPrice:        800_000_000,
		fact.FieldIsPrimaryResidence:   true,
		fact.FieldResidencePeriodYears: 3,
	})

	// WHEN the tax is calculated
	r, err := c.Calculate(l, false)
	require.NoError(t, err)

	// THEN the full gain is exempt and every tax line is zero
	require.True(t, r.IsExempt)
	assertAmount(t, 300_000_000, r.ExemptionAmount, "exemption amount")
	assertAmount(t, 0, r.BasicDeduction, "basic deduction stays zero when exempt")
	assertAmount(t, 0, r.CalculatedTax, "calculated tax")
	assertAmount(t, 0, r.LocalTax, "local tax")
	assertAmount(t, 0, r.FinalTax, "final tax")
	assert.Len(t, r.Traces, 2, "pipeline short-circuits after the exemption check")
}

func TestCalculateExemptionOverLimit(t *testing.T) {
	// GIVEN an otherwise exempt primary residence sold above the 1.2B ceiling
	c := newCalculator(t)
	l := frozenLedger(t, map[string]any{
		fact.FieldAcquisitionDate:      "2015-01-01",
		fact.FieldAcquisitionPrice:     500_000_000,
		fact.FieldDisposalDate:         "2023-01-01",
		fact.FieldDisposalPrice:        2_000_000_000,
		fact.FieldIsPrimaryResidence:   true,
		fact.FieldResidencePeriodYears: 8,
	})

	// WHEN the tax is calculated
	r, err := c.Calculate(l, false)
	require.NoError(t, err)

	// THEN the exemption is withheld, the full gain is taxed, and a
	// warning flags the case for review
	assert.False(t, r.IsExempt)
	assertAmount(t, 0, r.ExemptionAmount, "exemption amount")
	assert.True(t, r.CalculatedTax.IsPositive())
	require.Len(t, r.Warnings, 1)
	assert.Contains(t, r.Warnings[0], "exemption limit")
}

func TestCalculateMultiHouseSurcharge(t *testing.T) {
	// GIVEN a two-house owner disposing in an adjusted target area
	c := newCalculator(t)
	l := frozenLedger(t, map[string]any{
		fact.FieldAcquisitionDate:  "2020-01-01",
		fact.FieldAcquisitionPrice: 500_000_000,
		fact.FieldDisposalDate:     "2023-01-01",
		fact.FieldDisposalPrice:    800_000_000,
		fact.FieldHouseCount:       2,
	})

	// WHEN the tax is calculated with the adjusted-area flag
	r, err := c.Calculate(l, true)
	require.NoError(t, err)

	// THEN 20%p is added on top of the 38% bracket rate:
	//   279.5M * 0.58 - 19.94M = 142,170,000
	assert.Equal(t, 0.20, r.SurchargeRate)
	assert.InDelta(t, 0.58, r.AppliedRate, 1e-9)
	assertAmount(t, 142_170_000, r.CalculatedTax, "calculated tax")
	require.Len(t, r.Warnings, 1)
	assert.Contains(t, r.Warnings[0], "surcharge")

	// AND the same ledger outside an adjusted area gets no surcharge
	r2, err := c.Calculate(l, false)
	require.NoError(t, err)
	assert.Zero(t, r2.SurchargeRate)
	assert.Empty(t, r2.Warnings)
}

func TestCalculateIncidentalCostsReduceGain(t *testing.T) {
	c := newCalculator(t)
	l := frozenLedger(t, map[string]any{
		fact.FieldAcquisitionDate:  "2020-01-01",
		fact.FieldAcquisitionPrice: 500_000_000,
		fact.FieldDisposalDate:     "2023-01-01",
		fact.FieldDisposalPrice:    800_000_000,
		fact.FieldAcquisitionCost:  10_000_000,
		fact.FieldDisposalCost:     5_000_000,
		fact.FieldImprovementCost:  15_000_000,
	})

	r, err := c.Calculate(l, false)
	require.NoError(t, err)
	assertAmount(t, 270_000_000, r.TransferIncome, "transfer income net of costs")
}

func TestCalculateRejectsDraftLedger(t *testing.T) {
	// GIVEN a complete but never-frozen ledger
	c := newCalculator(t)
	l, err := fact.Create(map[string]any{
		fact.FieldAcquisitionDate:  "2020-01-01",
		fact.FieldAcquisitionPrice: 500_000_000,
		fact.FieldDisposalDate:     "2023-01-01",
		fact.FieldDisposalPrice:    800_000_000,
	}, "test")
	require.NoError(t, err)

	// WHEN calculation is attempted
	_, err = c.Calculate(l, false)

	// THEN it refuses: draft facts may still change
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLedgerNotFrozen))
}

func TestCalculateZeroGain(t *testing.T) {
	// Selling at cost produces zero everywhere, not an error.
	c := newCalculator(t)
	l := frozenLedger(t, map[string]any{
		fact.FieldAcquisitionDate:  "2020-01-01",
		fact.FieldAcquisitionPrice: 500_000_000,
		fact.FieldDisposalDate:     "2023-01-01",
		fact.FieldDisposalPrice:    500_000_000,
	})

	r, err := c.Calculate(l, false)
	require.NoError(t, err)
	assertAmount(t, 0, r.TransferIncome, "transfer income")
	assertAmount(t, 0, r.TaxableIncome, "taxable income")
	assertAmount(t, 0, r.FinalTax, "final tax")
}

func TestCalculateLoss(t *testing.T) {
	// A loss floors taxable income at zero via the basic deduction step.
	c := newCalculator(t)
	l := frozenLedger(t, map[string]any{
		fact.FieldAcquisitionDate:  "2020-01-01",
		fact.FieldAcquisitionPrice: 800_000_000,
		fact.FieldDisposalDate:     "2023-01-01",
		fact.FieldDisposalPrice:    500_000_000,
	})

	r, err := c.Calculate(l, false)
	require.NoError(t, err)
	assert.True(t, r.TransferIncome.IsNegative())
	assertAmount(t, 0, r.TransferIncomeAmount, "transfer income amount floors at zero")
	assertAmount(t, 0, r.TaxableIncome, "taxable income")
	assertAmount(t, 0, r.FinalTax, "final tax")
}

func TestCalculateTwoYearBoundary(t *testing.T) {
	// Exactly 730 days is two full 365-day years: progressive, not
	// short-term.
	c := newCalculator(t)
	l := frozenLedger(t, map[string]any{
		fact.FieldAcquisitionDate:  "2021-01-01",
		fact.FieldAcquisitionPrice: 500_000_000,
		fact.FieldDisposalDate:     "2023-01-01",
		fact.FieldDisposalPrice:    600_000_000,
	})

	r, err := c.Calculate(l, false)
	require.NoError(t, err)
	assert.Equal(t, 2, r.HoldingPeriodYears)
	assert.False(t, r.IsShortTerm)
	assert.Zero(t, r.LongTermDeductionRate, "long-term deduction starts at three years")
}

func TestCalculateIsDeterministic(t *testing.T) {
	// Same frozen ledger, same table: identical amounts and traces.
	c := newCalculator(t)
	l := frozenLedger(t, map[string]any{
		fact.FieldAcquisitionDate:  "2020-01-01",
		fact.FieldAcquisitionPrice: 500_000_000,
		fact.FieldDisposalDate:     "2023-01-01",
		fact.FieldDisposalPrice:    800_000_000,
	})

	r1, err := c.Calculate(l, false)
	require.NoError(t, err)
	r2, err := c.Calculate(l, false)
	require.NoError(t, err)

	assert.True(t, r1.FinalTax.Equal(r2.FinalTax))
	assert.Equal(t, r1.Traces, r2.Traces)
}

func TestResultJSONRoundTrip(t *testing.T) {
	// Amounts marshal as strings and survive a round trip exactly.
	c := newCalculator(t)
	l := frozenLedger(t, map[string]any{
		fact.FieldAcquisitionDate:  "2020-01-01",
		fact.FieldAcquisitionPrice: 500_000_000,
		fact.FieldDisposalDate:     "2023-01-01",
		fact.FieldDisposalPrice:    800_000_000,
	})
	r, err := c.Calculate(l, false)
	require.NoError(t, err)

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var back Result
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, r.FinalTax.Equal(back.FinalTax))
	assert.True(t, r.TaxableIncome.Equal(back.TaxableIncome))
	assert.Equal(t, r.Traces, back.Traces)
	assert.Equal(t, r.RuleVersion, back.RuleVersion)
}

func TestEstimate(t *testing.T) {
	c := newCalculator(t)

	t.Run("matches the worked case", func(t *testing.T) {
		r, err := c.Estimate(EstimateInput{
			AcquisitionDate:  "2020-01-01",
			AcquisitionPrice: 500_000_000,
			DisposalDate:     "2023-01-01",
			DisposalPrice:    800_000_000,
		})
		require.NoError(t, err)
		assertAmount(t, 94_897_000, r.FinalTax, "final tax")
	})

	t.Run("primary residence is still taxed in the quick path", func(t *testing.T) {
		// The estimate skips exemption handling entirely; the flag only
		// selects the one-house deduction schedule (12% + 12% at 3 years).
		r, err := c.Estimate(EstimateInput{
			AcquisitionDate:      "2020-01-01",
			AcquisitionPrice:     500_000_000,
			DisposalDate:         "2023-01-01",
			DisposalPrice:        800_000_000,
			IsPrimaryResidence:   true,
			ResidencePeriodYears: 3,
		})
		require.NoError(t, err)
		assert.Equal(t, 0.24, r.LongTermDeductionRate)
		assertAmount(t, 72_000_000, r.LongTermDeduction, "long-term deduction")
		assertAmount(t, 225_500_000, r.TaxableIncome, "taxable income")
		assertAmount(t, 72_325_000, r.FinalTax, "final tax")
	})

	t.Run("reversed dates are rejected", func(t *testing.T) {
		_, err := c.Estimate(EstimateInput{
			AcquisitionDate:  "2023-01-01",
			AcquisitionPrice: 500_000_000,
			DisposalDate:     "2020-01-01",
			DisposalPrice:    800_000_000,
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, fact.ErrDisposalBeforeAcquisition))
	})

	t.Run("invalid date is rejected", func(t *testing.T) {
		_, err := c.Estimate(EstimateInput{
			AcquisitionDate:  "01/01/2020",
			AcquisitionPrice: 500_000_000,
			DisposalDate:     "2023-01-01",
			DisposalPrice:    800_000_000,
		})
		require.Error(t, err)
	})
}

func TestSummaries(t *testing.T) {
	c := newCalculator(t)
	l := frozenLedger(t, map[string]any{
		fact.FieldAcquisitionDate:  "2020-01-01",
		fact.FieldAcquisitionPrice: 500_000_000,
		fact.FieldDisposalDate:     "2023-01-01",
		fact.FieldDisposalPrice:    800_000_000,
	})
	r, err := c.Calculate(l, false)
	require.NoError(t, err)

	assert.Contains(t, r.Summary(), "94897000")
	assert.Contains(t, r.TraceSummary(), "calculate_transfer_income")
	assert.Contains(t, r.TraceSummary(), "calculate_local_tax")
}
