package rules

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewDefault()
	require.NoError(t, err)
	return e
}

func TestDefaultTableLoads(t *testing.T) {
	// GIVEN the embedded 2024 table
	// WHEN the engine is constructed
	e := mustEngine(t)

	// THEN version and metadata reflect the shipped table
	assert.Equal(t, "2024.11", e.Version())
	assert.Equal(t, "2024-01-01", e.Metadata().EffectiveDate)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("no/such/table.yaml")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTableNotFound))
}

func TestParseRejectsMalformedTables(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing version", `
progressive_tax_brackets:
  - {threshold: null, rate: 0.45, deduction: 0}
`},
		{"no catch-all bracket", `
version: "x"
progressive_tax_brackets:
  - {threshold: 14000000, rate: 0.06, deduction: 0}
`},
		{"catch-all not last", `
version: "x"
progressive_tax_brackets:
  - {threshold: null, rate: 0.45, deduction: 0}
  - {threshold: 14000000, rate: 0.06, deduction: 0}
`},
		{"descending thresholds", `
version: "x"
progressive_tax_brackets:
  - {threshold: 50000000, rate: 0.15, deduction: 0}
  - {threshold: 14000000, rate: 0.06, deduction: 0}
  - {threshold: null, rate: 0.45, deduction: 0}
`},
		{"rate above one", `
version: "x"
progressive_tax_brackets:
  - {threshold: null, rate: 1.45, deduction: 0}
`},
		{"unknown condition operator", `
version: "x"
progressive_tax_brackets:
  - {threshold: null, rate: 0.45, deduction: 0}
deductions:
  one_house_exemption:
    conditions:
      - {field: is_primary_residence, operator: matches, value: true}
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedTable))
		})
	}
}

func TestBracketSelection(t *testing.T) {
	e := mustEngine(t)

	tests := []struct {
		name         string
		income       int64
		wantRate     float64
		wantDeduct   int64
	}{
		{"lowest bracket", 10_000_000, 0.06, 0},
		{"boundary stays in lower bracket", 14_000_000, 0.06, 0},
		{"one won over the boundary", 14_000_001, 0.15, 1_260_000},
		{"scenario amount", 279_500_000, 0.38, 19_940_000},
		{"top catch-all", 2_000_000_000, 0.45, 65_940_000},
		{"zero income", 0, 0.06, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := e.Bracket(decimal.NewFromInt(tt.income))
			assert.Equal(t, tt.wantRate, b.Rate)
			assert.Equal(t, tt.wantDeduct, b.Deduction)
		})
	}
}

func TestShortTermRate(t *testing.T) {
	e := mustEngine(t)

	t.Run("residential under one year", func(t *testing.T) {
		r, err := e.ShortTermRate("residential", 0)
		require.NoError(t, err)
		require.NotNil(t, r)
		assert.Equal(t, 0.70, r.Rate)
	})

	t.Run("residential one to two years", func(t *testing.T) {
		r, err := e.ShortTermRate("residential", 1)
		require.NoError(t, err)
		require.NotNil(t, r)
		assert.Equal(t, 0.60, r.Rate)
	})

	t.Run("non-residential under one year", func(t *testing.T) {
		r, err := e.ShortTermRate("non_residential", 0)
		require.NoError(t, err)
		require.NotNil(t, r)
		assert.Equal(t, 0.50, r.Rate)
	})

	t.Run("two years or more is the progressive path", func(t *testing.T) {
		r, err := e.ShortTermRate("residential", 2)
		require.NoError(t, err)
		assert.Nil(t, r)
	})

	t.Run("uncovered asset type under two years fails hard", func(t *testing.T) {
		_, err := e.ShortTermRate("farmland", 1)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNoCoveringRate))

		var nce *NoCoveringRateError
		require.True(t, errors.As(err, &nce))
		assert.Equal(t, "farmland", nce.AssetType)
		assert.Equal(t, 1, nce.HoldingPeriodYears)
	})
}

func TestLongTermDeductionRate(t *testing.T) {
	e := mustEngine(t)

	tests := []struct {
		name      string
		holding   int
		primary   bool
		residence int
		want      float64
	}{
		{"under three years is zero", 2, false, 0, 0},
		{"general three years", 3, false, 0, 0.06},
		{"general fifteen years", 15, false, 0, 0.30},
		{"general capped beyond fifteen", 25, false, 0, 0.30},
		{"one-house five held five resided", 5, true, 5, 0.40},
		{"one-house ten and ten hits the cap", 10, true, 10, 0.80},
		{"one-house without two years residence falls back to general", 5, true, 1, 0.10},
		{"one-house under three years held is zero", 2, true, 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.LongTermDeductionRate(tt.holding, tt.primary, tt.residence)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestMultiHouseSurcharge(t *testing.T) {
	e := mustEngine(t)

	assert.Zero(t, e.MultiHouseSurcharge(2, false, 5), "outside adjusted area")
	assert.Zero(t, e.MultiHouseSurcharge(2, true, 1), "held under two years")
	assert.Zero(t, e.MultiHouseSurcharge(1, true, 5), "single house")
	assert.Equal(t, 0.20, e.MultiHouseSurcharge(2, true, 5))
	assert.Equal(t, 0.30, e.MultiHouseSurcharge(3, true, 5))
	assert.Equal(t, 0.30, e.MultiHouseSurcharge(7, true, 5))
}

func TestExemptionEligibility(t *testing.T) {
	e := mustEngine(t)

	t.Run("eligible primary residence", func(t *testing.T) {
		ex, err := e.ExemptionEligibility(true, 3, 3)
		require.NoError(t, err)
		require.NotNil(t, ex)
		assert.True(t, ex.Limit().Equal(decimal.NewFromInt(1_200_000_000)))
	})

	t.Run("exact two-year boundaries are eligible", func(t *testing.T) {
		ex, err := e.ExemptionEligibility(true, 2, 2)
		require.NoError(t, err)
		assert.NotNil(t, ex)
	})

	t.Run("not a primary residence", func(t *testing.T) {
		ex, err := e.ExemptionEligibility(false, 10, 10)
		require.NoError(t, err)
		assert.Nil(t, ex)
	})

	t.Run("residence under two years", func(t *testing.T) {
		ex, err := e.ExemptionEligibility(true, 1, 5)
		require.NoError(t, err)
		assert.Nil(t, ex)
	})

	t.Run("holding under two years", func(t *testing.T) {
		ex, err := e.ExemptionEligibility(true, 5, 1)
		require.NoError(t, err)
		assert.Nil(t, ex)
	})
}

func TestFlatConstants(t *testing.T) {
	e := mustEngine(t)

	assert.True(t, e.BasicDeduction().Equal(decimal.NewFromInt(2_500_000)))
	assert.Equal(t, 0.10, e.LocalTaxRate())
}

func TestMissingRequiredFields(t *testing.T) {
	e := mustEngine(t)

	missing := e.MissingRequiredFields(map[string]any{
		"acquisition_date":  "2020-01-01",
		"acquisition_price": int64(500_000_000),
		"disposal_price":    nil,
	})
	assert.Equal(t, []string{"disposal_date", "disposal_price"}, missing)

	assert.Empty(t, e.MissingRequiredFields(map[string]any{
		"acquisition_date":  "2020-01-01",
		"acquisition_price": 1,
		"disposal_date":     "2023-01-01",
		"disposal_price":    2,
	}))
}
