/*
calculator.go - Eight-step capital gains pipeline

PURPOSE:
  Turns one frozen ledger plus one rule table into a Result. The pipeline
  is fixed and each step leaves a Trace:

    1. calculate_transfer_income         disposal - acquisition - costs
    2. check_exemption                   one-house exemption short-circuit
    3. calculate_long_term_deduction     holding/residence schedule
    4. calculate_transfer_income_amount  income minus long-term deduction
    5. apply_basic_deduction             flat 2,500,000, floored at zero
    6. calculate_progressive_tax         rate*taxable - bracket deduction
       / calculate_short_term_tax        flat rate for sub-two-year holds
    7. calculate_local_tax               10% of the national tax
    8. (total)                           final = tax + local

CRITICAL INVARIANTS:
  1. Only frozen ledgers calculate - draft facts may still change
  2. The calculator reads every rate from the engine, never a literal
  3. Same ledger + same table = identical Result, traces included
  4. Warnings inform, they never alter an amount

ROUNDING:
  Monetary results truncate to whole won after each rate application.

SEE ALSO:
  - trace.go: Result and Trace types
  - fact: The ledger contract (Freeze gates this code)
*/
package tax

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/tax-engine/fact"
	"github.com/warp/tax-engine/rules"
)

// ErrLedgerNotFrozen is returned when calculation is attempted against a
// draft ledger. Freeze first; calculation never runs on mutable facts.
var ErrLedgerNotFrozen = errors.New("ledger must be frozen before calculation")

// Calculator runs the pipeline against one rule engine. Stateless and safe
// for concurrent use.
type Calculator struct {
	rules *rules.Engine
}

func New(engine *rules.Engine) *Calculator {
	return &Calculator{rules: engine}
}

// Calculate runs the full pipeline. isAdjustedArea marks the property as
// sitting in an adjusted target area, which arms the multi-house surcharge.
func (c *Calculator) Calculate(l *fact.Ledger, isAdjustedArea bool) (*Result, error) {
	if !l.IsFrozen() {
		return nil, ErrLedgerNotFrozen
	}

	holding, _ := l.HoldingPeriodYears()
	gain, _ := l.CapitalGain()

	r := &Result{
		TransactionID:      l.TransactionID,
		RuleVersion:        c.rules.Version(),
		HoldingPeriodYears: holding,
		CalculatedAt:       time.Now().UTC(),
	}

	// Step 1: transfer income.
	r.TransferIncome = gain
	r.addTrace("calculate_transfer_income",
		"disposal price minus acquisition price and incidental costs",
		map[string]string{
			"disposal_price":    l.DisposalPrice.Value.String(),
			"acquisition_price": l.AcquisitionPrice.Value.String(),
		},
		"transfer_income = disposal_price - acquisition_price - costs",
		r.TransferIncome.String(), "")

	// Step 2: one-house exemption.
	primary := boolField(l.IsPrimaryResidence)
	residence := intField(l.ResidencePeriodYears, 0)
	exempt, err := c.checkExemption(r, l.DisposalPrice.Value, primary, residence, holding)
	if err != nil {
		return nil, err
	}
	if exempt {
		// Every tax line, the basic deduction included, stays zero on
		// the exempt result.
		return r, nil
	}
	r.BasicDeduction = c.rules.BasicDeduction()

	// Step 3: long-term holding deduction.
	r.LongTermDeductionRate = c.rules.LongTermDeductionRate(holding, primary, residence)
	if r.TransferIncome.IsPositive() {
		r.LongTermDeduction = mulRate(r.TransferIncome, r.LongTermDeductionRate)
	} else {
		r.LongTermDeduction = decimal.Zero
	}
	r.addTrace("calculate_long_term_deduction",
		"special long-term holding deduction",
		map[string]string{
			"transfer_income":      r.TransferIncome.String(),
			"holding_period_years": fmt.Sprint(holding),
			"deduction_rate":       fmt.Sprint(r.LongTermDeductionRate),
		},
		"long_term_deduction = transfer_income * deduction_rate",
		r.LongTermDeduction.String(), "Income Tax Act, Article 95(2)")

	// Step 4: transfer income amount, floored at zero on a loss.
	r.TransferIncomeAmount = decimal.Max(decimal.Zero, r.TransferIncome.Sub(r.LongTermDeduction))
	r.addTrace("calculate_transfer_income_amount",
		"transfer income minus the long-term deduction",
		map[string]string{
			"transfer_income":     r.TransferIncome.String(),
			"long_term_deduction": r.LongTermDeduction.String(),
		},
		"transfer_income_amount = max(0, transfer_income - long_term_deduction)",
		r.TransferIncomeAmount.String(), "")

	// Step 5: basic deduction, floored at zero.
	r.TaxableIncome = decimal.Max(decimal.Zero, r.TransferIncomeAmount.Sub(r.BasicDeduction))
	r.addTrace("apply_basic_deduction",
		"flat annual deduction",
		map[string]string{
			"transfer_income_amount": r.TransferIncomeAmount.String(),
			"basic_deduction":        r.BasicDeduction.String(),
		},
		"taxable_income = max(0, transfer_income_amount - basic_deduction)",
		r.TaxableIncome.String(), "Income Tax Act, Article 103")

	// Step 6: national tax, short-term or progressive.
	if err := c.applyTaxRate(r, l, holding, isAdjustedArea); err != nil {
		return nil, err
	}

	// Step 7: local income tax and total.
	localRate := c.rules.LocalTaxRate()
	r.LocalTax = mulRate(r.CalculatedTax, localRate)
	r.FinalTax = r.CalculatedTax.Add(r.LocalTax)
	r.addTrace("calculate_local_tax",
		"local income tax on the national tax, and the final total",
		map[string]string{
			"calculated_tax": r.CalculatedTax.String(),
			"local_tax_rate": fmt.Sprint(localRate),
		},
		"local_tax = calculated_tax * local_tax_rate; final_tax = calculated_tax + local_tax",
		fmt.Sprintf("local=%s final=%s", r.LocalTax, r.FinalTax), "Local Tax Act, Article 92")

	return r, nil
}

// checkExemption handles step 2. Returns true when the pipeline should stop
// because the full gain is exempt.
func (c *Calculator) checkExemption(r *Result, disposalPrice decimal.Decimal, primary bool, residence, holding int) (bool, error) {
	ex, err := c.rules.ExemptionEligibility(primary, residence, holding)
	if err != nil {
		return false, err
	}
	if ex == nil {
		r.addTrace("check_exemption",
			"one-house exemption conditions not met",
			map[string]string{
				"is_primary_residence":   fmt.Sprint(primary),
				"residence_period_years": fmt.Sprint(residence),
				"holding_period_years":   fmt.Sprint(holding),
			},
			"", "not exempt", "")
		return false, nil
	}
	if disposalPrice.GreaterThan(ex.Limit()) {
		// Over the ceiling the exemption does not apply at all and the whole
		// gain is taxed. A partial exemption on the excess portion would need
		// the high-value-house proration rules, which this table does not
		// carry, so the conservative full-tax treatment applies with a
		// warning for review.
		r.warn("disposal price %s exceeds the exemption limit %s; exemption not applied",
			disposalPrice, ex.Limit())
		r.Traces = append(r.Traces, Trace{
			Step:        "check_exemption",
			AppliedRule: "exemption conditions met but the disposal price exceeds the limit",
			Inputs: map[string]string{
				"disposal_price":  disposalPrice.String(),
				"exemption_limit": ex.Limit().String(),
			},
			Formula:    "exempt = disposal_price <= exemption_limit",
			Output:     "not exempt (over limit)",
			LegalBasis: ex.LegalBasis,
			Notes:      "full gain taxed; no proration of the excess over the ceiling",
		})
		return false, nil
	}
	r.IsExempt = true
	r.ExemptionAmount = r.TransferIncome
	r.addTrace("check_exemption",
		"one-house exemption applies, full transfer income exempt",
		map[string]string{
			"disposal_price":  disposalPrice.String(),
			"transfer_income": r.TransferIncome.String(),
			"exemption_limit": ex.Limit().String(),
		},
		"exempt = disposal_price <= exemption_limit",
		r.ExemptionAmount.String(), ex.LegalBasis)
	return true, nil
}

// applyTaxRate handles step 6. Sub-two-year holdings take the flat
// short-term rate; everything else takes the progressive brackets plus any
// multi-house surcharge.
func (c *Calculator) applyTaxRate(r *Result, l *fact.Ledger, holding int, isAdjustedArea bool) error {
	assetType := stringField(l.AssetType, "residential")
	short, err := c.rules.ShortTermRate(assetType, holding)
	if err != nil {
		return err
	}

	if short != nil {
		r.IsShortTerm = true
		r.AppliedRate = short.Rate
		r.CalculatedTax = mulRate(r.TaxableIncome, short.Rate)
		r.addTrace("calculate_short_term_tax",
			short.Name,
			map[string]string{
				"taxable_income":       r.TaxableIncome.String(),
				"rate":                 fmt.Sprint(short.Rate),
				"holding_period_years": fmt.Sprint(holding),
			},
			"tax = taxable_income * rate",
			r.CalculatedTax.String(), short.LegalBasis)
		return nil
	}

	houseCount := intField(l.HouseCount, 1)
	bracket := c.rules.Bracket(r.TaxableIncome)
	r.SurchargeRate = c.rules.MultiHouseSurcharge(houseCount, isAdjustedArea, holding)
	r.AppliedRate = bracket.Rate + r.SurchargeRate
	if r.SurchargeRate > 0 {
		r.warn("multi-house surcharge %.0f%%p applied (%d houses in an adjusted target area)",
			r.SurchargeRate*100, houseCount)
	}

	tax := mulRate(r.TaxableIncome, r.AppliedRate).Sub(bracket.ProgressiveDeduction())
	r.CalculatedTax = decimal.Max(decimal.Zero, tax)
	r.addTrace("calculate_progressive_tax",
		"progressive rate times taxable income minus the bracket deduction",
		map[string]string{
			"taxable_income":        r.TaxableIncome.String(),
			"bracket_rate":          fmt.Sprint(bracket.Rate),
			"surcharge_rate":        fmt.Sprint(r.SurchargeRate),
			"progressive_deduction": bracket.ProgressiveDeduction().String(),
		},
		"tax = taxable_income * (bracket_rate + surcharge_rate) - progressive_deduction",
		r.CalculatedTax.String(), "Income Tax Act, Article 104(1)")
	return nil
}

// mulRate multiplies a decimal amount by a table rate and truncates to
// whole won.
func mulRate(amount decimal.Decimal, rate float64) decimal.Decimal {
	return amount.Mul(decimal.NewFromFloat(rate)).RoundDown(0)
}

func boolField(f *fact.Fact[bool]) bool {
	return f != nil && f.Value
}

func intField(f *fact.Fact[int], def int) int {
	if f == nil {
		return def
	}
	return f.Value
}

func stringField(f *fact.Fact[string], def string) string {
	if f == nil || f.Value == "" {
		return def
	}
	return f.Value
}
