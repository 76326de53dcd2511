/*
estimate.go - Quick estimate without the confirmation workflow

PURPOSE:
  An estimate answers "roughly what would I owe?" from raw inputs in one
  call. It skips the ledger entirely: no facts, no confirmation, no
  freeze, no traces, and no one-house exemption check. The bracket,
  deduction, and surcharge arithmetic is the same as the full pipeline,
  so an estimate and a worked case agree wherever the exemption does not
  apply.

SEE ALSO:
  - calculator.go: The full pipeline a worked case goes through
  - fact.Ledger: The workflow this shortcut bypasses
*/
package tax

import (
	"github.com/shopspring/decimal"

	"github.com/warp/tax-engine/fact"
)

// EstimateInput is the minimal raw input for a quick estimate. Dates are
// "YYYY-MM-DD" strings; amounts are KRW.
type EstimateInput struct {
	AcquisitionDate  string `json:"acquisition_date"`
	AcquisitionPrice int64  `json:"acquisition_price"`
	DisposalDate     string `json:"disposal_date"`
	DisposalPrice    int64  `json:"disposal_price"`

	AcquisitionCost int64 `json:"acquisition_cost,omitempty"`
	DisposalCost    int64 `json:"disposal_cost,omitempty"`
	ImprovementCost int64 `json:"improvement_cost,omitempty"`

	IsPrimaryResidence   bool   `json:"is_primary_residence,omitempty"`
	ResidencePeriodYears int    `json:"residence_period_years,omitempty"`
	HouseCount           int    `json:"house_count,omitempty"`
	AssetType            string `json:"asset_type,omitempty"`
	IsAdjustedArea       bool   `json:"is_adjusted_area,omitempty"`
}

// EstimateResult is the reduced outcome of a quick estimate: headline
// amounts only, no traces and no exemption handling.
type EstimateResult struct {
	RuleVersion        string `json:"rule_version"`
	HoldingPeriodYears int    `json:"holding_period_years"`

	TransferIncome    decimal.Decimal `json:"transfer_income"`
	LongTermDeduction decimal.Decimal `json:"long_term_deduction"`
	TaxableIncome     decimal.Decimal `json:"taxable_income"`
	CalculatedTax     decimal.Decimal `json:"calculated_tax"`
	LocalTax          decimal.Decimal `json:"local_tax"`
	FinalTax          decimal.Decimal `json:"final_tax"`

	LongTermDeductionRate float64 `json:"long_term_deduction_rate"`
	AppliedRate           float64 `json:"applied_rate"`
	SurchargeRate         float64 `json:"surcharge_rate"`
	IsShortTerm           bool    `json:"is_short_term"`
}

// Estimate computes tax directly from raw inputs. AssetType defaults to
// "residential" and HouseCount to 1 when unset. Unlike Calculate it never
// applies the one-house exemption: a primary residence is still taxed,
// with only the one-house deduction schedule reflecting the flag.
func (c *Calculator) Estimate(in EstimateInput) (*EstimateResult, error) {
	acq, err := fact.ParseDate(in.AcquisitionDate)
	if err != nil {
		return nil, err
	}
	disp, err := fact.ParseDate(in.DisposalDate)
	if err != nil {
		return nil, err
	}
	if disp.Before(acq) {
		return nil, fact.ErrDisposalBeforeAcquisition
	}

	holding := fact.YearsBetween(acq, disp)
	costs := decimal.NewFromInt(in.AcquisitionCost).
		Add(decimal.NewFromInt(in.DisposalCost)).
		Add(decimal.NewFromInt(in.ImprovementCost))
	gain := decimal.NewFromInt(in.DisposalPrice).
		Sub(decimal.NewFromInt(in.AcquisitionPrice)).
		Sub(costs)

	r := &EstimateResult{
		RuleVersion:        c.rules.Version(),
		HoldingPeriodYears: holding,
		TransferIncome:     gain,
	}

	r.LongTermDeductionRate = c.rules.LongTermDeductionRate(holding, in.IsPrimaryResidence, in.ResidencePeriodYears)
	if gain.IsPositive() {
		r.LongTermDeduction = mulRate(gain, r.LongTermDeductionRate)
	} else {
		r.LongTermDeduction = decimal.Zero
	}

	r.TaxableIncome = decimal.Max(decimal.Zero,
		gain.Sub(r.LongTermDeduction).Sub(c.rules.BasicDeduction()))

	assetType := in.AssetType
	if assetType == "" {
		assetType = "residential"
	}
	houseCount := in.HouseCount
	if houseCount <= 0 {
		houseCount = 1
	}

	short, err := c.rules.ShortTermRate(assetType, holding)
	if err != nil {
		return nil, err
	}
	if short != nil {
		r.IsShortTerm = true
		r.AppliedRate = short.Rate
		r.CalculatedTax = mulRate(r.TaxableIncome, short.Rate)
	} else {
		bracket := c.rules.Bracket(r.TaxableIncome)
		r.SurchargeRate = c.rules.MultiHouseSurcharge(houseCount, in.IsAdjustedArea, holding)
		r.AppliedRate = bracket.Rate + r.SurchargeRate
		tax := mulRate(r.TaxableIncome, r.AppliedRate).Sub(bracket.ProgressiveDeduction())
		r.CalculatedTax = decimal.Max(decimal.Zero, tax)
	}

	r.LocalTax = mulRate(r.CalculatedTax, c.rules.LocalTaxRate())
	r.FinalTax = r.CalculatedTax.Add(r.LocalTax)
	return r, nil
}
