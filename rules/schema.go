/*
schema.go - Declarative rule-table schema and load-time validation

PURPOSE:
  Defines the Go shape of the YAML rule table. The table is pure data:
  bracket thresholds, flat short-term rates, deduction schedules, exemption
  conditions, surcharge tiers, and flat constants. Rates are fractions
  (0.06 = 6%), monetary amounts are integer KRW converted to decimals at
  the query boundary.

WHY YAML?
  - Tax law changes yearly; rates must change without code changes
  - The table is versioned and auditable alongside the code
  - A reviewer can diff two rule years line by line

VALIDATION:
  A malformed table is a configuration error and is fatal at load: brackets
  must ascend with exactly one nil-threshold catch-all last, every rate must
  sit in [0, 1], and amounts must be non-negative. A bad table silently
  mis-taxes, so nothing here defaults.

SEE ALSO:
  - engine.go: Query layer over this schema
  - tax_rules_2024.yaml: The shipped 2024 table
*/
package rules

import (
	"fmt"
)

// =============================================================================
// TABLE SCHEMA - Mirrors the YAML document
// =============================================================================

// Table is the complete declarative rule set for one tax year.
type Table struct {
	Version       string `yaml:"version"`
	EffectiveDate string `yaml:"effective_date"`
	Description   string `yaml:"description"`

	ProgressiveTaxBrackets []Bracket                `yaml:"progressive_tax_brackets"`
	ShortTermRates         map[string]ShortTermRate `yaml:"short_term_rates"`
	Deductions             Deductions               `yaml:"deductions"`
	MultiHouseSurcharge    MultiHouseSurcharge      `yaml:"multi_house_surcharge"`
	Additional             Additional               `yaml:"additional_considerations"`
	Validation             ValidationRules          `yaml:"validation_rules"`
}

// Bracket is one progressive bracket. Threshold is the inclusive upper
// bound; nil marks the top catch-all bracket. Deduction is the fixed
// progressive subtraction for the classic rate*income - deduction form.
type Bracket struct {
	Threshold   *int64  `yaml:"threshold"`
	Rate        float64 `yaml:"rate"`
	Deduction   int64   `yaml:"deduction"`
	Description string  `yaml:"description"`
}

// ShortTermRate is a flat proportional rate for sub-two-year holdings,
// matched on asset type and [min, max) holding years.
type ShortTermRate struct {
	Name             string  `yaml:"name"`
	AssetType        string  `yaml:"asset_type"`
	HoldingPeriodMin int     `yaml:"holding_period_min"`
	HoldingPeriodMax int     `yaml:"holding_period_max"`
	Rate             float64 `yaml:"rate"`
	LegalBasis       string  `yaml:"legal_basis"`
}

type Deductions struct {
	LongTermHolding LongTermHolding `yaml:"long_term_holding_deduction"`
	OneHouseExempt  Exemption       `yaml:"one_house_exemption"`
}

// LongTermHolding holds the two deduction tracks.
type LongTermHolding struct {
	OneHouseOwner OneHouseTrack `yaml:"one_house_owner"`
	General       GeneralTrack  `yaml:"general"`
}

// OneHouseTrack sums a holding-years schedule and a residence-years
// schedule, capped at MaxRate.
type OneHouseTrack struct {
	BaseRates      []YearRate `yaml:"base_rates"`
	ResidenceRates []YearRate `yaml:"residence_rates"`
	MaxRate        float64    `yaml:"max_rate"`
	LegalBasis     string     `yaml:"legal_basis"`
}

// GeneralTrack is a single holding-years schedule capped at MaxRate.
type GeneralTrack struct {
	Rates      []YearRate `yaml:"rates"`
	MaxRate    float64    `yaml:"max_rate"`
	LegalBasis string     `yaml:"legal_basis"`
}

// YearRate maps a minimum year count to a rate. Lookups take the highest
// entry whose Years does not exceed the actual count.
type YearRate struct {
	Years int     `yaml:"years"`
	Rate  float64 `yaml:"rate"`
}

// Exemption is a condition list plus a monetary ceiling.
type Exemption struct {
	Name           string      `yaml:"name"`
	Conditions     []Condition `yaml:"conditions"`
	ExemptionLimit int64       `yaml:"exemption_limit"`
	LegalBasis     string      `yaml:"legal_basis"`
}

// Condition is one predicate in an exemption rule: field OP value.
// Supported operators: eq, ne, lt, lte, gt, gte.
type Condition struct {
	Field    string `yaml:"field"`
	Operator string `yaml:"operator"`
	Value    any    `yaml:"value"`
}

type MultiHouseSurcharge struct {
	TwoHouses         SurchargeTier `yaml:"two_houses"`
	ThreeOrMoreHouses SurchargeTier `yaml:"three_or_more_houses"`
}

type SurchargeTier struct {
	AdditionalRate float64 `yaml:"additional_rate"`
	LegalBasis     string  `yaml:"legal_basis"`
}

type Additional struct {
	BasicDeduction BasicDeduction `yaml:"basic_deduction"`
	LocalIncomeTax LocalIncomeTax `yaml:"local_income_tax"`
}

type BasicDeduction struct {
	Amount     int64  `yaml:"amount"`
	LegalBasis string `yaml:"legal_basis"`
}

type LocalIncomeTax struct {
	Rate       float64 `yaml:"rate"`
	LegalBasis string  `yaml:"legal_basis"`
}

type ValidationRules struct {
	RequiredFields []string `yaml:"required_fields"`
}

// =============================================================================
// LOAD-TIME VALIDATION
// =============================================================================

func (t *Table) validate() error {
	if t.Version == "" {
		return fmt.Errorf("%w: missing version", ErrMalformedTable)
	}
	if len(t.ProgressiveTaxBrackets) == 0 {
		return fmt.Errorf("%w: no progressive brackets", ErrMalformedTable)
	}
	var prev int64 = -1
	for i, b := range t.ProgressiveTaxBrackets {
		if b.Rate < 0 || b.Rate > 1 {
			return fmt.Errorf("%w: bracket %d rate %v out of range", ErrMalformedTable, i, b.Rate)
		}
		if b.Deduction < 0 {
			return fmt.Errorf("%w: bracket %d has negative deduction", ErrMalformedTable, i)
		}
		if b.Threshold == nil {
			if i != len(t.ProgressiveTaxBrackets)-1 {
				return fmt.Errorf("%w: catch-all bracket must be last", ErrMalformedTable)
			}
			continue
		}
		if *b.Threshold <= prev {
			return fmt.Errorf("%w: bracket thresholds must ascend", ErrMalformedTable)
		}
		prev = *b.Threshold
	}
	if t.ProgressiveTaxBrackets[len(t.ProgressiveTaxBrackets)-1].Threshold != nil {
		return fmt.Errorf("%w: top bracket must have a null threshold", ErrMalformedTable)
	}
	for name, r := range t.ShortTermRates {
		if r.Rate < 0 || r.Rate > 1 {
			return fmt.Errorf("%w: short-term rate %q out of range", ErrMalformedTable, name)
		}
		if r.HoldingPeriodMin < 0 || r.HoldingPeriodMax <= r.HoldingPeriodMin {
			return fmt.Errorf("%w: short-term rate %q has an invalid period", ErrMalformedTable, name)
		}
	}
	if t.Deductions.OneHouseExempt.ExemptionLimit < 0 {
		return fmt.Errorf("%w: negative exemption limit", ErrMalformedTable)
	}
	if t.Additional.BasicDeduction.Amount < 0 {
		return fmt.Errorf("%w: negative basic deduction", ErrMalformedTable)
	}
	if r := t.Additional.LocalIncomeTax.Rate; r < 0 || r > 1 {
		return fmt.Errorf("%w: local tax rate out of range", ErrMalformedTable)
	}
	for _, c := range t.Deductions.OneHouseExempt.Conditions {
		switch c.Operator {
		case "eq", "ne", "lt", "lte", "gt", "gte":
		default:
			return fmt.Errorf("%w: %v", ErrMalformedTable, &UnsupportedOperatorError{Operator: c.Operator})
		}
	}
	return nil
}
