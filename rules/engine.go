/*
Package rules loads the declarative tax rule table and answers point queries.

PURPOSE:
  The engine is a pure query layer: it selects brackets, flat rates,
  deduction rates, surcharge tiers, and exemption records from an
  externally-loaded table. It performs no tax arithmetic itself - the
  calculator does that - and holds no mutable state after construction,
  so one engine is safe to share across any number of calculations.

TIE-BREAK RULES (exact, tested):
  - Bracket: linear scan ascending; first bracket whose threshold is nil
    or >= income wins (thresholds are inclusive upper bounds)
  - Short-term: exact asset-type match with min <= years < max; years >= 2
    returns nil (caller must take the progressive path); a gap below two
    years is a fatal table bug
  - Long-term deduction: highest schedule row not exceeding the year count,
    per track, clamped to the track maximum; zero below three years held
  - Surcharge: zero unless adjusted area and held >= 2 years, then tiered
    on house count

FAILURE SEMANTICS:
  Missing file and malformed schema are fatal at construction. A required
  lookup with no covering row is a fatal error, never a silent zero - a
  defaulted rate misstates tax owed.

USAGE:
  engine, err := rules.NewDefault()          // embedded 2024.11 table
  engine, err := rules.Load("rules/2025.yaml") // explicit file

  The engine is an injected dependency: construct it once and pass it to
  the calculator. There is no process-wide registry.

SEE ALSO:
  - schema.go: Table types and validation
  - tax/calculator.go: The only consumer of these queries
*/
package rules

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed tax_rules_2024.yaml
var defaultTable []byte

// Engine answers point queries against one immutable rule table.
type Engine struct {
	table Table
}

// NewDefault loads the embedded 2024.11 table.
func NewDefault() (*Engine, error) {
	return Parse(defaultTable)
}

// Load reads and validates a rule table from a YAML file.
func Load(path string) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTableNotFound, path, err)
	}
	return Parse(data)
}

// Parse validates a rule table from raw YAML.
func Parse(data []byte) (*Engine, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTable, err)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &Engine{table: t}, nil
}

// Version returns the table's version string, e.g. "2024.11".
func (e *Engine) Version() string { return e.table.Version }

// Metadata describes the loaded table for API responses and audit records.
type Metadata struct {
	Version       string `json:"version"`
	EffectiveDate string `json:"effective_date"`
	Description   string `json:"description"`
}

func (e *Engine) Metadata() Metadata {
	return Metadata{
		Version:       e.table.Version,
		EffectiveDate: e.table.EffectiveDate,
		Description:   e.table.Description,
	}
}

// =============================================================================
// BRACKET LOOKUP
// =============================================================================

// Bracket returns the progressive bracket covering taxableIncome: the first
// bracket in ascending order whose threshold is nil or >= the income.
// Thresholds are inclusive, so income exactly at a boundary takes the lower
// bracket's rate.
func (e *Engine) Bracket(taxableIncome decimal.Decimal) Bracket {
	for _, b := range e.table.ProgressiveTaxBrackets {
		if b.Threshold == nil || taxableIncome.LessThanOrEqual(decimal.NewFromInt(*b.Threshold)) {
			return b
		}
	}
	// validate() guarantees a nil-threshold catch-all, so this is unreachable;
	// return the top bracket rather than invent a rate.
	return e.table.ProgressiveTaxBrackets[len(e.table.ProgressiveTaxBrackets)-1]
}

// ProgressiveDeduction converts a bracket's fixed subtraction to decimal.
func (b Bracket) ProgressiveDeduction() decimal.Decimal {
	return decimal.NewFromInt(b.Deduction)
}

// =============================================================================
// SHORT-TERM RATE LOOKUP
// =============================================================================

// ShortTermRate finds the flat rate for a sub-two-year holding. Returns
// (nil, nil) for holdings of two years or more - that is the progressive
// path, not an error. For holdings under two years a missing row is a
// table bug and fails hard.
func (e *Engine) ShortTermRate(assetType string, holdingPeriodYears int) (*ShortTermRate, error) {
	if holdingPeriodYears >= 2 {
		return nil, nil
	}
	for _, r := range e.table.ShortTermRates {
		if r.AssetType != assetType {
			continue
		}
		if r.HoldingPeriodMin <= holdingPeriodYears && holdingPeriodYears < r.HoldingPeriodMax {
			rate := r
			return &rate, nil
		}
	}
	return nil, &NoCoveringRateError{AssetType: assetType, HoldingPeriodYears: holdingPeriodYears}
}

// =============================================================================
// LONG-TERM HOLDING DEDUCTION
// =============================================================================

// LongTermDeductionRate returns the special long-term holding deduction
// rate. Below three years held the rate is zero on every track. The
// one-house track (holding plus residence schedules, capped at its max)
// applies only to a primary residence with two or more years of residence;
// everything else takes the general track.
func (e *Engine) LongTermDeductionRate(holdingPeriodYears int, isPrimaryResidence bool, residencePeriodYears int) float64 {
	if holdingPeriodYears < 3 {
		return 0
	}
	lt := e.table.Deductions.LongTermHolding

	if isPrimaryResidence && residencePeriodYears >= 2 {
		holdingRate := highestRate(lt.OneHouseOwner.BaseRates, holdingPeriodYears)
		residenceRate := highestRate(lt.OneHouseOwner.ResidenceRates, residencePeriodYears)
		return clampRate(holdingRate+residenceRate, lt.OneHouseOwner.MaxRate)
	}
	return clampRate(highestRate(lt.General.Rates, holdingPeriodYears), lt.General.MaxRate)
}

// highestRate picks the rate of the highest schedule row whose year
// threshold does not exceed years. Schedules are declared ascending.
func highestRate(schedule []YearRate, years int) float64 {
	rate := 0.0
	for _, row := range schedule {
		if years >= row.Years {
			rate = row.Rate
		}
	}
	return rate
}

func clampRate(rate, max float64) float64 {
	if rate > max {
		return max
	}
	return rate
}

// =============================================================================
// MULTI-HOUSE SURCHARGE
// =============================================================================

// MultiHouseSurcharge returns the additional rate for multi-house owners.
// Zero unless the property sits in an adjusted target area and was held at
// least two years; then tiered by house count.
func (e *Engine) MultiHouseSurcharge(houseCount int, isAdjustedArea bool, holdingPeriodYears int) float64 {
	if !isAdjustedArea || holdingPeriodYears < 2 {
		return 0
	}
	switch {
	case houseCount >= 3:
		return e.table.MultiHouseSurcharge.ThreeOrMoreHouses.AdditionalRate
	case houseCount == 2:
		return e.table.MultiHouseSurcharge.TwoHouses.AdditionalRate
	default:
		return 0
	}
}

// =============================================================================
// EXEMPTION
// =============================================================================

// ExemptionEligibility evaluates the one-house exemption conditions against
// the given facts. Returns the exemption record when every condition holds,
// nil otherwise. Condition evaluation errors (unknown operator) surface as
// errors rather than a silent "not eligible".
func (e *Engine) ExemptionEligibility(isPrimaryResidence bool, residencePeriodYears, holdingPeriodYears int) (*Exemption, error) {
	facts := map[string]any{
		"is_primary_residence":   isPrimaryResidence,
		"residence_period_years": residencePeriodYears,
		"holding_period_years":   holdingPeriodYears,
	}
	ex := e.table.Deductions.OneHouseExempt
	for _, c := range ex.Conditions {
		v, ok := facts[c.Field]
		if !ok {
			return nil, nil
		}
		holds, err := evaluateCondition(v, c.Operator, c.Value)
		if err != nil {
			return nil, err
		}
		if !holds {
			return nil, nil
		}
	}
	out := ex
	return &out, nil
}

// ExemptionLimit converts the exemption ceiling to decimal.
func (x Exemption) Limit() decimal.Decimal {
	return decimal.NewFromInt(x.ExemptionLimit)
}

func evaluateCondition(factValue any, operator string, target any) (bool, error) {
	// Booleans only support equality.
	if fb, ok := factValue.(bool); ok {
		tb, ok := target.(bool)
		if !ok {
			return false, nil
		}
		switch operator {
		case "eq":
			return fb == tb, nil
		case "ne":
			return fb != tb, nil
		default:
			return false, &UnsupportedOperatorError{Operator: operator}
		}
	}

	fv, okF := toFloat(factValue)
	tv, okT := toFloat(target)
	if !okF || !okT {
		return false, nil
	}
	switch operator {
	case "eq":
		return fv == tv, nil
	case "ne":
		return fv != tv, nil
	case "lt":
		return fv < tv, nil
	case "lte":
		return fv <= tv, nil
	case "gt":
		return fv > tv, nil
	case "gte":
		return fv >= tv, nil
	default:
		return false, &UnsupportedOperatorError{Operator: operator}
	}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}

// =============================================================================
// FLAT CONSTANTS
// =============================================================================

// BasicDeduction returns the flat annual deduction (2,500,000 for 2024).
func (e *Engine) BasicDeduction() decimal.Decimal {
	return decimal.NewFromInt(e.table.Additional.BasicDeduction.Amount)
}

// LocalTaxRate returns the local income tax rate applied to the national
// tax (0.10 for 2024).
func (e *Engine) LocalTaxRate() float64 {
	return e.table.Additional.LocalIncomeTax.Rate
}

// =============================================================================
// REQUIRED-FIELD VALIDATION
// =============================================================================

// MissingRequiredFields returns the table's required field names absent
// from the given fact map (nil values count as absent).
func (e *Engine) MissingRequiredFields(facts map[string]any) []string {
	var missing []string
	for _, name := range e.table.Validation.RequiredFields {
		v, ok := facts[name]
		if !ok || v == nil {
			missing = append(missing, name)
		}
	}
	return missing
}
