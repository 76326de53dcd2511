/*
Package tax computes Korean real-estate capital gains tax from a frozen
fact ledger and a rule table, producing a fully traced result.

PURPOSE:
  The calculator walks a fixed eight-step pipeline (transfer income,
  exemption, long-term deduction, income amount, basic deduction, tax,
  local tax) and records one Trace per step. The result is an audit
  record: a reviewer can recompute every line from the traces alone.

KEY CONCEPTS:
  - Trace: one pipeline step - named inputs, output, legal basis
  - Result: final amounts plus every trace, the rule version used,
    and any warnings raised along the way
  - Warnings never change amounts; they flag conditions a human should
    review (exemption limit exceeded, surcharge applied)

MONEY:
  Amounts are decimal throughout and marshal as strings, so a persisted
  result round-trips without floating-point drift. Rates stay float64:
  they come from the rule table and multiply into decimals at use.

SEE ALSO:
  - calculator.go: The pipeline that fills these types
  - rules: The table every rate and threshold comes from
*/
package tax

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Trace records one calculation step with enough detail to recompute it.
type Trace struct {
	Step        string            `json:"step_name"`
	AppliedRule string            `json:"applied_rule"`
	Inputs      map[string]string `json:"input_facts"`
	Formula     string            `json:"formula,omitempty"`
	Output      string            `json:"output_value"`
	LegalBasis  string            `json:"legal_basis,omitempty"`
	Notes       string            `json:"notes,omitempty"`
}

// Result is the complete outcome of one calculation run.
type Result struct {
	TransactionID      string `json:"transaction_id"`
	RuleVersion        string `json:"rule_version"`
	HoldingPeriodYears int    `json:"holding_period_years"`

	TransferIncome       decimal.Decimal `json:"transfer_income"`
	ExemptionAmount      decimal.Decimal `json:"exemption_amount"`
	LongTermDeduction    decimal.Decimal `json:"long_term_deduction"`
	TransferIncomeAmount decimal.Decimal `json:"transfer_income_amount"`
	BasicDeduction       decimal.Decimal `json:"basic_deduction"`
	TaxableIncome        decimal.Decimal `json:"taxable_income"`
	CalculatedTax        decimal.Decimal `json:"calculated_tax"`
	LocalTax             decimal.Decimal `json:"local_tax"`
	FinalTax             decimal.Decimal `json:"final_tax"`

	LongTermDeductionRate float64 `json:"long_term_deduction_rate"`
	AppliedRate           float64 `json:"applied_rate"`
	SurchargeRate         float64 `json:"surcharge_rate"`
	IsExempt              bool    `json:"is_exempt"`
	IsShortTerm           bool    `json:"is_short_term"`

	Warnings     []string  `json:"warnings,omitempty"`
	Traces       []Trace   `json:"traces"`
	CalculatedAt time.Time `json:"calculated_at"`
}

// addTrace appends one step record. Inputs and output are pre-rendered
// strings so the trace is stable regardless of how it is later serialized.
func (r *Result) addTrace(step, rule string, inputs map[string]string, formula, output, legalBasis string) {
	r.Traces = append(r.Traces, Trace{
		Step:        step,
		AppliedRule: rule,
		Inputs:      inputs,
		Formula:     formula,
		Output:      output,
		LegalBasis:  legalBasis,
	})
}

func (r *Result) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Summary renders the headline amounts on one line, for logs and CLIs.
func (r *Result) Summary() string {
	if r.IsExempt {
		return fmt.Sprintf("exempt (transfer income %s fully exempted, rules %s)",
			r.TransferIncome, r.RuleVersion)
	}
	return fmt.Sprintf("transfer income %s, taxable %s, tax %s, local %s, final %s (rules %s)",
		r.TransferIncome, r.TaxableIncome, r.CalculatedTax, r.LocalTax, r.FinalTax, r.RuleVersion)
}

// TraceSummary renders every step as "step: output", one per line.
func (r *Result) TraceSummary() string {
	var b strings.Builder
	for i, tr := range r.Traces {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. %s: %s", i+1, tr.Step, tr.Output)
	}
	return b.String()
}
