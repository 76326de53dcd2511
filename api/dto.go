/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract: the ledger's
  snapshot form is the wire format for cases, and the calculation Result
  serializes itself (amounts as strings).

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in the domain (ledger coercion, freeze checks), not
  in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - fact.LedgerSnapshot: The embedded case representation
*/
package api

import (
	"github.com/warp/tax-engine/fact"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// CreateCaseRequest opens a new tax case. Fields maps ledger field names to
// values; bare values are wrapped as unconfirmed user input.
type CreateCaseRequest struct {
	CreatedBy string         `json:"created_by"`
	Fields    map[string]any `json:"fields"`
}

// CaseDTO is a case with its derived summaries.
type CaseDTO struct {
	fact.LedgerSnapshot

	CapitalGain           *string            `json:"capital_gain,omitempty"`
	HoldingPeriodYears    *int               `json:"holding_period_years,omitempty"`
	ConfidenceSummary     map[string]float64 `json:"confidence_summary"`
	UnconfirmedFields     []string           `json:"unconfirmed_fields"`
	MissingRequiredFields []string           `json:"missing_required_fields"`
}

// UpdateFactRequest replaces one fact's value. The value may be a bare
// scalar or a full fact object with provenance.
type UpdateFactRequest struct {
	Value any `json:"value"`
}

// ConfirmRequest records who signed off on a fact (or on the whole case).
type ConfirmRequest struct {
	ConfirmedBy string `json:"confirmed_by"`
	Notes       string `json:"notes,omitempty"`
}

// CalculateRequest holds the per-calculation inputs that are not facts.
type CalculateRequest struct {
	IsAdjustedArea bool `json:"is_adjusted_area"`
}

// ScenarioDTO describes one demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a demo scenario to load.
type LoadScenarioRequest struct {
	ID string `json:"id"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
