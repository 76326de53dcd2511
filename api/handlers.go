/*
handlers.go - HTTP API handlers for the tax case workflow

PURPOSE:
  Exposes the fact ledger and calculation engine via REST. Handles HTTP
  request/response, JSON serialization, and delegates everything else to
  the domain packages.

ENDPOINTS:
  Cases:
    POST   /api/cases                        Open a case from raw fields
    GET    /api/cases                        List cases
    GET    /api/cases/{id}                   Case with derived summaries
    PUT    /api/cases/{id}/facts/{field}     Update one fact (drafts only)
    POST   /api/cases/{id}/facts/{field}/confirm  Confirm one fact
    POST   /api/cases/{id}/confirm-all       Bulk confirm (administrative)
    POST   /api/cases/{id}/freeze            Draft -> frozen
    POST   /api/cases/{id}/calculate         Run the pipeline, persist result
    GET    /api/cases/{id}/results           Calculation history

  Calculation without a case:
    POST   /api/estimate                     One-shot estimate

  Rules:
    GET    /api/rules                        Loaded rule-table metadata

  Scenarios:
    GET    /api/scenarios                    List demo scenarios
    POST   /api/scenarios/load               Load a demo scenario
    POST   /api/scenarios/reset              Database reset (dev only)

ERROR HANDLING:
  Errors are returned as JSON with the status derived from the domain
  error kind:
  - 400: Validation errors (bad values, unknown fields, freeze checks)
  - 404: Unknown case
  - 409: State errors (mutating frozen, calculating a draft)
  - 500: Rule-table faults and storage failures

NUMBERS ON THE WIRE:
  Request bodies are decoded with json.Number and numbers are handed to
  the ledger as strings, so large KRW amounts reach the decimal layer
  without passing through float64.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warp/tax-engine/fact"
	"github.com/warp/tax-engine/rules"
	"github.com/warp/tax-engine/store"
	"github.com/warp/tax-engine/tax"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store store.CaseStore
	Rules *rules.Engine
	Calc  *tax.Calculator

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler with the given store and rule engine.
func NewHandler(st store.CaseStore, engine *rules.Engine) *Handler {
	return &Handler{
		Store: st,
		Rules: engine,
		Calc:  tax.New(engine),
	}
}

// =============================================================================
// CASE HANDLERS
// =============================================================================

// CreateCase opens a new case from raw fields.
func (h *Handler) CreateCase(w http.ResponseWriter, r *http.Request) {
	var req CreateCaseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.CreatedBy == "" {
		req.CreatedBy = "api"
	}

	l, err := fact.Create(normalizeFields(req.Fields), req.CreatedBy)
	if err != nil {
		writeDomainError(w, "Failed to create case", err)
		return
	}
	if err := h.Store.SaveCase(r.Context(), l.Snapshot()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save case", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toCaseDTO(l))
}

// ListCases returns all cases, newest first.
func (h *Handler) ListCases(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.Store.ListCases(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list cases", err)
		return
	}

	dtos := make([]CaseDTO, 0, len(snaps))
	for _, snap := range snaps {
		l, err := fact.FromSnapshot(snap)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to decode case", err)
			return
		}
		dtos = append(dtos, h.toCaseDTO(l))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCase returns one case with its derived summaries.
func (h *Handler) GetCase(w http.ResponseWriter, r *http.Request) {
	l, ok := h.loadLedger(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.toCaseDTO(l))
}

// UpdateFact replaces one fact's value. Drafts only.
func (h *Handler) UpdateFact(w http.ResponseWriter, r *http.Request) {
	l, ok := h.loadLedger(w, r)
	if !ok {
		return
	}

	var req UpdateFactRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	field := chi.URLParam(r, "field")
	if err := l.UpdateField(field, normalizeValue(req.Value)); err != nil {
		writeDomainError(w, "Failed to update fact", err)
		return
	}
	if err := h.Store.SaveCase(r.Context(), l.Snapshot()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save case", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toCaseDTO(l))
}

// ConfirmFact confirms one fact, recording who signed off.
func (h *Handler) ConfirmFact(w http.ResponseWriter, r *http.Request) {
	l, ok := h.loadLedger(w, r)
	if !ok {
		return
	}

	var req ConfirmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ConfirmedBy == "" {
		writeError(w, http.StatusBadRequest, "confirmed_by is required", nil)
		return
	}

	field := chi.URLParam(r, "field")
	if err := l.ConfirmField(field, req.ConfirmedBy, req.Notes); err != nil {
		writeDomainError(w, "Failed to confirm fact", err)
		return
	}
	if err := h.Store.SaveCase(r.Context(), l.Snapshot()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save case", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toCaseDTO(l))
}

// ConfirmAll confirms every present fact in one administrative step.
func (h *Handler) ConfirmAll(w http.ResponseWriter, r *http.Request) {
	l, ok := h.loadLedger(w, r)
	if !ok {
		return
	}

	var req ConfirmRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ConfirmedBy == "" {
		writeError(w, http.StatusBadRequest, "confirmed_by is required", nil)
		return
	}

	if err := l.ConfirmAll(req.ConfirmedBy); err != nil {
		writeDomainError(w, "Failed to confirm case", err)
		return
	}
	if err := h.Store.SaveCase(r.Context(), l.Snapshot()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save case", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toCaseDTO(l))
}

// FreezeCase runs the draft -> frozen transition.
func (h *Handler) FreezeCase(w http.ResponseWriter, r *http.Request) {
	l, ok := h.loadLedger(w, r)
	if !ok {
		return
	}

	if err := l.Freeze(); err != nil {
		writeDomainError(w, "Failed to freeze case", err)
		return
	}
	if err := h.Store.SaveCase(r.Context(), l.Snapshot()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save case", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toCaseDTO(l))
}

// CalculateCase runs the pipeline on a frozen case and persists the result.
func (h *Handler) CalculateCase(w http.ResponseWriter, r *http.Request) {
	l, ok := h.loadLedger(w, r)
	if !ok {
		return
	}

	var req CalculateRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	result, err := h.Calc.Calculate(l, req.IsAdjustedArea)
	if err != nil {
		writeDomainError(w, "Calculation failed", err)
		return
	}
	if err := h.Store.SaveResult(r.Context(), result); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save result", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetResults returns a case's calculation history, oldest first.
func (h *Handler) GetResults(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	results, err := h.Store.LoadResults(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to load results", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// =============================================================================
// ESTIMATE AND RULES
// =============================================================================

// Estimate runs a one-shot calculation from raw inputs, nothing persisted.
func (h *Handler) Estimate(w http.ResponseWriter, r *http.Request) {
	var in tax.EstimateInput
	if err := decodeStrict(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.Calc.Estimate(in)
	if err != nil {
		writeDomainError(w, "Estimate failed", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetRules returns the loaded rule-table metadata.
func (h *Handler) GetRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Rules.Metadata())
}

// =============================================================================
// HELPERS
// =============================================================================

// loadLedger fetches and rebuilds the ledger named in the URL. On failure it
// writes the response itself and returns ok=false.
func (h *Handler) loadLedger(w http.ResponseWriter, r *http.Request) (*fact.Ledger, bool) {
	id := chi.URLParam(r, "id")
	snap, err := h.Store.LoadCase(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to load case", err)
		return nil, false
	}
	l, err := fact.FromSnapshot(snap)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to decode case", err)
		return nil, false
	}
	return l, true
}

func (h *Handler) toCaseDTO(l *fact.Ledger) CaseDTO {
	dto := CaseDTO{
		LedgerSnapshot:    l.Snapshot(),
		ConfidenceSummary: l.ConfidenceSummary(),
		UnconfirmedFields: l.UnconfirmedFields(),
	}
	if dto.UnconfirmedFields == nil {
		dto.UnconfirmedFields = []string{}
	}

	// The rule table names its own required inputs; surface what is still
	// missing so the advisor knows what blocks a freeze.
	present := make(map[string]any, len(dto.Facts))
	for _, f := range dto.Facts {
		present[f.Field] = f.Value
	}
	dto.MissingRequiredFields = h.Rules.MissingRequiredFields(present)
	if dto.MissingRequiredFields == nil {
		dto.MissingRequiredFields = []string{}
	}
	if gain, ok := l.CapitalGain(); ok {
		s := gain.String()
		dto.CapitalGain = &s
	}
	if years, ok := l.HoldingPeriodYears(); ok {
		dto.HoldingPeriodYears = &years
	}
	return dto
}

// decodeJSON decodes a body keeping numbers as json.Number, so KRW amounts
// never pass through float64 on their way to the decimal layer.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(v)
}

// decodeStrict is the plain decoder for typed request bodies.
func decodeStrict(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// normalizeValue converts json.Number to string: the ledger's coercers parse
// numeric strings exactly.
func normalizeValue(v any) any {
	if n, ok := v.(json.Number); ok {
		return n.String()
	}
	return v
}

func normalizeFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = normalizeValue(v)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps a domain error to its HTTP status.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, store.ErrCaseNotFound):
		writeError(w, http.StatusNotFound, "Case not found", err)
	case fact.IsValidation(err):
		writeError(w, http.StatusBadRequest, message, err)
	case fact.IsState(err), errors.Is(err, tax.ErrLedgerNotFrozen):
		writeError(w, http.StatusConflict, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
