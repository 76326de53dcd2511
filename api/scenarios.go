/*
scenarios.go - Demo scenario loaders

PURPOSE:
  Seeds the database with small, recognizable tax cases so the API can be
  explored without hand-building a ledger first. Each scenario resets the
  store and loads one canonical case; the frozen ones are ready to
  calculate, the draft one shows the confirmation workflow.

AVAILABLE SCENARIOS:
  standard-sale:      Three-year sale through the progressive brackets
  short-term-flip:    Six-month flip at the 70% flat rate
  primary-residence:  Fully exempt single house
  draft-case:         Unconfirmed facts; walk confirm and freeze yourself

NOTE:
  Scenarios reset the database. Development and demo environments only.

SEE ALSO:
  - handlers.go: Routes that trigger these loaders
*/
package api

import (
	"context"
	"net/http"

	"github.com/warp/tax-engine/fact"
)

type scenario struct {
	ScenarioDTO
	load func(ctx context.Context, h *Handler) error
}

func scenarios() []scenario {
	return []scenario{
		{
			ScenarioDTO: ScenarioDTO{
				ID:          "standard-sale",
				Name:        "Standard three-year sale",
				Description: "500M -> 800M over three years; progressive brackets, frozen and ready to calculate",
			},
			load: loadStandardSale,
		},
		{
			ScenarioDTO: ScenarioDTO{
				ID:          "short-term-flip",
				Name:        "Six-month flip",
				Description: "1B -> 1.5B in six months; 70% flat short-term rate",
			},
			load: loadShortTermFlip,
		},
		{
			ScenarioDTO: ScenarioDTO{
				ID:          "primary-residence",
				Name:        "Exempt primary residence",
				Description: "Single house, three years held and resided; fully exempt",
			},
			load: loadPrimaryResidence,
		},
		{
			ScenarioDTO: ScenarioDTO{
				ID:          "draft-case",
				Name:        "Draft awaiting confirmation",
				Description: "Facts entered but unconfirmed; walk the confirm and freeze steps yourself",
			},
			load: loadDraftCase,
		},
	}
}

// ListScenarios returns the available demo scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	var dtos []ScenarioDTO
	for _, s := range scenarios() {
		dtos = append(dtos, s.ScenarioDTO)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario reports which scenario was last loaded, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"current": h.currentScenario})
}

// LoadScenario resets the store and seeds the requested scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	for _, s := range scenarios() {
		if s.ID != req.ID {
			continue
		}
		if err := h.Store.Reset(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to reset store", err)
			return
		}
		if err := s.load(r.Context(), h); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
			return
		}
		h.currentScenario = s.ID
		writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "id": s.ID})
		return
	}
	writeError(w, http.StatusNotFound, "Unknown scenario", nil)
}

// ResetDatabase clears all data (dev only).
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset store", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// LOADERS
// =============================================================================

func seedFrozen(ctx context.Context, h *Handler, fields map[string]any) error {
	l, err := fact.Create(fields, "demo")
	if err != nil {
		return err
	}
	if err := l.ConfirmAll("demo"); err != nil {
		return err
	}
	if err := l.Freeze(); err != nil {
		return err
	}
	return h.Store.SaveCase(ctx, l.Snapshot())
}

func loadStandardSale(ctx context.Context, h *Handler) error {
	return seedFrozen(ctx, h, map[string]any{
		fact.FieldAcquisitionDate:  "2020-01-01",
		fact.FieldAcquisitionPrice: 500_000_000,
		fact.FieldDisposalDate:     "2023-01-01",
		fact.FieldDisposalPrice:    800_000_000,
	})
}

func loadShortTermFlip(ctx context.Context, h *Handler) error {
	return seedFrozen(ctx, h, map[string]any{
		fact.FieldAcquisitionDate:  "2023-01-01",
		fact.FieldAcquisitionPrice: 1_000_000_000,
		fact.FieldDisposalDate:     "2023-07-01",
		fact.FieldDisposalPrice:    1_500_000_000,
	})
}

func loadPrimaryResidence(ctx context.Context, h *Handler) error {
	return seedFrozen(ctx, h, map[string]any{
		fact.FieldAcquisitionDate:      "2020-01-01",
		fact.FieldAcquisitionPrice:     500_000_000,
		fact.FieldDisposalDate:         "2023-01-01",
		fact.FieldDisposalPrice:        800_000_000,
		fact.FieldIsPrimaryResidence:   true,
		fact.FieldResidencePeriodYears: 3,
	})
}

func loadDraftCase(ctx context.Context, h *Handler) error {
	l, err := fact.Create(map[string]any{
		fact.FieldAcquisitionDate:  "2019-06-15",
		fact.FieldAcquisitionPrice: 650_000_000,
		fact.FieldDisposalDate:     "2024-02-01",
		fact.FieldDisposalPrice:    900_000_000,
		fact.FieldHouseCount:       2,
	}, "demo")
	if err != nil {
		return err
	}
	return h.Store.SaveCase(ctx, l.Snapshot())
}
