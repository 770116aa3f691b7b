/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built enterprises with missions and generated charges for
	the current year, each demonstrating a specific regime.

AVAILABLE SCENARIOS:

	acre-starter:          Services consultant in the first ACRE years
	liberatory-freelancer: Liberatory election, monthly installments, one payment
	near-ceiling:          Revenue above 80% of the services ceiling

HOW SCENARIOS WORK:
 1. Set the regime of an enterprise whose id is the scenario id
 2. Save its missions (fixed ids, so reloading replaces them)
 3. Generate the year's obligations and recalculate unpaid ones
 4. Optionally record payments

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "liberatory-freelancer"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, year)
 3. Add case to LoadScenario handler

SEE ALSO:
  - handlers.go: Enterprise and mission handlers
  - charges.go: Ledger handlers
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/fiscal-engine/charges"
	"github.com/warp/fiscal-engine/fiscal"
	"github.com/warp/fiscal-engine/revenue"
	"go.uber.org/zap"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "acre-starter",
		Name:        "ACRE Starter",
		Description: "Services consultant created last year, reduced contribution rate, progressive income tax",
	},
	{
		ID:          "liberatory-freelancer",
		Name:        "Liberatory Freelancer",
		Description: "Liberatory income-tax election with monthly installments and a first quarter already paid",
	},
	{
		ID:          "near-ceiling",
		Name:        "Near Ceiling",
		Description: "Full-year mission bringing revenue above 80% of the services ceiling",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario loads a predefined scenario for the current year.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	ctx := r.Context()
	year := h.currentYear()

	var err error
	switch req.ScenarioID {
	case "acre-starter":
		err = h.loadAcreStarterScenario(ctx, year)
	case "liberatory-freelancer":
		err = h.loadLiberatoryFreelancerScenario(ctx, year)
	case "near-ceiling":
		err = h.loadNearCeilingScenario(ctx, year)
	default:
		writeError(w, http.StatusBadRequest, "unknown scenario", nil)
		return
	}

	if err != nil {
		h.writeDomainError(w, fmt.Errorf("load scenario %s: %w", req.ScenarioID, err))
		return
	}

	h.log.Info("scenario loaded", zap.String("scenario", req.ScenarioID), zap.Int("year", year))
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID, "enterprise_id": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadAcreStarterScenario(ctx context.Context, year int) error {
	regime := fiscal.DefaultRegime()
	regime.AcreActive = true
	regime.CreationDate = fiscal.NewDate(year-1, time.September, 1)

	mission := revenue.NewMission("Globex", decimal.NewFromInt(550),
		fiscal.NewDate(year, time.January, 6), fiscal.NewDate(year, time.October, 31))
	mission.ID = "acre-starter-globex"
	mission.Title = "Backend platform"

	return h.seedEnterprise(ctx, "acre-starter", "ACRE Starter", regime, year, mission)
}

func (h *Handler) loadLiberatoryFreelancerScenario(ctx context.Context, year int) error {
	regime := fiscal.DefaultRegime()
	regime.LiberatoryElection = true
	regime.HouseholdParts = decimal.NewFromInt(2)
	regime.CreationDate = fiscal.NewDate(year-5, time.March, 1)

	first := revenue.NewMission("Initech", decimal.NewFromInt(480),
		fiscal.NewDate(year, time.January, 1), fiscal.NewDate(year, time.June, 30))
	first.ID = "liberatory-freelancer-initech"
	second := revenue.NewMission("Umbrella", decimal.NewFromInt(520),
		fiscal.NewDate(year, time.July, 1), fiscal.NewDate(year, time.December, 31))
	second.ID = "liberatory-freelancer-umbrella"

	if err := h.seedEnterprise(ctx, "liberatory-freelancer", "Liberatory Freelancer", regime, year, first, second); err != nil {
		return err
	}

	ledger := h.Ledger("liberatory-freelancer")
	q1, err := ledger.Get(ctx, charges.ContributionID(year, 1))
	if err != nil {
		return err
	}
	_, err = ledger.MarkPaid(ctx, q1.ID, q1.Amount, q1.Deadline)
	return err
}

func (h *Handler) loadNearCeilingScenario(ctx context.Context, year int) error {
	regime := fiscal.DefaultRegime()
	regime.CreationDate = fiscal.NewDate(year-3, time.January, 1)

	mission := revenue.NewMission("Hooli", decimal.NewFromInt(290),
		fiscal.NewDate(year, time.January, 1), fiscal.NewDate(year, time.December, 31))
	mission.ID = "near-ceiling-hooli"

	return h.seedEnterprise(ctx, "near-ceiling", "Near Ceiling", regime, year, mission)
}

// seedEnterprise stores regime and missions, then brings the year's charges
// up to date.
func (h *Handler) seedEnterprise(ctx context.Context, id, name string, regime fiscal.RegimeFlags, year int, missions ...revenue.Mission) error {
	if _, err := h.Ledger(id).UpdateRegime(ctx, name, regime); err != nil {
		return err
	}
	ledger := h.Ledger(id)
	for _, m := range missions {
		if err := h.Store.SaveMission(ctx, id, m); err != nil {
			return err
		}
	}
	if _, err := ledger.GenerateContributions(ctx, year); err != nil {
		return err
	}
	if _, err := ledger.GenerateIncomeTaxInstallments(ctx, year); err != nil {
		return err
	}
	_, err := ledger.RecalculateUnpaid(ctx)
	return err
}
