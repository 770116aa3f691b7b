/*
scenarios_test.go - Unit tests for demo scenarios

PURPOSE:

	Tests that each scenario sets up the expected state against the SQLite
	store: regime flags, missions, generated obligations and payments.
*/
package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/warp/fiscal-engine/charges"
	"github.com/warp/fiscal-engine/factory"
	"github.com/warp/fiscal-engine/store/sqlite"
	"github.com/warp/fiscal-engine/tax"
	"go.uber.org/zap"
)

func setupScenarioHandler(t *testing.T) *Handler {
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	h := NewHandler(store, tax.NewCalculator(factory.MustDefaultTable()), zap.NewNop())
	h.now = func() time.Time { return time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC) }
	return h
}

func TestScenario_AcreStarter(t *testing.T) {
	// GIVEN: ACRE starter scenario
	// WHEN: Loading the scenario
	// THEN: Four contributions at the reduced rate, no installments

	h := setupScenarioHandler(t)
	ctx := context.Background()

	if err := h.loadAcreStarterScenario(ctx, 2025); err != nil {
		t.Fatalf("Failed to load acre-starter scenario: %v", err)
	}

	ent, err := h.Ledger("acre-starter").Enterprise(ctx)
	if err != nil {
		t.Fatalf("Failed to load enterprise: %v", err)
	}
	if !ent.Regime.AcreActive {
		t.Error("Expected ACRE to be active")
	}
	if len(ent.Charges.Contributions) != 4 {
		t.Errorf("Expected 4 contributions, got %d", len(ent.Charges.Contributions))
	}
	if len(ent.Charges.IncomeTaxInstallments) != 0 {
		t.Errorf("Expected no installments, got %d", len(ent.Charges.IncomeTaxInstallments))
	}

	q1 := ent.Charges.Contributions[0]
	if !q1.RevenueBasis.IsPositive() {
		t.Errorf("Expected Q1 revenue from the Globex mission, got %s", q1.RevenueBasis)
	}
	// reduced rate: 10.65% + 0.2%
	want, err := h.Calc.Contribution(q1.RevenueBasis, 2025, true)
	if err != nil {
		t.Fatalf("Failed to compute contribution: %v", err)
	}
	if want = want.Round(2); !q1.Amount.Equal(want) {
		t.Errorf("Expected Q1 amount %s, got %s", want, q1.Amount)
	}
}

func TestScenario_LiberatoryFreelancer(t *testing.T) {
	h := setupScenarioHandler(t)
	ctx := context.Background()

	if err := h.loadLiberatoryFreelancerScenario(ctx, 2025); err != nil {
		t.Fatalf("Failed to load liberatory-freelancer scenario: %v", err)
	}

	ledger := h.Ledger("liberatory-freelancer")
	view, err := ledger.ByYear(ctx, 2025)
	if err != nil {
		t.Fatalf("Failed to list charges: %v", err)
	}
	if len(view.IncomeTaxInstallments) != 12 {
		t.Errorf("Expected 12 installments, got %d", len(view.IncomeTaxInstallments))
	}

	q1, err := ledger.Get(ctx, charges.ContributionID(2025, 1))
	if err != nil {
		t.Fatalf("Failed to get Q1: %v", err)
	}
	if !q1.Paid || q1.PaidAt == nil || q1.PaidAt.String() != "2025-04-30" {
		t.Errorf("Expected Q1 paid on its deadline, got paid=%v at %v", q1.Paid, q1.PaidAt)
	}

	history, err := ledger.PaymentHistory(ctx)
	if err != nil {
		t.Fatalf("Failed to get history: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("Expected 1 payment, got %d", len(history))
	}

	// reloading replaces rather than duplicates
	if err := h.loadLiberatoryFreelancerScenario(ctx, 2025); err != nil {
		t.Fatalf("Failed to reload scenario: %v", err)
	}
	history, _ = ledger.PaymentHistory(ctx)
	if len(history) != 1 {
		t.Errorf("Expected 1 payment after reload, got %d", len(history))
	}
	missions, _ := h.Store.Missions(ctx, "liberatory-freelancer")
	if len(missions) != 2 {
		t.Errorf("Expected 2 missions after reload, got %d", len(missions))
	}
}

func TestScenario_NearCeiling(t *testing.T) {
	h := setupScenarioHandler(t)
	ctx := context.Background()

	if err := h.loadNearCeilingScenario(ctx, 2025); err != nil {
		t.Fatalf("Failed to load near-ceiling scenario: %v", err)
	}

	missions, err := h.Store.Missions(ctx, "near-ceiling")
	if err != nil {
		t.Fatalf("Failed to list missions: %v", err)
	}
	if len(missions) != 1 {
		t.Fatalf("Expected 1 mission, got %d", len(missions))
	}

	status, err := h.Calc.CheckCeiling(missions[0].Revenue(), "service", 2025)
	if err != nil {
		t.Fatalf("Failed to check ceiling: %v", err)
	}
	if !status.Warning {
		t.Errorf("Expected ceiling warning, usage %s", status.UsageRatio)
	}
}

func TestScenarioRoutes(t *testing.T) {
	h := setupScenarioHandler(t)
	router := NewRouter(h, nil)

	rec := do(t, router, http.MethodGet, "/api/scenarios", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if got := decode[[]ScenarioDTO](t, rec); len(got) != 3 {
		t.Errorf("Expected 3 scenarios, got %d", len(got))
	}

	rec = do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "near-ceiling"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "unknown"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown scenario, got %d", rec.Code)
	}

	rec = do(t, router, http.MethodGet, "/api/enterprises", nil)
	if got := decode[[]EnterpriseDTO](t, rec); len(got) != 1 || got[0].ID != "near-ceiling" {
		t.Errorf("Expected the near-ceiling enterprise, got %+v", got)
	}
}
