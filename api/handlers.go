/*
handlers.go - HTTP API handlers for the fiscal engine

PURPOSE:
  Exposes the tax calculator and the obligation ledger via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to
  domain logic.

ENDPOINTS:
  Parameters:
    GET    /api/parameters/{year}                 Fiscal parameter set

  Tax calculator (stateless):
    POST   /api/tax/contribution                  Social contribution
    POST   /api/tax/income-tax                    Income tax with bracket details
    POST   /api/tax/vat                           VAT position of a month
    POST   /api/tax/provisions                    Contribution + income tax (+ VAT)
    GET    /api/tax/ceiling                       Revenue ceiling check
    GET    /api/tax/charge-rate                   Flat charge rate of a regime

  Enterprises:
    GET    /api/enterprises                       List enterprises
    PUT    /api/enterprises/{id}                  Create or update regime flags
    GET    /api/enterprises/{id}                  Enterprise summary
    POST   /api/enterprises/{id}/missions         Add or replace a mission
    GET    /api/enterprises/{id}/missions         List missions with their figures
    GET    /api/enterprises/{id}/stats            Yearly revenue and charges
    GET    /api/enterprises/{id}/stats/monthly    Monthly series

  Charges (see charges.go)

ARCHITECTURE:
  Handler holds all dependencies:
  - Store: enterprise aggregates and missions
  - Calc: shared stateless calculator
  - Stats: read-only figures derived from missions
  - one cached charges.Ledger per existing enterprise, so HTTP requests
    and the scheduler serialize on the same mutex

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Enterprise or obligation not found
  - 422: No fiscal parameters for the requested year
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - charges.go: Ledger endpoints
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/fiscal-engine/charges"
	"github.com/warp/fiscal-engine/factory"
	"github.com/warp/fiscal-engine/fiscal"
	"github.com/warp/fiscal-engine/revenue"
	"github.com/warp/fiscal-engine/stats"
	"github.com/warp/fiscal-engine/tax"
	"go.uber.org/zap"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is the persistence the API needs: the ledger repository plus
// enterprise listing and missions.
type Store interface {
	charges.Repository
	ListEnterprises(ctx context.Context) ([]charges.Enterprise, error)
	SaveMission(ctx context.Context, enterpriseID string, m revenue.Mission) error
	Missions(ctx context.Context, enterpriseID string) ([]revenue.Mission, error)
	RevenueSource(enterpriseID string) charges.RevenueSource
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store Store
	Calc  *tax.Calculator
	Stats *stats.Service

	log *zap.Logger
	now func() time.Time

	mu      sync.Mutex
	ledgers map[string]*charges.Ledger
}

// NewHandler creates a new handler. A nil logger disables logging.
func NewHandler(store Store, calc *tax.Calculator, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Store:   store,
		Calc:    calc,
		Stats:   stats.NewService(calc),
		log:     log,
		now:     time.Now,
		ledgers: make(map[string]*charges.Ledger),
	}
}

// Ledger returns the ledger of enterpriseID. Ledgers are cached once the
// enterprise exists; an unknown id gets an uncached ledger, so arbitrary ids
// in URLs do not grow the cache.
func (h *Handler) Ledger(enterpriseID string) *charges.Ledger {
	h.mu.Lock()
	l, ok := h.ledgers[enterpriseID]
	h.mu.Unlock()
	if ok {
		return l
	}

	l = h.newLedger(enterpriseID)
	if _, err := h.Store.Load(context.Background(), enterpriseID); err != nil {
		return l
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if cached, ok := h.ledgers[enterpriseID]; ok {
		return cached
	}
	h.ledgers[enterpriseID] = l
	return l
}

func (h *Handler) newLedger(enterpriseID string) *charges.Ledger {
	return charges.NewLedger(enterpriseID, h.Store, h.Store.RevenueSource(enterpriseID), h.Calc,
		charges.WithLogger(h.log),
		charges.WithClock(h.now))
}

func (h *Handler) currentYear() int { return h.now().Year() }

// =============================================================================
// PARAMETERS
// =============================================================================

// GetParameters returns the parameter set of a year.
func (h *Handler) GetParameters(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year", err)
		return
	}
	p, err := h.Calc.Params(year)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, factory.ToJSON(p))
}

// =============================================================================
// TAX CALCULATOR
// =============================================================================

// ComputeContribution computes a contribution amount.
func (h *Handler) ComputeContribution(w http.ResponseWriter, r *http.Request) {
	var req ContributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Year == 0 {
		req.Year = h.currentYear()
	}

	amount, err := h.Calc.Contribution(req.Revenue, req.Year, req.Acre)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ContributionResponse{
		Revenue:      fiscal.NonNegative(req.Revenue),
		Year:         req.Year,
		Acre:         req.Acre,
		Contribution: fiscal.Round(amount),
	})
}

// ComputeIncomeTax computes income tax with its bracket breakdown.
func (h *Handler) ComputeIncomeTax(w http.ResponseWriter, r *http.Request) {
	var req IncomeTaxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Year == 0 {
		req.Year = h.currentYear()
	}
	defaults := fiscal.DefaultRegime()

	result, err := h.Calc.IncomeTax(req.Revenue, tax.IncomeTaxOptions{
		HouseholdParts: orDefault(req.Parts, defaults.HouseholdParts),
		AbatementRate:  orDefault(req.Abatement, defaults.AbatementRate),
		Liberatory:     req.Liberatory,
		Year:           req.Year,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ComputeVAT computes the VAT position of a month.
func (h *Handler) ComputeVAT(w http.ResponseWriter, r *http.Request) {
	var req VATRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Month.IsZero() {
		writeError(w, http.StatusBadRequest, "month is required", nil)
		return
	}

	result, err := h.Calc.VAT(req.Revenue, req.Month, req.Deductible)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ComputeProvisions computes the amounts to set aside for a revenue.
func (h *Handler) ComputeProvisions(w http.ResponseWriter, r *http.Request) {
	var req ProvisionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Year == 0 {
		req.Year = h.currentYear()
	}
	defaults := fiscal.DefaultRegime()

	regime := tax.Regime{
		AcreActive:         req.Acre,
		LiberatoryElection: req.Liberatory,
		HouseholdParts:     orDefault(req.Parts, defaults.HouseholdParts),
		AbatementRate:      orDefault(req.Abatement, defaults.AbatementRate),
	}
	if req.Month != nil {
		regime = regime.WithMonth(*req.Month, req.Deductible)
	}

	result, err := h.Calc.Provisions(req.Revenue, req.Year, regime)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CheckCeiling reports revenue against the activity class ceiling.
func (h *Handler) CheckCeiling(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	rev, err := decimal.NewFromString(q.Get("revenue"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid revenue", err)
		return
	}
	year, err := yearParam(r, h.currentYear())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year", err)
		return
	}
	class := fiscal.ActivityClass(q.Get("class"))

	status, err := h.Calc.CheckCeiling(rev, class, year)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// =============================================================================
// ENTERPRISES
// =============================================================================

// ListEnterprises returns all enterprises.
func (h *Handler) ListEnterprises(w http.ResponseWriter, r *http.Request) {
	ents, err := h.Store.ListEnterprises(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	tenure := h.acreTenure()
	dtos := make([]EnterpriseDTO, 0, len(ents))
	for _, e := range ents {
		dtos = append(dtos, toEnterpriseDTO(e, tenure))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEnterprise returns an enterprise summary.
func (h *Handler) GetEnterprise(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ent, err := h.Ledger(id).Enterprise(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEnterpriseDTO(ent, h.acreTenure()))
}

// PutEnterprise creates an enterprise or updates its regime flags.
func (h *Handler) PutEnterprise(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	req := EnterpriseRequest{Regime: fiscal.DefaultRegime()}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	ent, err := h.Ledger(id).UpdateRegime(r.Context(), req.Name, req.Regime)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEnterpriseDTO(ent, h.acreTenure()))
}

// CreateMission adds or replaces a mission of an enterprise.
func (h *Handler) CreateMission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req MissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Client == "" {
		writeError(w, http.StatusBadRequest, "client is required", nil)
		return
	}
	if req.DailyRate.IsNegative() {
		writeError(w, http.StatusBadRequest, "daily_rate must not be negative", nil)
		return
	}

	if _, err := h.Store.Load(r.Context(), id); err != nil {
		h.writeDomainError(w, err)
		return
	}

	mission := req.toMission()
	if err := h.Store.SaveMission(r.Context(), id, mission); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.log.Info("mission saved",
		zap.String("enterprise_id", id),
		zap.String("mission_id", mission.ID),
		zap.Int("lines", len(mission.Lines)))
	writeJSON(w, http.StatusCreated, mission)
}

// ListMissions lists the missions of an enterprise with their figures for
// ?year= (default: current year).
func (h *Handler) ListMissions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	year, err := yearParam(r, h.currentYear())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year", err)
		return
	}
	ent, err := h.Store.Load(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	missions, err := h.Store.Missions(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	today := fiscal.DateOf(h.now())
	dtos := make([]MissionDTO, 0, len(missions))
	for _, m := range missions {
		st, err := h.Stats.Mission(m, year, ent.Regime, today)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		dtos = append(dtos, MissionDTO{Mission: m, Stats: st})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// STATISTICS
// =============================================================================

// GetEnterpriseStats returns the yearly figures of an enterprise for ?year=.
func (h *Handler) GetEnterpriseStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	year, err := yearParam(r, h.currentYear())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year", err)
		return
	}
	ent, err := h.Store.Load(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	missions, err := h.Store.Missions(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	st, err := h.Stats.Year(missions, year, ent.Regime)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// GetMonthlyStats returns the monthly series of an enterprise between
// ?from=YYYY-MM and ?to=YYYY-MM (default: January to December of this year).
func (h *Handler) GetMonthlyStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	q := r.URL.Query()

	year := h.currentYear()
	from, to := fiscal.NewYearMonth(year, time.January), fiscal.NewYearMonth(year, time.December)
	if s := q.Get("from"); s != "" {
		ym, err := fiscal.ParseYearMonth(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from", err)
			return
		}
		from = ym
	}
	if s := q.Get("to"); s != "" {
		ym, err := fiscal.ParseYearMonth(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to", err)
			return
		}
		to = ym
	}

	ent, err := h.Store.Load(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	missions, err := h.Store.Missions(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	points, err := h.Stats.Monthly(missions, from, to, ent.Regime)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

// GetChargeRate returns the flat share of revenue to set aside for a regime.
// Query: year, acre, liberatory, abatement (default 0.34).
func (h *Handler) GetChargeRate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	year, err := yearParam(r, h.currentYear())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year", err)
		return
	}
	acre, err := boolParam(q.Get("acre"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid acre", err)
		return
	}
	liberatory, err := boolParam(q.Get("liberatory"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid liberatory", err)
		return
	}
	abatement := fiscal.DefaultRegime().AbatementRate
	if s := q.Get("abatement"); s != "" {
		v, err := decimal.NewFromString(s)
		if err != nil || v.IsNegative() || v.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			writeError(w, http.StatusBadRequest, "abatement must be in [0, 1)", err)
			return
		}
		abatement = v
	}

	rate, err := h.Calc.TotalChargeRate(year, acre, liberatory, abatement)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ChargeRateResponse{
		Year:       year,
		Acre:       acre,
		Liberatory: liberatory,
		Abatement:  abatement,
		Rate:       rate,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) acreTenure() int {
	p, err := h.Calc.Params(h.currentYear())
	if err != nil {
		return 0
	}
	return p.AcreTenureYears
}

// writeDomainError maps the error taxonomy onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case fiscal.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not found", err)
	case fiscal.IsClientError(err):
		writeError(w, http.StatusBadRequest, "invalid input", err)
	case fiscal.IsInvariantViolation(err):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "missing fiscal parameters",
			Code:    "missing_parameters",
			Details: err.Error(),
		})
	default:
		h.log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
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

func yearParam(r *http.Request, fallback int) (int, error) {
	s := r.URL.Query().Get("year")
	if s == "" {
		return fallback, nil
	}
	return strconv.Atoi(s)
}

func boolParam(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}

func orDefault(v *decimal.Decimal, fallback decimal.Decimal) decimal.Decimal {
	if v == nil {
		return fallback
	}
	return *v
}
