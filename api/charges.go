/*
charges.go - Obligation ledger endpoints

ENDPOINTS:
  POST   /api/enterprises/{id}/charges/generate           Generate a year (both kinds)
  POST   /api/enterprises/{id}/charges/recalculate        Recompute unpaid obligations
  GET    /api/enterprises/{id}/charges?year=              Obligations of a year
  GET    /api/enterprises/{id}/charges/overdue?as_of=     Unpaid and past deadline
  GET    /api/enterprises/{id}/charges/upcoming?months=   Unpaid and due soon
  GET    /api/enterprises/{id}/charges/stats?year=        Totals per kind
  GET    /api/enterprises/{id}/charges/history            Payment audit trail
  GET    /api/enterprises/{id}/charges/export?year=       CSV export
  GET    /api/enterprises/{id}/charges/{chargeID}         One obligation
  POST   /api/enterprises/{id}/charges/{chargeID}/pay     Mark paid
  DELETE /api/enterprises/{id}/charges/{chargeID}/pay     Revert payment
*/
package api

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/warp/fiscal-engine/charges"
	"github.com/warp/fiscal-engine/fiscal"
	"go.uber.org/zap"
)

const defaultUpcomingMonths = 3

// GenerateCharges generates both obligation kinds for a year. Income-tax
// installments are only created under the liberatory election.
func (h *Handler) GenerateCharges(w http.ResponseWriter, r *http.Request) {
	ledger := h.Ledger(chi.URLParam(r, "id"))

	req := GenerateRequest{Year: h.currentYear()}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", err)
			return
		}
	}

	contrib, err := ledger.GenerateContributions(r.Context(), req.Year)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	installments, err := ledger.GenerateIncomeTaxInstallments(r.Context(), req.Year)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	status := http.StatusOK
	if len(contrib.Created)+len(installments.Created) > 0 {
		status = http.StatusCreated
	}
	writeJSON(w, status, GenerateResponse{
		Contributions:         contrib,
		IncomeTaxInstallments: installments,
	})
}

// RecalculateCharges recomputes every unpaid obligation.
func (h *Handler) RecalculateCharges(w http.ResponseWriter, r *http.Request) {
	report, err := h.Ledger(chi.URLParam(r, "id")).RecalculateUnpaid(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ListCharges returns the obligations of a year.
func (h *Handler) ListCharges(w http.ResponseWriter, r *http.Request) {
	year, err := yearParam(r, h.currentYear())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year", err)
		return
	}
	view, err := h.Ledger(chi.URLParam(r, "id")).ByYear(r.Context(), year)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GetCharge returns one obligation.
func (h *Handler) GetCharge(w http.ResponseWriter, r *http.Request) {
	ob, err := h.Ledger(chi.URLParam(r, "id")).Get(r.Context(), chi.URLParam(r, "chargeID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ob)
}

// ListOverdue returns unpaid obligations past their deadline.
func (h *Handler) ListOverdue(w http.ResponseWriter, r *http.Request) {
	asOf, err := dateParam(r, "as_of")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid as_of", err)
		return
	}
	obs, err := h.Ledger(chi.URLParam(r, "id")).Overdue(r.Context(), asOf)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, obs)
}

// ListUpcoming returns unpaid obligations due within the next months.
func (h *Handler) ListUpcoming(w http.ResponseWriter, r *http.Request) {
	months := defaultUpcomingMonths
	if s := r.URL.Query().Get("months"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid months", err)
			return
		}
		months = n
	}
	asOf, err := dateParam(r, "as_of")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid as_of", err)
		return
	}

	obs, err := h.Ledger(chi.URLParam(r, "id")).Upcoming(r.Context(), asOf, months)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, obs)
}

// GetStatistics returns per-kind totals of a year.
func (h *Handler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	year, err := yearParam(r, h.currentYear())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year", err)
		return
	}
	summary, err := h.Ledger(chi.URLParam(r, "id")).Statistics(r.Context(), year)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GetPaymentHistory returns the payment audit trail, most recent first.
func (h *Handler) GetPaymentHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.Ledger(chi.URLParam(r, "id")).PaymentHistory(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// ExportCharges writes the obligations of a year as CSV.
func (h *Handler) ExportCharges(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	year, err := yearParam(r, h.currentYear())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid year", err)
		return
	}
	rows, err := h.Ledger(id).Export(r.Context(), year)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="charges-%s-%d.csv"`, id, year))
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	cw.Write(charges.ExportHeader)
	for _, row := range rows {
		cw.Write(row.Strings())
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.log.Warn("csv export interrupted", zap.String("enterprise_id", id), zap.Error(err))
	}
}

// PayCharge marks an obligation paid.
func (h *Handler) PayCharge(w http.ResponseWriter, r *http.Request) {
	ledger := h.Ledger(chi.URLParam(r, "id"))
	chargeID := chi.URLParam(r, "chargeID")

	var req PayRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", err)
			return
		}
	}

	amount := req.Amount
	if amount == nil {
		ob, err := ledger.Get(r.Context(), chargeID)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		amount = &ob.Amount
	}

	ob, err := ledger.MarkPaid(r.Context(), chargeID, *amount, req.Date)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ob)
}

// UnpayCharge reverts a payment.
func (h *Handler) UnpayCharge(w http.ResponseWriter, r *http.Request) {
	ob, err := h.Ledger(chi.URLParam(r, "id")).MarkUnpaid(r.Context(), chi.URLParam(r, "chargeID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ob)
}

func dateParam(r *http.Request, name string) (fiscal.Date, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return fiscal.Date{}, nil
	}
	return fiscal.ParseDate(s)
}
