/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. DTOs decouple the
  API contract from internal domain types.

CONVENTIONS:
  - Amounts travel as decimal strings ("2130.00"), never floats
  - Dates use YYYY-MM-DD, months YYYY-MM
  - Optional fields use pointers or omitempty

SEE ALSO:
  - handlers.go: Uses these DTOs
  - charges/types.go: Ledger types returned as-is where they already
    carry JSON tags
*/
package api

import (
	"github.com/shopspring/decimal"
	"github.com/warp/fiscal-engine/charges"
	"github.com/warp/fiscal-engine/fiscal"
	"github.com/warp/fiscal-engine/revenue"
	"github.com/warp/fiscal-engine/stats"
)

// =============================================================================
// TAX CALCULATOR
// =============================================================================

// ContributionRequest is the body of POST /api/tax/contribution.
type ContributionRequest struct {
	Revenue decimal.Decimal `json:"revenue"`
	Year    int             `json:"year"`
	Acre    bool            `json:"acre"`
}

type ContributionResponse struct {
	Revenue      decimal.Decimal `json:"revenue"`
	Year         int             `json:"year"`
	Acre         bool            `json:"acre"`
	Contribution decimal.Decimal `json:"contribution"`
}

// ChargeRateResponse is the body of GET /api/tax/charge-rate.
type ChargeRateResponse struct {
	Year       int             `json:"year"`
	Acre       bool            `json:"acre"`
	Liberatory bool            `json:"liberatory"`
	Abatement  decimal.Decimal `json:"abatement"`
	Rate       decimal.Decimal `json:"rate"`
}

// IncomeTaxRequest is the body of POST /api/tax/income-tax.
type IncomeTaxRequest struct {
	Revenue    decimal.Decimal  `json:"revenue"`
	Year       int              `json:"year"`
	Parts      *decimal.Decimal `json:"parts,omitempty"`     // default 1
	Abatement  *decimal.Decimal `json:"abatement,omitempty"` // default: service class
	Liberatory bool             `json:"liberatory"`
}

// VATRequest is the body of POST /api/tax/vat.
type VATRequest struct {
	Revenue    decimal.Decimal  `json:"revenue"`
	Month      fiscal.YearMonth `json:"month"`
	Deductible decimal.Decimal  `json:"deductible"`
}

// ProvisionsRequest is the body of POST /api/tax/provisions.
type ProvisionsRequest struct {
	Revenue    decimal.Decimal   `json:"revenue"`
	Year       int               `json:"year"`
	Acre       bool              `json:"acre"`
	Liberatory bool              `json:"liberatory"`
	Parts      *decimal.Decimal  `json:"parts,omitempty"`
	Abatement  *decimal.Decimal  `json:"abatement,omitempty"`
	Month      *fiscal.YearMonth `json:"month,omitempty"`
	Deductible decimal.Decimal   `json:"deductible"`
}

// =============================================================================
// ENTERPRISES
// =============================================================================

// EnterpriseRequest is the body of PUT /api/enterprises/{id}.
type EnterpriseRequest struct {
	Name   string             `json:"name"`
	Regime fiscal.RegimeFlags `json:"regime"`
}

// EnterpriseDTO summarizes an enterprise without its full ledger.
type EnterpriseDTO struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Regime      fiscal.RegimeFlags `json:"regime"`
	AcreExpiry  *fiscal.Date       `json:"acre_expiry,omitempty"`
	Obligations int                `json:"obligations"`
	Payments    int                `json:"payments"`
}

// MissionRequest is the body of POST /api/enterprises/{id}/missions. Lines
// are derived from the dates when omitted.
type MissionRequest struct {
	ID        string              `json:"id,omitempty"`
	Client    string              `json:"client"`
	Title     string              `json:"title,omitempty"`
	DailyRate decimal.Decimal     `json:"daily_rate"`
	Start     fiscal.Date         `json:"start"`
	End       fiscal.Date         `json:"end"`
	Lines     []revenue.MonthLine `json:"lines,omitempty"`
}

// MissionDTO is a listed mission with its figures.
type MissionDTO struct {
	revenue.Mission
	Stats stats.MissionStats `json:"stats"`
}

// =============================================================================
// CHARGES
// =============================================================================

// GenerateRequest is the body of POST .../charges/generate.
type GenerateRequest struct {
	Year int `json:"year"`
}

type GenerateResponse struct {
	Contributions         charges.GenerationReport `json:"contribution"`
	IncomeTaxInstallments charges.GenerationReport `json:"income_tax_installment"`
}

// PayRequest is the body of POST .../charges/{chargeID}/pay. A missing
// amount pays the expected amount; a missing date means today.
type PayRequest struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Date   fiscal.Date      `json:"date"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the body of POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// COMMON
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toEnterpriseDTO(e charges.Enterprise, acreTenureYears int) EnterpriseDTO {
	dto := EnterpriseDTO{
		ID:          e.ID,
		Name:        e.Name,
		Regime:      e.Regime,
		Obligations: len(e.Charges.Contributions) + len(e.Charges.IncomeTaxInstallments),
		Payments:    len(e.Charges.History),
	}
	if e.Regime.AcreActive {
		if expiry := e.Regime.AcreExpiry(acreTenureYears); !expiry.IsZero() {
			dto.AcreExpiry = &expiry
		}
	}
	return dto
}

func (m MissionRequest) toMission() revenue.Mission {
	mission := revenue.NewMission(m.Client, m.DailyRate, m.Start, m.End)
	if m.ID != "" {
		mission.ID = m.ID
	}
	mission.Title = m.Title
	if len(m.Lines) > 0 {
		mission.Lines = m.Lines
	}
	return mission
}
