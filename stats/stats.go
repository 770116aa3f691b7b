/*
Package stats derives revenue and charge figures from an enterprise's missions.

PURPOSE:
  Read-only dashboards over the same inputs the ledger uses: yearly totals
  (revenue, days, charges, net, average daily rate, charge rate), a monthly
  series of contributions and income tax, and per-mission figures.

DESIGN:
  - Pure functions of (missions, regime, parameters); nothing is stored
  - ACRE is decided per computed period with RegimeFlags.AcreActiveAt,
    exactly as the ledger does for obligations
  - A year without parameters fails the whole computation

SEE ALSO:
  - tax/calculator.go: NetRevenue, TotalChargeRate, Provisions
  - revenue/mission.go: line aggregation
*/
package stats

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/fiscal-engine/fiscal"
	"github.com/warp/fiscal-engine/revenue"
	"github.com/warp/fiscal-engine/tax"
)

// MaxSeriesMonths bounds a monthly series.
const MaxSeriesMonths = revenue.MaxMissionMonths

// Service computes statistics with a shared calculator.
type Service struct {
	calc *tax.Calculator
}

func NewService(calc *tax.Calculator) *Service {
	return &Service{calc: calc}
}

// =============================================================================
// YEAR
// =============================================================================

// YearStats summarizes one calendar year of missions.
type YearStats struct {
	Year                int               `json:"year"`
	Revenue             decimal.Decimal   `json:"revenue"`
	Days                decimal.Decimal   `json:"days"`
	Contribution        decimal.Decimal   `json:"contribution"`
	IncomeTax           decimal.Decimal   `json:"income_tax"`
	TotalCharges        decimal.Decimal   `json:"total_charges"`
	Net                 decimal.Decimal   `json:"net"`
	AverageDailyRate    decimal.Decimal   `json:"average_daily_rate"`
	ChargeRate          decimal.Decimal   `json:"charge_rate"`           // actual charges / revenue
	EstimatedChargeRate decimal.Decimal   `json:"estimated_charge_rate"` // flat rate to set aside
	Ceiling             tax.CeilingStatus `json:"ceiling"`
}

// Year computes the statistics of year over the lines billed in it.
func (s *Service) Year(missions []revenue.Mission, year int, regime fiscal.RegimeFlags) (YearStats, error) {
	p, err := s.calc.Params(year)
	if err != nil {
		return YearStats{}, err
	}
	from, to := fiscal.StartOfYear(year), fiscal.EndOfYear(year)
	tr := regimeAt(regime, from, p)

	rev := revenue.Aggregate(missions, from, to)
	days := revenue.AggregateDays(missions, from, to)

	net, err := s.calc.NetRevenue(rev, year, tr)
	if err != nil {
		return YearStats{}, err
	}
	estimated, err := s.calc.TotalChargeRate(year, tr.AcreActive, tr.LiberatoryElection, tr.AbatementRate)
	if err != nil {
		return YearStats{}, err
	}
	ceiling, err := s.calc.CheckCeiling(rev, regime.ActivityClass, year)
	if err != nil {
		return YearStats{}, err
	}

	out := YearStats{
		Year:                year,
		Revenue:             fiscal.Round(rev),
		Days:                days,
		Contribution:        net.Contribution,
		IncomeTax:           net.IncomeTax,
		TotalCharges:        net.TotalCharges,
		Net:                 fiscal.Round(net.Net),
		AverageDailyRate:    decimal.Zero,
		ChargeRate:          net.ChargeRate,
		EstimatedChargeRate: estimated,
		Ceiling:             ceiling,
	}
	if days.IsPositive() {
		out.AverageDailyRate = fiscal.Round(rev.Div(days))
	}
	return out, nil
}

// =============================================================================
// MONTHLY SERIES
// =============================================================================

// MonthPoint is one month of the series. IncomeTax is only charged monthly
// under the liberatory election; ChargeRate includes progressive tax.
type MonthPoint struct {
	Month        fiscal.YearMonth `json:"month"`
	Label        string           `json:"label"`
	Revenue      decimal.Decimal  `json:"revenue"`
	Contribution decimal.Decimal  `json:"contribution"`
	IncomeTax    decimal.Decimal  `json:"income_tax"`
	ChargeRate   decimal.Decimal  `json:"charge_rate"`
	VATLiable    bool             `json:"vat_liable"`
}

// Monthly returns one point per month of [from, to].
func (s *Service) Monthly(missions []revenue.Mission, from, to fiscal.YearMonth, regime fiscal.RegimeFlags) ([]MonthPoint, error) {
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return nil, &fiscal.ValidationError{Field: "months", Reason: fmt.Sprintf("%s..%s is not an ordered range", from, to)}
	}
	if n := (to.Year-from.Year)*12 + int(to.Month) - int(from.Month) + 1; n > MaxSeriesMonths {
		return nil, &fiscal.ValidationError{Field: "months", Reason: fmt.Sprintf("%d months exceeds %d", n, MaxSeriesMonths)}
	}

	points := []MonthPoint{}
	for ym := from; !to.Before(ym); ym = ym.Next() {
		p, err := s.calc.Params(ym.Year)
		if err != nil {
			return nil, err
		}
		tr := regimeAt(regime, ym.First(), p)
		rev := revenue.Aggregate(missions, ym.First(), ym.Last())

		contribution, err := s.calc.Contribution(rev, ym.Year, tr.AcreActive)
		if err != nil {
			return nil, err
		}
		incomeTax := decimal.Zero
		if tr.LiberatoryElection {
			it, err := s.calc.IncomeTax(rev, tax.IncomeTaxOptions{
				HouseholdParts: tr.HouseholdParts,
				AbatementRate:  tr.AbatementRate,
				Liberatory:     true,
				Year:           ym.Year,
			})
			if err != nil {
				return nil, err
			}
			incomeTax = it.Tax
		}
		net, err := s.calc.NetRevenue(rev, ym.Year, tr)
		if err != nil {
			return nil, err
		}

		points = append(points, MonthPoint{
			Month:        ym,
			Label:        ym.Label(),
			Revenue:      fiscal.Round(rev),
			Contribution: fiscal.Round(contribution),
			IncomeTax:    incomeTax,
			ChargeRate:   net.ChargeRate,
			VATLiable:    p.VATLiable(ym),
		})
	}
	return points, nil
}

// =============================================================================
// MISSION
// =============================================================================

// MissionStats are the figures of one mission, charges computed line by line
// with the parameters of the requested year.
type MissionStats struct {
	MissionID     string          `json:"mission_id"`
	Status        revenue.Status  `json:"status"`
	Days          decimal.Decimal `json:"days"`
	Revenue       decimal.Decimal `json:"revenue"`
	Charges       decimal.Decimal `json:"charges"`
	Net           decimal.Decimal `json:"net"`
	Margin        decimal.Decimal `json:"margin"`
	VATApplicable bool            `json:"vat_applicable"`
}

// Mission computes the statistics of m as of today.
func (s *Service) Mission(m revenue.Mission, year int, regime fiscal.RegimeFlags, today fiscal.Date) (MissionStats, error) {
	p, err := s.calc.Params(year)
	if err != nil {
		return MissionStats{}, err
	}
	tr := regimeAt(regime, fiscal.StartOfYear(year), p)

	out := MissionStats{
		MissionID:     m.ID,
		Status:        m.Status(today),
		Days:          decimal.Zero,
		Revenue:       decimal.Zero,
		Charges:       decimal.Zero,
		Margin:        decimal.Zero,
		VATApplicable: !m.End.IsZero() && p.VATLiable(m.End.YearMonth()),
	}
	for _, l := range m.Lines {
		days := l.RealDays()
		rev := m.DailyRate.Mul(days)
		prov, err := s.calc.Provisions(rev, year, tr)
		if err != nil {
			return MissionStats{}, err
		}
		out.Days = out.Days.Add(days)
		out.Revenue = out.Revenue.Add(rev)
		out.Charges = out.Charges.Add(prov.Total)
	}
	out.Revenue = fiscal.Round(out.Revenue)
	out.Net = out.Revenue.Sub(out.Charges)
	if out.Revenue.IsPositive() {
		out.Margin = out.Net.DivRound(out.Revenue, 4)
	}
	return out, nil
}

// regimeAt maps flags to a calculator regime for a period starting on start.
func regimeAt(flags fiscal.RegimeFlags, start fiscal.Date, p fiscal.ParameterSet) tax.Regime {
	r := tax.RegimeFrom(flags)
	r.AcreActive = flags.AcreActiveAt(start, p.AcreTenureYears)
	return r
}
