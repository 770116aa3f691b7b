package fiscal

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RegimeFlags is the enterprise's tax regime as chosen at onboarding or in
// settings. It is validated once at that boundary; calculations trust it.
type RegimeFlags struct {
	AcreActive         bool            `json:"acre_active"`
	LiberatoryElection bool            `json:"liberatory_election"`
	HouseholdParts     decimal.Decimal `json:"household_parts"`
	AbatementRate      decimal.Decimal `json:"abatement_rate"`
	CreationDate       Date            `json:"creation_date"`
	ActivityClass      ActivityClass   `json:"activity_class"`
}

// DefaultRegime is the onboarding default: one part, services abatement.
func DefaultRegime() RegimeFlags {
	return RegimeFlags{
		HouseholdParts: decimal.NewFromInt(1),
		AbatementRate:  decimal.RequireFromString("0.34"),
		ActivityClass:  ActivityService,
	}
}

var maxHouseholdParts = decimal.NewFromInt(10)

// Validate rejects flags the calculator would otherwise have to clamp.
func (r RegimeFlags) Validate() error {
	if r.HouseholdParts.LessThan(decimal.NewFromInt(1)) || r.HouseholdParts.GreaterThan(maxHouseholdParts) {
		return &ValidationError{Field: "household_parts", Reason: fmt.Sprintf("%s not in [1, 10]", r.HouseholdParts)}
	}
	if r.AbatementRate.IsNegative() || r.AbatementRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return &ValidationError{Field: "abatement_rate", Reason: fmt.Sprintf("%s not in [0, 1)", r.AbatementRate)}
	}
	if !r.ActivityClass.Valid() {
		return &ValidationError{Field: "activity_class", Reason: fmt.Sprintf("unknown class %q", r.ActivityClass)}
	}
	return nil
}

// AcreExpiry returns the first day ACRE no longer applies, or the zero Date
// when the creation date is unknown.
func (r RegimeFlags) AcreExpiry(tenureYears int) Date {
	if r.CreationDate.IsZero() {
		return Date{}
	}
	return r.CreationDate.AddYears(tenureYears)
}

// AcreActiveAt reports whether the reduced rate applies to a period starting
// on at. Without a creation date the flag alone decides.
func (r RegimeFlags) AcreActiveAt(at Date, tenureYears int) bool {
	if !r.AcreActive {
		return false
	}
	expiry := r.AcreExpiry(tenureYears)
	return expiry.IsZero() || at.Before(expiry)
}
