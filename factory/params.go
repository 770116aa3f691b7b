/*
Package factory provides JSON to Go conversion for fiscal parameter tables.

PURPOSE:
  Converts JSON parameter-set definitions into a validated fiscal.Table.
  Rates change every year; publishing next year's rates means shipping a
  JSON document, not editing the calculator.

JSON SCHEMA:
  {
    "parameter_sets": [
      {
        "year": 2025,
        "contribution_rate": 0.211,
        "acre_contribution_rate": 0.1065,
        "acre_tenure_years": 3,
        "training_rate": 0.002,
        "liberatory_rate": 0.022,
        "vat_rate": 0.20,
        "vat_start": "2025-10",
        "brackets": [
          {"lower": 0, "upper": 11294, "rate": 0},
          {"lower": 177106, "upper": null, "rate": 0.45}
        ],
        "ceilings": {"service": 77700, "goods": 188700, "mixed": 188700},
        "abatements": {"service": 0.34, "goods": 0.71, "mixed": 0.50}
      }
    ]
  }

  Numbers are parsed as exact decimals. A null upper bound marks the last,
  unbounded bracket.

USAGE:
  table, err := factory.DefaultTable()          // embedded 2025/2026 tables
  table, err := factory.LoadTable("rates.json") // operator-provided tables

SEE ALSO:
  - fiscal/params.go: ParameterSet invariants
  - defaults.json: the embedded tables
*/
package factory

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/warp/fiscal-engine/fiscal"
)

//go:embed defaults.json
var defaultsJSON []byte

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// TableJSON is the document root.
type TableJSON struct {
	ParameterSets []ParameterSetJSON `json:"parameter_sets"`
}

// ParameterSetJSON is the JSON representation of one fiscal year.
type ParameterSetJSON struct {
	Year                 int                                      `json:"year"`
	ContributionRate     decimal.Decimal                          `json:"contribution_rate"`
	AcreContributionRate decimal.Decimal                          `json:"acre_contribution_rate"`
	AcreTenureYears      int                                      `json:"acre_tenure_years"`
	TrainingRate         decimal.Decimal                          `json:"training_rate"`
	LiberatoryRate       decimal.Decimal                          `json:"liberatory_rate"`
	VATRate              decimal.Decimal                          `json:"vat_rate"`
	VATStart             fiscal.YearMonth                         `json:"vat_start"`
	Brackets             []BracketJSON                            `json:"brackets"`
	Ceilings             map[fiscal.ActivityClass]decimal.Decimal `json:"ceilings"`
	Abatements           map[fiscal.ActivityClass]decimal.Decimal `json:"abatements"`
}

// BracketJSON is one income-tax bracket.
type BracketJSON struct {
	Lower decimal.Decimal  `json:"lower"`
	Upper *decimal.Decimal `json:"upper"`
	Rate  decimal.Decimal  `json:"rate"`
}

// =============================================================================
// PARSING
// =============================================================================

// ParseParameterSets decodes a table document. Unknown fields are rejected so
// a misspelled rate cannot silently become zero.
func ParseParameterSets(data []byte) ([]fiscal.ParameterSet, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var doc TableJSON
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "failed to decode parameter table")
	}

	sets := make([]fiscal.ParameterSet, 0, len(doc.ParameterSets))
	for _, sj := range doc.ParameterSets {
		sets = append(sets, sj.toParameterSet())
	}
	return sets, nil
}

func (sj ParameterSetJSON) toParameterSet() fiscal.ParameterSet {
	brackets := make([]fiscal.Bracket, len(sj.Brackets))
	for i, b := range sj.Brackets {
		brackets[i] = fiscal.Bracket{Lower: b.Lower, Upper: b.Upper, Rate: b.Rate}
	}
	return fiscal.ParameterSet{
		Year:                 sj.Year,
		ContributionRate:     sj.ContributionRate,
		AcreContributionRate: sj.AcreContributionRate,
		AcreTenureYears:      sj.AcreTenureYears,
		TrainingRate:         sj.TrainingRate,
		LiberatoryRate:       sj.LiberatoryRate,
		VATRate:              sj.VATRate,
		VATStart:             sj.VATStart,
		Brackets:             brackets,
		Ceilings:             sj.Ceilings,
		Abatements:           sj.Abatements,
	}
}

// ToJSON converts a parameter set back to its JSON representation.
func ToJSON(p fiscal.ParameterSet) ParameterSetJSON {
	brackets := make([]BracketJSON, len(p.Brackets))
	for i, b := range p.Brackets {
		brackets[i] = BracketJSON{Lower: b.Lower, Upper: b.Upper, Rate: b.Rate}
	}
	return ParameterSetJSON{
		Year:                 p.Year,
		ContributionRate:     p.ContributionRate,
		AcreContributionRate: p.AcreContributionRate,
		AcreTenureYears:      p.AcreTenureYears,
		TrainingRate:         p.TrainingRate,
		LiberatoryRate:       p.LiberatoryRate,
		VATRate:              p.VATRate,
		VATStart:             p.VATStart,
		Brackets:             brackets,
		Ceilings:             p.Ceilings,
		Abatements:           p.Abatements,
	}
}

// =============================================================================
// TABLE CONSTRUCTION
// =============================================================================

// NewTable parses and validates a table document.
func NewTable(data []byte) (*fiscal.Table, error) {
	sets, err := ParseParameterSets(data)
	if err != nil {
		return nil, err
	}
	return fiscal.NewTable(sets...)
}

// LoadTable reads a table document from path.
func LoadTable(path string) (*fiscal.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read parameter table %s", path)
	}
	return NewTable(data)
}

// DefaultTable returns the embedded 2025/2026 tables.
func DefaultTable() (*fiscal.Table, error) {
	return NewTable(defaultsJSON)
}

// MustDefaultTable is DefaultTable for tests and wiring code; the embedded
// document is validated by the package tests.
func MustDefaultTable() *fiscal.Table {
	t, err := DefaultTable()
	if err != nil {
		panic(err)
	}
	return t
}
