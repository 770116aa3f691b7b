package factory_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/warp/fiscal-engine/factory"
	"github.com/warp/fiscal-engine/fiscal"
)

const oneYear = `{
  "parameter_sets": [
    {
      "year": 2027,
      "contribution_rate": 0.212,
      "acre_contribution_rate": 0.106,
      "acre_tenure_years": 3,
      "training_rate": 0.002,
      "liberatory_rate": 0.022,
      "vat_rate": 0.20,
      "vat_start": "2025-10",
      "brackets": [
        {"lower": 0, "upper": 11600, "rate": 0},
        {"lower": 11600, "upper": null, "rate": 0.11}
      ],
      "ceilings": {"service": 80000, "goods": 195000, "mixed": 195000},
      "abatements": {"service": 0.34, "goods": 0.71, "mixed": 0.50}
    }
  ]
}`

func TestDefaultTable_CoversShippedYears(t *testing.T) {
	// GIVEN: The embedded parameter document
	// WHEN: Building the table
	// THEN: It validates and defines 2025 and 2026

	table, err := factory.DefaultTable()
	if err != nil {
		t.Fatalf("embedded table is invalid: %v", err)
	}

	years := table.Years()
	if len(years) != 2 || years[0] != 2025 || years[1] != 2026 {
		t.Errorf("expected years [2025 2026], got %v", years)
	}

	p, err := table.Lookup(2025)
	if err != nil {
		t.Fatalf("lookup 2025: %v", err)
	}
	if p.ContributionRate.String() != "0.211" {
		t.Errorf("expected 2025 contribution rate 0.211, got %s", p.ContributionRate)
	}
	if len(p.Brackets) != 5 || !p.Brackets[4].Unbounded() {
		t.Errorf("expected five brackets ending unbounded, got %d", len(p.Brackets))
	}
	if p.VATStart.String() != "2025-10" {
		t.Errorf("expected VAT start 2025-10, got %s", p.VATStart)
	}
}

func TestDefaultTable_MissingYearIsFatal(t *testing.T) {
	table := factory.MustDefaultTable()

	_, err := table.Lookup(2030)
	if !fiscal.IsInvariantViolation(err) {
		t.Errorf("expected missing parameters for 2030, got %v", err)
	}
}

func TestNewTable_ParsesDocument(t *testing.T) {
	table, err := factory.NewTable([]byte(oneYear))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	p, err := table.Lookup(2027)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got := p.Ceiling(fiscal.ActivityGoods).String(); got != "195000" {
		t.Errorf("expected goods ceiling 195000, got %s", got)
	}
	if got := p.Brackets[0].Upper.String(); got != "11600" {
		t.Errorf("expected first upper bound 11600, got %s", got)
	}
}

func TestNewTable_RejectsUnknownField(t *testing.T) {
	// GIVEN: A misspelled rate key
	// WHEN: Parsing
	// THEN: Decoding fails instead of defaulting the rate to zero

	doc := strings.Replace(oneYear, `"liberatory_rate"`, `"liberatory_rte"`, 1)

	_, err := factory.NewTable([]byte(doc))
	if err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
	if !strings.Contains(err.Error(), "liberatory_rte") {
		t.Errorf("expected error to name the field, got %v", err)
	}
}

func TestNewTable_RejectsBracketGap(t *testing.T) {
	doc := strings.Replace(oneYear, `{"lower": 11600, "upper": null`, `{"lower": 12000, "upper": null`, 1)

	_, err := factory.NewTable([]byte(doc))
	if !fiscal.IsClientError(err) {
		t.Errorf("expected invalid parameters, got %v", err)
	}
}

func TestToJSON_ReparsesToSameTable(t *testing.T) {
	table := factory.MustDefaultTable()
	p2026, _ := table.Lookup(2026)

	data, err := json.Marshal(factory.TableJSON{ParameterSets: []factory.ParameterSetJSON{factory.ToJSON(p2026)}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	again, err := factory.NewTable(data)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	p, _ := again.Lookup(2026)
	if !p.ContributionRate.Equal(p2026.ContributionRate) || len(p.Brackets) != len(p2026.Brackets) {
		t.Errorf("reparsed set differs: %+v", p)
	}
}

func TestLoadTable_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.json")
	if err := os.WriteFile(path, []byte(oneYear), 0o600); err != nil {
		t.Fatal(err)
	}

	table, err := factory.LoadTable(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !table.Has(2027) {
		t.Error("expected 2027 to be defined")
	}

	if _, err := factory.LoadTable(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
