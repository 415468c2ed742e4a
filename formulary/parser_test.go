package formulary

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseFile(t *testing.T) {
	p := NewParser()

	f, err := p.ParseFile("testdata/formulary.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.DrugCount() != 2 {
		t.Fatalf("expected 2 drugs, got %d", f.DrugCount())
	}

	ibu, ok := f.Drug("ibuprofen")
	if !ok {
		t.Fatal("ibuprofen missing from the parsed formulary")
	}
	if ibu.Key != "ibuprofen" {
		t.Errorf("expected the parser to fill in the key, got %q", ibu.Key)
	}
	if ibu.MinWeightKg != 5 || ibu.MinIntervalHours != 6 || ibu.MaxDailyMgPerKg != 30 {
		t.Errorf("ibuprofen thresholds wrong: %+v", ibu)
	}

	fc, ok := ibu.FixedConcentration("oral", 40)
	if !ok {
		t.Fatal("expected the 40 mg/mL oral strength")
	}
	if fc.MinWeightKg != 10 || fc.MinAgeMonths != 12 {
		t.Errorf("strength-specific floors wrong: %+v", fc)
	}

	para, ok := f.Drug("paracetamol")
	if !ok {
		t.Fatal("paracetamol missing from the parsed formulary")
	}
	if para.AbsoluteMinAgeMonths != 2 {
		t.Errorf("expected the 2 month absolute floor, got %d", para.AbsoluteMinAgeMonths)
	}
	if _, ok := para.FixedConcentration("rectal", 100); !ok {
		t.Error("expected the rectal suppository strength")
	}
}

func TestParseFileMissing(t *testing.T) {
	p := NewParser()
	if _, err := p.ParseFile("testdata/does-not-exist.yaml"); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func writeTempFormulary(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "formulary.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("failed to write temp formulary: %v", err)
	}
	return path
}

func TestParseFileRejectsInvalidDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not yaml", "drugs: ["},
		{"no drugs", "drugs: {}"},
		{
			"missing dose range",
			`drugs:
  ibuprofen:
    min_interval_hours: 6
    max_daily_mg_per_kg: 30
`,
		},
		{
			"inverted dose range",
			`drugs:
  ibuprofen:
    mg_per_kg_single_dose_range: [10, 5]
    min_interval_hours: 6
    max_daily_mg_per_kg: 30
`,
		},
		{
			"target outside range",
			`drugs:
  ibuprofen:
    target_mg_per_kg: 20
    mg_per_kg_single_dose_range: [5, 10]
    min_interval_hours: 6
    max_daily_mg_per_kg: 30
`,
		},
		{
			"zero interval",
			`drugs:
  ibuprofen:
    mg_per_kg_single_dose_range: [5, 10]
    min_interval_hours: 0
    max_daily_mg_per_kg: 30
`,
		},
		{
			"implausible concentration",
			`drugs:
  ibuprofen:
    mg_per_kg_single_dose_range: [5, 10]
    min_interval_hours: 6
    max_daily_mg_per_kg: 30
    routes:
      oral:
        fixed_concentrations:
          - mg_per_ml: 500
            label: "too strong"
`,
		},
		{
			"unlabeled concentration",
			`drugs:
  ibuprofen:
    mg_per_kg_single_dose_range: [5, 10]
    min_interval_hours: 6
    max_daily_mg_per_kg: 30
    routes:
      oral:
        fixed_concentrations:
          - mg_per_ml: 20
`,
		},
		{
			"overlapping age bands",
			`drugs:
  ibuprofen:
    mg_per_kg_single_dose_range: [5, 10]
    min_interval_hours: 6
    max_daily_mg_per_kg: 30
    routes:
      oral:
        fixed_concentrations:
          - mg_per_ml: 20
            label: "100 mg / 5 mL"
            age_band_ml:
              - { min_months: 3, max_months: 12, ml: 2.5 }
              - { min_months: 6, max_months: 24, ml: 5 }
`,
		},
	}

	p := NewParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempFormulary(t, tt.doc)
			if _, err := p.ParseFile(path); err == nil {
				t.Error("expected the document to be rejected")
			}
		})
	}
}
