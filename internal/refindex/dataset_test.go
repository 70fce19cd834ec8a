package refindex

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/address-lookup/app/models"
	"go.uber.org/zap"
)

func writeTempCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestNormalizePostalCode(t *testing.T) {
	testCases := []struct {
		name     string
		code     string
		country  models.Country
		expected string
		wantErr  bool
	}{
		{"ca_spaced", "M6M 4X2", models.CountryCA, "M6M 4X2", false},
		{"ca_compact", "m6m4x2", models.CountryCA, "M6M 4X2", false},
		{"ca_lowercase", "k1a 0b1", models.CountryCA, "K1A 0B1", false},
		{"ca_invalid", "ZZZZZZ", models.CountryCA, "", true},
		{"ca_zip_shape", "62704", models.CountryCA, "", true},
		{"us_zip", "62704", models.CountryUS, "62704", false},
		{"us_zip_plus4", "62704-1234", models.CountryUS, "62704-1234", false},
		{"us_too_short", "9021", models.CountryUS, "", true},
		{"us_letters", "A6704", models.CountryUS, "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizePostalCode(tc.code, tc.country)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("NormalizePostalCode(%q, %s) expected error, got %q", tc.code, tc.country, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizePostalCode(%q, %s): %v", tc.code, tc.country, err)
			}
			if got != tc.expected {
				t.Errorf("NormalizePostalCode(%q, %s) = %q, want %q", tc.code, tc.country, got, tc.expected)
			}
		})
	}
}

func TestLoadCSVCanadian(t *testing.T) {
	path := writeTempCSV(t, "ca.csv",
		"POSTAL_CODE,CITY,PROVINCE_ABBR,LATITUDE,LONGITUDE\n"+
			"M6M 4X2,Toronto,ON,43.69,-79.47\n"+
			"k1a0b1,Ottawa,on,,\n")

	records, err := LoadCSV(path, models.CountryCA, zap.NewNop())
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	first := records[0]
	if first.PostalCode != "M6M 4X2" || first.City != "Toronto" || first.Region != "ON" {
		t.Errorf("unexpected first record: %+v", first)
	}
	if first.Country != models.CountryCA {
		t.Errorf("country = %q, want CA", first.Country)
	}
	if first.Latitude == nil || *first.Latitude != 43.69 {
		t.Errorf("latitude not parsed: %+v", first.Latitude)
	}

	second := records[1]
	if second.PostalCode != "K1A 0B1" {
		t.Errorf("compact postal code not canonicalized: %q", second.PostalCode)
	}
	if second.Region != "ON" {
		t.Errorf("region not uppercased: %q", second.Region)
	}
	if second.Latitude != nil {
		t.Error("empty latitude should stay nil")
	}
}

func TestLoadCSVUS(t *testing.T) {
	path := writeTempCSV(t, "us.csv",
		"ZIP_CODE,CITY,STATE\n"+
			"62704,Springfield,IL\n"+
			"90210,Beverly Hills,CA\n")

	records, err := LoadCSV(path, models.CountryUS, zap.NewNop())
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].PostalCode != "62704" || records[0].Country != models.CountryUS {
		t.Errorf("unexpected record: %+v", records[0])
	}
}

func TestLoadCSVTolerantOfColumnLayout(t *testing.T) {
	// Reordered columns, different alias, extra column: all fine. Access is
	// by header name, never position.
	path := writeTempCSV(t, "ca.csv",
		"CITY,EXTRA,POSTALCODE,PROVINCE\n"+
			"Toronto,x,M6M 4X2,ON\n")

	records, err := LoadCSV(path, models.CountryCA, zap.NewNop())
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if len(records) != 1 || records[0].PostalCode != "M6M 4X2" || records[0].City != "Toronto" {
		t.Errorf("unexpected records: %+v", records)
	}
}

func TestLoadCSVInvalidPostalCodeAbortsLoad(t *testing.T) {
	path := writeTempCSV(t, "ca.csv",
		"POSTAL_CODE,CITY,PROVINCE_ABBR\n"+
			"M6M 4X2,Toronto,ON\n"+
			"ZZZZZZ,Nowhere,ON\n"+
			"K1A 0B1,Ottawa,ON\n")

	records, err := LoadCSV(path, models.CountryCA, zap.NewNop())
	if err == nil {
		t.Fatal("expected DatasetFormatError for malformed postal code")
	}
	if records != nil {
		t.Error("no records should be returned from a failed load")
	}

	var dfe *models.DatasetFormatError
	if !errors.As(err, &dfe) {
		t.Fatalf("expected DatasetFormatError, got %T: %v", err, err)
	}
	if dfe.Line != 3 {
		t.Errorf("error line = %d, want 3", dfe.Line)
	}
	if dfe.Dataset != path {
		t.Errorf("error dataset = %q, want %q", dfe.Dataset, path)
	}
}

func TestLoadCSVMissingColumn(t *testing.T) {
	path := writeTempCSV(t, "ca.csv",
		"POSTAL_CODE,PROVINCE_ABBR\n"+
			"M6M 4X2,ON\n")

	_, err := LoadCSV(path, models.CountryCA, zap.NewNop())
	if err == nil {
		t.Fatal("expected error for missing city column")
	}
	if !models.IsDatasetFormatError(err) {
		t.Fatalf("expected DatasetFormatError, got %T: %v", err, err)
	}
}

func TestLoadCSVMissingFile(t *testing.T) {
	_, err := LoadCSV(filepath.Join(t.TempDir(), "missing.csv"), models.CountryCA, zap.NewNop())
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
