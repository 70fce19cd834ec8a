package refindex

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/address-lookup/app/models"
	"go.uber.org/zap"
)

var (
	caPostalRe   = regexp.MustCompile(`^[A-Z][0-9][A-Z] [0-9][A-Z][0-9]$`)
	caCompactRe  = regexp.MustCompile(`^[A-Z][0-9][A-Z][0-9][A-Z][0-9]$`)
	usZipRe      = regexp.MustCompile(`^[0-9]{5}(-[0-9]{4})?$`)
)

// Column aliases accepted per field. Datasets are accessed by header name,
// so column order and extra columns never matter.
var (
	caRequired = map[string][]string{
		"postal_code": {"postal_code", "postalcode"},
		"city":        {"city", "place_name"},
		"region":      {"province_abbr", "province", "region"},
	}
	usRequired = map[string][]string{
		"postal_code": {"zip_code", "zip", "zipcode"},
		"city":        {"city", "place_name"},
		"region":      {"state", "state_abbr", "region"},
	}
	optionalColumns = map[string][]string{
		"street_name": {"street_name", "street"},
		"street_type": {"street_type"},
		"latitude":    {"latitude", "lat"},
		"longitude":   {"longitude", "lon", "lng"},
	}
)

// NormalizePostalCode uppercases and canonicalizes a postal code for the
// given country ("m6m4x2" -> "M6M 4X2") and validates its format.
func NormalizePostalCode(code string, country models.Country) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	switch country {
	case models.CountryCA:
		compact := strings.ReplaceAll(code, " ", "")
		if caCompactRe.MatchString(compact) {
			code = compact[:3] + " " + compact[3:]
		}
		if !caPostalRe.MatchString(code) {
			return "", fmt.Errorf("invalid CA postal code %q", code)
		}
	case models.CountryUS:
		if !usZipRe.MatchString(code) {
			return "", fmt.Errorf("invalid US ZIP code %q", code)
		}
	default:
		return "", fmt.Errorf("unsupported country %q", country)
	}
	return code, nil
}

// columnMap resolves required and optional field positions from a header
// row. Lookup is case-insensitive.
type columnMap map[string]int

func resolveColumns(header []string, country models.Country, dataset string) (columnMap, error) {
	byName := make(map[string]int, len(header))
	for i, h := range header {
		byName[strings.ToLower(strings.TrimSpace(h))] = i
	}

	required := caRequired
	if country == models.CountryUS {
		required = usRequired
	}

	cols := make(columnMap)
	for field, aliases := range required {
		found := false
		for _, alias := range aliases {
			if idx, ok := byName[alias]; ok {
				cols[field] = idx
				found = true
				break
			}
		}
		if !found {
			return nil, &models.DatasetFormatError{
				Dataset: dataset,
				Reason:  fmt.Sprintf("missing required column %q", aliases[0]),
			}
		}
	}
	for field, aliases := range optionalColumns {
		for _, alias := range aliases {
			if idx, ok := byName[alias]; ok {
				cols[field] = idx
				break
			}
		}
	}
	return cols, nil
}

func (c columnMap) get(row []string, field string) string {
	idx, ok := c[field]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// LoadCSV reads one reference dataset into PostalRecords. Any row with a
// postal code that fails country-specific validation aborts the load with a
// DatasetFormatError: a partially valid dataset is never indexed.
func LoadCSV(path string, country models.Country, logger *zap.Logger) ([]models.PostalRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // rows may carry trailing extras

	header, err := reader.Read()
	if err != nil {
		return nil, &models.DatasetFormatError{Dataset: path, Reason: "empty dataset or unreadable header"}
	}
	cols, err := resolveColumns(header, country, path)
	if err != nil {
		return nil, err
	}

	var records []models.PostalRecord
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &models.DatasetFormatError{Dataset: path, Line: line + 1, Reason: err.Error()}
		}
		line++

		code, err := NormalizePostalCode(cols.get(row, "postal_code"), country)
		if err != nil {
			return nil, &models.DatasetFormatError{Dataset: path, Line: line, Reason: err.Error()}
		}

		rec := models.PostalRecord{
			Country:    country,
			PostalCode: code,
			City:       cols.get(row, "city"),
			Region:     strings.ToUpper(cols.get(row, "region")),
			StreetName: cols.get(row, "street_name"),
			StreetType: cols.get(row, "street_type"),
		}
		if lat := cols.get(row, "latitude"); lat != "" {
			if v, err := strconv.ParseFloat(lat, 64); err == nil {
				rec.Latitude = &v
			}
		}
		if lon := cols.get(row, "longitude"); lon != "" {
			if v, err := strconv.ParseFloat(lon, 64); err == nil {
				rec.Longitude = &v
			}
		}
		records = append(records, rec)
	}

	logger.Info("Loaded reference dataset",
		zap.String("path", path),
		zap.String("country", string(country)),
		zap.Int("records", len(records)))

	return records, nil
}
