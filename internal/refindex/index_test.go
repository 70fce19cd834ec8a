package refindex

import (
	"testing"

	"github.com/address-lookup/app/models"
	"github.com/address-lookup/internal/normalizer"
	"go.uber.org/zap"
)

func testRecords() []models.PostalRecord {
	return []models.PostalRecord{
		{Country: models.CountryCA, PostalCode: "M6M 4X2", City: "Camp Robinson", Region: "ON", StreetName: "Bridge St & Church St"},
		{Country: models.CountryCA, PostalCode: "M6M 1A1", City: "Toronto", Region: "ON"},
		{Country: models.CountryCA, PostalCode: "K1A 0B1", City: "Ottawa", Region: "ON"},
		{Country: models.CountryCA, PostalCode: "A1A 1A1", City: "Springfield", Region: "NL"},
		{Country: models.CountryUS, PostalCode: "62704", City: "Springfield", Region: "IL", StreetName: "Main", StreetType: "Street"},
		{Country: models.CountryUS, PostalCode: "90210", City: "Beverly Hills", Region: "CA"},
	}
}

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	tn, err := normalizer.NewTextNormalizer()
	if err != nil {
		t.Fatalf("NewTextNormalizer: %v", err)
	}
	return NewIndex(testRecords(), tn, zap.NewNop())
}

func postalCodes(records []*models.PostalRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.PostalCode
	}
	return out
}

func TestQueryByPostalCode(t *testing.T) {
	ix := newTestIndex(t)

	got := ix.Query(QuerySpec{PostalCode: "M6M 4X2"})
	if len(got) != 1 || got[0].City != "Camp Robinson" {
		t.Fatalf("postal query returned %v", postalCodes(got))
	}

	if got := ix.Query(QuerySpec{PostalCode: "Z9Z 9Z9"}); len(got) != 0 {
		t.Errorf("unknown postal code should match nothing, got %v", postalCodes(got))
	}
}

func TestQueryByPostalPrefix(t *testing.T) {
	ix := newTestIndex(t)

	got := ix.Query(QuerySpec{PostalPrefix: "M6M"})
	if len(got) != 2 {
		t.Fatalf("prefix query returned %v", postalCodes(got))
	}
	// Insertion order.
	if got[0].PostalCode != "M6M 4X2" || got[1].PostalCode != "M6M 1A1" {
		t.Errorf("prefix results out of insertion order: %v", postalCodes(got))
	}
}

func TestQueryByCity(t *testing.T) {
	ix := newTestIndex(t)

	got := ix.Query(QuerySpec{City: "springfield"})
	if len(got) != 2 {
		t.Fatalf("city query returned %v", postalCodes(got))
	}

	got = ix.Query(QuerySpec{City: "springfield", Country: models.CountryUS})
	if len(got) != 1 || got[0].PostalCode != "62704" {
		t.Errorf("country-constrained city query returned %v", postalCodes(got))
	}

	got = ix.Query(QuerySpec{City: "springfield", Region: "IL"})
	if len(got) != 1 || got[0].PostalCode != "62704" {
		t.Errorf("region-constrained city query returned %v", postalCodes(got))
	}
}

func TestQueryByRegion(t *testing.T) {
	ix := newTestIndex(t)

	got := ix.Query(QuerySpec{Region: "ON", Country: models.CountryCA})
	if len(got) != 3 {
		t.Fatalf("region query returned %v", postalCodes(got))
	}

	// CA the region code collides with CA the country prefix; the key is
	// country-scoped so Ontario never bleeds into California.
	got = ix.Query(QuerySpec{Region: "CA"})
	if len(got) != 1 || got[0].PostalCode != "90210" {
		t.Errorf("ambiguous region code returned %v", postalCodes(got))
	}
}

func TestQueryByStreetTokens(t *testing.T) {
	ix := newTestIndex(t)

	got := ix.Query(QuerySpec{StreetTokens: []string{"bridge st"}})
	if len(got) != 0 {
		t.Fatalf("multi-word token should not hit the single-token index, got %v", postalCodes(got))
	}

	got = ix.Query(QuerySpec{StreetTokens: []string{"bridge"}})
	if len(got) != 1 || got[0].PostalCode != "M6M 4X2" {
		t.Fatalf("street token query returned %v", postalCodes(got))
	}

	// Both sides of an intersection street string are indexed.
	got = ix.Query(QuerySpec{StreetTokens: []string{"church"}})
	if len(got) != 1 || got[0].PostalCode != "M6M 4X2" {
		t.Errorf("cross-street token query returned %v", postalCodes(got))
	}
}

func TestQueryStreetTokenFuzzyFallback(t *testing.T) {
	ix := newTestIndex(t)

	if got := ix.Query(QuerySpec{StreetTokens: []string{"bridg"}}); len(got) != 0 {
		t.Fatalf("typo without edit-distance budget should miss, got %v", postalCodes(got))
	}

	got := ix.Query(QuerySpec{StreetTokens: []string{"bridg"}, MaxEditDistance: 1})
	if len(got) != 1 || got[0].PostalCode != "M6M 4X2" {
		t.Errorf("fuzzy street token query returned %v", postalCodes(got))
	}

	if got := ix.Query(QuerySpec{StreetTokens: []string{"xqzw"}, MaxEditDistance: 1}); len(got) != 0 {
		t.Errorf("garbage token should miss even with fuzz, got %v", postalCodes(got))
	}
}

func TestQueryEmptySpec(t *testing.T) {
	ix := newTestIndex(t)

	if got := ix.Query(QuerySpec{}); got != nil {
		t.Errorf("empty spec should return nil, got %v", postalCodes(got))
	}
	if got := ix.Query(QuerySpec{Country: models.CountryCA}); len(got) != 0 {
		t.Errorf("country-only spec should not scan the partition, got %d records", len(got))
	}
}

func TestIndexLen(t *testing.T) {
	ix := newTestIndex(t)
	if ix.Len() != len(testRecords()) {
		t.Errorf("Len() = %d, want %d", ix.Len(), len(testRecords()))
	}
}
