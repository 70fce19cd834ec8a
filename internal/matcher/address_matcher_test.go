package matcher

import (
	"math"
	"reflect"
	"testing"

	"github.com/address-lookup/app/models"
	"github.com/address-lookup/internal/normalizer"
	"github.com/address-lookup/internal/refindex"
	"go.uber.org/zap"
)

func testRecords() []models.PostalRecord {
	return []models.PostalRecord{
		{Country: models.CountryCA, PostalCode: "M6M 4X2", City: "Camp Robinson", Region: "ON", StreetName: "Bridge St & Church St"},
		{Country: models.CountryCA, PostalCode: "M6M 1A1", City: "Toronto", Region: "ON"},
		{Country: models.CountryCA, PostalCode: "A1A 1A1", City: "Springfield", Region: "NL"},
		{Country: models.CountryUS, PostalCode: "62704", City: "Springfield", Region: "IL"},
		{Country: models.CountryUS, PostalCode: "90210", City: "Beverly Hills", Region: "CA"},
	}
}

func newTestMatcher(t *testing.T, cfg Config) *AddressMatcher {
	t.Helper()
	tn, err := normalizer.NewTextNormalizer()
	if err != nil {
		t.Fatalf("NewTextNormalizer: %v", err)
	}
	ix := refindex.NewIndex(testRecords(), tn, zap.NewNop())
	return NewAddressMatcher(ix, tn, cfg, zap.NewNop())
}

func approx(got, want float64) bool {
	return math.Abs(got-want) < 1e-9
}

func TestMatchExactPostalCode(t *testing.T) {
	am := newTestMatcher(t, DefaultConfig())

	matches := am.Match(models.AddressCandidate{
		PostalCodeHint: "M6M 4X2",
		CountryHint:    models.CountryCA,
	})
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if matches[0].Record.City != "Camp Robinson" {
		t.Errorf("matched record: %+v", matches[0].Record)
	}
	// Score normalizes over populated fields, so postal alone reaches 1.0.
	if !approx(matches[0].Score, 1.0) {
		t.Errorf("score = %v, want 1.0", matches[0].Score)
	}
}

func TestMatchPostalHintNarrowsBeforeCity(t *testing.T) {
	am := newTestMatcher(t, DefaultConfig())

	// City hint points elsewhere, but the postal code drives the query.
	matches := am.Match(models.AddressCandidate{
		PostalCodeHint: "M6M 4X2",
		CityHint:       "springfield",
	})
	if len(matches) == 0 {
		t.Fatal("expected matches")
	}
	for _, m := range matches {
		if m.Record.PostalCode != "M6M 4X2" {
			t.Errorf("postal hint did not narrow the query: %+v", m.Record)
		}
	}
	if matches[0].Score >= 1.0 {
		t.Errorf("conflicting city should lower the score, got %v", matches[0].Score)
	}
}

func TestMatchPostalPrefixFallback(t *testing.T) {
	am := newTestMatcher(t, DefaultConfig())

	// Valid shape, absent from the index; the forward sortation area still
	// yields neighborhood matches at reduced confidence.
	matches := am.Match(models.AddressCandidate{
		PostalCodeHint: "M6M 9Z9",
		CountryHint:    models.CountryCA,
	})
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	for _, m := range matches {
		if !approx(m.Breakdown.Postal, 0.6) {
			t.Errorf("prefix-only postal similarity = %v, want 0.6", m.Breakdown.Postal)
		}
	}
}

func TestMatchCountryMismatchIsPenaltyNotExclusion(t *testing.T) {
	am := newTestMatcher(t, DefaultConfig())

	matches := am.Match(models.AddressCandidate{
		CityHint:    "springfield",
		CountryHint: models.CountryUS,
	})
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want both Springfields", len(matches))
	}
	if matches[0].Record.Country != models.CountryUS {
		t.Errorf("agreeing country should rank first, got %+v", matches[0].Record)
	}
	if !approx(matches[0].Score, 1.0) {
		t.Errorf("US score = %v, want 1.0", matches[0].Score)
	}
	// The CA record survives, 0.15 lower.
	if matches[1].Record.Country != models.CountryCA || !approx(matches[1].Score, 0.85) {
		t.Errorf("penalized match = %+v score %v", matches[1].Record, matches[1].Score)
	}
	if !approx(matches[1].Breakdown.CountryPenalty, 0.15) {
		t.Errorf("penalty breakdown = %v", matches[1].Breakdown.CountryPenalty)
	}
}

func TestMatchDeterministicTieBreak(t *testing.T) {
	am := newTestMatcher(t, DefaultConfig())

	// No country hint: both Springfields score identically and insertion
	// order decides.
	cand := models.AddressCandidate{CityHint: "springfield"}
	first := am.Match(cand)
	if len(first) != 2 {
		t.Fatalf("got %d matches, want 2", len(first))
	}
	if first[0].Record.PostalCode != "A1A 1A1" || first[1].Record.PostalCode != "62704" {
		t.Errorf("tie not broken by insertion order: %s then %s",
			first[0].Record.PostalCode, first[1].Record.PostalCode)
	}

	for i := 0; i < 5; i++ {
		again := am.Match(cand)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d returned a different ranking", i)
		}
	}
}

func TestMatchIntersectionStreets(t *testing.T) {
	am := newTestMatcher(t, DefaultConfig())

	cand := models.AddressCandidate{
		StreetTokens:   []string{"bridge st", "church st"},
		CityHint:       "camp robinson",
		RegionHint:     "ON",
		PostalCodeHint: "M6M 4X2",
		CountryHint:    models.CountryCA,
	}
	matches := am.Match(cand)
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if !approx(matches[0].Score, 1.0) {
		t.Errorf("score = %v, want 1.0", matches[0].Score)
	}
	want := []string{"postal_code", "city", "street", "region"}
	if got := MatchedFields(matches[0].Breakdown); !reflect.DeepEqual(got, want) {
		t.Errorf("MatchedFields = %v, want %v", got, want)
	}

	// Street order of an intersection must not matter.
	cand.StreetTokens = []string{"church st", "bridge st"}
	matches = am.Match(cand)
	if len(matches) != 1 {
		t.Fatalf("reversed street order returned %d matches", len(matches))
	}
	if !approx(matches[0].Breakdown.Street, 1.0) {
		t.Errorf("reversed street order scored %v", matches[0].Breakdown.Street)
	}
}

func TestMatchFuzzyStreetToken(t *testing.T) {
	am := newTestMatcher(t, DefaultConfig())

	matches := am.Match(models.AddressCandidate{
		StreetTokens: []string{"brige st"}, // missing 'd'
		RegionHint:   "ON",
		CountryHint:  models.CountryCA,
	})
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if matches[0].Record.PostalCode != "M6M 4X2" {
		t.Errorf("fuzzy street matched %+v", matches[0].Record)
	}
	if matches[0].Score <= 0.8 {
		t.Errorf("score = %v, want > 0.8", matches[0].Score)
	}
}

func TestMatchPartialConfigKeepsFuzzyFallback(t *testing.T) {
	// A zero-value Config must pick up every default, edit distance
	// included, or typo tolerance silently disappears.
	am := newTestMatcher(t, Config{})

	matches := am.Match(models.AddressCandidate{
		StreetTokens: []string{"brige st"},
		RegionHint:   "ON",
		CountryHint:  models.CountryCA,
	})
	if len(matches) != 1 || matches[0].Record.PostalCode != "M6M 4X2" {
		t.Errorf("fuzzy fallback lost under partial config: %d matches", len(matches))
	}
}

func TestTokenOverlap(t *testing.T) {
	testCases := []struct {
		name     string
		a, b     []string
		expected float64
	}{
		{"identical", []string{"new", "york"}, []string{"new", "york"}, 1.0},
		{"disjoint", []string{"new", "york"}, []string{"los", "angeles"}, 0.0},
		{"partial", []string{"quebec", "city"}, []string{"quebec"}, 0.5},
		{"duplicates_in_b", []string{"new", "york"}, []string{"new", "new", "york"}, 1.0},
		{"duplicates_both_sides", []string{"new", "new"}, []string{"new"}, 1.0},
		{"empty_side", []string{"new"}, nil, 0.0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tokenOverlap(tc.a, tc.b); !approx(got, tc.expected) {
				t.Errorf("tokenOverlap(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.expected)
			}
		})
	}
}

func TestMatchEmptyCandidate(t *testing.T) {
	am := newTestMatcher(t, DefaultConfig())

	if got := am.Match(models.AddressCandidate{RawText: "???"}); got != nil {
		t.Errorf("empty candidate should match nothing, got %d", len(got))
	}
}

func TestMatchTopKTruncation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TopK = 1
	am := newTestMatcher(t, cfg)

	matches := am.Match(models.AddressCandidate{CityHint: "springfield"})
	if len(matches) != 1 {
		t.Errorf("got %d matches, want TopK=1", len(matches))
	}
}

func TestMatchedFieldsThresholds(t *testing.T) {
	got := MatchedFields(models.FieldScores{Postal: 1.0, City: 0.89, Street: 0.85, Region: 1.0})
	want := []string{"postal_code", "street", "region"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MatchedFields = %v, want %v", got, want)
	}
}
