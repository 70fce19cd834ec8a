package refindex

import (
	"sort"
	"strings"

	"github.com/address-lookup/app/models"
	"github.com/address-lookup/internal/normalizer"
	"github.com/agnivade/levenshtein"
	"go.uber.org/zap"
)

// QuerySpec constrains an index query. Only populated fields filter; an
// entirely empty spec returns nothing. City and postal values must already
// be in normalized form, street tokens in canonical form.
type QuerySpec struct {
	Country      models.Country
	PostalCode   string // exact match
	PostalPrefix string
	City         string
	Region       string
	StreetTokens []string
	// MaxEditDistance tolerates typos in street tokens that miss the token
	// index outright. 0 disables the fuzzy fallback.
	MaxEditDistance int
}

func (q QuerySpec) isEmpty() bool {
	return q.Country == "" && q.PostalCode == "" && q.PostalPrefix == "" &&
		q.City == "" && q.Region == "" && len(q.StreetTokens) == 0
}

// Index is the read-only in-memory index over both reference datasets.
// Build it once, then query it from any number of goroutines.
type Index struct {
	records []models.PostalRecord

	byPostal      map[string][]int
	postalCodes   []string // sorted unique codes, for prefix queries
	byCity        map[string][]int
	byRegion      map[string][]int // keyed country|region
	byStreetToken map[string][]int
	streetTokens  []string // sorted token keys, for the fuzzy fallback

	norm   *normalizer.TextNormalizer
	logger *zap.Logger
}

// NewIndex builds the auxiliary lookup structures over the given records.
// Record slice order defines insertion order, which matcher tie-breaks
// depend on.
func NewIndex(records []models.PostalRecord, tn *normalizer.TextNormalizer, logger *zap.Logger) *Index {
	ix := &Index{
		records:       records,
		byPostal:      make(map[string][]int),
		byCity:        make(map[string][]int),
		byRegion:      make(map[string][]int),
		byStreetToken: make(map[string][]int),
		norm:          tn,
		logger:        logger,
	}

	for i := range records {
		rec := &records[i]
		ix.byPostal[rec.PostalCode] = append(ix.byPostal[rec.PostalCode], i)
		if city := tn.NormalizeCity(rec.City); city != "" {
			ix.byCity[city] = append(ix.byCity[city], i)
		}
		if rec.Region != "" {
			key := regionKey(rec.Country, rec.Region)
			ix.byRegion[key] = append(ix.byRegion[key], i)
		}
		for _, tok := range ix.streetTokensOf(rec) {
			ix.byStreetToken[tok] = append(ix.byStreetToken[tok], i)
		}
	}

	ix.postalCodes = make([]string, 0, len(ix.byPostal))
	for code := range ix.byPostal {
		ix.postalCodes = append(ix.postalCodes, code)
	}
	sort.Strings(ix.postalCodes)

	ix.streetTokens = make([]string, 0, len(ix.byStreetToken))
	for tok := range ix.byStreetToken {
		ix.streetTokens = append(ix.streetTokens, tok)
	}
	sort.Strings(ix.streetTokens)

	logger.Info("Built reference index",
		zap.Int("records", len(records)),
		zap.Int("postal_codes", len(ix.postalCodes)),
		zap.Int("cities", len(ix.byCity)),
		zap.Int("street_tokens", len(ix.streetTokens)))

	return ix
}

// streetTokensOf yields the canonical index tokens of a record's street
// name, including both sides of an intersection-style street string.
func (ix *Index) streetTokensOf(rec *models.PostalRecord) []string {
	if rec.StreetName == "" {
		return nil
	}
	name := rec.StreetName
	if rec.StreetType != "" {
		name += " " + rec.StreetType
	}
	var tokens []string
	for _, tok := range ix.norm.Tokens(ix.norm.CanonicalStreet(name)) {
		if ix.norm.IsConnector(tok) || ix.norm.IsStreetType(tok) {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// Len returns the number of indexed records.
func (ix *Index) Len() int {
	return len(ix.records)
}

// Query returns every record satisfying all populated constraints of the
// spec, in insertion order. It is side-effect-free and returns an empty
// slice, never an error, when nothing matches.
func (ix *Index) Query(spec QuerySpec) []*models.PostalRecord {
	if spec.isEmpty() {
		return nil
	}

	ids, narrowed := ix.seedIDs(spec)
	if !narrowed {
		// Only a country constraint was given; refuse to scan the whole
		// partition, matching the matcher's empty-candidate short-circuit.
		return nil
	}

	seen := make(map[int]bool, len(ids))
	var kept []int
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if ix.satisfies(id, spec) {
			kept = append(kept, id)
		}
	}
	sort.Ints(kept)

	out := make([]*models.PostalRecord, len(kept))
	for i, id := range kept {
		out[i] = &ix.records[id]
	}
	return out
}

// seedIDs picks the most selective populated constraint as the driving
// posting list so a query never scans the full table.
func (ix *Index) seedIDs(spec QuerySpec) ([]int, bool) {
	switch {
	case spec.PostalCode != "":
		return ix.byPostal[spec.PostalCode], true
	case spec.PostalPrefix != "":
		return ix.postalPrefixIDs(spec.PostalPrefix), true
	case spec.City != "":
		return ix.byCity[spec.City], true
	case len(spec.StreetTokens) > 0:
		return ix.streetTokenIDs(spec.StreetTokens, spec.MaxEditDistance), true
	case spec.Region != "":
		if spec.Country != "" {
			return ix.byRegion[regionKey(spec.Country, spec.Region)], true
		}
		ids := append([]int(nil), ix.byRegion[regionKey(models.CountryCA, spec.Region)]...)
		return append(ids, ix.byRegion[regionKey(models.CountryUS, spec.Region)]...), true
	default:
		return nil, false
	}
}

func (ix *Index) postalPrefixIDs(prefix string) []int {
	start := sort.SearchStrings(ix.postalCodes, prefix)
	var ids []int
	for i := start; i < len(ix.postalCodes); i++ {
		if !strings.HasPrefix(ix.postalCodes[i], prefix) {
			break
		}
		ids = append(ids, ix.byPostal[ix.postalCodes[i]]...)
	}
	return ids
}

// streetTokenIDs unions the posting lists of all query tokens. A token with
// no exact posting falls back to an edit-distance scan over the token keys,
// which stays cheap because the key space is tokens, not records.
func (ix *Index) streetTokenIDs(tokens []string, maxDist int) []int {
	var ids []int
	for _, tok := range tokens {
		if posting, ok := ix.byStreetToken[tok]; ok {
			ids = append(ids, posting...)
			continue
		}
		if maxDist <= 0 {
			continue
		}
		for _, key := range ix.streetTokens {
			if abs(len(key)-len(tok)) > maxDist {
				continue
			}
			if levenshtein.ComputeDistance(tok, key) <= maxDist {
				ids = append(ids, ix.byStreetToken[key]...)
			}
		}
	}
	return ids
}

// satisfies applies the remaining constraints as predicates on one record.
func (ix *Index) satisfies(id int, spec QuerySpec) bool {
	rec := &ix.records[id]
	if spec.Country != "" && rec.Country != spec.Country {
		return false
	}
	if spec.PostalCode != "" && rec.PostalCode != spec.PostalCode {
		return false
	}
	if spec.PostalPrefix != "" && !strings.HasPrefix(rec.PostalCode, spec.PostalPrefix) {
		return false
	}
	if spec.Region != "" && rec.Region != spec.Region {
		return false
	}
	if spec.City != "" && ix.norm.NormalizeCity(rec.City) != spec.City {
		return false
	}
	return true
}

func regionKey(country models.Country, region string) string {
	return string(country) + "|" + strings.ToUpper(region)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
