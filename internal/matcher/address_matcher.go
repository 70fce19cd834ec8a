package matcher

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/address-lookup/app/models"
	"github.com/address-lookup/internal/normalizer"
	"github.com/address-lookup/internal/refindex"
	"github.com/agnivade/levenshtein"
	"github.com/xrash/smetrics"
	"go.uber.org/zap"
)

// Weights control the per-field contributions to the composite score. The
// composite is normalized over the weights of the fields a candidate
// actually populated, so a postal-only query can still reach 1.0.
type Weights struct {
	Postal float64 `mapstructure:"postal"`
	City   float64 `mapstructure:"city"`
	Street float64 `mapstructure:"street"`
	Region float64 `mapstructure:"region"`
	// CountryMismatchPenalty is subtracted when the record's country
	// disagrees with a detected hint. Penalty, never exclusion: a road
	// crossing the border stays findable.
	CountryMismatchPenalty float64 `mapstructure:"country_mismatch_penalty"`
}

// DefaultWeights: postal dominant, city secondary, street tertiary, region
// a small bonus.
func DefaultWeights() Weights {
	return Weights{
		Postal:                 0.50,
		City:                   0.25,
		Street:                 0.15,
		Region:                 0.10,
		CountryMismatchPenalty: 0.15,
	}
}

// Config tunes the matcher.
type Config struct {
	Weights         Weights
	TopK            int // result truncation, near-miss list bound
	MaxEditDistance int // fuzzy street-token tolerance in the index query
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Weights:         DefaultWeights(),
		TopK:            5,
		MaxEditDistance: 1,
	}
}

// AddressMatcher queries the reference index for records plausible for a
// candidate and ranks them by weighted field similarity. Stateless aside
// from the shared immutable index; safe for concurrent use.
type AddressMatcher struct {
	index  *refindex.Index
	norm   *normalizer.TextNormalizer
	logger *zap.Logger
	cfg    Config
}

// NewAddressMatcher wires a matcher over a built index.
func NewAddressMatcher(index *refindex.Index, tn *normalizer.TextNormalizer, cfg Config, logger *zap.Logger) *AddressMatcher {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultConfig().TopK
	}
	if cfg.MaxEditDistance <= 0 {
		cfg.MaxEditDistance = DefaultConfig().MaxEditDistance
	}
	if cfg.Weights == (Weights{}) {
		cfg.Weights = DefaultWeights()
	}
	return &AddressMatcher{index: index, norm: tn, logger: logger, cfg: cfg}
}

// Match returns scored matches in descending score order. Ties break by
// country-hint agreement, then by record insertion order, so the ranking
// is deterministic for identical inputs.
func (am *AddressMatcher) Match(cand models.AddressCandidate) []models.ScoredMatch {
	if cand.IsEmpty() {
		return nil
	}
	start := time.Now()

	records := am.queryRecords(cand)
	matches := make([]models.ScoredMatch, 0, len(records))
	for _, rec := range records {
		score, breakdown := am.scoreRecord(&cand, rec)
		matches = append(matches, models.ScoredMatch{
			Record:    rec,
			Score:     score,
			Breakdown: breakdown,
		})
	}

	// Records arrive in insertion order. The first stable pass moves
	// country-hint agreement ahead within equal scores, the second orders
	// by score; stability preserves insertion order on full ties.
	if cand.CountryHint != "" {
		sort.SliceStable(matches, func(i, j int) bool {
			return matches[i].Record.Country == cand.CountryHint &&
				matches[j].Record.Country != cand.CountryHint
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > am.cfg.TopK {
		matches = matches[:am.cfg.TopK]
	}

	am.logger.Debug("Matched candidate",
		zap.String("raw", cand.RawText),
		zap.Int("candidates", len(records)),
		zap.Int("returned", len(matches)),
		zap.Duration("duration", time.Since(start)))

	return matches
}

// queryRecords runs a narrowing waterfall against the index: postal code
// first, then exact city within region, exact city anywhere, fuzzy street
// tokens, and region-wide as a last resort. Cross-border disambiguation is
// left to scoring, so no stage filters by country.
func (am *AddressMatcher) queryRecords(cand models.AddressCandidate) []*models.PostalRecord {
	if cand.PostalCodeHint != "" {
		if recs := am.index.Query(refindex.QuerySpec{PostalCode: cand.PostalCodeHint}); len(recs) > 0 {
			return recs
		}
		// The exact code is absent (often a typo in the last segment);
		// widen to the forward-sortation/ZIP prefix before giving up on
		// the postal hint.
		if prefix := postalPrefix(cand.PostalCodeHint); prefix != "" {
			if recs := am.index.Query(refindex.QuerySpec{PostalPrefix: prefix}); len(recs) > 0 {
				return recs
			}
		}
	}

	if cand.CityHint != "" && cand.RegionHint != "" {
		if recs := am.index.Query(refindex.QuerySpec{City: cand.CityHint, Region: cand.RegionHint}); len(recs) > 0 {
			return recs
		}
	}
	if cand.CityHint != "" {
		if recs := am.index.Query(refindex.QuerySpec{City: cand.CityHint}); len(recs) > 0 {
			return recs
		}
	}
	if len(cand.StreetTokens) > 0 {
		spec := refindex.QuerySpec{
			StreetTokens:    am.streetQueryTokens(cand.StreetTokens),
			Region:          cand.RegionHint,
			MaxEditDistance: am.cfg.MaxEditDistance,
		}
		if recs := am.index.Query(spec); len(recs) > 0 {
			return recs
		}
		// Region may be the wrong narrowing; retry street tokens alone.
		if spec.Region != "" {
			spec.Region = ""
			if recs := am.index.Query(spec); len(recs) > 0 {
				return recs
			}
		}
	}
	if cand.RegionHint != "" {
		return am.index.Query(refindex.QuerySpec{Region: cand.RegionHint})
	}
	return nil
}

// streetQueryTokens flattens candidate street names into individual index
// tokens, dropping street-type words that carry no selectivity.
func (am *AddressMatcher) streetQueryTokens(streets []string) []string {
	var tokens []string
	for _, street := range streets {
		for _, tok := range strings.Fields(street) {
			if am.norm.IsStreetType(tok) || am.norm.IsConnector(tok) {
				continue
			}
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// scoreRecord computes the weighted composite similarity of one record
// against the candidate. Only fields the candidate populated enter the
// denominator; a record lacking a street name is neutral on street rather
// than penalized.
func (am *AddressMatcher) scoreRecord(cand *models.AddressCandidate, rec *models.PostalRecord) (float64, models.FieldScores) {
	w := am.cfg.Weights
	var breakdown models.FieldScores
	var weighted, total float64

	if cand.PostalCodeHint != "" {
		breakdown.Postal = postalSimilarity(cand.PostalCodeHint, rec.PostalCode)
		weighted += w.Postal * breakdown.Postal
		total += w.Postal
	}
	if cand.CityHint != "" {
		breakdown.City = am.citySimilarity(cand.CityHint, rec.City)
		weighted += w.City * breakdown.City
		total += w.City
	}
	if len(cand.StreetTokens) > 0 && rec.StreetName != "" {
		breakdown.Street = am.streetSimilarity(cand.StreetTokens, rec)
		weighted += w.Street * breakdown.Street
		total += w.Street
	}
	if cand.RegionHint != "" && rec.Region != "" {
		if strings.EqualFold(cand.RegionHint, rec.Region) {
			breakdown.Region = 1.0
		}
		weighted += w.Region * breakdown.Region
		total += w.Region
	}

	if total == 0 {
		return 0, breakdown
	}
	score := weighted / total

	if cand.CountryHint != "" && rec.Country != cand.CountryHint {
		breakdown.CountryPenalty = w.CountryMismatchPenalty
		score -= w.CountryMismatchPenalty
	}

	return clamp01(score), breakdown
}

func postalSimilarity(hint, code string) float64 {
	if hint == code {
		return 1.0
	}
	if p := postalPrefix(hint); p != "" && strings.HasPrefix(code, p) {
		return 0.6
	}
	return 0.0
}

// postalPrefix returns the coarse geographic prefix of a normalized code:
// the forward sortation area for CA, the three-digit prefix for US.
func postalPrefix(code string) string {
	if len(code) >= 3 {
		return code[:3]
	}
	return ""
}

// citySimilarity: normalized exact match wins outright, otherwise the best
// of Jaro-Winkler and token-set overlap.
func (am *AddressMatcher) citySimilarity(hint, city string) float64 {
	normCity := am.norm.NormalizeCity(city)
	if hint == normCity {
		return 1.0
	}
	jw := smetrics.JaroWinkler(hint, normCity, 0.7, 4)
	return math.Max(jw, tokenOverlap(strings.Fields(hint), strings.Fields(normCity)))
}

// streetSimilarity compares the candidate street token(s) against the
// record's street name. Intersection candidates must match both streets in
// either order; the best pairing wins.
func (am *AddressMatcher) streetSimilarity(streets []string, rec *models.PostalRecord) float64 {
	name := rec.StreetName
	if rec.StreetType != "" {
		name += " " + rec.StreetType
	}
	parts := am.recordStreetParts(name)
	if len(parts) == 0 {
		return 0.0
	}

	if len(streets) >= 2 {
		a, b := am.bareStreet(streets[0]), am.bareStreet(streets[1])
		if len(parts) >= 2 {
			straight := (stringSimilarity(a, parts[0]) + stringSimilarity(b, parts[1])) / 2
			crossed := (stringSimilarity(a, parts[1]) + stringSimilarity(b, parts[0])) / 2
			return math.Max(straight, crossed)
		}
		// Single-street record against an intersection candidate: the
		// weaker side bounds the score.
		return math.Min(bestSimilarity(a, parts), bestSimilarity(b, parts))
	}

	return bestSimilarity(am.bareStreet(streets[0]), parts)
}

// recordStreetParts splits an intersection-style record street name
// ("bridge st & church st") into canonical parts without type tokens.
func (am *AddressMatcher) recordStreetParts(name string) []string {
	canonical := am.norm.CanonicalStreet(name)
	var parts []string
	current := make([]string, 0, 4)
	flush := func() {
		if len(current) > 0 {
			parts = append(parts, strings.Join(current, " "))
			current = current[:0]
		}
	}
	for _, tok := range strings.Fields(canonical) {
		if am.norm.IsConnector(tok) {
			flush()
			continue
		}
		if am.norm.IsStreetType(tok) {
			continue
		}
		current = append(current, tok)
	}
	flush()
	return parts
}

// bareStreet strips street-type tokens from a candidate street so "bridge
// st" and "bridge" compare equal.
func (am *AddressMatcher) bareStreet(street string) string {
	var kept []string
	for _, tok := range strings.Fields(street) {
		if am.norm.IsStreetType(tok) {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}

func bestSimilarity(s string, parts []string) float64 {
	best := 0.0
	for _, p := range parts {
		if sim := stringSimilarity(s, p); sim > best {
			best = sim
		}
	}
	return best
}

// stringSimilarity takes the better of Jaro-Winkler and a length-scaled
// Levenshtein ratio. JW favors shared prefixes, the ratio catches interior
// typos.
func stringSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0.0
	}
	if a == b {
		return 1.0
	}
	jw := smetrics.JaroWinkler(a, b, 0.7, 4)
	dist := levenshtein.ComputeDistance(a, b)
	maxLen := math.Max(float64(len(a)), float64(len(b)))
	lev := 1.0 - float64(dist)/maxLen
	return math.Max(jw, lev)
}

func tokenOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	setA := make(map[string]bool, len(a))
	for _, t := range a {
		setA[t] = true
	}
	seenB := make(map[string]bool, len(b))
	common := 0
	union := len(setA)
	for _, t := range b {
		if seenB[t] {
			continue
		}
		seenB[t] = true
		if setA[t] {
			common++
		} else {
			union++
		}
	}
	return float64(common) / float64(union)
}

// MatchedFields lists the fields whose similarity was decisive for a
// resolved match.
func MatchedFields(b models.FieldScores) []string {
	var fields []string
	if b.Postal >= 0.99 {
		fields = append(fields, "postal_code")
	}
	if b.City >= 0.9 {
		fields = append(fields, "city")
	}
	if b.Street >= 0.8 {
		fields = append(fields, "street")
	}
	if b.Region >= 0.99 {
		fields = append(fields, "region")
	}
	return fields
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
