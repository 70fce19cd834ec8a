package parser

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/address-lookup/app/models"
	"github.com/address-lookup/internal/normalizer"
	"github.com/address-lookup/internal/refindex"
	"go.uber.org/zap"
)

var (
	caPostalHintRe = regexp.MustCompile(`\b[a-z][0-9][a-z] ?[0-9][a-z][0-9]\b`)
	zipPlus4Re     = regexp.MustCompile(`\b[0-9]{5}-[0-9]{4}\b`)
	trailingZipRe  = regexp.MustCompile(`^[0-9]{5}(-[0-9]{4})?$`)
	houseNumberRe  = regexp.MustCompile(`^[0-9]+[a-z]?$`)
)

// Config tunes parser behavior.
type Config struct {
	// MinRuleFields is the number of populated fields (out of postal code
	// and city) below which the model fallback is consulted.
	MinRuleFields int
	// ModelTimeout bounds a single extraction call.
	ModelTimeout time.Duration
}

// DefaultConfig matches the documented fallback policy: consult the model
// only when rule-based extraction found neither a city nor a postal code.
func DefaultConfig() Config {
	return Config{
		MinRuleFields: 1,
		ModelTimeout:  5 * time.Second,
	}
}

// AddressParser turns one raw address string into an AddressCandidate.
// Rule-based extraction runs first; the model extractor is a fallback and
// its fields never override rule-derived ones. Parse never fails: a
// hopeless input yields a candidate with all hints empty.
type AddressParser struct {
	norm      *normalizer.TextNormalizer
	extractor TextFieldExtractor // nil disables the model path
	logger    *zap.Logger
	cfg       Config

	modelErrors   atomic.Int64
	modelTimeouts atomic.Int64
}

// NewAddressParser wires the parser. extractor may be nil to run
// rule-based-only.
func NewAddressParser(tn *normalizer.TextNormalizer, extractor TextFieldExtractor, cfg Config, logger *zap.Logger) *AddressParser {
	if cfg.MinRuleFields <= 0 {
		cfg.MinRuleFields = DefaultConfig().MinRuleFields
	}
	if cfg.ModelTimeout <= 0 {
		cfg.ModelTimeout = DefaultConfig().ModelTimeout
	}
	return &AddressParser{
		norm:      tn,
		extractor: extractor,
		logger:    logger,
		cfg:       cfg,
	}
}

// ModelErrorCounts returns the number of extraction calls that failed and
// the subset of those that were timeouts.
func (ap *AddressParser) ModelErrorCounts() (failures, timeouts int64) {
	return ap.modelErrors.Load(), ap.modelTimeouts.Load()
}

// Parse converts raw text into a structured candidate.
func (ap *AddressParser) Parse(ctx context.Context, raw string) models.AddressCandidate {
	cand := models.AddressCandidate{RawText: raw}

	normText := ap.norm.Normalize(raw)
	if normText == "" {
		return cand
	}

	tokens := ap.norm.Tokens(normText)
	tokens = ap.takeTrailingCountry(tokens, &cand)
	tokens = ap.takePostalCode(tokens, &cand)
	tokens = ap.takeTrailingRegion(tokens, &cand)
	ap.extractStreetsAndCity(tokens, &cand)

	if ap.ruleFieldCount(&cand) < ap.cfg.MinRuleFields && ap.extractor != nil {
		ap.augmentWithModel(ctx, normText, &cand)
	}

	return cand
}

// ruleFieldCount counts the fields that decide whether the model fallback
// is needed. Street tokens alone are too weak to skip it.
func (ap *AddressParser) ruleFieldCount(cand *models.AddressCandidate) int {
	n := 0
	if cand.PostalCodeHint != "" {
		n++
	}
	if cand.CityHint != "" {
		n++
	}
	return n
}

func (ap *AddressParser) takeTrailingCountry(tokens []string, cand *models.AddressCandidate) []string {
	if len(tokens) == 0 {
		return tokens
	}
	// Try two-token names first ("united states").
	if len(tokens) >= 2 {
		last2 := strings.Join(tokens[len(tokens)-2:], " ")
		if c, ok := ap.norm.CountryCode(last2); ok {
			cand.CountryHint = c
			return tokens[:len(tokens)-2]
		}
	}
	if c, ok := ap.norm.CountryCode(tokens[len(tokens)-1]); ok {
		cand.CountryHint = c
		return tokens[:len(tokens)-1]
	}
	return tokens
}

// takePostalCode detects an explicit postal/ZIP code. Canadian codes are
// distinctive enough to match anywhere; five-digit US codes are only taken
// from the trailing position so house numbers are never mistaken for ZIPs.
func (ap *AddressParser) takePostalCode(tokens []string, cand *models.AddressCandidate) []string {
	text := strings.Join(tokens, " ")

	if loc := caPostalHintRe.FindStringIndex(text); loc != nil {
		if code, err := refindex.NormalizePostalCode(text[loc[0]:loc[1]], models.CountryCA); err == nil {
			cand.PostalCodeHint = code
			if cand.CountryHint == "" {
				cand.CountryHint = models.CountryCA
			}
			return ap.norm.Tokens(text[:loc[0]] + " " + text[loc[1]:])
		}
	}

	if loc := zipPlus4Re.FindStringIndex(text); loc != nil {
		cand.PostalCodeHint = text[loc[0]:loc[1]]
		if cand.CountryHint == "" {
			cand.CountryHint = models.CountryUS
		}
		return ap.norm.Tokens(text[:loc[0]] + " " + text[loc[1]:])
	}

	if len(tokens) > 0 && trailingZipRe.MatchString(tokens[len(tokens)-1]) {
		cand.PostalCodeHint = tokens[len(tokens)-1]
		if cand.CountryHint == "" {
			cand.CountryHint = models.CountryUS
		}
		return tokens[:len(tokens)-1]
	}

	return tokens
}

func (ap *AddressParser) takeTrailingRegion(tokens []string, cand *models.AddressCandidate) []string {
	if len(tokens) == 0 {
		return tokens
	}
	// Full region names span up to three tokens ("newfoundland and
	// labrador"), so try the longest tail first.
	for take := 3; take >= 1; take-- {
		if len(tokens) < take {
			continue
		}
		tail := strings.Join(tokens[len(tokens)-take:], " ")
		code, country, ok := ap.norm.RegionCode(tail)
		if !ok {
			continue
		}
		cand.RegionHint = code
		if cand.CountryHint == "" {
			cand.CountryHint = country
		}
		return tokens[:len(tokens)-take]
	}
	return tokens
}

// extractStreetsAndCity splits the remaining tokens into street token(s)
// and a city hint. A connector token in the middle marks an
// intersection-style address with two street names and no house number.
func (ap *AddressParser) extractStreetsAndCity(tokens []string, cand *models.AddressCandidate) {
	if len(tokens) == 0 {
		return
	}

	connector := -1
	for i, tok := range tokens {
		if i > 0 && i < len(tokens)-1 && ap.norm.IsConnector(tok) {
			connector = i
			break
		}
	}

	if connector > 0 {
		first := ap.canonicalStreet(tokens[:connector])
		second, city := ap.splitStreetAndCity(tokens[connector+1:])
		if first != "" {
			cand.StreetTokens = append(cand.StreetTokens, first)
		}
		if second != "" {
			cand.StreetTokens = append(cand.StreetTokens, second)
		}
		if city != "" {
			cand.CityHint = city
		}
		return
	}

	street, city := ap.splitStreetAndCity(tokens)
	if street != "" {
		cand.StreetTokens = append(cand.StreetTokens, street)
	}
	if city != "" {
		cand.CityHint = city
	}
}

// splitStreetAndCity finds the last street-type token; everything through
// it (plus a trailing directional) is the street, the remainder is city.
// Without a street-type token, a leading house number still marks the
// segment as a street; otherwise the whole segment is a city hint.
func (ap *AddressParser) splitStreetAndCity(tokens []string) (street, city string) {
	if len(tokens) == 0 {
		return "", ""
	}

	lastType := -1
	for i, tok := range tokens {
		if ap.norm.IsStreetType(tok) {
			lastType = i
		}
	}

	if lastType >= 0 {
		end := lastType + 1
		// Trailing directionals stay with the street: "church st w".
		if end < len(tokens) && ap.norm.IsDirectional(tokens[end]) {
			end++
		}
		return ap.canonicalStreet(tokens[:end]), strings.Join(tokens[end:], " ")
	}

	if houseNumberRe.MatchString(tokens[0]) {
		return ap.canonicalStreet(tokens), ""
	}
	return "", strings.Join(tokens, " ")
}

// canonicalStreet drops a leading house number and canonicalizes the rest.
// Directional tokens are kept as part of the street token.
func (ap *AddressParser) canonicalStreet(tokens []string) string {
	if len(tokens) > 0 && houseNumberRe.MatchString(tokens[0]) {
		tokens = tokens[1:]
	}
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		out = append(out, ap.norm.CanonicalStreetToken(tok))
	}
	return strings.TrimSpace(strings.Join(out, " "))
}

// augmentWithModel asks the extraction model for fields and merges in only
// those the rules left empty. Model failures degrade, never propagate.
func (ap *AddressParser) augmentWithModel(ctx context.Context, normText string, cand *models.AddressCandidate) {
	ctx, cancel := context.WithTimeout(ctx, ap.cfg.ModelTimeout)
	defer cancel()

	fields, err := ap.extractor.ExtractFields(ctx, normText)
	if err != nil {
		ap.modelErrors.Add(1)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, models.ErrModelTimeout) {
			ap.modelTimeouts.Add(1)
			ap.logger.Warn("Model extraction timed out, continuing rule-based only",
				zap.String("text", normText))
		} else {
			ap.logger.Warn("Model extraction failed, continuing rule-based only",
				zap.String("text", normText), zap.Error(err))
		}
		return
	}
	if fields.IsEmpty() {
		return
	}

	ap.mergeModelFields(fields, cand)
}

func (ap *AddressParser) mergeModelFields(fields ExtractedFields, cand *models.AddressCandidate) {
	if len(cand.StreetTokens) == 0 {
		if s := ap.norm.CanonicalStreet(fields.Street); s != "" {
			cand.StreetTokens = append(cand.StreetTokens, s)
		}
		if s := ap.norm.CanonicalStreet(fields.CrossStreet); s != "" {
			cand.StreetTokens = append(cand.StreetTokens, s)
		}
	}
	if cand.CityHint == "" && fields.City != "" {
		cand.CityHint = ap.norm.NormalizeCity(fields.City)
	}
	if cand.RegionHint == "" && fields.Region != "" {
		if code, country, ok := ap.norm.RegionCode(fields.Region); ok {
			cand.RegionHint = code
			if cand.CountryHint == "" {
				cand.CountryHint = country
			}
		}
	}
	if cand.PostalCodeHint == "" && fields.PostalCode != "" {
		for _, country := range []models.Country{models.CountryCA, models.CountryUS} {
			if code, err := refindex.NormalizePostalCode(fields.PostalCode, country); err == nil {
				cand.PostalCodeHint = code
				if cand.CountryHint == "" {
					cand.CountryHint = country
				}
				break
			}
		}
	}
	if cand.CountryHint == "" && fields.Country != "" {
		if c, ok := ap.norm.CountryCode(fields.Country); ok {
			cand.CountryHint = c
		}
	}
}
