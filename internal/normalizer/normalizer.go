package normalizer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/address-lookup/app/models"
)

// regionEntry resolves a region token to its code and owning country.
type regionEntry struct {
	Code    string
	Country models.Country
}

// TextNormalizer folds raw address text into the canonical lowercase ASCII
// form that the index, parser and matcher all agree on. It is immutable
// after construction and safe for concurrent use.
type TextNormalizer struct {
	streetTypes  map[string]string // long form -> abbreviation
	streetAbbrs  map[string]bool   // all recognized street-type tokens
	directionals map[string]string
	dirAbbrs     map[string]bool
	connectors   map[string]bool
	regions      map[string]regionEntry // codes and full names, lowercase
	countries    map[string]models.Country

	punct      *regexp.Regexp
	whitespace *regexp.Regexp
}

// NewTextNormalizer builds a normalizer from the embedded rule tables.
func NewTextNormalizer() (*TextNormalizer, error) {
	rules, err := LoadRulesConfig()
	if err != nil {
		return nil, fmt.Errorf("loading normalization rules: %w", err)
	}

	tn := &TextNormalizer{
		streetTypes:  make(map[string]string),
		streetAbbrs:  make(map[string]bool),
		directionals: make(map[string]string),
		dirAbbrs:     make(map[string]bool),
		connectors:   make(map[string]bool),
		regions:      make(map[string]regionEntry),
		countries:    make(map[string]models.Country),

		// Keep '&' and '/' (intersection connectors), '-' (ZIP+4) and '#'
		// (unit markers); everything else non-alphanumeric becomes a space.
		punct:      regexp.MustCompile(`[^a-z0-9&/#\- ]+`),
		whitespace: regexp.MustCompile(`\s+`),
	}

	for long, abbr := range rules.StreetTypes {
		tn.streetTypes[long] = abbr
		tn.streetAbbrs[long] = true
		tn.streetAbbrs[abbr] = true
	}
	for long, abbr := range rules.Directionals {
		tn.directionals[long] = abbr
		tn.dirAbbrs[long] = true
		tn.dirAbbrs[abbr] = true
	}
	for _, c := range rules.Connectors {
		tn.connectors[strings.ToLower(c)] = true
	}
	for code, name := range rules.Provinces {
		tn.addRegion(code, name, models.CountryCA)
	}
	for code, name := range rules.States {
		tn.addRegion(code, name, models.CountryUS)
	}
	for token, country := range rules.CountryTokens {
		tn.countries[strings.ToLower(token)] = models.Country(country)
	}

	return tn, nil
}

func (tn *TextNormalizer) addRegion(code, name string, country models.Country) {
	entry := regionEntry{Code: strings.ToUpper(code), Country: country}
	tn.regions[strings.ToLower(code)] = entry
	tn.regions[strings.ToLower(name)] = entry
}

// Normalize lowercases, folds diacritics to ASCII, strips punctuation except
// separators and collapses whitespace. Connector symbols are padded so they
// survive as standalone tokens.
func (tn *TextNormalizer) Normalize(raw string) string {
	s := FoldASCII(raw)
	s = tn.punct.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "&", " & ")
	s = strings.ReplaceAll(s, "/", " / ")
	s = tn.whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Tokens splits normalized text into tokens.
func (tn *TextNormalizer) Tokens(normalized string) []string {
	return strings.Fields(normalized)
}

// CanonicalStreetToken maps long street-type and directional forms to their
// abbreviations; unknown tokens pass through unchanged.
func (tn *TextNormalizer) CanonicalStreetToken(token string) string {
	if abbr, ok := tn.streetTypes[token]; ok {
		return abbr
	}
	if abbr, ok := tn.directionals[token]; ok {
		return abbr
	}
	return token
}

// CanonicalStreet normalizes a whole street name into canonical token form,
// e.g. "Bridge Street" -> "bridge st".
func (tn *TextNormalizer) CanonicalStreet(name string) string {
	tokens := tn.Tokens(tn.Normalize(name))
	for i, tok := range tokens {
		tokens[i] = tn.CanonicalStreetToken(tok)
	}
	return strings.Join(tokens, " ")
}

// NormalizeCity folds a city name for case- and diacritic-insensitive
// comparison.
func (tn *TextNormalizer) NormalizeCity(city string) string {
	return tn.whitespace.ReplaceAllString(strings.TrimSpace(FoldASCII(city)), " ")
}

// RegionCode resolves a token (code or full name) to a region code and its
// country. Returns ok=false for tokens that are not a known region.
func (tn *TextNormalizer) RegionCode(token string) (string, models.Country, bool) {
	entry, ok := tn.regions[strings.ToLower(token)]
	if !ok {
		return "", "", false
	}
	return entry.Code, entry.Country, true
}

// CountryCode resolves a country token to CA or US.
func (tn *TextNormalizer) CountryCode(token string) (models.Country, bool) {
	c, ok := tn.countries[strings.ToLower(token)]
	return c, ok
}

// IsConnector reports whether a token joins two street names of an
// intersection-style address.
func (tn *TextNormalizer) IsConnector(token string) bool {
	return tn.connectors[token]
}

// IsStreetType reports whether the token is a street-type word in either
// long or abbreviated form.
func (tn *TextNormalizer) IsStreetType(token string) bool {
	return tn.streetAbbrs[token]
}

// IsDirectional reports whether the token is a directional prefix/suffix.
func (tn *TextNormalizer) IsDirectional(token string) bool {
	return tn.dirAbbrs[token]
}
