package models

// AddressCandidate is the structured, possibly-partial field set extracted
// from one raw input string. It lives only for the duration of the lookup
// call that produced it.
type AddressCandidate struct {
	RawText        string   `json:"raw_text"`
	StreetTokens   []string `json:"street_tokens,omitempty"` // two entries for an intersection
	CityHint       string   `json:"city_hint,omitempty"`
	RegionHint     string   `json:"region_hint,omitempty"`
	PostalCodeHint string   `json:"postal_code_hint,omitempty"`
	CountryHint    Country  `json:"country_hint,omitempty"`
}

// IsEmpty reports whether no queryable field was extracted at all.
func (c *AddressCandidate) IsEmpty() bool {
	return len(c.StreetTokens) == 0 &&
		c.CityHint == "" &&
		c.RegionHint == "" &&
		c.PostalCodeHint == "" &&
		c.CountryHint == ""
}

// FieldScores breaks a composite match score down per field, for
// explainability and tie-breaking.
type FieldScores struct {
	Postal         float64 `json:"postal"`
	City           float64 `json:"city"`
	Street         float64 `json:"street"`
	Region         float64 `json:"region"`
	CountryPenalty float64 `json:"country_penalty"`
}

// ScoredMatch pairs a reference record with its similarity score against a
// given candidate.
type ScoredMatch struct {
	Record    *PostalRecord `json:"record"`
	Score     float64       `json:"score"` // in [0,1]
	Breakdown FieldScores   `json:"breakdown"`
}

// LookupStatus is the outcome class of a lookup call.
type LookupStatus string

const (
	StatusResolved   LookupStatus = "resolved"
	StatusUnresolved LookupStatus = "unresolved"
)

// UnresolvedReason explains a negative lookup outcome. These are explicit
// results, not errors.
type UnresolvedReason string

const (
	ReasonNoMatchFound           UnresolvedReason = "no_match_found"
	ReasonAmbiguousLowConfidence UnresolvedReason = "ambiguous_low_confidence"
	ReasonUnparseableInput       UnresolvedReason = "unparseable_input"
)

// LookupResult is the only value crossing the AddressLookup boundary.
// A resolved result always has Score >= the configured acceptance threshold.
type LookupResult struct {
	Raw            string           `json:"raw"`
	Status         LookupStatus     `json:"status"`
	Record         *PostalRecord    `json:"record,omitempty"`
	Score          float64          `json:"score,omitempty"`
	MatchedFields  []string         `json:"matched_fields,omitempty"`
	Reason         UnresolvedReason `json:"reason,omitempty"`
	BestCandidates []ScoredMatch    `json:"best_candidates,omitempty"` // bounded list of near-misses
}

// Resolved reports whether the lookup found a confident match.
func (r *LookupResult) Resolved() bool {
	return r.Status == StatusResolved
}
