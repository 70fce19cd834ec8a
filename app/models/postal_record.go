package models

// Country identifies which national reference dataset a record came from.
type Country string

const (
	CountryCA Country = "CA"
	CountryUS Country = "US"
)

// IsValid reports whether c is one of the two supported countries.
func (c Country) IsValid() bool {
	return c == CountryCA || c == CountryUS
}

// PostalRecord is one canonical reference-dataset entry. Records are built
// once at index construction and never mutated afterwards, so they are safe
// to share across concurrent lookups.
type PostalRecord struct {
	Country    Country  `json:"country"`
	PostalCode string   `json:"postal_code"` // normalized uppercase, "A1A 1A1" or "12345"/"12345-6789"
	City       string   `json:"city"`
	Region     string   `json:"region"` // province/state code
	StreetName string   `json:"street_name,omitempty"`
	StreetType string   `json:"street_type,omitempty"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
}
