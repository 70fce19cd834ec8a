//go:build cgo

package external

import (
	"context"

	gpparser "github.com/openvenues/gopostal/parser"

	"github.com/address-lookup/internal/parser"
)

// LibpostalExtractor is an offline alternative to the model-backed
// extractor, selected with model.backend "libpostal" in builds with cgo and
// libpostal installed. It implements parser.TextFieldExtractor.
type LibpostalExtractor struct{}

// NewLibpostalExtractor returns the libpostal-backed extractor.
func NewLibpostalExtractor() (parser.TextFieldExtractor, error) {
	return &LibpostalExtractor{}, nil
}

// ExtractFields implements parser.TextFieldExtractor.
func (le *LibpostalExtractor) ExtractFields(_ context.Context, text string) (parser.ExtractedFields, error) {
	return mapLibpostalComponents(gpparser.ParseAddress(text)), nil
}

// mapLibpostalComponents folds libpostal's labeled components into the
// extractor contract. A second "road" component is the cross street of an
// intersection.
func mapLibpostalComponents(components []gpparser.ParsedComponent) parser.ExtractedFields {
	var fields parser.ExtractedFields
	for _, c := range components {
		switch c.Label {
		case "road":
			if fields.Street == "" {
				fields.Street = c.Value
			} else if fields.CrossStreet == "" {
				fields.CrossStreet = c.Value
			}
		case "city", "city_district", "suburb":
			if fields.City == "" {
				fields.City = c.Value
			}
		case "state":
			fields.Region = c.Value
		case "postcode":
			fields.PostalCode = c.Value
		case "country":
			fields.Country = c.Value
		}
	}
	return fields
}
