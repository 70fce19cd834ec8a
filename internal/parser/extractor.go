package parser

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// ExtractedFields is the partial field set an extraction backend returns.
// Any subset may be empty; an all-empty value means "unable to extract".
type ExtractedFields struct {
	Street      string `json:"street"`
	CrossStreet string `json:"cross_street,omitempty"` // second street of an intersection
	City        string `json:"city"`
	Region      string `json:"region"`
	PostalCode  string `json:"postal_code"`
	Country     string `json:"country"`
}

// IsEmpty reports whether the extraction produced nothing usable.
func (f ExtractedFields) IsEmpty() bool {
	return f == ExtractedFields{}
}

// TextFieldExtractor turns free-form address text into structured fields.
// The parser depends on this interface only, so the language model behind
// it can be swapped or stubbed in tests.
type TextFieldExtractor interface {
	ExtractFields(ctx context.Context, text string) (ExtractedFields, error)
}

// DedupingExtractor guarantees at most one in-flight backend call per
// distinct input text; concurrent identical requests share the result.
type DedupingExtractor struct {
	inner TextFieldExtractor
	group singleflight.Group
}

// NewDedupingExtractor wraps an extractor with per-key call coalescing.
func NewDedupingExtractor(inner TextFieldExtractor) *DedupingExtractor {
	return &DedupingExtractor{inner: inner}
}

// ExtractFields implements TextFieldExtractor.
func (d *DedupingExtractor) ExtractFields(ctx context.Context, text string) (ExtractedFields, error) {
	v, err, _ := d.group.Do(text, func() (interface{}, error) {
		return d.inner.ExtractFields(ctx, text)
	})
	if err != nil {
		return ExtractedFields{}, err
	}
	return v.(ExtractedFields), nil
}
