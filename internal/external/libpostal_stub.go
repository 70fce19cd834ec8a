//go:build !cgo

package external

import (
	"errors"

	"github.com/address-lookup/internal/parser"
)

// NewLibpostalExtractor reports that the libpostal backend needs a cgo
// build. Selecting it in a pure-Go build is a configuration error, caught
// at startup rather than on the first lookup.
func NewLibpostalExtractor() (parser.TextFieldExtractor, error) {
	return nil, errors.New("libpostal backend requires a cgo build with libpostal installed")
}
