package models

import (
	"errors"
	"fmt"
)

// ErrInputTooLarge is returned at the lookup boundary when the raw input
// exceeds the configured length bound. The input is rejected before any
// parsing, never silently truncated.
var ErrInputTooLarge = errors.New("input exceeds maximum allowed length")

// ErrModelUnavailable marks a failed call to the extraction model. It is
// non-fatal: the parser degrades to rule-based-only extraction.
var ErrModelUnavailable = errors.New("extraction model unavailable")

// ErrModelTimeout marks an extraction call that hit its deadline. Same
// degrade policy as ErrModelUnavailable.
var ErrModelTimeout = errors.New("extraction model timed out")

// DatasetFormatError is fatal at construction time: the reference index
// cannot be built from a malformed dataset.
type DatasetFormatError struct {
	Dataset string // file path or dataset label
	Line    int    // 1-based data line, 0 when not row-specific
	Reason  string
}

func (e *DatasetFormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("dataset %s: line %d: %s", e.Dataset, e.Line, e.Reason)
	}
	return fmt.Sprintf("dataset %s: %s", e.Dataset, e.Reason)
}

// IsDatasetFormatError reports whether err wraps a DatasetFormatError.
func IsDatasetFormatError(err error) bool {
	var dfe *DatasetFormatError
	return errors.As(err, &dfe)
}
