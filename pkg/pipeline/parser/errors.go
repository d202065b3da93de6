package parser

import "errors"

var (
	// The trace could not be read
	ErrMissingInput = errors.New("cannot read trace")
	// A cycle marker line does not carry a valid cycle number
	ErrMalformedCycleHeader = errors.New("malformed cycle header")
)
