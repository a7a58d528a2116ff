package terms

import "errors"

var (
	// ErrInvalidTerms indicates a Terms field is missing or out of range.
	ErrInvalidTerms = errors.New("terms: invalid terms")

	// ErrTermsNotFound indicates the terms file does not exist.
	ErrTermsNotFound = errors.New("terms: file not found")
)
