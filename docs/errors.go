package docs

import "errors"

var (
	// ErrNotFound indicates no document is archived under the given URL.
	ErrNotFound = errors.New("docs: document not found")

	// ErrInvalidURL indicates a document URL that is not "sha256:<64 hex>".
	ErrInvalidURL = errors.New("docs: invalid document url")

	// ErrIOFailure indicates a file read/write error.
	ErrIOFailure = errors.New("docs: I/O failure")

	// ErrEmptyContent indicates an attempt to archive an empty document.
	ErrEmptyContent = errors.New("docs: document is empty")

	// ErrTooLarge indicates a document above MaxDocumentSize.
	ErrTooLarge = errors.New("docs: document too large")

	// ErrInvalidBaseDir indicates the base directory path is invalid.
	ErrInvalidBaseDir = errors.New("docs: invalid base directory")

	// ErrCorrupt indicates archived content no longer matches its hash.
	ErrCorrupt = errors.New("docs: archived document is corrupt")
)
