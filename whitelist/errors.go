package whitelist

import "errors"

var (
	// ErrInvalidEntry indicates a malformed discount fraction or slot.
	ErrInvalidEntry = errors.New("whitelist: invalid whitelist entry")

	// ErrNotWhitelisted indicates the investor has no entry.
	ErrNotWhitelisted = errors.New("whitelist: investor not whitelisted")

	// ErrSlotExceeded indicates a consumption larger than the remaining slot.
	ErrSlotExceeded = errors.New("whitelist: fixed slot exceeded")

	// ErrInvalidChunkSize indicates a non-positive chunk size.
	ErrInvalidChunkSize = errors.New("whitelist: invalid chunk size")
)
