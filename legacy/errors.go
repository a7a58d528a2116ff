package legacy

import "errors"

var (
	// ErrAlreadyMigrated indicates the investor's balance was already migrated.
	ErrAlreadyMigrated = errors.New("legacy: already migrated")

	// ErrNothingLocked indicates the investor has no locked balance.
	ErrNothingLocked = errors.New("legacy: nothing locked")

	// ErrNoMigrationTarget indicates migration has not been enabled.
	ErrNoMigrationTarget = errors.New("legacy: no migration target")

	// ErrInvalidAmount indicates a nil or non-positive amount.
	ErrInvalidAmount = errors.New("legacy: invalid amount")
)
