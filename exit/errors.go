package exit

import "errors"

var (
	// ErrInvalidConfig indicates a malformed controller configuration.
	ErrInvalidConfig = errors.New("exit: invalid config")

	// ErrWrongState indicates the operation is not allowed in the current state.
	ErrWrongState = errors.New("exit: wrong state")

	// ErrUnauthorized indicates the caller is not the nominee.
	ErrUnauthorized = errors.New("exit: unauthorized")

	// ErrNoSnapshot indicates the offering has no Claim-phase snapshot or the
	// snapshot supply is zero.
	ErrNoSnapshot = errors.New("exit: no snapshot available")

	// ErrInsufficientProceeds indicates the nominee sent less than the expected amount.
	ErrInsufficientProceeds = errors.New("exit: insufficient proceeds")

	// ErrInvalidAmount indicates a nil or non-positive amount.
	ErrInvalidAmount = errors.New("exit: invalid amount")

	// ErrPartialClaim indicates a claim that does not burn the whole snapshot balance.
	ErrPartialClaim = errors.New("exit: partial claim")

	// ErrAlreadyPaid indicates the holder was already paid out.
	ErrAlreadyPaid = errors.New("exit: already paid")

	// ErrNoProceeds indicates the holder is not entitled to any proceeds.
	ErrNoProceeds = errors.New("exit: no proceeds")

	// ErrCooldown indicates a manual payout before the cooldown elapsed.
	ErrCooldown = errors.New("exit: cooldown not elapsed")
)
