package prorata

import "errors"

var (
	// ErrNoShares indicates an empty share list.
	ErrNoShares = errors.New("prorata: no shares")

	// ErrZeroTotalWeight indicates the total weight is zero.
	ErrZeroTotalWeight = errors.New("prorata: zero total weight")

	// ErrNegativeAmount indicates a negative amount or weight.
	ErrNegativeAmount = errors.New("prorata: negative amount")

	// ErrWeightExceedsTotal indicates the shares outweigh the declared total.
	ErrWeightExceedsTotal = errors.New("prorata: share weight exceeds total")

	// ErrConservationViolation indicates payments do not add up to the distributed amount.
	ErrConservationViolation = errors.New("prorata: conservation violated")
)
