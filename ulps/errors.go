package ulps

import "errors"

var (
	// ErrInvalidAmount indicates a decimal string could not be parsed.
	ErrInvalidAmount = errors.New("ulps: invalid amount")

	// ErrNegativeAmount indicates a parsed amount is below zero.
	ErrNegativeAmount = errors.New("ulps: negative amount")

	// ErrTooPrecise indicates a decimal string carries more than 18 fractional digits.
	ErrTooPrecise = errors.New("ulps: more than 18 decimal places")

	// ErrDivisionByZero indicates a zero divisor or zero total in a proportion.
	ErrDivisionByZero = errors.New("ulps: division by zero")
)
