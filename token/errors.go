package token

import "errors"

var (
	// ErrInsufficientBalance indicates a transfer or burn exceeds the holder's balance.
	ErrInsufficientBalance = errors.New("token: insufficient balance")

	// ErrInvalidAmount indicates a nil or negative amount.
	ErrInvalidAmount = errors.New("token: invalid amount")

	// ErrZeroAddress indicates the zero address was used as a counterparty.
	ErrZeroAddress = errors.New("token: zero address")
)
