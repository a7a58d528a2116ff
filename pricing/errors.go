package pricing

import "errors"

var (
	// ErrRateExpired indicates the ETH/EUR rate is older than the allowed age.
	ErrRateExpired = errors.New("pricing: exchange rate expired")

	// ErrBelowMinTicket indicates the investor's cumulative ticket is below the minimum.
	ErrBelowMinTicket = errors.New("pricing: below minimum ticket")

	// ErrAboveMaxTicket indicates the investor's cumulative ticket is above the maximum.
	ErrAboveMaxTicket = errors.New("pricing: above maximum ticket")

	// ErrAboveMaxInvestment indicates the offering-wide EUR or token cap would be exceeded.
	ErrAboveMaxInvestment = errors.New("pricing: above maximum investment")

	// ErrNotWhitelisted indicates a non-whitelisted investor during the Whitelist phase.
	ErrNotWhitelisted = errors.New("pricing: investor not whitelisted")

	// ErrInvalidAmount indicates a nil or non-positive contribution.
	ErrInvalidAmount = errors.New("pricing: invalid amount")
)
