package rates

import "errors"

var (
	// ErrRateNotFound indicates the provider has no rate for the requested pair.
	ErrRateNotFound = errors.New("rates: rate not found")

	// ErrInvalidRate indicates a zero or negative rate was supplied.
	ErrInvalidRate = errors.New("rates: invalid rate")

	// ErrUnsupportedCurrency indicates a currency outside ETH/EUR.
	ErrUnsupportedCurrency = errors.New("rates: unsupported currency")

	// ErrConnectionFailed indicates the rate oracle could not be reached.
	ErrConnectionFailed = errors.New("rates: connection failed")

	// ErrInvalidResponse indicates the rate oracle returned a malformed answer.
	ErrInvalidResponse = errors.New("rates: invalid response")
)
