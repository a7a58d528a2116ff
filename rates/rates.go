// Package rates defines the Exchange-Rate Provider contract consumed by the
// pricing engine and a fixed in-memory provider for sandboxes and tests.
package rates

import (
	"fmt"
	"math/big"
	"sync"
	"time"
)

// Currency identifies a contribution currency.
type Currency string

const (
	ETH Currency = "ETH"
	EUR Currency = "EUR"
)

// Valid reports whether c is one of the supported currencies.
func (c Currency) Valid() bool {
	return c == ETH || c == EUR
}

// ParseCurrency accepts "ETH" or "EUR" (case-sensitive).
func ParseCurrency(s string) (Currency, error) {
	c := Currency(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedCurrency, s)
	}
	return c, nil
}

// Provider supplies the current exchange rate between two currencies.
//
// The rate is expressed in ULPS of quote per one whole unit of base, i.e. an
// ETH->EUR rate of 1500 EUR is 1500 * 10^18. lastUpdate is the time the rate
// was published; staleness policy belongs to the caller.
type Provider interface {
	Rate(base, quote Currency) (rate *big.Int, lastUpdate time.Time, err error)
}

type pair struct {
	base, quote Currency
}

type quote struct {
	rate *big.Int
	at   time.Time
}

// FixedProvider is an in-memory Provider whose rates are set explicitly.
type FixedProvider struct {
	mu    sync.RWMutex
	rates map[pair]quote
}

// Compile-time interface check.
var _ Provider = (*FixedProvider)(nil)

// NewFixedProvider creates an empty provider.
func NewFixedProvider() *FixedProvider {
	return &FixedProvider{rates: make(map[pair]quote)}
}

// SetRate publishes a rate for base->quote at the given time.
func (p *FixedProvider) SetRate(base, quoteCur Currency, rate *big.Int, at time.Time) error {
	if rate == nil || rate.Sign() <= 0 {
		return ErrInvalidRate
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rates[pair{base, quoteCur}] = quote{rate: new(big.Int).Set(rate), at: at}
	return nil
}

// Rate returns the last published rate for base->quote.
func (p *FixedProvider) Rate(base, quoteCur Currency) (*big.Int, time.Time, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	q, ok := p.rates[pair{base, quoteCur}]
	if !ok {
		return nil, time.Time{}, fmt.Errorf("%w: %s/%s", ErrRateNotFound, base, quoteCur)
	}
	return new(big.Int).Set(q.rate), q.at, nil
}
