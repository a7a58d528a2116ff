// Package pricing computes the token entitlement of a contribution.
package pricing

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/equityledger/libeto-go/rates"
	"github.com/equityledger/libeto-go/terms"
	"github.com/equityledger/libeto-go/ulps"
	"github.com/equityledger/libeto-go/whitelist"
)

// Request describes a contribution to be priced.
type Request struct {
	Investor common.Address
	Amount   *big.Int // native units of Currency
	Currency rates.Currency

	// WhitelistPhase is true while the offering is in its Whitelist phase;
	// slot discounts and the whitelist-only rule apply only then.
	WhitelistPhase bool
	// Migrated marks an investor who moved a legacy balance in.
	Migrated bool

	PriorEur    *big.Int // investor's cumulative EUR before this contribution
	TotalEur    *big.Int // offering EUR raised so far
	TotalTokens *big.Int // offering tokens sold so far
	Now         time.Time
}

// Quote is a priced contribution. Nothing is recorded until Commit.
type Quote struct {
	Investor common.Address
	Amount   *big.Int
	Currency rates.Currency

	EurUlps *big.Int // EUR equivalent of Amount
	Tokens  *big.Int

	SlotEur    *big.Int // part of EurUlps consumed from the whitelist slot
	SlotTokens *big.Int
	SlotFrac   *big.Int
	RestFrac   *big.Int
}

// Engine prices contributions against one offering's terms and whitelist.
type Engine struct {
	terms     *terms.Terms
	rates     rates.Provider
	whitelist *whitelist.Registry
}

// NewEngine creates an engine. The whitelist is read by Quote and consumed
// by Commit.
func NewEngine(t *terms.Terms, rp rates.Provider, wl *whitelist.Registry) *Engine {
	return &Engine{terms: t, rates: rp, whitelist: wl}
}

// EurEquivalent converts amount to EUR-ULPS, rejecting a stale rate.
func (e *Engine) EurEquivalent(amount *big.Int, cur rates.Currency, now time.Time) (*big.Int, error) {
	switch cur {
	case rates.EUR:
		return ulps.Copy(amount), nil
	case rates.ETH:
		rate, updated, err := e.rates.Rate(rates.ETH, rates.EUR)
		if err != nil {
			return nil, err
		}
		if age := now.Sub(updated); age > e.terms.MaxRateAge {
			return nil, fmt.Errorf("%w: rate is %s old, max %s", ErrRateExpired, age, e.terms.MaxRateAge)
		}
		return ulps.Mul(amount, rate), nil
	default:
		return nil, fmt.Errorf("%w: %q", rates.ErrUnsupportedCurrency, cur)
	}
}

// TokensFor returns floor(eur / (TokenPrice * frac)) in token ULPS.
func (e *Engine) TokensFor(eur, frac *big.Int) *big.Int {
	num := new(big.Int).Mul(eur, ulps.One)
	num.Mul(num, ulps.One)
	den := new(big.Int).Mul(e.terms.TokenPrice, frac)
	return num.Quo(num, den)
}

// Quote prices a contribution and checks every bound. It has no side effects.
func (e *Engine) Quote(req Request) (*Quote, error) {
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	t := e.terms

	eur, err := e.EurEquivalent(req.Amount, req.Currency, req.Now)
	if err != nil {
		return nil, err
	}

	entry, whitelisted := e.whitelist.Get(req.Investor)
	if req.WhitelistPhase && !whitelisted && !req.Migrated {
		return nil, fmt.Errorf("%w: %s", ErrNotWhitelisted, req.Investor.Hex())
	}

	cumulative := new(big.Int).Add(ulps.Copy(req.PriorEur), eur)

	floor := t.MinTicket
	if req.WhitelistPhase && whitelisted {
		floor = ulps.Min(t.MinTicket, entry.FixedSlot)
	}
	if cumulative.Cmp(floor) < 0 {
		return nil, fmt.Errorf("%w: %s EUR, min %s", ErrBelowMinTicket, ulps.Format(cumulative), ulps.Format(floor))
	}

	ceiling := t.MaxTicket
	if whitelisted {
		ceiling = ulps.Max(t.MaxTicket, entry.FixedSlot)
	}
	if cumulative.Cmp(ceiling) > 0 {
		return nil, fmt.Errorf("%w: %s EUR, max %s", ErrAboveMaxTicket, ulps.Format(cumulative), ulps.Format(ceiling))
	}

	restFrac := ulps.Copy(t.PublicPriceFrac)
	if req.WhitelistPhase && req.Migrated {
		restFrac = ulps.Min(t.MigratedPriceFrac, t.PublicPriceFrac)
	}
	slotFrac := ulps.Copy(restFrac)
	slotEur := new(big.Int)
	if req.WhitelistPhase && whitelisted {
		slotFrac = ulps.Min(entry.PriceFrac, restFrac)
		slotEur = ulps.Min(eur, entry.Remaining())
	}
	restEur := new(big.Int).Sub(eur, slotEur)

	slotTokens := new(big.Int)
	if slotEur.Sign() > 0 {
		slotTokens = e.TokensFor(slotEur, slotFrac)
	}
	tokens := new(big.Int).Add(slotTokens, e.TokensFor(restEur, restFrac))

	totalEur := new(big.Int).Add(ulps.Copy(req.TotalEur), eur)
	if totalEur.Cmp(t.MaxInvestmentEurUlps) > 0 {
		return nil, fmt.Errorf("%w: offering would raise %s EUR, max %s",
			ErrAboveMaxInvestment, ulps.Format(totalEur), ulps.Format(t.MaxInvestmentEurUlps))
	}
	totalTokens := new(big.Int).Add(ulps.Copy(req.TotalTokens), tokens)
	if totalTokens.Cmp(t.MaxNumberOfTokens) > 0 {
		return nil, fmt.Errorf("%w: offering would sell %s tokens, max %s",
			ErrAboveMaxInvestment, ulps.Format(totalTokens), ulps.Format(t.MaxNumberOfTokens))
	}

	return &Quote{
		Investor:   req.Investor,
		Amount:     ulps.Copy(req.Amount),
		Currency:   req.Currency,
		EurUlps:    eur,
		Tokens:     tokens,
		SlotEur:    slotEur,
		SlotTokens: slotTokens,
		SlotFrac:   slotFrac,
		RestFrac:   restFrac,
	}, nil
}

// Commit applies the side effect of an accepted quote: the slot portion is
// consumed from the investor's whitelist entry.
func (e *Engine) Commit(q *Quote) error {
	if q.SlotEur.Sign() == 0 {
		return nil
	}
	return e.whitelist.Consume(q.Investor, q.SlotEur)
}
