package offering

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/equityledger/libeto-go/rates"
	"github.com/equityledger/libeto-go/ulps"
)

// Ticket is one investor's contribution record. Direct and migrated amounts
// are kept per currency so a refund returns each in its original form.
type Ticket struct {
	Investor common.Address

	AmountEth   *big.Int
	AmountEur   *big.Int
	MigratedEth *big.Int
	MigratedEur *big.Int

	EurUlps *big.Int // EUR equivalent at contribution time
	Tokens  *big.Int // equity tokens entitled

	Claimed    bool
	Refunded   bool
	SettledAt  time.Time
	LastChange time.Time
}

func newTicket(investor common.Address) *Ticket {
	return &Ticket{
		Investor:    investor,
		AmountEth:   new(big.Int),
		AmountEur:   new(big.Int),
		MigratedEth: new(big.Int),
		MigratedEur: new(big.Int),
		EurUlps:     new(big.Int),
		Tokens:      new(big.Int),
	}
}

// Amount returns the total contributed in cur, direct and migrated.
func (t *Ticket) Amount(cur rates.Currency) *big.Int {
	if cur == rates.ETH {
		return new(big.Int).Add(t.AmountEth, t.MigratedEth)
	}
	return new(big.Int).Add(t.AmountEur, t.MigratedEur)
}

// Currencies lists the currencies the investor contributed in.
func (t *Ticket) Currencies() []rates.Currency {
	var out []rates.Currency
	if t.Amount(rates.ETH).Sign() > 0 {
		out = append(out, rates.ETH)
	}
	if t.Amount(rates.EUR).Sign() > 0 {
		out = append(out, rates.EUR)
	}
	return out
}

// Migrated reports whether any part of the ticket came from a legacy wallet.
func (t *Ticket) Migrated() bool {
	return t.MigratedEth.Sign() > 0 || t.MigratedEur.Sign() > 0
}

// Settled reports whether the ticket was claimed or refunded.
func (t *Ticket) Settled() bool { return t.Claimed || t.Refunded }

// Empty reports whether the ticket carries no value.
func (t *Ticket) Empty() bool { return t.EurUlps.Sign() == 0 && t.Tokens.Sign() == 0 }

// Clone returns a deep copy.
func (t *Ticket) Clone() *Ticket {
	c := *t
	c.AmountEth = ulps.Copy(t.AmountEth)
	c.AmountEur = ulps.Copy(t.AmountEur)
	c.MigratedEth = ulps.Copy(t.MigratedEth)
	c.MigratedEur = ulps.Copy(t.MigratedEur)
	c.EurUlps = ulps.Copy(t.EurUlps)
	c.Tokens = ulps.Copy(t.Tokens)
	return &c
}

func (t *Ticket) add(cur rates.Currency, amount *big.Int, migrated bool) {
	var dst *big.Int
	switch {
	case cur == rates.ETH && migrated:
		dst = t.MigratedEth
	case cur == rates.ETH:
		dst = t.AmountEth
	case migrated:
		dst = t.MigratedEur
	default:
		dst = t.AmountEur
	}
	dst.Add(dst, amount)
}

// normalize replaces nil amounts left by decoding with zero.
func (t *Ticket) normalize() {
	for _, p := range []**big.Int{&t.AmountEth, &t.AmountEur, &t.MigratedEth, &t.MigratedEur, &t.EurUlps, &t.Tokens} {
		if *p == nil {
			*p = new(big.Int)
		}
	}
}
