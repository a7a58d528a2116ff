package offering

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/equityledger/libeto-go/rates"
	"github.com/equityledger/libeto-go/ulps"
)

// Result is the per-investor outcome of a batch settlement.
type Result struct {
	Investor common.Address
	Tokens   *big.Int // claimed equity tokens
	Eth, Eur *big.Int // refunded amounts, direct and migrated
	Err      error
}

// settleable returns the investor's staged ticket if it can still be settled.
func (tx *txn) settleable(investor common.Address) (*Ticket, error) {
	t := tx.ticket(investor)
	if t == nil || t.Empty() {
		return nil, fmt.Errorf("%w: %s", ErrNoTicket, investor.Hex())
	}
	if t.Settled() {
		return nil, fmt.Errorf("%w: %s", ErrAlreadySettled, investor.Hex())
	}
	return t, nil
}

// Claim mints the investor's entitled equity tokens. Claim phase only.
func (c *Commitment) Claim(investor common.Address) (*big.Int, error) {
	var tokens *big.Int
	err := c.run("claim", logrus.Fields{"investor": investor.Hex()}, func(tx *txn) error {
		if tx.state.Phase != Claim {
			return wrongPhase("claim", tx.state.Phase)
		}
		t, err := tx.settleable(investor)
		if err != nil {
			return err
		}
		if t.Tokens.Sign() == 0 {
			return fmt.Errorf("%w: %s is entitled to no tokens", ErrNoTicket, investor.Hex())
		}
		gate := c.universe.Identity()
		if gate.IsFrozen(investor) {
			return fmt.Errorf("%w: %s", ErrAccountFrozen, investor.Hex())
		}
		if !gate.IsVerified(investor) {
			return fmt.Errorf("%w: %s", ErrNotVerified, investor.Hex())
		}
		if err := tx.mint(c.universe.EquityToken(), investor, t.Tokens); err != nil {
			return fmt.Errorf("offering: mint equity tokens: %w", err)
		}
		t.Claimed = true
		t.SettledAt = tx.now
		tokens = ulps.Copy(t.Tokens)
		tx.emit(Event{Kind: EventClaim, Investor: investor, Tokens: ulps.Copy(t.Tokens)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// ClaimMany claims for every investor independently; a failing entry does
// not affect the others.
func (c *Commitment) ClaimMany(investors []common.Address) []Result {
	results := make([]Result, len(investors))
	for i, inv := range investors {
		tokens, err := c.Claim(inv)
		results[i] = Result{Investor: inv, Tokens: tokens, Err: err}
	}
	return results
}

// Refund returns the investor's contribution in its original currencies.
// Migrated portions go back to the legacy wallet that supplied them. Refund
// phase only.
func (c *Commitment) Refund(investor common.Address) (eth, eur *big.Int, err error) {
	err = c.run("refund", logrus.Fields{"investor": investor.Hex()}, func(tx *txn) error {
		if tx.state.Phase != Refund {
			return wrongPhase("refund", tx.state.Phase)
		}
		t, err := tx.settleable(investor)
		if err != nil {
			return err
		}
		u := c.universe

		for _, cur := range []rates.Currency{rates.ETH, rates.EUR} {
			tok := currencyToken(u, cur)
			direct, migrated := t.AmountEth, t.MigratedEth
			if cur == rates.EUR {
				direct, migrated = t.AmountEur, t.MigratedEur
			}

			if err := tx.transfer(tok, c.addr, investor, direct); err != nil {
				return fmt.Errorf("offering: refund %s: %w", cur, err)
			}
			if migrated.Sign() > 0 {
				if err := tx.relock(cur, investor, migrated); err != nil {
					return err
				}
			}
			if total := t.Amount(cur); total.Sign() > 0 {
				tx.emit(Event{Kind: EventRefund, Investor: investor, Currency: cur, Amount: total})
			}
		}

		t.Refunded = true
		t.SettledAt = tx.now
		eth, eur = t.Amount(rates.ETH), t.Amount(rates.EUR)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return eth, eur, nil
}

// relock sends a migrated amount back to its legacy wallet.
func (tx *txn) relock(cur rates.Currency, investor common.Address, amount *big.Int) error {
	u := tx.c.universe
	sink := u.LegacyWallet(cur)
	if sink == nil {
		return fmt.Errorf("%w: none registered for %s", ErrNoLegacyWallet, cur)
	}
	if err := tx.transfer(currencyToken(u, cur), tx.c.addr, sink.Address(), amount); err != nil {
		return fmt.Errorf("offering: return migrated %s: %w", cur, err)
	}
	if err := sink.Relock(investor, amount); err != nil {
		return fmt.Errorf("offering: relock migrated %s: %w", cur, err)
	}
	amt := new(big.Int).Set(amount)
	tx.onUndo(func() error { return sink.RevertRelock(investor, amt) })
	return nil
}

// RefundMany refunds every investor independently.
func (c *Commitment) RefundMany(investors []common.Address) []Result {
	results := make([]Result, len(investors))
	for i, inv := range investors {
		eth, eur, err := c.Refund(inv)
		results[i] = Result{Investor: inv, Eth: eth, Eur: eur, Err: err}
	}
	return results
}

// Payout forces the Claim -> Payout transition, which disburses the raised
// funds to the nominee minus the platform fee. Only the nominee, the
// company or an admin may end the claim window early; anyone else gets
// ErrUnauthorized. It fails with ErrAlreadySettled once Payout has been
// entered, by this call or by the claim deadline.
func (c *Commitment) Payout(caller common.Address) error {
	return c.run("payout", logrus.Fields{"caller": caller.Hex()}, func(tx *txn) error {
		switch tx.state.Phase {
		case Claim:
			u := c.universe
			if caller != u.Nominee() && caller != u.Company() && !u.Access().HasRole(caller, RoleAdmin) {
				return fmt.Errorf("%w: %s may not end the claim window", ErrUnauthorized, caller.Hex())
			}
			return tx.enter(Transition{
				From:   Claim,
				To:     Payout,
				At:     tx.now,
				Reason: "payout requested by " + caller.Hex(),
			})
		case Payout:
			return fmt.Errorf("%w: payout already made", ErrAlreadySettled)
		default:
			return wrongPhase("payout", tx.state.Phase)
		}
	})
}

// disburse is the entry action of Payout.
func (tx *txn) disburse(at time.Time) error {
	st := tx.state
	if st.Disbursal != nil {
		return fmt.Errorf("%w: payout already made", ErrAlreadySettled)
	}
	u := tx.c.universe
	d := &Disbursal{
		At:       at,
		Nominee:  u.Nominee(),
		Platform: u.PlatformWallet(),
	}

	for _, cur := range []rates.Currency{rates.ETH, rates.EUR} {
		raised := st.Raised(cur)
		fee := ulps.Mul(raised, tx.c.terms.PlatformFeeFrac)
		net := new(big.Int).Sub(raised, fee)
		tok := currencyToken(u, cur)

		if err := tx.transfer(tok, tx.c.addr, d.Nominee, net); err != nil {
			return fmt.Errorf("offering: pay out %s to nominee: %w", cur, err)
		}
		if err := tx.transfer(tok, tx.c.addr, d.Platform, fee); err != nil {
			return fmt.Errorf("offering: pay %s platform fee: %w", cur, err)
		}
		if cur == rates.ETH {
			d.NomineeEth, d.PlatformEth = net, fee
		} else {
			d.NomineeEur, d.PlatformEur = net, fee
		}
		if net.Sign() > 0 {
			tx.emit(Event{Kind: EventPayout, At: at, Investor: d.Nominee, Currency: cur, Amount: ulps.Copy(net)})
		}
		if fee.Sign() > 0 {
			tx.emit(Event{Kind: EventPlatformFee, At: at, Investor: d.Platform, Currency: cur, Amount: ulps.Copy(fee)})
		}
	}
	st.Disbursal = d
	return nil
}
