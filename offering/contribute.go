package offering

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/equityledger/libeto-go/pricing"
	"github.com/equityledger/libeto-go/rates"
	"github.com/equityledger/libeto-go/ulps"
	"github.com/equityledger/libeto-go/whitelist"
)

// SetStartDate schedules the Whitelist phase. Only the company or an admin
// may call it, only in Setup, and start must be at least MinStartLeadTime
// away. A scheduled date may be moved while it is itself still at least the
// lead time away.
func (c *Commitment) SetStartDate(caller common.Address, start time.Time) error {
	return c.run("set start date", logrus.Fields{"caller": caller.Hex()}, func(tx *txn) error {
		if tx.state.Phase != Setup {
			return wrongPhase("set start date", tx.state.Phase)
		}
		u := c.universe
		if caller != u.Company() && !u.Access().HasRole(caller, RoleAdmin) {
			return fmt.Errorf("%w: %s may not schedule the offering", ErrUnauthorized, caller.Hex())
		}
		earliest := tx.now.Add(c.terms.MinStartLeadTime)
		if start.Before(earliest) {
			return fmt.Errorf("%w: %s is before %s", ErrInvalidStartDate,
				start.UTC().Format(time.RFC3339), earliest.UTC().Format(time.RFC3339))
		}
		if prev := tx.state.ScheduledStart; !prev.IsZero() && prev.Before(earliest) {
			return fmt.Errorf("%w: scheduled start %s is too close to reschedule",
				ErrInvalidStartDate, prev.UTC().Format(time.RFC3339))
		}
		tx.state.ScheduledStart = start
		tx.emit(Event{Kind: EventStartScheduled, Investor: caller, Detail: start.UTC().Format(time.RFC3339)})
		return nil
	})
}

// AddWhitelisted adds or overwrites whitelist entries in one atomic batch.
// Overwrites are reported as warnings. Allowed in Setup and Whitelist.
func (c *Commitment) AddWhitelisted(caller common.Address, entries []whitelist.Entry) ([]whitelist.Warning, error) {
	var warnings []whitelist.Warning
	err := c.run("add whitelisted", logrus.Fields{"caller": caller.Hex(), "entries": len(entries)}, func(tx *txn) error {
		if p := tx.state.Phase; p != Setup && p != Whitelist {
			return wrongPhase("add whitelisted", p)
		}
		if !c.universe.Access().HasRole(caller, RoleWhitelistAdmin) {
			return fmt.Errorf("%w: %s may not edit the whitelist", ErrUnauthorized, caller.Hex())
		}
		w, err := tx.whitelist().AddWhitelisted(entries)
		if err != nil {
			return err
		}
		tx.wlDirty = true
		for _, e := range entries {
			tx.emit(Event{
				Kind:     EventWhitelisted,
				Investor: e.Investor,
				Amount:   ulps.Copy(e.FixedSlot),
				Detail:   "price_frac=" + ulps.Format(e.PriceFrac),
			})
		}
		warnings = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		c.log.WithField("investor", w.Investor.Hex()).Warn(w.String())
	}
	return warnings, nil
}

// AddWhitelistedChunked submits entries in chunks of size, each chunk an
// independent AddWhitelisted call. Chunks applied before a failing chunk
// stay applied.
func (c *Commitment) AddWhitelistedChunked(caller common.Address, entries []whitelist.Entry, size int) ([]whitelist.ChunkResult, error) {
	if size <= 0 {
		return nil, whitelist.ErrInvalidChunkSize
	}
	var results []whitelist.ChunkResult
	for start := 0; start < len(entries); start += size {
		end := min(start+size, len(entries))
		w, err := c.AddWhitelisted(caller, entries[start:end])
		results = append(results, whitelist.ChunkResult{Start: start, End: end, Warnings: w, Err: err})
	}
	return results, nil
}

// Contribute records a contribution of amount in cur by investor. The funds
// are pulled from the investor's account on the currency token.
func (c *Commitment) Contribute(investor common.Address, amount *big.Int, cur rates.Currency) (*pricing.Quote, error) {
	var q *pricing.Quote
	fields := logrus.Fields{"investor": investor.Hex(), "currency": cur, "amount": ulps.Format(amount)}
	err := c.run("contribute", fields, func(tx *txn) error {
		var err error
		q, err = tx.contribute(investor, investor, amount, cur, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

// ContributeMigrated records a contribution moved in from a legacy wallet.
// wallet must be the registered legacy wallet for cur; the funds are pulled
// from the wallet's account.
func (c *Commitment) ContributeMigrated(wallet, investor common.Address, amount *big.Int, cur rates.Currency) (*pricing.Quote, error) {
	var q *pricing.Quote
	fields := logrus.Fields{"investor": investor.Hex(), "wallet": wallet.Hex(), "currency": cur}
	err := c.run("contribute migrated", fields, func(tx *txn) error {
		sink := c.universe.LegacyWallet(cur)
		if sink == nil || sink.Address() != wallet {
			return fmt.Errorf("%w: %s for %s", ErrNoLegacyWallet, wallet.Hex(), cur)
		}
		var err error
		q, err = tx.contribute(investor, wallet, amount, cur, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (tx *txn) contribute(investor, payer common.Address, amount *big.Int, cur rates.Currency, migrated bool) (*pricing.Quote, error) {
	c := tx.c
	st := tx.state
	if !st.Phase.Open() {
		return nil, wrongPhase("contribute", st.Phase)
	}
	if !cur.Valid() {
		return nil, fmt.Errorf("%w: %q", rates.ErrUnsupportedCurrency, cur)
	}
	u := c.universe
	gate := u.Identity()
	if !gate.IsVerified(investor) {
		return nil, fmt.Errorf("%w: %s", ErrNotVerified, investor.Hex())
	}
	if gate.IsFrozen(investor) {
		return nil, fmt.Errorf("%w: %s", ErrAccountFrozen, investor.Hex())
	}

	t := tx.ticket(investor)
	prior := new(big.Int)
	isMigrated := migrated
	if t != nil {
		prior = t.EurUlps
		isMigrated = isMigrated || t.Migrated()
	}

	eng := pricing.NewEngine(c.terms, u.Rates(), tx.whitelist())
	q, err := eng.Quote(pricing.Request{
		Investor:       investor,
		Amount:         amount,
		Currency:       cur,
		WhitelistPhase: st.Phase == Whitelist,
		Migrated:       isMigrated,
		PriorEur:       prior,
		TotalEur:       st.TotalEur,
		TotalTokens:    st.TotalTokens,
		Now:            tx.now,
	})
	if err != nil {
		return nil, err
	}
	if err := eng.Commit(q); err != nil {
		return nil, err
	}
	if q.SlotEur.Sign() > 0 {
		tx.wlDirty = true
	}

	if err := tx.transfer(currencyToken(u, cur), payer, c.addr, amount); err != nil {
		return nil, fmt.Errorf("offering: collect %s from %s: %w", cur, payer.Hex(), err)
	}

	if t == nil {
		t = tx.newTicket(investor)
	}
	t.add(cur, amount, migrated)
	t.EurUlps.Add(t.EurUlps, q.EurUlps)
	t.Tokens.Add(t.Tokens, q.Tokens)
	t.LastChange = tx.now

	st.TotalTokens.Add(st.TotalTokens, q.Tokens)
	st.TotalEur.Add(st.TotalEur, q.EurUlps)
	raised := st.Raised(cur)
	raised.Add(raised, amount)
	if st.CapReachedAt.IsZero() && st.TotalTokens.Cmp(c.terms.MaxNumberOfTokens) >= 0 {
		st.CapReachedAt = tx.now
	}

	kind := EventContribution
	if migrated {
		kind = EventMigration
	}
	tx.emit(Event{
		Kind:     kind,
		Investor: investor,
		Currency: cur,
		Amount:   ulps.Copy(amount),
		Tokens:   ulps.Copy(q.Tokens),
		Detail:   "eur=" + ulps.Format(q.EurUlps),
	})
	return q, nil
}
