// Package offering implements the Offering Commitment: the phase state
// machine of an equity-token offering, its contribution ledger and the
// settlement of tickets by claim, refund and payout.
package offering

import (
	"fmt"
	"io"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/equityledger/libeto-go/terms"
	"github.com/equityledger/libeto-go/token"
	"github.com/equityledger/libeto-go/whitelist"
)

// Config holds the collaborators of a Commitment.
type Config struct {
	// Address is the commitment's own account on the token ledgers; it
	// holds contributed funds until payout or refund.
	Address  common.Address
	Terms    *terms.Terms
	Universe Universe
	Store    Store
	Clock    clock.Clock
	Logger   *logrus.Entry
}

// Commitment is one offering. All operations are serialized by a single
// mutex and either fully apply or leave no trace.
type Commitment struct {
	mu       sync.Mutex
	addr     common.Address
	terms    *terms.Terms
	universe Universe
	store    Store
	clock    clock.Clock
	log      *logrus.Entry

	state     *State
	tickets   map[common.Address]*Ticket
	whitelist *whitelist.Registry
	seq       uint64
}

// New creates a Commitment over cfg.Store, resuming from it when it already
// holds an offering.
func New(cfg Config) (*Commitment, error) {
	if cfg.Terms == nil || cfg.Universe == nil || cfg.Store == nil {
		return nil, fmt.Errorf("%w: terms, universe and store are required", ErrInvalidConfig)
	}
	if cfg.Address == (common.Address{}) {
		return nil, fmt.Errorf("%w: zero commitment address", ErrInvalidConfig)
	}
	if err := cfg.Terms.Validate(); err != nil {
		return nil, err
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		cfg.Logger = logrus.NewEntry(l)
	}

	c := &Commitment{
		addr:      cfg.Address,
		terms:     cfg.Terms.Clone(),
		universe:  cfg.Universe,
		store:     cfg.Store,
		clock:     cfg.Clock,
		log:       cfg.Logger.WithField("component", "offering"),
		tickets:   make(map[common.Address]*Ticket),
		whitelist: whitelist.NewRegistry(),
	}

	snap, err := cfg.Store.Load()
	if err != nil {
		return nil, err
	}
	events, err := cfg.Store.Events()
	if err != nil {
		return nil, err
	}
	if n := len(events); n > 0 {
		c.seq = events[n-1].Seq
	}

	if snap.State != nil {
		c.state = snap.State
		for _, t := range snap.Tickets {
			c.tickets[t.Investor] = t
		}
		c.whitelist.Restore(snap.Whitelist)
		c.log.WithFields(logrus.Fields{
			"phase":   c.state.Phase,
			"tickets": len(c.tickets),
		}).Info("offering resumed")
		return c, nil
	}

	now := c.clock.Now()
	c.state = newState(now)
	tx := c.begin(now)
	tx.emit(Event{Kind: EventCreated, Detail: c.addr.Hex()})
	if err := c.commit(tx); err != nil {
		return nil, err
	}
	c.log.Info("offering created")
	return c, nil
}

// Address returns the commitment's account.
func (c *Commitment) Address() common.Address { return c.addr }

// Terms returns a copy of the offering terms.
func (c *Commitment) Terms() *terms.Terms { return c.terms.Clone() }

// ---------------------------------------------------------------------------
// Transactions
// ---------------------------------------------------------------------------

// txn stages the effects of one operation. Ledger state is mutated on
// copies; token side effects are applied immediately and recorded with an
// undo closure.
type txn struct {
	c       *Commitment
	now     time.Time
	state   *State
	tickets map[common.Address]*Ticket
	wl      *whitelist.Registry
	wlDirty bool
	events  []Event
	undo    []func() error
	seq     uint64
}

func (c *Commitment) begin(now time.Time) *txn {
	return &txn{
		c:       c,
		now:     now,
		state:   c.state.Clone(),
		tickets: make(map[common.Address]*Ticket),
		seq:     c.seq,
	}
}

// ticket returns the staged ticket of investor, or nil.
func (tx *txn) ticket(investor common.Address) *Ticket {
	if t, ok := tx.tickets[investor]; ok {
		return t
	}
	t, ok := tx.c.tickets[investor]
	if !ok {
		return nil
	}
	staged := t.Clone()
	tx.tickets[investor] = staged
	return staged
}

func (tx *txn) newTicket(investor common.Address) *Ticket {
	t := newTicket(investor)
	tx.tickets[investor] = t
	tx.state.Investors++
	return t
}

// whitelist returns the staged registry.
func (tx *txn) whitelist() *whitelist.Registry {
	if tx.wl == nil {
		tx.wl = tx.c.whitelist.Clone()
	}
	return tx.wl
}

func (tx *txn) emit(ev Event) {
	tx.seq++
	ev.ID = uuid.New()
	ev.Seq = tx.seq
	if ev.At.IsZero() {
		ev.At = tx.now
	}
	ev.Phase = tx.state.Phase
	tx.events = append(tx.events, ev)
}

func (tx *txn) transfer(tok token.Token, from, to common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	if err := tok.Transfer(from, to, amount); err != nil {
		return err
	}
	amt := new(big.Int).Set(amount)
	tx.undo = append(tx.undo, func() error { return tok.Transfer(to, from, amt) })
	return nil
}

func (tx *txn) mint(tok token.Token, to common.Address, amount *big.Int) error {
	if err := tok.Mint(to, amount); err != nil {
		return err
	}
	amt := new(big.Int).Set(amount)
	tx.undo = append(tx.undo, func() error { return tok.BurnFrom(to, amt) })
	return nil
}

func (tx *txn) onUndo(fn func() error) {
	tx.undo = append(tx.undo, fn)
}

// rollback runs the undo closures in reverse order.
func (tx *txn) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		if err := tx.undo[i](); err != nil {
			tx.c.log.WithError(err).Error("compensation failed")
		}
	}
	tx.undo = nil
}

// tick applies every transition due at tx.now.
func (tx *txn) tick() error {
	for {
		tr, ok := nextTransition(tx.state, tx.c.terms, tx.now)
		if !ok {
			return nil
		}
		if err := tx.enter(tr); err != nil {
			return err
		}
	}
}

// enter moves the staged state into tr.To and runs its entry action.
func (tx *txn) enter(tr Transition) error {
	tx.state.Phase = tr.To
	tx.state.StartOf[tr.To] = tr.At
	tx.emit(Event{
		Kind:   EventTransition,
		At:     tr.At,
		Detail: fmt.Sprintf("%s -> %s: %s", tr.From, tr.To, tr.Reason),
	})
	if tr.To == Payout {
		return tx.disburse(tr.At)
	}
	return nil
}

// commit persists tx and publishes it to the in-memory state.
func (c *Commitment) commit(tx *txn) error {
	if len(tx.events) == 0 && len(tx.tickets) == 0 && !tx.wlDirty {
		return nil
	}
	b := &Batch{State: tx.state, Events: tx.events}
	for _, t := range tx.tickets {
		b.Tickets = append(b.Tickets, t)
	}
	sort.Slice(b.Tickets, func(i, j int) bool { return b.Tickets[i].Investor.Cmp(b.Tickets[j].Investor) < 0 })
	if tx.wlDirty {
		b.Whitelist = tx.wl.Entries()
	}

	if err := c.store.Commit(b); err != nil {
		tx.rollback()
		c.log.WithError(err).Error("commit failed, operation rolled back")
		return fmt.Errorf("offering: commit: %w", err)
	}

	c.state = tx.state
	for k, t := range tx.tickets {
		c.tickets[k] = t
	}
	if tx.wlDirty {
		c.whitelist = tx.wl
	}
	c.seq = tx.seq

	for _, ev := range tx.events {
		if ev.Kind == EventTransition {
			c.log.WithFields(logrus.Fields{"phase": ev.Phase, "at": ev.At}).Info(ev.Detail)
		}
	}
	return nil
}

// advance commits every transition due at now.
func (c *Commitment) advance(now time.Time) error {
	tx := c.begin(now)
	if err := tx.tick(); err != nil {
		tx.rollback()
		c.log.WithError(err).Error("phase transition failed")
		return err
	}
	return c.commit(tx)
}

// run executes one mutating operation: due transitions are applied first,
// then fn runs on a fresh transaction, then transitions triggered by fn
// (cap reached, agreement complete) are applied and everything is
// committed together.
func (c *Commitment) run(op string, fields logrus.Fields, fn func(tx *txn) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if err := c.advance(now); err != nil {
		return err
	}

	tx := c.begin(now)
	if err := fn(tx); err != nil {
		tx.rollback()
		c.log.WithFields(fields).WithError(err).Debugf("%s rejected", op)
		return err
	}
	if err := tx.tick(); err != nil {
		tx.rollback()
		c.log.WithFields(fields).WithError(err).Errorf("%s: phase transition failed", op)
		return err
	}
	return c.commit(tx)
}

func wrongPhase(op string, p Phase) error {
	return fmt.Errorf("%w: %s not allowed in %s", ErrWrongPhase, op, p)
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// projected returns the state with every due transition applied, without
// entry actions.
func (c *Commitment) projected(now time.Time) *State {
	st := c.state.Clone()
	for {
		tr, ok := nextTransition(st, c.terms, now)
		if !ok {
			return st
		}
		st.Phase = tr.To
		st.StartOf[tr.To] = tr.At
	}
}

// Tick applies every due transition and returns the resulting phase.
func (c *Commitment) Tick() (Phase, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.advance(c.clock.Now()); err != nil {
		return c.state.Phase, err
	}
	return c.state.Phase, nil
}

// CurrentPhase returns the phase as of now.
func (c *Commitment) CurrentPhase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projected(c.clock.Now()).Phase
}

// StartOfPhase returns when p was entered. ok is false for a phase not
// (yet) entered.
func (c *Commitment) StartOfPhase(p Phase) (at time.Time, ok bool) {
	if p < 0 || int(p) >= numPhases {
		return time.Time{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	at = c.projected(c.clock.Now()).StartOf[p]
	return at, !at.IsZero()
}

// ScheduledStart returns the configured start date, zero when unset.
func (c *Commitment) ScheduledStart() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.ScheduledStart
}

// TicketFor returns a copy of the investor's ticket.
func (c *Commitment) TicketFor(investor common.Address) (*Ticket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tickets[investor]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoTicket, investor.Hex())
	}
	return t.Clone(), nil
}

// Tickets returns copies of every ticket ordered by investor.
func (c *Commitment) Tickets() []*Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Ticket, 0, len(c.tickets))
	for _, t := range c.tickets {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Investor.Cmp(out[j].Investor) < 0 })
	return out
}

// Totals returns the aggregate counters.
func (c *Commitment) Totals() Totals {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.projected(c.clock.Now())
	return Totals{
		Phase:       st.Phase,
		TotalTokens: new(big.Int).Set(st.TotalTokens),
		TotalEur:    new(big.Int).Set(st.TotalEur),
		RaisedEth:   new(big.Int).Set(st.RaisedEth),
		RaisedEur:   new(big.Int).Set(st.RaisedEur),
		Investors:   st.Investors,
	}
}

// Agreement returns the investment agreement signatures collected so far.
func (c *Commitment) Agreement() Agreement {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone().Agreement
}

// Disbursal returns what the payout sent, or nil before payout.
func (c *Commitment) Disbursal() *Disbursal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone().Disbursal
}

// WhitelistEntry returns the investor's whitelist entry.
func (c *Commitment) WhitelistEntry(investor common.Address) (whitelist.Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.whitelist.Get(investor)
}

// Events returns the offering journal.
func (c *Commitment) Events() ([]Event, error) {
	return c.store.Events()
}
