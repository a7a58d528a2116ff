// Package exit implements the liquidation controller that pays sale proceeds
// to equity token holders pro rata to a frozen snapshot.
package exit

import (
	"fmt"
	"io"
	"math/big"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/equityledger/libeto-go/offering"
	"github.com/equityledger/libeto-go/prorata"
	"github.com/equityledger/libeto-go/token"
	"github.com/equityledger/libeto-go/ulps"
)

// State is the controller's lifecycle state.
type State int

const (
	Setup State = iota
	Payout
	ManualPayoutResolution
)

var stateNames = [...]string{"Setup", "Payout", "ManualPayoutResolution"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// PhaseSource reports when offering phases started.
type PhaseSource interface {
	StartOfPhase(p offering.Phase) (time.Time, bool)
}

// Config configures a Controller.
type Config struct {
	// Address is the controller's account on both token ledgers.
	Address common.Address
	Nominee common.Address

	Equity   token.SnapshotToken
	Proceeds token.Token
	Offering PhaseSource

	// ExpectedProceeds is the full amount the nominee must pay in.
	ExpectedProceeds *big.Int
	// ManualCooldown separates the snapshot from the first manual payout.
	ManualCooldown time.Duration

	Clock  clock.Clock
	Logger *logrus.Entry
}

// Controller distributes exit proceeds.
type Controller struct {
	mu  sync.Mutex
	cfg Config
	clk clock.Clock
	log *logrus.Entry

	state      State
	snapshotAt time.Time
	supply     *big.Int
	proceeds   *big.Int
	paidOut    *big.Int
	paid       map[common.Address]*big.Int
}

// New creates a controller in Setup.
func New(cfg Config) (*Controller, error) {
	if cfg.Equity == nil || cfg.Proceeds == nil || cfg.Offering == nil {
		return nil, fmt.Errorf("%w: equity, proceeds and offering are required", ErrInvalidConfig)
	}
	if cfg.ExpectedProceeds == nil || cfg.ExpectedProceeds.Sign() <= 0 {
		return nil, fmt.Errorf("%w: expected proceeds must be positive", ErrInvalidConfig)
	}
	if cfg.ManualCooldown < 0 {
		return nil, fmt.Errorf("%w: negative cooldown", ErrInvalidConfig)
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	log := cfg.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}
	return &Controller{
		cfg:      cfg,
		clk:      clk,
		log:      log.WithField("component", "exit"),
		supply:   new(big.Int),
		proceeds: new(big.Int),
		paidOut:  new(big.Int),
		paid:     make(map[common.Address]*big.Int),
	}, nil
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SnapshotAt returns the time balances were frozen, zero in Setup.
func (c *Controller) SnapshotAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotAt
}

// Proceeds returns the total paid in by the nominee.
func (c *Controller) Proceeds() *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ulps.Copy(c.proceeds)
}

// Remaining returns the proceeds not yet paid out.
func (c *Controller) Remaining() *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Sub(c.proceeds, c.paidOut)
}

// PaidTo returns what holder received, zero if unpaid.
func (c *Controller) PaidTo(holder common.Address) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ulps.Copy(c.paid[holder])
}

// StartPayout takes the nominee's proceeds and freezes the holder snapshot.
func (c *Controller) StartPayout(caller common.Address, amount *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clk.Now()

	if caller != c.cfg.Nominee {
		return fmt.Errorf("%w: %s is not the nominee", ErrUnauthorized, caller.Hex())
	}
	if c.state != Setup {
		return fmt.Errorf("%w: start payout in %s", ErrWrongState, c.state)
	}
	if amount == nil || amount.Cmp(c.cfg.ExpectedProceeds) < 0 {
		return fmt.Errorf("%w: got %s, expected %s", ErrInsufficientProceeds,
			ulps.Format(amount), ulps.Format(c.cfg.ExpectedProceeds))
	}
	claimAt, ok := c.cfg.Offering.StartOfPhase(offering.Claim)
	if !ok || now.Before(claimAt) {
		return ErrNoSnapshot
	}
	supply := c.cfg.Equity.TotalSupplyAt(now)
	if supply.Sign() == 0 {
		return fmt.Errorf("%w: zero supply", ErrNoSnapshot)
	}
	if err := c.cfg.Proceeds.Transfer(caller, c.cfg.Address, amount); err != nil {
		return fmt.Errorf("exit: collect proceeds: %w", err)
	}

	c.state = Payout
	c.snapshotAt = now
	c.supply = supply
	c.proceeds = ulps.Copy(amount)
	c.log.WithFields(logrus.Fields{
		"proceeds": ulps.Format(amount),
		"supply":   ulps.Format(supply),
	}).Info("payout started")
	return nil
}

// entitlement is the holder's rounded share of the proceeds, capped at what
// is left to pay.
func (c *Controller) entitlement(holder common.Address) (*big.Int, error) {
	bal := c.cfg.Equity.BalanceAt(holder, c.snapshotAt)
	amount, err := ulps.ProportionRound(c.proceeds, bal, c.supply)
	if err != nil {
		return nil, err
	}
	left := new(big.Int).Sub(c.proceeds, c.paidOut)
	return ulps.Min(amount, left), nil
}

// EligibleProceeds returns what holder can still claim. It is zero in Setup
// and once the holder was paid.
func (c *Controller) EligibleProceeds(holder common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Setup || c.paid[holder] != nil {
		return new(big.Int), nil
	}
	return c.entitlement(holder)
}

// Claim burns the holder's whole snapshot balance and pays the pro-rata
// proceeds. amount must equal that balance.
func (c *Controller) Claim(holder common.Address, amount *big.Int) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Setup {
		return nil, fmt.Errorf("%w: claim in %s", ErrWrongState, c.state)
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if c.paid[holder] != nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyPaid, holder.Hex())
	}
	snap := c.cfg.Equity.BalanceAt(holder, c.snapshotAt)
	if amount.Cmp(snap) != 0 {
		return nil, fmt.Errorf("%w: %s of %s", ErrPartialClaim, ulps.Format(amount), ulps.Format(snap))
	}
	payment, err := c.entitlement(holder)
	if err != nil {
		return nil, err
	}
	if payment.Sign() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoProceeds, holder.Hex())
	}

	if err := c.cfg.Equity.BurnFrom(holder, amount); err != nil {
		return nil, fmt.Errorf("exit: burn: %w", err)
	}
	if err := c.cfg.Proceeds.Transfer(c.cfg.Address, holder, payment); err != nil {
		if merr := c.cfg.Equity.Mint(holder, amount); merr != nil {
			c.log.WithError(merr).Error("re-mint after failed payment")
		}
		return nil, fmt.Errorf("exit: pay: %w", err)
	}
	c.markPaid(holder, payment)
	c.log.WithFields(logrus.Fields{
		"holder": holder.Hex(),
		"burned": ulps.Format(amount),
		"paid":   ulps.Format(payment),
	}).Info("proceeds claimed")
	return payment, nil
}

func (c *Controller) markPaid(holder common.Address, amount *big.Int) {
	c.paid[holder] = ulps.Copy(amount)
	c.paidOut.Add(c.paidOut, amount)
}

// EscalateManual moves the controller into manual resolution.
func (c *Controller) EscalateManual(caller common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.cfg.Nominee {
		return fmt.Errorf("%w: %s is not the nominee", ErrUnauthorized, caller.Hex())
	}
	if c.state != Payout {
		return fmt.Errorf("%w: escalate in %s", ErrWrongState, c.state)
	}
	c.state = ManualPayoutResolution
	c.log.Info("manual payout resolution")
	return nil
}

// ManualPayout pays holder's snapshot entitlement without a burn. The paid
// ledger is keyed by the snapshot holder, so moving tokens elsewhere does
// not allow a second payout.
func (c *Controller) ManualPayout(caller, holder common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clk.Now()

	if caller != c.cfg.Nominee {
		return nil, fmt.Errorf("%w: %s is not the nominee", ErrUnauthorized, caller.Hex())
	}
	if c.state != ManualPayoutResolution {
		return nil, fmt.Errorf("%w: manual payout in %s", ErrWrongState, c.state)
	}
	if ready := c.snapshotAt.Add(c.cfg.ManualCooldown); now.Before(ready) {
		return nil, fmt.Errorf("%w: available at %s", ErrCooldown, ready.UTC().Format(time.RFC3339))
	}
	if c.paid[holder] != nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyPaid, holder.Hex())
	}
	payment, err := c.entitlement(holder)
	if err != nil {
		return nil, err
	}
	if payment.Sign() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoProceeds, holder.Hex())
	}
	if err := c.cfg.Proceeds.Transfer(c.cfg.Address, holder, payment); err != nil {
		return nil, fmt.Errorf("exit: pay: %w", err)
	}
	c.markPaid(holder, payment)
	c.log.WithFields(logrus.Fields{
		"holder": holder.Hex(),
		"paid":   ulps.Format(payment),
	}).Info("manual payout")
	return payment, nil
}

// Preview returns each holder's rounded entitlement from the snapshot,
// ignoring payments already made.
func (c *Controller) Preview(holders []common.Address) ([]prorata.Payment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Setup {
		return nil, fmt.Errorf("%w: preview in %s", ErrWrongState, c.state)
	}
	shares := make([]prorata.Share, len(holders))
	for i, h := range holders {
		shares[i] = prorata.Share{Holder: h, Weight: c.cfg.Equity.BalanceAt(h, c.snapshotAt)}
	}
	return prorata.Allocate(c.proceeds, shares, c.supply)
}
