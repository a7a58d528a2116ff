// Package legacy implements the ICBM-style lock wallet whose balances can be
// migrated once into an offering.
package legacy

import (
	"fmt"
	"io"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"go.etcd.io/bbolt"

	"github.com/equityledger/libeto-go/offering"
	"github.com/equityledger/libeto-go/pricing"
	"github.com/equityledger/libeto-go/rates"
	"github.com/equityledger/libeto-go/token"
	"github.com/equityledger/libeto-go/ulps"
)

// Target receives migrated balances.
type Target interface {
	ContributeMigrated(wallet, investor common.Address, amount *big.Int, cur rates.Currency) (*pricing.Quote, error)
}

// Wallet holds locked balances of one currency.
type Wallet struct {
	mu       sync.Mutex
	addr     common.Address
	currency rates.Currency
	token    token.Token
	target   Target
	locked   map[common.Address]*big.Int
	migrated map[common.Address]bool
	db       *bbolt.DB
	bucket   []byte
	log      *logrus.Entry
}

// Compile-time interface check.
var _ offering.RefundSink = (*Wallet)(nil)

// NewWallet creates an in-memory wallet that keeps funds at addr on tok.
func NewWallet(addr common.Address, cur rates.Currency, tok token.Token, log *logrus.Entry) *Wallet {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}
	return &Wallet{
		addr:     addr,
		currency: cur,
		token:    tok,
		locked:   make(map[common.Address]*big.Int),
		migrated: make(map[common.Address]bool),
		log:      log.WithFields(logrus.Fields{"component": "legacy", "currency": cur}),
	}
}

// Address implements offering.RefundSink.
func (w *Wallet) Address() common.Address { return w.addr }

// Currency returns the wallet currency.
func (w *Wallet) Currency() rates.Currency { return w.currency }

// SetTarget enables migration into t.
func (w *Wallet) SetTarget(t Target) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.target = t
}

// Lock moves amount from the investor into the wallet.
func (w *Wallet) Lock(investor common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.token.Transfer(investor, w.addr, amount); err != nil {
		return fmt.Errorf("legacy: lock: %w", err)
	}
	w.credit(investor, amount)
	if err := w.save(investor); err != nil {
		w.locked[investor].Sub(w.locked[investor], amount)
		if rerr := w.token.Transfer(w.addr, investor, amount); rerr != nil {
			w.log.WithError(rerr).WithField("investor", investor.Hex()).Error("lock rollback failed")
		}
		return err
	}
	return nil
}

func (w *Wallet) credit(investor common.Address, amount *big.Int) {
	bal := w.locked[investor]
	if bal == nil {
		bal = new(big.Int)
		w.locked[investor] = bal
	}
	bal.Add(bal, amount)
}

// LockedOf returns the investor's locked balance.
func (w *Wallet) LockedOf(investor common.Address) *big.Int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ulps.Copy(w.locked[investor])
}

// Migrated reports whether the investor already migrated.
func (w *Wallet) Migrated(investor common.Address) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.migrated[investor]
}

// Migrate moves the investor's whole locked balance into the target. It
// succeeds once per investor; a rejected contribution leaves the balance
// locked and the investor free to retry.
func (w *Wallet) Migrate(investor common.Address) (*pricing.Quote, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.migrated[investor] {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyMigrated, investor.Hex())
	}
	if w.target == nil {
		return nil, ErrNoMigrationTarget
	}
	amount := ulps.Copy(w.locked[investor])
	if amount.Sign() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNothingLocked, investor.Hex())
	}

	// A stored record never shows a migrated balance as still locked.
	w.locked[investor] = new(big.Int)
	w.migrated[investor] = true
	if err := w.save(investor); err != nil {
		w.locked[investor] = amount
		delete(w.migrated, investor)
		return nil, err
	}

	q, err := w.target.ContributeMigrated(w.addr, investor, amount, w.currency)
	if err != nil {
		w.locked[investor] = ulps.Copy(amount)
		delete(w.migrated, investor)
		if serr := w.save(investor); serr != nil {
			w.log.WithError(serr).WithField("investor", investor.Hex()).Error("migration rollback not stored")
		}
		w.log.WithField("investor", investor.Hex()).WithError(err).Debug("migration rejected")
		return nil, err
	}
	w.log.WithFields(logrus.Fields{
		"investor": investor.Hex(),
		"amount":   ulps.Format(amount),
	}).Info("balance migrated")
	return q, nil
}

// Relock implements offering.RefundSink: a refunded migrated amount is
// locked again for the investor.
func (w *Wallet) Relock(investor common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.credit(investor, amount)
	if err := w.save(investor); err != nil {
		w.locked[investor].Sub(w.locked[investor], amount)
		return err
	}
	return nil
}

// RevertRelock implements offering.RefundSink.
func (w *Wallet) RevertRelock(investor common.Address, amount *big.Int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	bal := w.locked[investor]
	if bal == nil || bal.Cmp(amount) < 0 {
		return fmt.Errorf("legacy: revert relock of %s exceeds locked balance", ulps.Format(amount))
	}
	bal.Sub(bal, amount)
	if err := w.save(investor); err != nil {
		bal.Add(bal, amount)
		return err
	}
	return nil
}

// Unlock returns the investor's locked balance to the investor.
func (w *Wallet) Unlock(investor common.Address) (*big.Int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	amount := ulps.Copy(w.locked[investor])
	if amount.Sign() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNothingLocked, investor.Hex())
	}
	if err := w.token.Transfer(w.addr, investor, amount); err != nil {
		return nil, fmt.Errorf("legacy: unlock: %w", err)
	}
	w.locked[investor] = new(big.Int)
	if err := w.save(investor); err != nil {
		w.locked[investor] = ulps.Copy(amount)
		if rerr := w.token.Transfer(investor, w.addr, amount); rerr != nil {
			w.log.WithError(rerr).WithField("investor", investor.Hex()).Error("unlock rollback failed")
		}
		return nil, err
	}
	return amount, nil
}
