package token

import (
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
)

// checkpoint records a value that took effect at a point in time.
type checkpoint struct {
	at    time.Time
	value *big.Int
}

// history is an append-only list of checkpoints ordered by time.
type history []checkpoint

// latest returns the most recent value, or zero.
func (h history) latest() *big.Int {
	if len(h) == 0 {
		return new(big.Int)
	}
	return new(big.Int).Set(h[len(h)-1].value)
}

// before returns the last value recorded strictly before t.
func (h history) before(t time.Time) *big.Int {
	i := sort.Search(len(h), func(i int) bool { return !h[i].at.Before(t) })
	if i == 0 {
		return new(big.Int)
	}
	return new(big.Int).Set(h[i-1].value)
}

// push records v at time at, collapsing changes that share a timestamp.
func (h history) push(at time.Time, v *big.Int) history {
	if n := len(h); n > 0 && !h[n-1].at.Before(at) {
		h[n-1].value = new(big.Int).Set(v)
		return h
	}
	return append(h, checkpoint{at: at, value: new(big.Int).Set(v)})
}

// Ledger is an in-process SnapshotToken. Every balance change is timestamped
// with the ledger's clock so that governance and exit can read frozen
// balances.
type Ledger struct {
	mu       sync.Mutex
	symbol   string
	clock    clock.Clock
	balances map[common.Address]history
	supply   history
	journal  Journal
}

// Compile-time interface check.
var _ SnapshotToken = (*Ledger)(nil)

// NewLedger creates an empty in-memory ledger. A nil clock uses wall time.
// Use OpenLedger for a ledger that survives restarts.
func NewLedger(symbol string, clk clock.Clock) *Ledger {
	if clk == nil {
		clk = clock.New()
	}
	return &Ledger{
		symbol:   symbol,
		clock:    clk,
		balances: make(map[common.Address]history),
	}
}

// Symbol returns the ticker the ledger was created with.
func (l *Ledger) Symbol() string { return l.symbol }

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Mint credits amount to the given address and grows the supply.
func (l *Ledger) Mint(to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return fmt.Errorf("%w: mint to zero address", ErrZeroAddress)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if err := l.record(Entry{Op: OpMint, To: to, Amount: amount, At: now}); err != nil {
		return err
	}
	l.mint(now, to, amount)
	return nil
}

// Transfer moves amount from one address to another.
func (l *Ledger) Transfer(from, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return fmt.Errorf("%w: transfer to zero address", ErrZeroAddress)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if err := l.checkBalance(from, amount); err != nil {
		return err
	}
	if from == to {
		return nil
	}
	if err := l.record(Entry{Op: OpTransfer, From: from, To: to, Amount: amount, At: now}); err != nil {
		return err
	}
	return l.transfer(now, from, to, amount)
}

// BurnFrom destroys amount of the holder's balance and shrinks the supply.
func (l *Ledger) BurnFrom(holder common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if err := l.checkBalance(holder, amount); err != nil {
		return err
	}
	if err := l.record(Entry{Op: OpBurn, From: holder, Amount: amount, At: now}); err != nil {
		return err
	}
	return l.burn(now, holder, amount)
}

func (l *Ledger) record(e Entry) error {
	if l.journal == nil {
		return nil
	}
	if err := l.journal.Append(e); err != nil {
		return fmt.Errorf("token: journal %s %s: %w", l.symbol, e.Op, err)
	}
	return nil
}

func (l *Ledger) checkBalance(holder common.Address, amount *big.Int) error {
	if bal := l.balances[holder].latest(); bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s %s, needs %s",
			ErrInsufficientBalance, holder.Hex(), bal, l.symbol, amount)
	}
	return nil
}

// mint, transfer and burn apply a validated change at time at. The caller
// holds l.mu or owns l exclusively.

func (l *Ledger) mint(at time.Time, to common.Address, amount *big.Int) {
	bal := l.balances[to].latest()
	l.balances[to] = l.balances[to].push(at, bal.Add(bal, amount))
	sup := l.supply.latest()
	l.supply = l.supply.push(at, sup.Add(sup, amount))
}

func (l *Ledger) transfer(at time.Time, from, to common.Address, amount *big.Int) error {
	if err := l.checkBalance(from, amount); err != nil {
		return err
	}
	if from == to {
		return nil
	}
	src := l.balances[from].latest()
	l.balances[from] = l.balances[from].push(at, src.Sub(src, amount))
	dst := l.balances[to].latest()
	l.balances[to] = l.balances[to].push(at, dst.Add(dst, amount))
	return nil
}

func (l *Ledger) burn(at time.Time, holder common.Address, amount *big.Int) error {
	if err := l.checkBalance(holder, amount); err != nil {
		return err
	}
	bal := l.balances[holder].latest()
	l.balances[holder] = l.balances[holder].push(at, bal.Sub(bal, amount))
	sup := l.supply.latest()
	l.supply = l.supply.push(at, sup.Sub(sup, amount))
	return nil
}

// BalanceOf returns the current balance.
func (l *Ledger) BalanceOf(addr common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[addr].latest()
}

// TotalSupply returns the current supply.
func (l *Ledger) TotalSupply() *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.supply.latest()
}

// BalanceAt returns the balance after all changes made strictly before t.
func (l *Ledger) BalanceAt(addr common.Address, t time.Time) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[addr].before(t)
}

// TotalSupplyAt returns the supply after all changes made strictly before t.
func (l *Ledger) TotalSupplyAt(t time.Time) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.supply.before(t)
}

// Holders returns every address that ever held a balance, sorted.
func (l *Ledger) Holders() []common.Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]common.Address, 0, len(l.balances))
	for a := range l.balances {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}
