// Package whitelist keeps per-investor fixed allocation slots with
// individually negotiated discount fractions.
package whitelist

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/equityledger/libeto-go/ulps"
)

// Entry is an investor's negotiated allocation. FixedSlot is EUR-ULPS,
// PriceFrac is a ULPS fraction in (0, 1] applied to the token price, and
// Used is the part of the slot already consumed by contributions.
type Entry struct {
	Investor  common.Address
	FixedSlot *big.Int
	PriceFrac *big.Int
	Used      *big.Int
}

// Remaining returns the unconsumed part of the slot, never negative.
func (e Entry) Remaining() *big.Int {
	used := e.Used
	if used == nil {
		used = new(big.Int)
	}
	r := new(big.Int).Sub(e.FixedSlot, used)
	if r.Sign() < 0 {
		return new(big.Int)
	}
	return r
}

func (e Entry) clone() Entry {
	return Entry{
		Investor:  e.Investor,
		FixedSlot: ulps.Copy(e.FixedSlot),
		PriceFrac: ulps.Copy(e.PriceFrac),
		Used:      ulps.Copy(e.Used),
	}
}

// Validate checks the fraction and slot of a submitted entry.
func (e Entry) Validate() error {
	if e.Investor == (common.Address{}) {
		return fmt.Errorf("%w: zero investor address", ErrInvalidEntry)
	}
	if e.FixedSlot == nil || e.FixedSlot.Sign() < 0 {
		return fmt.Errorf("%w: %s: negative fixed slot", ErrInvalidEntry, e.Investor.Hex())
	}
	if !ulps.IsFraction(e.PriceFrac) {
		return fmt.Errorf("%w: %s: price fraction must be in (0, 1]", ErrInvalidEntry, e.Investor.Hex())
	}
	return nil
}

// Warning reports that a submission replaced an existing entry.
type Warning struct {
	Investor  common.Address
	Previous  Entry
	Effective Entry
}

func (w Warning) String() string {
	return fmt.Sprintf("whitelist entry for %s overwritten (slot %s -> %s, frac %s -> %s)",
		w.Investor.Hex(),
		ulps.Format(w.Previous.FixedSlot), ulps.Format(w.Effective.FixedSlot),
		ulps.Format(w.Previous.PriceFrac), ulps.Format(w.Effective.PriceFrac))
}

// Registry is the set of whitelist entries of one offering. It is not safe
// for concurrent use; the offering serializes access.
type Registry struct {
	entries map[common.Address]Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[common.Address]Entry)}
}

// AddWhitelisted validates every entry, then applies all of them. An invalid
// entry rejects the whole batch. Re-submitting an address overwrites its slot
// and fraction (consumption is kept) and yields a Warning.
func (r *Registry) AddWhitelisted(entries []Entry) ([]Warning, error) {
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, err
		}
	}

	var warnings []Warning
	for _, e := range entries {
		next := Entry{
			Investor:  e.Investor,
			FixedSlot: ulps.Copy(e.FixedSlot),
			PriceFrac: ulps.Copy(e.PriceFrac),
			Used:      new(big.Int),
		}
		if prev, ok := r.entries[e.Investor]; ok {
			next.Used = ulps.Copy(prev.Used)
			warnings = append(warnings, Warning{Investor: e.Investor, Previous: prev.clone(), Effective: next.clone()})
		}
		r.entries[e.Investor] = next
	}
	return warnings, nil
}

// ChunkResult is the outcome of one chunk of AddChunked.
type ChunkResult struct {
	Start, End int
	Warnings   []Warning
	Err        error
}

// AddChunked applies entries in chunks of the given size. Each chunk is
// atomic; a failed chunk does not undo chunks applied before it.
func (r *Registry) AddChunked(entries []Entry, size int) ([]ChunkResult, error) {
	if size <= 0 {
		return nil, ErrInvalidChunkSize
	}
	var results []ChunkResult
	for start := 0; start < len(entries); start += size {
		end := min(start+size, len(entries))
		w, err := r.AddWhitelisted(entries[start:end])
		results = append(results, ChunkResult{Start: start, End: end, Warnings: w, Err: err})
	}
	return results, nil
}

// Get returns a copy of the investor's entry.
func (r *Registry) Get(investor common.Address) (Entry, bool) {
	e, ok := r.entries[investor]
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

// Remaining returns the unconsumed slot of the investor, zero when absent.
func (r *Registry) Remaining(investor common.Address) *big.Int {
	e, ok := r.entries[investor]
	if !ok {
		return new(big.Int)
	}
	return e.Remaining()
}

// Consume reduces the investor's remaining slot by amount.
func (r *Registry) Consume(investor common.Address, amount *big.Int) error {
	e, ok := r.entries[investor]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotWhitelisted, investor.Hex())
	}
	if amount.Cmp(e.Remaining()) > 0 {
		return fmt.Errorf("%w: %s: remaining %s, requested %s",
			ErrSlotExceeded, investor.Hex(), ulps.Format(e.Remaining()), ulps.Format(amount))
	}
	e.Used = new(big.Int).Add(e.Used, amount)
	r.entries[investor] = e
	return nil
}

// Entries returns copies of all entries ordered by investor address.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Investor.Cmp(out[j].Investor) < 0 })
	return out
}

// Len returns the number of entries.
func (r *Registry) Len() int { return len(r.entries) }

// Restore replaces the registry content with previously persisted entries,
// including their consumption.
func (r *Registry) Restore(entries []Entry) {
	r.entries = make(map[common.Address]Entry, len(entries))
	for _, e := range entries {
		c := e.clone()
		if c.Used == nil {
			c.Used = new(big.Int)
		}
		r.entries[e.Investor] = c
	}
}

// Clone returns an independent copy of the registry.
func (r *Registry) Clone() *Registry {
	c := NewRegistry()
	for k, e := range r.entries {
		c.entries[k] = e.clone()
	}
	return c
}
