package offering

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/equityledger/libeto-go/whitelist"
)

// Batch is everything one operation changes. Commit applies it atomically.
type Batch struct {
	State     *State
	Tickets   []*Ticket
	Whitelist []whitelist.Entry // full registry content; nil when unchanged
	Events    []Event
}

// Store persists the offering. A Load on an empty store returns a Batch with
// a nil State.
type Store interface {
	Load() (*Batch, error)
	Commit(b *Batch) error
	Events() ([]Event, error)
	Close() error
}

// MemStore is a Store that keeps everything in memory.
type MemStore struct {
	mu        sync.Mutex
	closed    bool
	state     *State
	tickets   map[common.Address]*Ticket
	whitelist []whitelist.Entry
	events    []Event

	// FailNext makes the next Commit return the given error, for tests.
	FailNext error
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{tickets: make(map[common.Address]*Ticket)}
}

// Load returns copies of the stored offering.
func (s *MemStore) Load() (*Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	b := &Batch{}
	if s.state != nil {
		b.State = s.state.Clone()
	}
	for _, t := range s.tickets {
		b.Tickets = append(b.Tickets, t.Clone())
	}
	b.Whitelist = append([]whitelist.Entry(nil), s.whitelist...)
	return b, nil
}

// Commit applies b.
func (s *MemStore) Commit(b *Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if err := s.FailNext; err != nil {
		s.FailNext = nil
		return err
	}
	if b.State != nil {
		s.state = b.State.Clone()
	}
	for _, t := range b.Tickets {
		s.tickets[t.Investor] = t.Clone()
	}
	if b.Whitelist != nil {
		s.whitelist = append([]whitelist.Entry(nil), b.Whitelist...)
	}
	s.events = append(s.events, b.Events...)
	return nil
}

// Events returns the journal in sequence order.
func (s *MemStore) Events() ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	return append([]Event(nil), s.events...), nil
}

// Close marks the store closed.
func (s *MemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
