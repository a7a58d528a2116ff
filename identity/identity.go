// Package identity provides the Identity/Compliance Gate consumed before a
// contribution or a claim is accepted.
package identity

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.etcd.io/bbolt"
)

// Gate answers yes/no compliance questions about an account.
type Gate interface {
	// IsVerified reports whether the account passed identity verification.
	IsVerified(addr common.Address) bool

	// IsFrozen reports whether the account is frozen by the compliance officer.
	IsFrozen(addr common.Address) bool
}

// Registry is a Gate maintained by an operator. It lives in memory unless
// opened with OpenRegistry, in which case every change is written through
// to bbolt before it takes effect.
type Registry struct {
	mu       sync.RWMutex
	verified map[common.Address]bool
	frozen   map[common.Address]bool
	db       *bbolt.DB
}

// Compile-time interface check.
var _ Gate = (*Registry)(nil)

// NewRegistry creates an empty in-memory registry.
func NewRegistry() *Registry {
	return &Registry{
		verified: make(map[common.Address]bool),
		frozen:   make(map[common.Address]bool),
	}
}

// Verify marks the given accounts as verified.
func (r *Registry) Verify(addrs ...common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range addrs {
		if err := r.set(a, true, r.frozen[a]); err != nil {
			return err
		}
	}
	return nil
}

// Revoke removes verification from an account.
func (r *Registry) Revoke(addr common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.set(addr, false, r.frozen[addr])
}

// Freeze marks an account as frozen.
func (r *Registry) Freeze(addr common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.set(addr, r.verified[addr], true)
}

// Unfreeze lifts a freeze.
func (r *Registry) Unfreeze(addr common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.set(addr, r.verified[addr], false)
}

// set persists and applies an account status. The caller holds r.mu.
func (r *Registry) set(addr common.Address, verified, frozen bool) error {
	if r.db != nil {
		if err := r.put(addr, verified, frozen); err != nil {
			return err
		}
	}
	if verified {
		r.verified[addr] = true
	} else {
		delete(r.verified, addr)
	}
	if frozen {
		r.frozen[addr] = true
	} else {
		delete(r.frozen, addr)
	}
	return nil
}

// IsVerified implements Gate.
func (r *Registry) IsVerified(addr common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.verified[addr]
}

// IsFrozen implements Gate.
func (r *Registry) IsFrozen(addr common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen[addr]
}
