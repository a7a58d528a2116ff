package offering

import (
	"math/big"
	"sync"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/ethereum/go-ethereum/common"

	"github.com/equityledger/libeto-go/identity"
	"github.com/equityledger/libeto-go/rates"
	"github.com/equityledger/libeto-go/token"
)

// Role is a permission granted by the access policy.
type Role string

const (
	// RoleAdmin may schedule the offering and end the claim window early.
	RoleAdmin Role = "admin"
	// RoleWhitelistAdmin may add whitelist entries.
	RoleWhitelistAdmin Role = "whitelist_admin"
)

// AccessPolicy answers role checks.
type AccessPolicy interface {
	HasRole(addr common.Address, role Role) bool
}

// RefundSink is a legacy wallet that supplied migrated funds and takes them
// back on refund.
type RefundSink interface {
	// Address is the wallet's account on the token ledgers.
	Address() common.Address
	// Relock credits a refunded amount back to the investor's locked balance.
	Relock(investor common.Address, amount *big.Int) error
	// RevertRelock undoes a Relock when the surrounding operation fails.
	RevertRelock(investor common.Address, amount *big.Int) error
}

// Universe resolves every collaborator of a Commitment. It is consulted on
// each access, so rotating a collaborator takes effect on the next call.
type Universe interface {
	Identity() identity.Gate
	Rates() rates.Provider
	Access() AccessPolicy

	EquityToken() token.Token
	EuroToken() token.Token
	EtherToken() token.Token

	Company() common.Address
	Nominee() common.Address
	PlatformWallet() common.Address

	// CompanyKey and NomineeKey verify investment agreement signatures.
	CompanyKey() *ec.PublicKey
	NomineeKey() *ec.PublicKey

	// LegacyWallet returns the migration wallet for cur, or nil.
	LegacyWallet(cur rates.Currency) RefundSink
}

// currencyToken resolves the payment token for cur.
func currencyToken(u Universe, cur rates.Currency) token.Token {
	if cur == rates.ETH {
		return u.EtherToken()
	}
	return u.EuroToken()
}

// Roles is an in-memory AccessPolicy.
type Roles struct {
	mu    sync.RWMutex
	roles map[Role]map[common.Address]bool
}

// Compile-time interface check.
var _ AccessPolicy = (*Roles)(nil)

// NewRoles creates an empty policy.
func NewRoles() *Roles {
	return &Roles{roles: make(map[Role]map[common.Address]bool)}
}

// Grant gives role to addr.
func (r *Roles) Grant(role Role, addr common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.roles[role] == nil {
		r.roles[role] = make(map[common.Address]bool)
	}
	r.roles[role][addr] = true
}

// Revoke removes role from addr.
func (r *Roles) Revoke(role Role, addr common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.roles[role], addr)
}

// HasRole implements AccessPolicy.
func (r *Roles) HasRole(addr common.Address, role Role) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.roles[role][addr]
}

// Services is a mutable Universe. Setters may be called at any time; the
// Commitment observes the new value on its next operation.
type Services struct {
	mu sync.RWMutex

	identity identity.Gate
	rates    rates.Provider
	access   AccessPolicy

	equity, euro, ether token.Token

	company, nominee, platform common.Address
	companyKey, nomineeKey     *ec.PublicKey

	legacy map[rates.Currency]RefundSink
}

// Compile-time interface check.
var _ Universe = (*Services)(nil)

// ServicesConfig lists the initial collaborators of a Services universe.
type ServicesConfig struct {
	Identity identity.Gate
	Rates    rates.Provider
	Access   AccessPolicy

	EquityToken token.Token
	EuroToken   token.Token
	EtherToken  token.Token

	Company        common.Address
	Nominee        common.Address
	PlatformWallet common.Address
	CompanyKey     *ec.PublicKey
	NomineeKey     *ec.PublicKey
}

// NewServices creates a universe from cfg.
func NewServices(cfg ServicesConfig) *Services {
	return &Services{
		identity:   cfg.Identity,
		rates:      cfg.Rates,
		access:     cfg.Access,
		equity:     cfg.EquityToken,
		euro:       cfg.EuroToken,
		ether:      cfg.EtherToken,
		company:    cfg.Company,
		nominee:    cfg.Nominee,
		platform:   cfg.PlatformWallet,
		companyKey: cfg.CompanyKey,
		nomineeKey: cfg.NomineeKey,
		legacy:     make(map[rates.Currency]RefundSink),
	}
}

// Identity implements Universe.
func (s *Services) Identity() identity.Gate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// Rates implements Universe.
func (s *Services) Rates() rates.Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rates
}

// Access implements Universe.
func (s *Services) Access() AccessPolicy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access
}

// EquityToken implements Universe.
func (s *Services) EquityToken() token.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.equity
}

// EuroToken implements Universe.
func (s *Services) EuroToken() token.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.euro
}

// EtherToken implements Universe.
func (s *Services) EtherToken() token.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ether
}

// Company implements Universe.
func (s *Services) Company() common.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.company
}

// Nominee implements Universe.
func (s *Services) Nominee() common.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nominee
}

// PlatformWallet implements Universe.
func (s *Services) PlatformWallet() common.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.platform
}

// CompanyKey implements Universe.
func (s *Services) CompanyKey() *ec.PublicKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.companyKey
}

// NomineeKey implements Universe.
func (s *Services) NomineeKey() *ec.PublicKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nomineeKey
}

// LegacyWallet implements Universe.
func (s *Services) LegacyWallet(cur rates.Currency) RefundSink {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.legacy[cur]
}

// SetIdentity replaces the identity gate.
func (s *Services) SetIdentity(g identity.Gate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = g
}

// SetRates replaces the exchange-rate provider.
func (s *Services) SetRates(p rates.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates = p
}

// SetNominee replaces the nominee account and signing key.
func (s *Services) SetNominee(addr common.Address, key *ec.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nominee = addr
	s.nomineeKey = key
}

// SetPlatformWallet replaces the fee recipient.
func (s *Services) SetPlatformWallet(addr common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.platform = addr
}

// SetLegacyWallet registers the migration wallet for cur.
func (s *Services) SetLegacyWallet(cur rates.Currency, w RefundSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.legacy[cur] = w
}
