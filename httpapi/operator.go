package httpapi

import (
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/equityledger/libeto-go/identity"
	"github.com/equityledger/libeto-go/legacy"
	"github.com/equityledger/libeto-go/offering"
	"github.com/equityledger/libeto-go/rates"
	"github.com/equityledger/libeto-go/token"
	"github.com/equityledger/libeto-go/ulps"
)

// Operator lists the services around an offering that are driven over HTTP
// rather than by the offering itself. Nil fields leave their routes out.
type Operator struct {
	// Access authorizes deposits and identity changes: the caller must
	// hold offering.RoleAdmin.
	Access offering.AccessPolicy

	// Tokens are the payment tokens that deposits mint into.
	Tokens map[rates.Currency]token.Token

	// Registry is the identity registry maintained under /identity.
	Registry *identity.Registry

	// Wallets are the legacy lock wallets served under /legacy/{currency}.
	Wallets map[rates.Currency]*legacy.Wallet
}

// WithOperator serves the operator routes:
//
//	POST /deposits                   mint payment tokens to an account
//	GET  /balances/{account}         payment token balances
//	POST /identity                   verify, revoke, freeze or unfreeze accounts
//	POST /legacy/{currency}/lock     lock an investor's funds
//	POST /legacy/{currency}/migrate  migrate locked funds into the offering
//	GET  /legacy/{currency}/{investor}
func WithOperator(op Operator) Option {
	return func(s *Server) { s.op = &op }
}

func (s *Server) operatorRoutes(r chi.Router) {
	op := s.op
	if op.Access != nil && len(op.Tokens) > 0 {
		r.Post("/deposits", s.handleDeposit)
	}
	if len(op.Tokens) > 0 {
		r.Get("/balances/{account}", s.handleBalances)
	}
	if op.Access != nil && op.Registry != nil {
		r.Post("/identity", s.handleIdentity)
	}
	if len(op.Wallets) > 0 {
		r.Route("/legacy/{currency}", func(r chi.Router) {
			r.Post("/lock", s.handleLock)
			r.Post("/migrate", s.handleMigrate)
			r.Get("/{investor}", s.handleLocked)
		})
	}
}

// authorize checks that caller holds the admin role.
func (s *Server) authorize(caller string) (common.Address, error) {
	addr, err := parseAddress(caller)
	if err != nil {
		return addr, err
	}
	if !s.op.Access.HasRole(addr, offering.RoleAdmin) {
		return addr, fmt.Errorf("%w: %s is not an operator", offering.ErrUnauthorized, addr.Hex())
	}
	return addr, nil
}

func (s *Server) paymentToken(name string) (rates.Currency, token.Token, error) {
	cur, err := rates.ParseCurrency(name)
	if err != nil {
		return "", nil, err
	}
	tok, ok := s.op.Tokens[cur]
	if !ok {
		return "", nil, fmt.Errorf("%w: no token for %s", rates.ErrUnsupportedCurrency, cur)
	}
	return cur, tok, nil
}

type depositRequest struct {
	Caller   string `json:"caller"`
	Account  string `json:"account"`
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

type balanceView struct {
	Account  string `json:"account"`
	Currency string `json:"currency"`
	Balance  string `json:"balance"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	caller, err := s.authorize(req.Caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	account, err := parseAddress(req.Account)
	if err != nil {
		s.writeError(w, err)
		return
	}
	amount, err := ulps.Parse(req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	cur, tok, err := s.paymentToken(req.Currency)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := tok.Mint(account, amount); err != nil {
		s.writeError(w, err)
		return
	}
	s.log.WithFields(logrus.Fields{
		"caller":   caller.Hex(),
		"account":  account.Hex(),
		"currency": cur,
		"amount":   ulps.Format(amount),
	}).Info("deposit minted")
	writeJSON(w, http.StatusCreated, balanceView{
		Account:  account.Hex(),
		Currency: string(cur),
		Balance:  ulps.Format(tok.BalanceOf(account)),
	})
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	account, err := parseAddress(chi.URLParam(r, "account"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make(map[string]string, len(s.op.Tokens))
	for cur, tok := range s.op.Tokens {
		out[string(cur)] = ulps.Format(tok.BalanceOf(account))
	}
	writeJSON(w, http.StatusOK, out)
}

type identityRequest struct {
	Caller   string   `json:"caller"`
	Action   string   `json:"action"` // verify, revoke, freeze or unfreeze
	Accounts []string `json:"accounts"`
}

type identityView struct {
	Account  string `json:"account"`
	Verified bool   `json:"verified"`
	Frozen   bool   `json:"frozen"`
}

func (s *Server) handleIdentity(w http.ResponseWriter, r *http.Request) {
	var req identityRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	caller, err := s.authorize(req.Caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	reg := s.op.Registry
	var apply func(common.Address) error
	switch req.Action {
	case "verify":
		apply = func(a common.Address) error { return reg.Verify(a) }
	case "revoke":
		apply = reg.Revoke
	case "freeze":
		apply = reg.Freeze
	case "unfreeze":
		apply = reg.Unfreeze
	default:
		s.writeError(w, fmt.Errorf("%w: unknown action %q", ErrBadRequest, req.Action))
		return
	}

	accounts := make([]common.Address, len(req.Accounts))
	for i, a := range req.Accounts {
		if accounts[i], err = parseAddress(a); err != nil {
			s.writeError(w, err)
			return
		}
	}
	out := make([]identityView, len(accounts))
	for i, a := range accounts {
		if err := apply(a); err != nil {
			s.writeError(w, err)
			return
		}
		out[i] = identityView{Account: a.Hex(), Verified: reg.IsVerified(a), Frozen: reg.IsFrozen(a)}
	}
	s.log.WithFields(logrus.Fields{
		"caller":   caller.Hex(),
		"action":   req.Action,
		"accounts": len(accounts),
	}).Info("identity registry updated")
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) wallet(r *http.Request) (*legacy.Wallet, error) {
	cur, err := rates.ParseCurrency(chi.URLParam(r, "currency"))
	if err != nil {
		return nil, err
	}
	wl, ok := s.op.Wallets[cur]
	if !ok {
		return nil, fmt.Errorf("%w: %s", offering.ErrNoLegacyWallet, cur)
	}
	return wl, nil
}

type lockRequest struct {
	Investor string `json:"investor"`
	Amount   string `json:"amount,omitempty"`
}

type lockedView struct {
	Investor string `json:"investor"`
	Currency string `json:"currency"`
	Locked   string `json:"locked"`
	Migrated bool   `json:"migrated"`
}

func newLockedView(wl *legacy.Wallet, investor common.Address) lockedView {
	return lockedView{
		Investor: investor.Hex(),
		Currency: string(wl.Currency()),
		Locked:   ulps.Format(wl.LockedOf(investor)),
		Migrated: wl.Migrated(investor),
	}
}

func (s *Server) decodeLock(r *http.Request) (*legacy.Wallet, common.Address, lockRequest, error) {
	var req lockRequest
	wl, err := s.wallet(r)
	if err != nil {
		return nil, common.Address{}, req, err
	}
	if err := decode(r, &req); err != nil {
		return nil, common.Address{}, req, err
	}
	investor, err := parseAddress(req.Investor)
	return wl, investor, req, err
}

func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	wl, investor, req, err := s.decodeLock(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	amount, err := ulps.Parse(req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := wl.Lock(investor, amount); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newLockedView(wl, investor))
}

func (s *Server) handleMigrate(w http.ResponseWriter, r *http.Request) {
	wl, investor, _, err := s.decodeLock(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	q, err := wl.Migrate(investor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newQuoteView(q))
}

func (s *Server) handleLocked(w http.ResponseWriter, r *http.Request) {
	wl, err := s.wallet(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	investor, err := parseAddress(chi.URLParam(r, "investor"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newLockedView(wl, investor))
}
