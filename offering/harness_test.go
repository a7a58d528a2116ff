package offering

import (
	"math/big"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/equityledger/libeto-go/identity"
	"github.com/equityledger/libeto-go/rates"
	"github.com/equityledger/libeto-go/terms"
	"github.com/equityledger/libeto-go/token"
	"github.com/equityledger/libeto-go/ulps"
	"github.com/equityledger/libeto-go/whitelist"
)

var (
	commitmentAddr = common.HexToAddress("0xc0")
	company        = common.HexToAddress("0xc1")
	nominee        = common.HexToAddress("0xc2")
	platform       = common.HexToAddress("0xc3")
	admin          = common.HexToAddress("0xad")

	alice = common.HexToAddress("0xa1")
	bob   = common.HexToAddress("0xb2")
	carol = common.HexToAddress("0xc4")

	baseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
)

const agreementURL = "ipfs:QmInvestmentAgreement"

func testTerms() *terms.Terms {
	return &terms.Terms{
		MinStartLeadTime:     24 * time.Hour,
		WhitelistDuration:    72 * time.Hour,
		PublicDuration:       168 * time.Hour,
		SigningDuration:      336 * time.Hour,
		ClaimDuration:        240 * time.Hour,
		MinTicket:            ulps.FromUnits(100),
		MaxTicket:            ulps.FromUnits(20000),
		MaxInvestmentEurUlps: ulps.FromUnits(1000000),
		MinNumberOfTokens:    ulps.FromUnits(1000),
		MaxNumberOfTokens:    ulps.FromUnits(2000000),
		TokenPrice:           ulps.FromUnits(1),
		PublicPriceFrac:      ulps.One,
		MigratedPriceFrac:    ulps.MustParse("0.8"),
		MaxRateAge:           time.Hour,
		PlatformFeeFrac:      ulps.MustParse("0.03"),
	}
}

type harness struct {
	t     *testing.T
	clk   *clock.Mock
	terms *terms.Terms
	store Store
	mem   *MemStore
	u     *Services
	ids   *identity.Registry
	roles *Roles
	rates *rates.FixedProvider

	equity, euro, ether *token.Ledger

	companyKey, nomineeKey *ec.PrivateKey

	c *Commitment
}

type harnessOpt func(h *harness)

func withTerms(fn func(*terms.Terms)) harnessOpt {
	return func(h *harness) { fn(h.terms) }
}

func withStore(s Store) harnessOpt {
	return func(h *harness) { h.store = s }
}

func newHarness(t *testing.T, opts ...harnessOpt) *harness {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(baseTime)

	h := &harness{
		t:      t,
		clk:    clk,
		terms:  testTerms(),
		ids:    identity.NewRegistry(),
		roles:  NewRoles(),
		rates:  rates.NewFixedProvider(),
		equity: token.NewLedger("EQT", clk),
		euro:   token.NewLedger("EUR-T", clk),
		ether:  token.NewLedger("ETH-T", clk),
	}
	h.mem = NewMemStore()
	h.store = h.mem
	for _, o := range opts {
		o(h)
	}

	var err error
	h.companyKey, err = ec.NewPrivateKey()
	require.NoError(t, err)
	h.nomineeKey, err = ec.NewPrivateKey()
	require.NoError(t, err)

	h.ids.Verify(alice, bob, carol)
	h.roles.Grant(RoleAdmin, admin)
	h.roles.Grant(RoleWhitelistAdmin, admin)

	h.u = NewServices(ServicesConfig{
		Identity:       h.ids,
		Rates:          h.rates,
		Access:         h.roles,
		EquityToken:    h.equity,
		EuroToken:      h.euro,
		EtherToken:     h.ether,
		Company:        company,
		Nominee:        nominee,
		PlatformWallet: platform,
		CompanyKey:     h.companyKey.PubKey(),
		NomineeKey:     h.nomineeKey.PubKey(),
	})

	for _, inv := range []common.Address{alice, bob, carol} {
		require.NoError(t, h.euro.Mint(inv, ulps.FromUnits(1000000)))
		require.NoError(t, h.ether.Mint(inv, ulps.FromUnits(1000)))
	}

	h.c = h.open()
	return h
}

// open builds a Commitment over the harness store.
func (h *harness) open() *Commitment {
	h.t.Helper()
	c, err := New(Config{
		Address:  commitmentAddr,
		Terms:    h.terms,
		Universe: h.u,
		Store:    h.store,
		Clock:    h.clk,
	})
	require.NoError(h.t, err)
	return c
}

// schedule sets the offering at the earliest allowed date.
func (h *harness) schedule() time.Time {
	h.t.Helper()
	start := h.clk.Now().Add(h.terms.MinStartLeadTime)
	require.NoError(h.t, h.c.SetStartDate(company, start))
	return start
}

// toWhitelist schedules the offering and advances the clock to its start.
func (h *harness) toWhitelist() {
	h.t.Helper()
	start := h.schedule()
	h.clk.Set(start)
	h.requirePhase(Whitelist)
}

func (h *harness) toPublic() {
	h.t.Helper()
	h.toWhitelist()
	h.clk.Add(h.terms.WhitelistDuration)
	h.requirePhase(Public)
}

// toSigning opens the offering and sells enough tokens to succeed.
func (h *harness) toSigning() {
	h.t.Helper()
	h.toPublic()
	h.contribute(alice, 600)
	h.contribute(bob, 600)
	h.clk.Add(h.terms.PublicDuration)
	h.requirePhase(Signing)
}

func (h *harness) toClaim() {
	h.t.Helper()
	h.toSigning()
	h.signAgreement()
	h.requirePhase(Claim)
}

func (h *harness) signAgreement() {
	h.t.Helper()
	sig, err := SignAgreement(h.companyKey, agreementURL)
	require.NoError(h.t, err)
	require.NoError(h.t, h.c.SignInvestmentAgreement(company, agreementURL, sig))
	sig, err = SignAgreement(h.nomineeKey, agreementURL)
	require.NoError(h.t, err)
	require.NoError(h.t, h.c.ConfirmInvestmentAgreement(nominee, agreementURL, sig))
}

func (h *harness) contribute(investor common.Address, eur int64) {
	h.t.Helper()
	_, err := h.c.Contribute(investor, ulps.FromUnits(eur), rates.EUR)
	require.NoError(h.t, err)
}

func (h *harness) whitelist(entries ...whitelist.Entry) {
	h.t.Helper()
	_, err := h.c.AddWhitelisted(admin, entries)
	require.NoError(h.t, err)
}

func (h *harness) requirePhase(p Phase) {
	h.t.Helper()
	got, err := h.c.Tick()
	require.NoError(h.t, err)
	require.Equal(h.t, p, got)
}

func (h *harness) eurBalance(addr common.Address) string {
	return ulps.Format(h.euro.BalanceOf(addr))
}

func slot(investor common.Address, eur int64, frac string) whitelist.Entry {
	return whitelist.Entry{Investor: investor, FixedSlot: ulps.FromUnits(eur), PriceFrac: ulps.MustParse(frac)}
}

func units(n int64) string { return ulps.FromUnits(n).String() }

// fakeSink is a RefundSink that records relocked amounts.
type fakeSink struct {
	addr       common.Address
	relocked   map[common.Address]*big.Int
	failRelock error
}

func newFakeSink(addr common.Address) *fakeSink {
	return &fakeSink{addr: addr, relocked: make(map[common.Address]*big.Int)}
}

func (s *fakeSink) Address() common.Address { return s.addr }

func (s *fakeSink) Relock(investor common.Address, amount *big.Int) error {
	if s.failRelock != nil {
		return s.failRelock
	}
	if s.relocked[investor] == nil {
		s.relocked[investor] = new(big.Int)
	}
	s.relocked[investor].Add(s.relocked[investor], amount)
	return nil
}

func (s *fakeSink) RevertRelock(investor common.Address, amount *big.Int) error {
	s.relocked[investor].Sub(s.relocked[investor], amount)
	return nil
}
