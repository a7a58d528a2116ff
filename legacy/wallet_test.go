package legacy

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equityledger/libeto-go/identity"
	"github.com/equityledger/libeto-go/offering"
	"github.com/equityledger/libeto-go/pricing"
	"github.com/equityledger/libeto-go/rates"
	"github.com/equityledger/libeto-go/terms"
	"github.com/equityledger/libeto-go/token"
	"github.com/equityledger/libeto-go/ulps"
)

var (
	walletAddr = common.HexToAddress("0x1c")
	alice      = common.HexToAddress("0xa1")
	bob        = common.HexToAddress("0xb2")
)

type stubTarget struct {
	err   error
	calls int
	got   *big.Int
}

func (s *stubTarget) ContributeMigrated(wallet, investor common.Address, amount *big.Int, cur rates.Currency) (*pricing.Quote, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	s.got = new(big.Int).Set(amount)
	return &pricing.Quote{Investor: investor, Amount: amount, Currency: cur}, nil
}

func newTestWallet(t *testing.T) (*Wallet, *token.Ledger) {
	t.Helper()
	euro := token.NewLedger("EUR-T", clock.NewMock())
	require.NoError(t, euro.Mint(alice, ulps.FromUnits(5000)))
	return NewWallet(walletAddr, rates.EUR, euro, nil), euro
}

// --- Lock ---

func TestLock(t *testing.T) {
	w, euro := newTestWallet(t)

	require.NoError(t, w.Lock(alice, ulps.FromUnits(1000)))
	require.NoError(t, w.Lock(alice, ulps.FromUnits(500)))

	assert.Equal(t, ulps.FromUnits(1500).String(), w.LockedOf(alice).String())
	assert.Equal(t, ulps.FromUnits(1500).String(), euro.BalanceOf(walletAddr).String())
	assert.Equal(t, ulps.FromUnits(3500).String(), euro.BalanceOf(alice).String())
}

func TestLock_Errors(t *testing.T) {
	w, _ := newTestWallet(t)

	assert.ErrorIs(t, w.Lock(alice, nil), ErrInvalidAmount)
	assert.ErrorIs(t, w.Lock(alice, big.NewInt(0)), ErrInvalidAmount)
	assert.ErrorIs(t, w.Lock(bob, ulps.FromUnits(1)), token.ErrInsufficientBalance)
	assert.Equal(t, "0", w.LockedOf(bob).String())
}

// --- Migrate ---

func TestMigrate(t *testing.T) {
	w, _ := newTestWallet(t)
	require.NoError(t, w.Lock(alice, ulps.FromUnits(1000)))
	target := &stubTarget{}
	w.SetTarget(target)

	q, err := w.Migrate(alice)
	require.NoError(t, err)
	assert.Equal(t, alice, q.Investor)
	assert.Equal(t, ulps.FromUnits(1000).String(), target.got.String())
	assert.Equal(t, "0", w.LockedOf(alice).String())
	assert.True(t, w.Migrated(alice))

	_, err = w.Migrate(alice)
	assert.ErrorIs(t, err, ErrAlreadyMigrated)
	assert.Equal(t, 1, target.calls)
}

func TestMigrate_NoTarget(t *testing.T) {
	w, _ := newTestWallet(t)
	require.NoError(t, w.Lock(alice, ulps.FromUnits(1000)))

	_, err := w.Migrate(alice)
	assert.ErrorIs(t, err, ErrNoMigrationTarget)
}

func TestMigrate_NothingLocked(t *testing.T) {
	w, _ := newTestWallet(t)
	w.SetTarget(&stubTarget{})

	_, err := w.Migrate(bob)
	assert.ErrorIs(t, err, ErrNothingLocked)
}

func TestMigrate_RejectedKeepsBalance(t *testing.T) {
	w, _ := newTestWallet(t)
	require.NoError(t, w.Lock(alice, ulps.FromUnits(1000)))
	rejection := errors.New("closed")
	target := &stubTarget{err: rejection}
	w.SetTarget(target)

	_, err := w.Migrate(alice)
	assert.ErrorIs(t, err, rejection)
	assert.Equal(t, ulps.FromUnits(1000).String(), w.LockedOf(alice).String())
	assert.False(t, w.Migrated(alice))

	target.err = nil
	_, err = w.Migrate(alice)
	require.NoError(t, err)
	assert.Equal(t, 2, target.calls)
}

// --- Relock / Unlock ---

func TestRelock(t *testing.T) {
	w, _ := newTestWallet(t)

	require.NoError(t, w.Relock(alice, ulps.FromUnits(300)))
	assert.Equal(t, ulps.FromUnits(300).String(), w.LockedOf(alice).String())

	require.NoError(t, w.RevertRelock(alice, ulps.FromUnits(300)))
	assert.Equal(t, "0", w.LockedOf(alice).String())

	assert.Error(t, w.RevertRelock(alice, ulps.FromUnits(1)))
	assert.ErrorIs(t, w.Relock(alice, nil), ErrInvalidAmount)
}

func TestUnlock(t *testing.T) {
	w, euro := newTestWallet(t)
	require.NoError(t, w.Lock(alice, ulps.FromUnits(1000)))

	amt, err := w.Unlock(alice)
	require.NoError(t, err)
	assert.Equal(t, ulps.FromUnits(1000).String(), amt.String())
	assert.Equal(t, ulps.FromUnits(5000).String(), euro.BalanceOf(alice).String())

	_, err = w.Unlock(alice)
	assert.ErrorIs(t, err, ErrNothingLocked)
}

// --- Integration with an offering ---

func TestMigrateIntoOffering_RefundRelocks(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	company := common.HexToAddress("0xc1")
	nominee := common.HexToAddress("0xc2")
	commitment := common.HexToAddress("0xc0")

	equity := token.NewLedger("EQT", clk)
	euro := token.NewLedger("EUR-T", clk)
	ether := token.NewLedger("ETH-T", clk)
	require.NoError(t, euro.Mint(alice, ulps.FromUnits(5000)))

	ids := identity.NewRegistry()
	ids.Verify(alice)

	companyKey, err := ec.NewPrivateKey()
	require.NoError(t, err)
	nomineeKey, err := ec.NewPrivateKey()
	require.NoError(t, err)

	u := offering.NewServices(offering.ServicesConfig{
		Identity:       ids,
		Rates:          rates.NewFixedProvider(),
		Access:         offering.NewRoles(),
		EquityToken:    equity,
		EuroToken:      euro,
		EtherToken:     ether,
		Company:        company,
		Nominee:        nominee,
		PlatformWallet: common.HexToAddress("0xc3"),
		CompanyKey:     companyKey.PubKey(),
		NomineeKey:     nomineeKey.PubKey(),
	})

	tm := &terms.Terms{
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
	c, err := offering.New(offering.Config{
		Address:  commitment,
		Terms:    tm,
		Universe: u,
		Store:    offering.NewMemStore(),
		Clock:    clk,
	})
	require.NoError(t, err)

	w := NewWallet(walletAddr, rates.EUR, euro, nil)
	u.SetLegacyWallet(rates.EUR, w)
	w.SetTarget(c)
	require.NoError(t, w.Lock(alice, ulps.FromUnits(1000)))

	start := clk.Now().Add(tm.MinStartLeadTime)
	require.NoError(t, c.SetStartDate(company, start))
	clk.Set(start)

	q, err := w.Migrate(alice)
	require.NoError(t, err)
	// Whitelist-phase migration prices at the migrated fraction.
	assert.Equal(t, ulps.FromUnits(1250).String(), q.Tokens.String())
	assert.Equal(t, ulps.FromUnits(1000).String(), euro.BalanceOf(commitment).String())

	ticket, err := c.TicketFor(alice)
	require.NoError(t, err)
	assert.True(t, ticket.Migrated())

	// No agreement is signed, so the offering times out into Refund.
	clk.Add(tm.WhitelistDuration + tm.PublicDuration + tm.SigningDuration)
	phase, err := c.Tick()
	require.NoError(t, err)
	require.Equal(t, offering.Refund, phase)

	_, eur, err := c.Refund(alice)
	require.NoError(t, err)
	assert.Equal(t, ulps.FromUnits(1000).String(), eur.String())
	assert.Equal(t, ulps.FromUnits(1000).String(), w.LockedOf(alice).String())
	assert.Equal(t, ulps.FromUnits(1000).String(), euro.BalanceOf(walletAddr).String())
	assert.Equal(t, "0", euro.BalanceOf(commitment).String())

	unlocked, err := w.Unlock(alice)
	require.NoError(t, err)
	assert.Equal(t, ulps.FromUnits(1000).String(), unlocked.String())
	assert.Equal(t, ulps.FromUnits(5000).String(), euro.BalanceOf(alice).String())
}
