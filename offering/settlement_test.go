package offering

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equityledger/libeto-go/rates"
	"github.com/equityledger/libeto-go/ulps"
)

// Scenario A: a single minimum ticket falls short of the token threshold,
// the offering refunds, and the second refund fails.
func TestRefund_MinimumNotReached(t *testing.T) {
	h := newHarness(t)
	h.toPublic()
	h.contribute(alice, 100)

	h.clk.Add(h.terms.PublicDuration)
	assert.Equal(t, Refund, h.c.CurrentPhase())

	eth, eur, err := h.c.Refund(alice)
	require.NoError(t, err)
	assert.Equal(t, "0", eth.String())
	assert.Equal(t, units(100), eur.String())
	assert.Equal(t, "1000000", h.eurBalance(alice))
	assert.Equal(t, "0", h.eurBalance(commitmentAddr))

	_, _, err = h.c.Refund(alice)
	assert.ErrorIs(t, err, ErrAlreadySettled)
	assert.Equal(t, "1000000", h.eurBalance(alice))

	tk, err := h.c.TicketFor(alice)
	require.NoError(t, err)
	assert.True(t, tk.Refunded)
	assert.False(t, tk.Claimed)

	_, err = h.c.Claim(alice)
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestRefund_Rules(t *testing.T) {
	h := newHarness(t)
	h.toPublic()
	h.contribute(alice, 100)

	_, _, err := h.c.Refund(alice)
	assert.ErrorIs(t, err, ErrWrongPhase, "refund only in Refund")

	h.clk.Add(h.terms.PublicDuration)
	_, _, err = h.c.Refund(bob)
	assert.ErrorIs(t, err, ErrNoTicket)
}

func TestRefund_MixedCurrencies(t *testing.T) {
	h := newHarness(t)
	h.toPublic()
	require.NoError(t, h.rates.SetRate(rates.ETH, rates.EUR, ulps.FromUnits(300), h.clk.Now()))

	_, err := h.c.Contribute(alice, ulps.MustParse("0.5"), rates.ETH)
	require.NoError(t, err)
	h.contribute(alice, 200)

	h.clk.Add(h.terms.PublicDuration)
	eth, eur, err := h.c.Refund(alice)
	require.NoError(t, err)
	assert.Equal(t, ulps.MustParse("0.5").String(), eth.String())
	assert.Equal(t, units(200), eur.String())
	assert.Equal(t, units(1000), h.ether.BalanceOf(alice).String())
	assert.Equal(t, "1000000", h.eurBalance(alice))
}

func TestRefund_MigratedGoesBackToLegacyWallet(t *testing.T) {
	h := newHarness(t)
	legacyAddr := common.HexToAddress("0x1c")
	sink := newFakeSink(legacyAddr)
	h.u.SetLegacyWallet(rates.EUR, sink)
	require.NoError(t, h.euro.Mint(legacyAddr, ulps.FromUnits(500)))

	h.toWhitelist()
	q, err := h.c.ContributeMigrated(legacyAddr, carol, ulps.FromUnits(400), rates.EUR)
	require.NoError(t, err)
	assert.Equal(t, units(500), q.Tokens.String(), "migrated price fraction 0.8 applies in Whitelist")
	h.contribute(carol, 100)

	_, err = h.c.ContributeMigrated(common.HexToAddress("0xbad"), carol, ulps.FromUnits(1), rates.EUR)
	assert.ErrorIs(t, err, ErrNoLegacyWallet)

	h.clk.Add(h.terms.WhitelistDuration + h.terms.PublicDuration)
	require.Equal(t, Refund, h.c.CurrentPhase())

	_, eur, err := h.c.Refund(carol)
	require.NoError(t, err)
	assert.Equal(t, units(500), eur.String())
	assert.Equal(t, units(400), sink.relocked[carol].String())
	assert.Equal(t, "500", h.eurBalance(legacyAddr))
	assert.Equal(t, "1000000", h.eurBalance(carol))
}

func TestRefund_RelockFailureRollsBack(t *testing.T) {
	h := newHarness(t)
	legacyAddr := common.HexToAddress("0x1c")
	sink := newFakeSink(legacyAddr)
	h.u.SetLegacyWallet(rates.EUR, sink)
	require.NoError(t, h.euro.Mint(legacyAddr, ulps.FromUnits(500)))

	h.toWhitelist()
	_, err := h.c.ContributeMigrated(legacyAddr, carol, ulps.FromUnits(400), rates.EUR)
	require.NoError(t, err)
	h.clk.Add(h.terms.WhitelistDuration + h.terms.PublicDuration)

	sink.failRelock = errors.New("wallet paused")
	_, _, err = h.c.Refund(carol)
	require.Error(t, err)
	assert.Equal(t, "400", h.eurBalance(commitmentAddr))
	assert.Equal(t, "100", h.eurBalance(legacyAddr))

	sink.failRelock = nil
	_, _, err = h.c.Refund(carol)
	require.NoError(t, err)
	assert.Equal(t, "500", h.eurBalance(legacyAddr))
}

// Scenario C: the nominee never confirms and signing times out.
func TestSigningTimeoutRefunds(t *testing.T) {
	h := newHarness(t)
	h.toSigning()

	sig, err := SignAgreement(h.companyKey, agreementURL)
	require.NoError(t, err)
	require.NoError(t, h.c.SignInvestmentAgreement(company, agreementURL, sig))

	h.clk.Add(h.terms.SigningDuration)
	h.requirePhase(Refund)

	nsig, err := SignAgreement(h.nomineeKey, agreementURL)
	require.NoError(t, err)
	err = h.c.ConfirmInvestmentAgreement(nominee, agreementURL, nsig)
	assert.ErrorIs(t, err, ErrWrongPhase)

	_, ok := h.c.StartOfPhase(Claim)
	assert.False(t, ok)

	for _, r := range h.c.RefundMany([]common.Address{alice, bob}) {
		assert.NoError(t, r.Err)
		assert.Equal(t, units(600), r.Eur.String())
	}
}

// Scenario D: a repeated investor in claimMany fails alone.
func TestClaimMany_IndependentEntries(t *testing.T) {
	h := newHarness(t)
	h.toClaim()

	tokens, err := h.c.Claim(alice)
	require.NoError(t, err)
	assert.Equal(t, units(600), tokens.String())

	results := h.c.ClaimMany([]common.Address{bob, alice, carol})
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, units(600), results[0].Tokens.String())
	assert.ErrorIs(t, results[1].Err, ErrAlreadySettled)
	assert.ErrorIs(t, results[2].Err, ErrNoTicket)

	assert.Equal(t, units(600), h.equity.BalanceOf(alice).String())
	assert.Equal(t, units(600), h.equity.BalanceOf(bob).String())
	assert.Equal(t, units(1200), h.equity.TotalSupply().String())
}

func TestClaim_Rules(t *testing.T) {
	h := newHarness(t)
	h.toSigning()
	_, err := h.c.Claim(alice)
	assert.ErrorIs(t, err, ErrWrongPhase)

	h.signAgreement()
	h.ids.Freeze(alice)
	_, err = h.c.Claim(alice)
	assert.ErrorIs(t, err, ErrAccountFrozen)
	assert.Equal(t, "0", h.equity.BalanceOf(alice).String())

	h.ids.Unfreeze(alice)
	_, err = h.c.Claim(alice)
	require.NoError(t, err)

	// A claimed ticket can never be refunded.
	tk, err := h.c.TicketFor(alice)
	require.NoError(t, err)
	assert.True(t, tk.Claimed)
	assert.False(t, tk.Refunded)
	_, _, err = h.c.Refund(alice)
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestPayout_Explicit(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.c.Payout(alice), ErrWrongPhase)

	h.toClaim()
	require.NoError(t, h.c.Payout(nominee))
	assert.Equal(t, Payout, h.c.CurrentPhase())

	// 1200 EUR raised, 3% fee.
	assert.Equal(t, "1164", h.eurBalance(nominee))
	assert.Equal(t, "36", h.eurBalance(platform))
	assert.Equal(t, "0", h.eurBalance(commitmentAddr))

	d := h.c.Disbursal()
	require.NotNil(t, d)
	assert.Equal(t, nominee, d.Nominee)
	assert.Equal(t, units(1164), d.NomineeEur.String())
	assert.Equal(t, "0", d.NomineeEth.String())

	assert.ErrorIs(t, h.c.Payout(nominee), ErrAlreadySettled)
	assert.Equal(t, "1164", h.eurBalance(nominee))

	_, err := h.c.Claim(bob)
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestPayout_RequiresPrivilegedCaller(t *testing.T) {
	h := newHarness(t)
	h.toClaim()

	for _, caller := range []common.Address{alice, common.HexToAddress("0xdead")} {
		assert.ErrorIs(t, h.c.Payout(caller), ErrUnauthorized)
	}
	assert.Equal(t, Claim, h.c.CurrentPhase())
	assert.Nil(t, h.c.Disbursal())
	assert.Equal(t, "1200", h.eurBalance(commitmentAddr))

	// The claim window is still open for everyone.
	tokens, err := h.c.Claim(alice)
	require.NoError(t, err)
	assert.Equal(t, units(600), tokens.String())
	_, err = h.c.Claim(bob)
	require.NoError(t, err)
	assert.Equal(t, units(600), h.equity.BalanceOf(alice).String())

	// Admins may end it early.
	require.NoError(t, h.c.Payout(admin))
	assert.Equal(t, Payout, h.c.CurrentPhase())
}

func TestPayout_ByDeadline(t *testing.T) {
	h := newHarness(t)
	h.toClaim()
	h.clk.Add(h.terms.ClaimDuration)

	// Any mutating call observes the deadline first.
	err := h.c.Payout(company)
	assert.ErrorIs(t, err, ErrAlreadySettled)
	assert.Equal(t, "1164", h.eurBalance(nominee))
}

func TestPayout_UsesCurrentNominee(t *testing.T) {
	h := newHarness(t)
	h.toClaim()

	rotated := common.HexToAddress("0xc9")
	h.u.SetNominee(rotated, h.nomineeKey.PubKey())
	require.NoError(t, h.c.Payout(company))
	assert.Equal(t, "1164", h.eurBalance(rotated))
	assert.Equal(t, "0", h.eurBalance(nominee))
}

func TestNoDoubleSettlement(t *testing.T) {
	h := newHarness(t)
	h.toClaim()

	for i := 0; i < 3; i++ {
		_, err := h.c.Claim(bob)
		if i == 0 {
			require.NoError(t, err)
		} else {
			assert.ErrorIs(t, err, ErrAlreadySettled)
		}
	}
	assert.Equal(t, units(600), h.equity.BalanceOf(bob).String())

	for _, tk := range h.c.Tickets() {
		assert.False(t, tk.Claimed && tk.Refunded)
	}
}
