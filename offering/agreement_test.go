package offering

import (
	"testing"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgreement_NomineeBeforeCompany(t *testing.T) {
	h := newHarness(t)
	h.toSigning()

	sig, err := SignAgreement(h.nomineeKey, agreementURL)
	require.NoError(t, err)
	err = h.c.ConfirmInvestmentAgreement(nominee, agreementURL, sig)
	assert.ErrorIs(t, err, ErrMissingSignature)
	assert.Equal(t, Signing, h.c.CurrentPhase())
}

func TestAgreement_Rules(t *testing.T) {
	h := newHarness(t)

	csig, err := SignAgreement(h.companyKey, agreementURL)
	require.NoError(t, err)
	assert.ErrorIs(t, h.c.SignInvestmentAgreement(company, agreementURL, csig), ErrWrongPhase)

	h.toSigning()
	assert.ErrorIs(t, h.c.SignInvestmentAgreement(alice, agreementURL, csig), ErrUnauthorized)

	// Signed by the wrong key.
	nsig, err := SignAgreement(h.nomineeKey, agreementURL)
	require.NoError(t, err)
	assert.ErrorIs(t, h.c.SignInvestmentAgreement(company, agreementURL, nsig), ErrInvalidSignature)
	assert.ErrorIs(t, h.c.SignInvestmentAgreement(company, agreementURL, []byte{0x30, 0x01}), ErrInvalidSignature)

	require.NoError(t, h.c.SignInvestmentAgreement(company, agreementURL, csig))
	// Repeating is a no-op; a different document is rejected.
	require.NoError(t, h.c.SignInvestmentAgreement(company, agreementURL, csig))
	other, err := SignAgreement(h.companyKey, "ipfs:QmOther")
	require.NoError(t, err)
	assert.ErrorIs(t, h.c.SignInvestmentAgreement(company, "ipfs:QmOther", other), ErrAgreementMismatch)

	otherN, err := SignAgreement(h.nomineeKey, "ipfs:QmOther")
	require.NoError(t, err)
	assert.ErrorIs(t, h.c.ConfirmInvestmentAgreement(nominee, "ipfs:QmOther", otherN), ErrAgreementMismatch)
	assert.ErrorIs(t, h.c.ConfirmInvestmentAgreement(company, agreementURL, nsig), ErrUnauthorized)

	require.NoError(t, h.c.ConfirmInvestmentAgreement(nominee, agreementURL, nsig))
	assert.Equal(t, Claim, h.c.CurrentPhase())
	require.NoError(t, h.c.ConfirmInvestmentAgreement(nominee, agreementURL, nsig), "repeat is a no-op")

	a := h.c.Agreement()
	assert.True(t, a.Complete())
	assert.Equal(t, agreementURL, a.NomineeURL)
	claimAt, ok := h.c.StartOfPhase(Claim)
	require.True(t, ok)
	assert.Equal(t, a.NomineeSignedAt, claimAt)

	var signed int
	events, err := h.c.Events()
	require.NoError(t, err)
	for _, ev := range events {
		if ev.Kind == EventCompanySigned || ev.Kind == EventNomineeConfirmed {
			signed++
		}
	}
	assert.Equal(t, 2, signed)
}

func TestAgreement_KeyRotation(t *testing.T) {
	h := newHarness(t)
	h.toSigning()
	csig, err := SignAgreement(h.companyKey, agreementURL)
	require.NoError(t, err)
	require.NoError(t, h.c.SignInvestmentAgreement(company, agreementURL, csig))

	rotated, err := ec.NewPrivateKey()
	require.NoError(t, err)
	h.u.SetNominee(nominee, rotated.PubKey())

	old, err := SignAgreement(h.nomineeKey, agreementURL)
	require.NoError(t, err)
	assert.ErrorIs(t, h.c.ConfirmInvestmentAgreement(nominee, agreementURL, old), ErrInvalidSignature)

	fresh, err := SignAgreement(rotated, agreementURL)
	require.NoError(t, err)
	require.NoError(t, h.c.ConfirmInvestmentAgreement(nominee, agreementURL, fresh))
}
