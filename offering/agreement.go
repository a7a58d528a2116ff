package offering

import (
	"crypto/sha256"
	"fmt"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// AgreementHash returns the digest both parties sign: sha256 of the
// agreement URL.
func AgreementHash(url string) []byte {
	h := sha256.Sum256([]byte(url))
	return h[:]
}

// SignAgreement produces the DER signature expected by
// SignInvestmentAgreement and ConfirmInvestmentAgreement.
func SignAgreement(priv *ec.PrivateKey, url string) ([]byte, error) {
	sig, err := priv.Sign(AgreementHash(url))
	if err != nil {
		return nil, fmt.Errorf("offering: sign agreement: %w", err)
	}
	return sig.Serialize(), nil
}

func verifyAgreement(pub *ec.PublicKey, url string, der []byte) error {
	if pub == nil {
		return fmt.Errorf("%w: no key registered", ErrInvalidSignature)
	}
	sig, err := ec.ParseDERSignature(der)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	if !sig.Verify(AgreementHash(url), pub) {
		return fmt.Errorf("%w: signature does not match %q", ErrInvalidSignature, url)
	}
	return nil
}

// SignInvestmentAgreement records the company's signature over the
// agreement at url. Signing phase only. Signing again with the same url is
// a no-op; a different url is rejected.
func (c *Commitment) SignInvestmentAgreement(caller common.Address, url string, sig []byte) error {
	return c.run("sign agreement", logrus.Fields{"caller": caller.Hex(), "url": url}, func(tx *txn) error {
		if tx.state.Phase != Signing {
			return wrongPhase("sign agreement", tx.state.Phase)
		}
		u := c.universe
		if caller != u.Company() {
			return fmt.Errorf("%w: %s is not the company", ErrUnauthorized, caller.Hex())
		}
		if url == "" {
			return fmt.Errorf("%w: empty agreement url", ErrMissingSignature)
		}
		a := &tx.state.Agreement
		if a.CompanySigned() {
			if a.CompanyURL == url {
				return nil
			}
			return fmt.Errorf("%w: company already signed %q", ErrAgreementMismatch, a.CompanyURL)
		}
		if err := verifyAgreement(u.CompanyKey(), url, sig); err != nil {
			return err
		}
		a.CompanyURL = url
		a.CompanySig = append([]byte(nil), sig...)
		a.CompanySignedAt = tx.now
		tx.emit(Event{Kind: EventCompanySigned, Investor: caller, Detail: url})
		return nil
	})
}

// ConfirmInvestmentAgreement records the nominee's confirmation of the
// agreement the company signed. With both signatures present the offering
// moves to Claim. Repeating the confirmation with the same url is a no-op.
func (c *Commitment) ConfirmInvestmentAgreement(caller common.Address, url string, sig []byte) error {
	return c.run("confirm agreement", logrus.Fields{"caller": caller.Hex(), "url": url}, func(tx *txn) error {
		a := &tx.state.Agreement
		if a.Complete() && a.NomineeURL == url && caller == c.universe.Nominee() {
			return nil
		}
		if tx.state.Phase != Signing {
			return wrongPhase("confirm agreement", tx.state.Phase)
		}
		u := c.universe
		if caller != u.Nominee() {
			return fmt.Errorf("%w: %s is not the nominee", ErrUnauthorized, caller.Hex())
		}
		if !a.CompanySigned() {
			return fmt.Errorf("%w: company has not signed", ErrMissingSignature)
		}
		if url != a.CompanyURL {
			return fmt.Errorf("%w: nominee confirmed %q, company signed %q", ErrAgreementMismatch, url, a.CompanyURL)
		}
		if err := verifyAgreement(u.NomineeKey(), url, sig); err != nil {
			return err
		}
		a.NomineeURL = url
		a.NomineeSig = append([]byte(nil), sig...)
		a.NomineeSignedAt = tx.now
		tx.emit(Event{Kind: EventNomineeConfirmed, Investor: caller, Detail: url})
		return nil
	})
}
