package offering

import "errors"

var (
	// ErrWrongPhase indicates an operation attempted outside its valid phase.
	ErrWrongPhase = errors.New("offering: wrong phase")

	// ErrAlreadySettled indicates a second claim, refund or payout.
	ErrAlreadySettled = errors.New("offering: already settled")

	// ErrNoTicket indicates the investor has no (or a zero-value) ticket.
	ErrNoTicket = errors.New("offering: no ticket")

	// ErrNotVerified indicates the investor failed identity verification.
	ErrNotVerified = errors.New("offering: investor not verified")

	// ErrAccountFrozen indicates the investor account is frozen.
	ErrAccountFrozen = errors.New("offering: account frozen")

	// ErrMissingSignature indicates the investment agreement is not fully signed.
	ErrMissingSignature = errors.New("offering: missing signature")

	// ErrInvalidSignature indicates a signature did not verify against the signer's key.
	ErrInvalidSignature = errors.New("offering: invalid signature")

	// ErrAgreementMismatch indicates the nominee confirmed a different agreement.
	ErrAgreementMismatch = errors.New("offering: agreement mismatch")

	// ErrUnauthorized indicates the caller lacks the role for the operation.
	ErrUnauthorized = errors.New("offering: unauthorized")

	// ErrInvalidStartDate indicates a start date inside the minimum lead time.
	ErrInvalidStartDate = errors.New("offering: invalid start date")

	// ErrNoLegacyWallet indicates a migration from an unregistered legacy wallet.
	ErrNoLegacyWallet = errors.New("offering: unknown legacy wallet")

	// ErrInvalidConfig indicates a Commitment was constructed with missing collaborators.
	ErrInvalidConfig = errors.New("offering: invalid config")

	// ErrStoreClosed indicates use of a closed store.
	ErrStoreClosed = errors.New("offering: store closed")
)
