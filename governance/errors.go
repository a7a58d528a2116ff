package governance

import "errors"

var (
	// ErrInvalidParams indicates malformed voting parameters.
	ErrInvalidParams = errors.New("governance: invalid params")

	// ErrNoSnapshot indicates the offering has not reached its Claim phase.
	ErrNoSnapshot = errors.New("governance: no snapshot available")

	// ErrProposalExists indicates a proposal with the same ID exists.
	ErrProposalExists = errors.New("governance: proposal exists")

	// ErrProposalNotFound indicates an unknown proposal ID.
	ErrProposalNotFound = errors.New("governance: proposal not found")

	// ErrNoVotingPower indicates a zero snapshot balance.
	ErrNoVotingPower = errors.New("governance: no voting power")

	// ErrAlreadyVoted indicates the voter already voted on the proposal.
	ErrAlreadyVoted = errors.New("governance: already voted")

	// ErrVotingClosed indicates the proposal does not accept the vote in its current state.
	ErrVotingClosed = errors.New("governance: voting closed")

	// ErrOffchainVoteRecorded indicates offchain votes were already added.
	ErrOffchainVoteRecorded = errors.New("governance: offchain vote already recorded")

	// ErrUnauthorized indicates the caller may not perform the operation.
	ErrUnauthorized = errors.New("governance: unauthorized")

	// ErrInvalidSignature indicates a relayed vote signature that does not
	// recover to the claimed voter.
	ErrInvalidSignature = errors.New("governance: invalid signature")

	// ErrNotFinal indicates an outcome query before the proposal is final.
	ErrNotFinal = errors.New("governance: outcome not final")

	// ErrInvalidAmount indicates a nil or negative vote amount.
	ErrInvalidAmount = errors.New("governance: invalid amount")
)
