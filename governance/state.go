package governance

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/equityledger/libeto-go/ulps"
)

// State is a proposal's lifecycle state.
type State int

const (
	Campaigning State = iota
	TimedOut
	Public
	Final
)

var stateNames = [...]string{"Campaigning", "TimedOut", "Public", "Final"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Finalizable reports whether outcomes may be read in s.
func (s State) Finalizable() bool { return s == TimedOut || s == Final }

// Params configures a voting center.
type Params struct {
	// CampaignDuration bounds how long a proposal may gather quorum.
	CampaignDuration time.Duration
	// CampaignQuorumFrac is the in-favour fraction of snapshot supply that
	// moves a proposal to Public.
	CampaignQuorumFrac *big.Int
	// PublicDuration is the onchain voting window after quorum.
	PublicDuration time.Duration
	// OffchainDuration extends past the public end for offchain votes.
	OffchainDuration time.Duration
	// OffchainMaxFrac caps offchain votes as a fraction of snapshot supply.
	OffchainMaxFrac *big.Int
}

// Validate checks the parameters.
func (p *Params) Validate() error {
	switch {
	case p.CampaignDuration <= 0:
		return fmt.Errorf("%w: campaign duration must be positive", ErrInvalidParams)
	case p.PublicDuration <= 0:
		return fmt.Errorf("%w: public duration must be positive", ErrInvalidParams)
	case p.OffchainDuration < 0:
		return fmt.Errorf("%w: offchain duration must not be negative", ErrInvalidParams)
	case !ulps.IsFraction(p.CampaignQuorumFrac):
		return fmt.Errorf("%w: campaign quorum fraction must be in (0, 1]", ErrInvalidParams)
	case p.OffchainMaxFrac == nil || p.OffchainMaxFrac.Sign() < 0 || p.OffchainMaxFrac.Cmp(ulps.One) > 0:
		return fmt.Errorf("%w: offchain fraction must be in [0, 1]", ErrInvalidParams)
	}
	return nil
}

// Proposal is a snapshot-weighted vote.
type Proposal struct {
	ID       common.Hash
	Proposer common.Address
	Title    string

	CreatedAt      time.Time
	CampaignEnd    time.Time
	SnapshotSupply *big.Int
	Quorum         *big.Int

	// QuorumAt is zero until the campaign quorum is reached.
	QuorumAt    time.Time
	PublicEnd   time.Time
	OffchainEnd time.Time
	// FinalAt is set when offchain votes close the tally early.
	FinalAt time.Time

	InFavor *big.Int
	Against *big.Int

	OffchainAdded   bool
	OffchainInFavor *big.Int
	OffchainAgainst *big.Int

	voters map[common.Address]bool
}

// StateAt evaluates the proposal's state at now.
func (p *Proposal) StateAt(now time.Time) State {
	if p.QuorumAt.IsZero() {
		if now.Before(p.CampaignEnd) {
			return Campaigning
		}
		return TimedOut
	}
	if !p.FinalAt.IsZero() && !now.Before(p.FinalAt) {
		return Final
	}
	if now.Before(p.OffchainEnd) {
		return Public
	}
	return Final
}

// acceptsVotes reports whether onchain votes are open at now.
func (p *Proposal) acceptsVotes(now time.Time) bool {
	switch p.StateAt(now) {
	case Campaigning:
		return true
	case Public:
		return now.Before(p.PublicEnd)
	default:
		return false
	}
}

// HasVoted reports whether voter cast an onchain vote.
func (p *Proposal) HasVoted(voter common.Address) bool { return p.voters[voter] }

func (p *Proposal) clone() *Proposal {
	cp := *p
	cp.SnapshotSupply = ulps.Copy(p.SnapshotSupply)
	cp.Quorum = ulps.Copy(p.Quorum)
	cp.InFavor = ulps.Copy(p.InFavor)
	cp.Against = ulps.Copy(p.Against)
	cp.OffchainInFavor = ulps.Copy(p.OffchainInFavor)
	cp.OffchainAgainst = ulps.Copy(p.OffchainAgainst)
	cp.voters = make(map[common.Address]bool, len(p.voters))
	for v := range p.voters {
		cp.voters[v] = true
	}
	return &cp
}

// Outcome is the tally of a finalizable proposal.
type Outcome struct {
	ProposalID common.Hash
	State      State

	InFavor         *big.Int
	Against         *big.Int
	OffchainInFavor *big.Int
	OffchainAgainst *big.Int

	TotalInFavor *big.Int
	TotalAgainst *big.Int

	// Passed is true for a final proposal with more weight in favour than against.
	Passed bool
}
