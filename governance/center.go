// Package governance implements the token-holder voting center. Vote weights
// are equity token balances frozen at proposal creation.
package governance

import (
	"fmt"
	"io"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/equityledger/libeto-go/offering"
	"github.com/equityledger/libeto-go/prorata"
	"github.com/equityledger/libeto-go/token"
	"github.com/equityledger/libeto-go/ulps"
)

// PhaseSource reports when offering phases started.
type PhaseSource interface {
	StartOfPhase(p offering.Phase) (time.Time, bool)
}

// Config configures a Center.
type Config struct {
	Params Params
	// Token supplies snapshot balances of the equity token.
	Token token.Snapshotter
	// Offering gates proposals on its Claim phase.
	Offering PhaseSource
	// OffchainRecorder is the only account allowed to add offchain votes.
	OffchainRecorder common.Address
	Clock            clock.Clock
	Logger           *logrus.Entry
}

// Center holds the proposals of one equity token.
type Center struct {
	mu        sync.Mutex
	params    Params
	token     token.Snapshotter
	offering  PhaseSource
	recorder  common.Address
	clock     clock.Clock
	log       *logrus.Entry
	proposals map[common.Hash]*Proposal
}

// New creates a voting center.
func New(cfg Config) (*Center, error) {
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	if cfg.Token == nil || cfg.Offering == nil {
		return nil, fmt.Errorf("%w: token and offering are required", ErrInvalidParams)
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	log := cfg.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}
	return &Center{
		params:    cfg.Params,
		token:     cfg.Token,
		offering:  cfg.Offering,
		recorder:  cfg.OffchainRecorder,
		clock:     clk,
		log:       log.WithField("component", "governance"),
		proposals: make(map[common.Hash]*Proposal),
	}, nil
}

// Propose opens a proposal. The proposer must hold equity tokens before now
// and the offering must be in or past its Claim phase.
func (c *Center) Propose(proposer common.Address, id common.Hash, title string) (*Proposal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()

	claimAt, ok := c.offering.StartOfPhase(offering.Claim)
	if !ok || now.Before(claimAt) {
		return nil, ErrNoSnapshot
	}
	if _, exists := c.proposals[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrProposalExists, id.Hex())
	}
	if c.token.BalanceAt(proposer, now).Sign() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoVotingPower, proposer.Hex())
	}
	supply := c.token.TotalSupplyAt(now)

	p := &Proposal{
		ID:              id,
		Proposer:        proposer,
		Title:           title,
		CreatedAt:       now,
		CampaignEnd:     now.Add(c.params.CampaignDuration),
		SnapshotSupply:  supply,
		Quorum:          ulps.Mul(supply, c.params.CampaignQuorumFrac),
		InFavor:         new(big.Int),
		Against:         new(big.Int),
		OffchainInFavor: new(big.Int),
		OffchainAgainst: new(big.Int),
		voters:          make(map[common.Address]bool),
	}
	c.proposals[id] = p
	c.log.WithFields(logrus.Fields{
		"proposal": id.Hex(),
		"proposer": proposer.Hex(),
		"supply":   ulps.Format(supply),
	}).Info("proposal created")
	return p.clone(), nil
}

func (c *Center) proposal(id common.Hash) (*Proposal, error) {
	p, ok := c.proposals[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProposalNotFound, id.Hex())
	}
	return p, nil
}

// Vote casts voter's snapshot weight on a proposal.
func (c *Center) Vote(voter common.Address, id common.Hash, inFavor bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vote(voter, id, inFavor, c.clock.Now())
}

func (c *Center) vote(voter common.Address, id common.Hash, inFavor bool, now time.Time) error {
	p, err := c.proposal(id)
	if err != nil {
		return err
	}
	if !p.acceptsVotes(now) {
		return fmt.Errorf("%w: proposal %s is %s", ErrVotingClosed, id.Hex(), p.StateAt(now))
	}
	if p.voters[voter] {
		return fmt.Errorf("%w: %s", ErrAlreadyVoted, voter.Hex())
	}
	weight := c.token.BalanceAt(voter, p.CreatedAt)
	if weight.Sign() == 0 {
		return fmt.Errorf("%w: %s", ErrNoVotingPower, voter.Hex())
	}

	p.voters[voter] = true
	if inFavor {
		p.InFavor.Add(p.InFavor, weight)
	} else {
		p.Against.Add(p.Against, weight)
	}
	log := c.log.WithFields(logrus.Fields{"proposal": id.Hex(), "voter": voter.Hex(), "in_favor": inFavor})
	log.Debug("vote cast")

	if p.QuorumAt.IsZero() && p.InFavor.Cmp(p.Quorum) >= 0 {
		p.QuorumAt = now
		p.PublicEnd = now.Add(c.params.PublicDuration)
		p.OffchainEnd = p.PublicEnd.Add(c.params.OffchainDuration)
		log.WithField("public_end", p.PublicEnd).Info("campaign quorum reached")
	}
	return nil
}

// AddOffchainVote records the offchain tally once, before the offchain
// deadline. The combined offchain weight is scaled down to at most
// OffchainMaxFrac of the snapshot supply. Added after the public vote has
// ended, it finalizes the proposal.
func (c *Center) AddOffchainVote(caller common.Address, id common.Hash, inFavor, against *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()

	if caller != c.recorder {
		return fmt.Errorf("%w: %s may not add offchain votes", ErrUnauthorized, caller.Hex())
	}
	p, err := c.proposal(id)
	if err != nil {
		return err
	}
	if p.OffchainAdded {
		return fmt.Errorf("%w: %s", ErrOffchainVoteRecorded, id.Hex())
	}
	if s := p.StateAt(now); s != Public {
		return fmt.Errorf("%w: proposal %s is %s", ErrVotingClosed, id.Hex(), s)
	}
	if inFavor == nil || against == nil || inFavor.Sign() < 0 || against.Sign() < 0 {
		return ErrInvalidAmount
	}

	in, out := ulps.Copy(inFavor), ulps.Copy(against)
	total := new(big.Int).Add(in, out)
	limit := ulps.Mul(p.SnapshotSupply, c.params.OffchainMaxFrac)
	if total.Cmp(limit) > 0 {
		scaled, err := prorata.Distribute(limit, []prorata.Share{
			{Weight: in},
			{Weight: out},
		}, total)
		if err != nil {
			return err
		}
		in, out = scaled[0].Amount, scaled[1].Amount
	}

	p.OffchainAdded = true
	p.OffchainInFavor = in
	p.OffchainAgainst = out
	if !now.Before(p.PublicEnd) {
		p.FinalAt = now
	}
	c.log.WithFields(logrus.Fields{
		"proposal": id.Hex(),
		"in_favor": ulps.Format(in),
		"against":  ulps.Format(out),
	}).Info("offchain vote recorded")
	return nil
}

// State returns the proposal's state at the current time.
func (c *Center) State(id common.Hash) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, err := c.proposal(id)
	if err != nil {
		return 0, err
	}
	return p.StateAt(c.clock.Now()), nil
}

// Proposal returns a copy of the proposal.
func (c *Center) Proposal(id common.Hash) (*Proposal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, err := c.proposal(id)
	if err != nil {
		return nil, err
	}
	return p.clone(), nil
}

// Proposals returns copies of every proposal ordered by creation time.
func (c *Center) Proposals() []*Proposal {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Proposal, 0, len(c.proposals))
	for _, p := range c.proposals {
		out = append(out, p.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.Cmp(out[j].ID) < 0
	})
	return out
}

// Outcome returns the tally. It fails with ErrNotFinal until the proposal is
// Final or TimedOut.
func (c *Center) Outcome(id common.Hash) (*Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, err := c.proposal(id)
	if err != nil {
		return nil, err
	}
	s := p.StateAt(c.clock.Now())
	if !s.Finalizable() {
		return nil, fmt.Errorf("%w: proposal %s is %s", ErrNotFinal, id.Hex(), s)
	}
	o := &Outcome{
		ProposalID:      id,
		State:           s,
		InFavor:         ulps.Copy(p.InFavor),
		Against:         ulps.Copy(p.Against),
		OffchainInFavor: ulps.Copy(p.OffchainInFavor),
		OffchainAgainst: ulps.Copy(p.OffchainAgainst),
		TotalInFavor:    new(big.Int).Add(p.InFavor, p.OffchainInFavor),
		TotalAgainst:    new(big.Int).Add(p.Against, p.OffchainAgainst),
	}
	o.Passed = s == Final && o.TotalInFavor.Cmp(o.TotalAgainst) > 0
	return o, nil
}
