package offering

import (
	"fmt"
	"time"

	"github.com/equityledger/libeto-go/terms"
)

// Phase is a stage of the offering lifecycle.
type Phase int

const (
	Setup Phase = iota
	Whitelist
	Public
	Signing
	Claim
	Payout
	Refund

	numPhases = int(Refund) + 1
)

var phaseNames = [numPhases]string{"Setup", "Whitelist", "Public", "Signing", "Claim", "Payout", "Refund"}

func (p Phase) String() string {
	if p < 0 || int(p) >= numPhases {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return phaseNames[p]
}

// ParsePhase is the inverse of String.
func ParsePhase(s string) (Phase, error) {
	for i, n := range phaseNames {
		if n == s {
			return Phase(i), nil
		}
	}
	return 0, fmt.Errorf("offering: unknown phase %q", s)
}

// Terminal reports whether no further transition leaves p.
func (p Phase) Terminal() bool { return p == Payout || p == Refund }

// Open reports whether contributions are accepted in p.
func (p Phase) Open() bool { return p == Whitelist || p == Public }

// Transition moves the offering from one phase to the next at a given time.
type Transition struct {
	From, To Phase
	At       time.Time
	Reason   string
}

// nextTransition returns the first transition due at now, if any. It is a
// pure function of the state; applying its result and calling it again
// yields the following transition, so late evaluation produces the same
// timestamps as timely evaluation.
func nextTransition(st *State, t *terms.Terms, now time.Time) (Transition, bool) {
	due := func(deadline time.Time) bool { return !now.Before(deadline) }
	start := st.StartOf[st.Phase]

	switch st.Phase {
	case Setup:
		if !st.ScheduledStart.IsZero() && due(st.ScheduledStart) {
			return Transition{Setup, Whitelist, st.ScheduledStart, "start date reached"}, true
		}

	case Whitelist:
		if !st.CapReachedAt.IsZero() {
			return Transition{Whitelist, Public, st.CapReachedAt, "token cap reached"}, true
		}
		if end := start.Add(t.WhitelistDuration); due(end) {
			return Transition{Whitelist, Public, end, "whitelist duration elapsed"}, true
		}

	case Public:
		if !st.CapReachedAt.IsZero() {
			at := st.CapReachedAt
			if at.Before(start) {
				at = start
			}
			return Transition{Public, Signing, at, "token cap reached"}, true
		}
		if end := start.Add(t.PublicDuration); due(end) {
			if st.TotalTokens.Cmp(t.MinNumberOfTokens) >= 0 {
				return Transition{Public, Signing, end, "public duration elapsed"}, true
			}
			return Transition{Public, Refund, end, "minimum number of tokens not reached"}, true
		}

	case Signing:
		if st.Agreement.Complete() {
			return Transition{Signing, Claim, st.Agreement.NomineeSignedAt, "investment agreement signed"}, true
		}
		if end := start.Add(t.SigningDuration); due(end) {
			return Transition{Signing, Refund, end, "signing duration elapsed"}, true
		}

	case Claim:
		if end := start.Add(t.ClaimDuration); due(end) {
			return Transition{Claim, Payout, end, "claim duration elapsed"}, true
		}
	}
	return Transition{}, false
}
