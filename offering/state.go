package offering

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/equityledger/libeto-go/rates"
	"github.com/equityledger/libeto-go/ulps"
)

// Agreement tracks the two signatures over the investment agreement.
type Agreement struct {
	CompanyURL      string
	CompanySig      []byte
	CompanySignedAt time.Time

	NomineeURL      string
	NomineeSig      []byte
	NomineeSignedAt time.Time
}

// CompanySigned reports whether the company signature is present.
func (a Agreement) CompanySigned() bool { return a.CompanyURL != "" }

// Complete reports whether both parties signed.
func (a Agreement) Complete() bool { return a.CompanyURL != "" && a.NomineeURL != "" }

// Disbursal records what entering Payout sent out.
type Disbursal struct {
	At          time.Time
	Nominee     common.Address
	Platform    common.Address
	NomineeEth  *big.Int
	NomineeEur  *big.Int
	PlatformEth *big.Int
	PlatformEur *big.Int
}

// State is the persisted offering singleton.
type State struct {
	Phase Phase
	// StartOf holds the entry time of every phase; zero means never entered.
	StartOf        [numPhases]time.Time
	ScheduledStart time.Time
	CapReachedAt   time.Time

	TotalTokens *big.Int // tokens entitled across all tickets
	TotalEur    *big.Int // EUR-equivalent raised

	// Funds held by the commitment, by currency, including migrated funds.
	RaisedEth *big.Int
	RaisedEur *big.Int

	Agreement Agreement
	Disbursal *Disbursal
	Investors int
}

func newState(now time.Time) *State {
	st := &State{
		Phase:       Setup,
		TotalTokens: new(big.Int),
		TotalEur:    new(big.Int),
		RaisedEth:   new(big.Int),
		RaisedEur:   new(big.Int),
	}
	st.StartOf[Setup] = now
	return st
}

// Raised returns the funds held in cur.
func (s *State) Raised(cur rates.Currency) *big.Int {
	if cur == rates.ETH {
		return s.RaisedEth
	}
	return s.RaisedEur
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	c := *s
	c.TotalTokens = ulps.Copy(s.TotalTokens)
	c.TotalEur = ulps.Copy(s.TotalEur)
	c.RaisedEth = ulps.Copy(s.RaisedEth)
	c.RaisedEur = ulps.Copy(s.RaisedEur)
	c.Agreement.CompanySig = append([]byte(nil), s.Agreement.CompanySig...)
	c.Agreement.NomineeSig = append([]byte(nil), s.Agreement.NomineeSig...)
	if s.Disbursal != nil {
		d := *s.Disbursal
		d.NomineeEth = ulps.Copy(d.NomineeEth)
		d.NomineeEur = ulps.Copy(d.NomineeEur)
		d.PlatformEth = ulps.Copy(d.PlatformEth)
		d.PlatformEur = ulps.Copy(d.PlatformEur)
		c.Disbursal = &d
	}
	return &c
}

// Totals is the aggregate view of the offering.
type Totals struct {
	Phase       Phase
	TotalTokens *big.Int
	TotalEur    *big.Int
	RaisedEth   *big.Int
	RaisedEur   *big.Int
	Investors   int
}

// normalize replaces nil amounts left by decoding with zero.
func (s *State) normalize() {
	for _, p := range []**big.Int{&s.TotalTokens, &s.TotalEur, &s.RaisedEth, &s.RaisedEur} {
		if *p == nil {
			*p = new(big.Int)
		}
	}
}
