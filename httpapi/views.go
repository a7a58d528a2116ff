package httpapi

import (
	"math/big"
	"time"

	"github.com/equityledger/libeto-go/offering"
	"github.com/equityledger/libeto-go/pricing"
	"github.com/equityledger/libeto-go/ulps"
)

// Amounts are rendered as decimal strings ("1500.25").

type phaseStart struct {
	Phase string    `json:"phase"`
	At    time.Time `json:"at"`
}

type offeringView struct {
	Address        string       `json:"address"`
	Phase          string       `json:"phase"`
	ScheduledStart *time.Time   `json:"scheduled_start,omitempty"`
	Phases         []phaseStart `json:"phases"`
	TotalTokens    string       `json:"total_tokens"`
	TotalEur       string       `json:"total_eur"`
	RaisedEth      string       `json:"raised_eth"`
	RaisedEur      string       `json:"raised_eur"`
	Investors      int          `json:"investors"`
	CompanySigned  bool         `json:"company_signed"`
	AgreementURL   string       `json:"agreement_url,omitempty"`
	Disbursal      *payoutView  `json:"disbursal,omitempty"`
}

type payoutView struct {
	At          time.Time `json:"at"`
	Nominee     string    `json:"nominee"`
	Platform    string    `json:"platform"`
	NomineeEth  string    `json:"nominee_eth"`
	NomineeEur  string    `json:"nominee_eur"`
	PlatformEth string    `json:"platform_eth"`
	PlatformEur string    `json:"platform_eur"`
}

type ticketView struct {
	Investor    string     `json:"investor"`
	AmountEth   string     `json:"amount_eth"`
	AmountEur   string     `json:"amount_eur"`
	MigratedEth string     `json:"migrated_eth"`
	MigratedEur string     `json:"migrated_eur"`
	EurUlps     string     `json:"eur_equivalent"`
	Tokens      string     `json:"tokens"`
	Claimed     bool       `json:"claimed"`
	Refunded    bool       `json:"refunded"`
	SettledAt   *time.Time `json:"settled_at,omitempty"`
}

type quoteView struct {
	Investor   string `json:"investor"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	EurUlps    string `json:"eur_equivalent"`
	Tokens     string `json:"tokens"`
	SlotEur    string `json:"slot_eur"`
	SlotTokens string `json:"slot_tokens"`
}

type resultView struct {
	Investor string `json:"investor"`
	Tokens   string `json:"tokens,omitempty"`
	Eth      string `json:"eth,omitempty"`
	Eur      string `json:"eur,omitempty"`
	Error    string `json:"error,omitempty"`
}

type errorView struct {
	Error string `json:"error"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func optional(v *big.Int) string {
	if v == nil {
		return ""
	}
	return ulps.Format(v)
}

func newOfferingView(c *offering.Commitment) offeringView {
	totals := c.Totals()
	agr := c.Agreement()
	v := offeringView{
		Address:        c.Address().Hex(),
		Phase:          totals.Phase.String(),
		ScheduledStart: timePtr(c.ScheduledStart()),
		Phases:         []phaseStart{},
		TotalTokens:    ulps.Format(totals.TotalTokens),
		TotalEur:       ulps.Format(totals.TotalEur),
		RaisedEth:      ulps.Format(totals.RaisedEth),
		RaisedEur:      ulps.Format(totals.RaisedEur),
		Investors:      totals.Investors,
		CompanySigned:  agr.CompanySigned(),
	}
	if agr.Complete() {
		v.AgreementURL = agr.NomineeURL
	}
	for p := offering.Setup; p <= offering.Refund; p++ {
		if at, ok := c.StartOfPhase(p); ok {
			v.Phases = append(v.Phases, phaseStart{Phase: p.String(), At: at})
		}
	}
	if d := c.Disbursal(); d != nil {
		v.Disbursal = &payoutView{
			At:          d.At,
			Nominee:     d.Nominee.Hex(),
			Platform:    d.Platform.Hex(),
			NomineeEth:  ulps.Format(d.NomineeEth),
			NomineeEur:  ulps.Format(d.NomineeEur),
			PlatformEth: ulps.Format(d.PlatformEth),
			PlatformEur: ulps.Format(d.PlatformEur),
		}
	}
	return v
}

func newTicketView(t *offering.Ticket) ticketView {
	return ticketView{
		Investor:    t.Investor.Hex(),
		AmountEth:   ulps.Format(t.AmountEth),
		AmountEur:   ulps.Format(t.AmountEur),
		MigratedEth: ulps.Format(t.MigratedEth),
		MigratedEur: ulps.Format(t.MigratedEur),
		EurUlps:     ulps.Format(t.EurUlps),
		Tokens:      ulps.Format(t.Tokens),
		Claimed:     t.Claimed,
		Refunded:    t.Refunded,
		SettledAt:   timePtr(t.SettledAt),
	}
}

func newQuoteView(q *pricing.Quote) quoteView {
	return quoteView{
		Investor:   q.Investor.Hex(),
		Amount:     ulps.Format(q.Amount),
		Currency:   string(q.Currency),
		EurUlps:    ulps.Format(q.EurUlps),
		Tokens:     ulps.Format(q.Tokens),
		SlotEur:    ulps.Format(q.SlotEur),
		SlotTokens: ulps.Format(q.SlotTokens),
	}
}

func newResultView(r offering.Result) resultView {
	v := resultView{
		Investor: r.Investor.Hex(),
		Tokens:   optional(r.Tokens),
		Eth:      optional(r.Eth),
		Eur:      optional(r.Eur),
	}
	if r.Err != nil {
		v.Error = r.Err.Error()
	}
	return v
}
