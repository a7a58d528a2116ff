package offering

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/equityledger/libeto-go/rates"
)

// EventKind names an entry in the offering journal.
type EventKind string

const (
	EventCreated          EventKind = "created"
	EventStartScheduled   EventKind = "start_scheduled"
	EventTransition       EventKind = "transition"
	EventWhitelisted      EventKind = "whitelisted"
	EventContribution     EventKind = "contribution"
	EventMigration        EventKind = "migration"
	EventCompanySigned    EventKind = "company_signed"
	EventNomineeConfirmed EventKind = "nominee_confirmed"
	EventClaim            EventKind = "claim"
	EventRefund           EventKind = "refund"
	EventPayout           EventKind = "payout"
	EventPlatformFee      EventKind = "platform_fee"
)

// Event is an append-only audit record. Seq is dense and starts at 1.
type Event struct {
	ID       uuid.UUID
	Seq      uint64
	At       time.Time
	Kind     EventKind
	Phase    Phase
	Investor common.Address
	Currency rates.Currency
	Amount   *big.Int
	Tokens   *big.Int
	Detail   string
}
