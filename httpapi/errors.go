package httpapi

import (
	"errors"
	"net/http"

	"github.com/equityledger/libeto-go/docs"
	"github.com/equityledger/libeto-go/legacy"
	"github.com/equityledger/libeto-go/offering"
	"github.com/equityledger/libeto-go/pricing"
	"github.com/equityledger/libeto-go/rates"
	"github.com/equityledger/libeto-go/token"
	"github.com/equityledger/libeto-go/ulps"
	"github.com/equityledger/libeto-go/whitelist"
)

var (
	// ErrBadRequest indicates a malformed request body or parameter.
	ErrBadRequest = errors.New("httpapi: bad request")

	// ErrUnknownDocument indicates an agreement URL naming a document that
	// was never archived.
	ErrUnknownDocument = errors.New("httpapi: unknown document")
)

// statusGroups maps sentinel errors to response codes, checked in order.
var statusGroups = []struct {
	status int
	errs   []error
}{
	{http.StatusBadRequest, []error{
		ErrBadRequest,
		ulps.ErrInvalidAmount,
		ulps.ErrNegativeAmount,
		ulps.ErrTooPrecise,
		docs.ErrInvalidURL,
		docs.ErrEmptyContent,
		token.ErrInvalidAmount,
		token.ErrZeroAddress,
		legacy.ErrInvalidAmount,
	}},
	{http.StatusRequestEntityTooLarge, []error{docs.ErrTooLarge}},
	{http.StatusNotFound, []error{offering.ErrNoTicket, docs.ErrNotFound}},
	{http.StatusForbidden, []error{
		offering.ErrNotVerified,
		offering.ErrAccountFrozen,
		offering.ErrUnauthorized,
	}},
	{http.StatusConflict, []error{
		offering.ErrWrongPhase,
		offering.ErrAlreadySettled,
		offering.ErrMissingSignature,
		offering.ErrAgreementMismatch,
		legacy.ErrAlreadyMigrated,
		legacy.ErrNoMigrationTarget,
	}},
	{http.StatusUnprocessableEntity, []error{
		pricing.ErrBelowMinTicket,
		pricing.ErrAboveMaxTicket,
		pricing.ErrAboveMaxInvestment,
		pricing.ErrRateExpired,
		pricing.ErrNotWhitelisted,
		pricing.ErrInvalidAmount,
		whitelist.ErrInvalidEntry,
		whitelist.ErrSlotExceeded,
		whitelist.ErrInvalidChunkSize,
		rates.ErrRateNotFound,
		rates.ErrUnsupportedCurrency,
		offering.ErrInvalidSignature,
		offering.ErrInvalidStartDate,
		offering.ErrNoLegacyWallet,
		token.ErrInsufficientBalance,
		legacy.ErrNothingLocked,
		ErrUnknownDocument,
	}},
}

// statusFor returns the HTTP status for an operation error.
func statusFor(err error) int {
	for _, g := range statusGroups {
		for _, target := range g.errs {
			if errors.Is(err, target) {
				return g.status
			}
		}
	}
	return http.StatusInternalServerError
}
