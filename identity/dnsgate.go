package identity

import (
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// TXTResolver looks up TXT records. DNSSECResolver is the production
// implementation; tests substitute a map.
type TXTResolver interface {
	LookupTXT(name string) ([]string, error)
}

// Attestation values published by the KYC provider.
const (
	AttestVerified = "eto-kyc=verified"
	AttestFrozen   = "eto-kyc=frozen"
)

// DNSGate reads compliance attestations that a KYC provider publishes as TXT
// records under its zone, one name per account:
//
//	<lower-case hex address without 0x>.<zone>  TXT "eto-kyc=verified"
//
// A lookup failure is treated as "not verified" and "not frozen"; the caller
// sees a rejected contribution rather than an error.
type DNSGate struct {
	zone     string
	resolver TXTResolver
	log      *logrus.Entry
}

// Compile-time interface check.
var _ Gate = (*DNSGate)(nil)

// NewDNSGate creates a gate reading attestations under zone.
func NewDNSGate(zone string, resolver TXTResolver, log *logrus.Entry) (*DNSGate, error) {
	zone = strings.Trim(zone, ".")
	if zone == "" {
		return nil, ErrEmptyZone
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}
	return &DNSGate{zone: zone, resolver: resolver, log: log.WithField("component", "identity")}, nil
}

// RecordName returns the TXT name holding attestations for addr.
func (g *DNSGate) RecordName(addr common.Address) string {
	return strings.ToLower(strings.TrimPrefix(addr.Hex(), "0x")) + "." + g.zone
}

func (g *DNSGate) attestations(addr common.Address) map[string]bool {
	name := g.RecordName(addr)
	txts, err := g.resolver.LookupTXT(name)
	if err != nil {
		g.log.WithError(err).WithField("record", name).Debug("attestation lookup failed")
		return nil
	}
	set := make(map[string]bool, len(txts))
	for _, t := range txts {
		set[strings.TrimSpace(t)] = true
	}
	return set
}

// IsVerified implements Gate.
func (g *DNSGate) IsVerified(addr common.Address) bool {
	return g.attestations(addr)[AttestVerified]
}

// IsFrozen implements Gate.
func (g *DNSGate) IsFrozen(addr common.Address) bool {
	return g.attestations(addr)[AttestFrozen]
}
