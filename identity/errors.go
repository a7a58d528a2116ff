package identity

import "errors"

var (
	// ErrDNSLookupFailed indicates a TXT lookup failed or returned no records.
	ErrDNSLookupFailed = errors.New("identity: DNS lookup failed")

	// ErrDNSSECValidationFailed indicates the resolver did not set the AD flag.
	ErrDNSSECValidationFailed = errors.New("identity: DNSSEC validation failed")

	// ErrEmptyZone indicates a DNSGate was configured without an attestation zone.
	ErrEmptyZone = errors.New("identity: empty attestation zone")
)
