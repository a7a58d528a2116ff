package config

import (
	"encoding/hex"
	"fmt"
	"net"
	"strings"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/ethereum/go-ethereum/common"
)

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if cfg.Network != "mainnet" && cfg.Network != "testnet" && cfg.Network != "regtest" {
		return ErrInvalidNetwork
	}

	if err := validateAddr(cfg.ListenAddr); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidListenAddr, err)
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	if cfg.TermsFile == "" {
		return ErrEmptyTermsFile
	}

	for key, v := range map[string]string{
		"company":  cfg.Company,
		"nominee":  cfg.Nominee,
		"platform": cfg.PlatformWallet,
		"operator": cfg.Operator,
	} {
		if v != "" && !common.IsHexAddress(v) {
			return fmt.Errorf("%w: %s = %q", ErrInvalidAddress, key, v)
		}
	}

	for key, v := range map[string]string{
		"companykey": cfg.CompanyKey,
		"nomineekey": cfg.NomineeKey,
	} {
		if v == "" {
			continue
		}
		if _, err := ParsePublicKey(v); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}

	return nil
}

// ParsePublicKey decodes a hex encoded secp256k1 public key.
func ParsePublicKey(s string) (*ec.PublicKey, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPublicKey, err)
	}
	pub, err := ec.PublicKeyFromBytes(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPublicKey, err)
	}
	return pub, nil
}

// validateAddr checks that addr is a valid host:port address.
func validateAddr(addr string) error {
	_, _, err := net.SplitHostPort(addr)
	return err
}
