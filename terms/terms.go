// Package terms holds the immutable parameters of an offering.
package terms

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/equityledger/libeto-go/ulps"
)

// Terms are fixed when the offering is created. Monetary amounts and token
// counts are ULPS; fractions are ULPS in (0, 1].
type Terms struct {
	MinStartLeadTime  time.Duration
	WhitelistDuration time.Duration
	PublicDuration    time.Duration
	SigningDuration   time.Duration
	ClaimDuration     time.Duration

	MinTicket            *big.Int // EUR
	MaxTicket            *big.Int // EUR, per investor, cumulative
	MaxInvestmentEurUlps *big.Int // EUR, whole offering
	MinNumberOfTokens    *big.Int // success threshold
	MaxNumberOfTokens    *big.Int // hard cap

	TokenPrice        *big.Int // EUR per whole token
	PublicPriceFrac   *big.Int // applied to TokenPrice outside whitelist slots
	MigratedPriceFrac *big.Int // legacy investors during Whitelist
	MaxRateAge        time.Duration
	PlatformFeeFrac   *big.Int // in [0, 1)
}

// Validate checks every field.
func (t *Terms) Validate() error {
	durations := []struct {
		name string
		d    time.Duration
	}{
		{"whitelist_duration", t.WhitelistDuration},
		{"public_duration", t.PublicDuration},
		{"signing_duration", t.SigningDuration},
		{"claim_duration", t.ClaimDuration},
		{"max_rate_age", t.MaxRateAge},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidTerms, d.name)
		}
	}
	if t.MinStartLeadTime < 0 {
		return fmt.Errorf("%w: min_start_lead_time is negative", ErrInvalidTerms)
	}

	positive := []struct {
		name string
		v    *big.Int
	}{
		{"min_ticket", t.MinTicket},
		{"max_ticket", t.MaxTicket},
		{"max_investment", t.MaxInvestmentEurUlps},
		{"min_number_of_tokens", t.MinNumberOfTokens},
		{"max_number_of_tokens", t.MaxNumberOfTokens},
		{"token_price", t.TokenPrice},
	}
	for _, p := range positive {
		if p.v == nil || p.v.Sign() <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidTerms, p.name)
		}
	}
	if t.MaxTicket.Cmp(t.MinTicket) < 0 {
		return fmt.Errorf("%w: max_ticket below min_ticket", ErrInvalidTerms)
	}
	if t.MaxNumberOfTokens.Cmp(t.MinNumberOfTokens) < 0 {
		return fmt.Errorf("%w: max_number_of_tokens below min_number_of_tokens", ErrInvalidTerms)
	}
	if !ulps.IsFraction(t.PublicPriceFrac) {
		return fmt.Errorf("%w: public_price_frac must be in (0, 1]", ErrInvalidTerms)
	}
	if !ulps.IsFraction(t.MigratedPriceFrac) {
		return fmt.Errorf("%w: migrated_price_frac must be in (0, 1]", ErrInvalidTerms)
	}
	if t.PlatformFeeFrac == nil || t.PlatformFeeFrac.Sign() < 0 || t.PlatformFeeFrac.Cmp(ulps.One) >= 0 {
		return fmt.Errorf("%w: platform_fee_frac must be in [0, 1)", ErrInvalidTerms)
	}
	return nil
}

// Clone returns a deep copy.
func (t *Terms) Clone() *Terms {
	c := *t
	c.MinTicket = ulps.Copy(t.MinTicket)
	c.MaxTicket = ulps.Copy(t.MaxTicket)
	c.MaxInvestmentEurUlps = ulps.Copy(t.MaxInvestmentEurUlps)
	c.MinNumberOfTokens = ulps.Copy(t.MinNumberOfTokens)
	c.MaxNumberOfTokens = ulps.Copy(t.MaxNumberOfTokens)
	c.TokenPrice = ulps.Copy(t.TokenPrice)
	c.PublicPriceFrac = ulps.Copy(t.PublicPriceFrac)
	c.MigratedPriceFrac = ulps.Copy(t.MigratedPriceFrac)
	c.PlatformFeeFrac = ulps.Copy(t.PlatformFeeFrac)
	return &c
}

// document is the JSON form: decimal strings and Go durations.
type document struct {
	MinStartLeadTime  string `json:"min_start_lead_time"`
	WhitelistDuration string `json:"whitelist_duration"`
	PublicDuration    string `json:"public_duration"`
	SigningDuration   string `json:"signing_duration"`
	ClaimDuration     string `json:"claim_duration"`
	MaxRateAge        string `json:"max_rate_age"`

	MinTicket         string `json:"min_ticket"`
	MaxTicket         string `json:"max_ticket"`
	MaxInvestment     string `json:"max_investment"`
	MinNumberOfTokens string `json:"min_number_of_tokens"`
	MaxNumberOfTokens string `json:"max_number_of_tokens"`
	TokenPrice        string `json:"token_price"`
	PublicPriceFrac   string `json:"public_price_frac"`
	MigratedPriceFrac string `json:"migrated_price_frac"`
	PlatformFeeFrac   string `json:"platform_fee_frac"`
}

// Parse decodes and validates a JSON terms document. Omitted fractions
// default to 1 (no discount) and an omitted fee to 0.
func Parse(data []byte) (*Terms, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTerms, err)
	}
	if doc.PublicPriceFrac == "" {
		doc.PublicPriceFrac = "1"
	}
	if doc.MigratedPriceFrac == "" {
		doc.MigratedPriceFrac = doc.PublicPriceFrac
	}
	if doc.PlatformFeeFrac == "" {
		doc.PlatformFeeFrac = "0"
	}
	if doc.MinStartLeadTime == "" {
		doc.MinStartLeadTime = "24h"
	}

	var t Terms
	var errs []error
	dur := func(name, s string) time.Duration {
		d, err := time.ParseDuration(s)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		return d
	}
	amt := func(name, s string) *big.Int {
		v, err := ulps.Parse(s)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		return v
	}

	t.MinStartLeadTime = dur("min_start_lead_time", doc.MinStartLeadTime)
	t.WhitelistDuration = dur("whitelist_duration", doc.WhitelistDuration)
	t.PublicDuration = dur("public_duration", doc.PublicDuration)
	t.SigningDuration = dur("signing_duration", doc.SigningDuration)
	t.ClaimDuration = dur("claim_duration", doc.ClaimDuration)
	t.MaxRateAge = dur("max_rate_age", doc.MaxRateAge)

	t.MinTicket = amt("min_ticket", doc.MinTicket)
	t.MaxTicket = amt("max_ticket", doc.MaxTicket)
	t.MaxInvestmentEurUlps = amt("max_investment", doc.MaxInvestment)
	t.MinNumberOfTokens = amt("min_number_of_tokens", doc.MinNumberOfTokens)
	t.MaxNumberOfTokens = amt("max_number_of_tokens", doc.MaxNumberOfTokens)
	t.TokenPrice = amt("token_price", doc.TokenPrice)
	t.PublicPriceFrac = amt("public_price_frac", doc.PublicPriceFrac)
	t.MigratedPriceFrac = amt("migrated_price_frac", doc.MigratedPriceFrac)
	t.PlatformFeeFrac = amt("platform_fee_frac", doc.PlatformFeeFrac)

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTerms, errors.Join(errs...))
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Load reads and parses a terms file.
func Load(path string) (*Terms, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrTermsNotFound, path)
		}
		return nil, fmt.Errorf("terms: read %s: %w", path, err)
	}
	return Parse(data)
}
