// Package ulps implements the 18-decimal fixed-point representation ("units of
// least precision scale") used for every monetary amount and fraction in the
// offering ledger.
//
// A value v represents v / 10^18. Fractions such as discounts are ULPS values
// in (0, One]. All helpers operate on *big.Int and never mutate their inputs.
package ulps

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Decimals is the number of fractional digits carried by a ULPS value.
const Decimals = 18

// One is 1.0 in ULPS (10^18).
var One = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

// Zero returns a fresh zero value.
func Zero() *big.Int { return new(big.Int) }

// FromUnits converts a whole number of units into ULPS.
func FromUnits(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), One)
}

// Copy returns an independent copy of v. A nil v copies as zero.
func Copy(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// Mul returns a*b/One, truncating.
func Mul(a, b *big.Int) *big.Int {
	r := new(big.Int).Mul(a, b)
	return r.Quo(r, One)
}

// Div returns a*One/b, truncating. It panics on a zero divisor like big.Int.
func Div(a, b *big.Int) *big.Int {
	r := new(big.Int).Mul(a, One)
	return r.Quo(r, b)
}

// Proportion returns amount*part/total, truncating.
func Proportion(amount, part, total *big.Int) (*big.Int, error) {
	if total.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	r := new(big.Int).Mul(amount, part)
	return r.Quo(r, total), nil
}

// ProportionRound returns amount*part/total rounded half up.
func ProportionRound(amount, part, total *big.Int) (*big.Int, error) {
	if total.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	r := new(big.Int).Mul(amount, part)
	half := new(big.Int).Rsh(total, 1)
	r.Add(r, half)
	return r.Quo(r, total), nil
}

// Min returns the smaller of a and b (a copy).
func Min(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

// Max returns the larger of a and b (a copy).
func Max(a, b *big.Int) *big.Int {
	if a.Cmp(b) >= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

// IsFraction reports whether f lies in (0, One].
func IsFraction(f *big.Int) bool {
	return f != nil && f.Sign() > 0 && f.Cmp(One) <= 0
}

// Parse converts a human decimal string ("15000", "0.5", "1e3") into ULPS.
func Parse(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidAmount, s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: %q", ErrNegativeAmount, s)
	}
	scaled := d.Shift(Decimals)
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("%w: %q", ErrTooPrecise, s)
	}
	return scaled.BigInt(), nil
}

// MustParse is Parse for constants and tests. It panics on error.
func MustParse(s string) *big.Int {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Format renders a ULPS value as a decimal string without trailing zeros.
func Format(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -Decimals).String()
}
