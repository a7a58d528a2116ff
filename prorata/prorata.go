// Package prorata splits an amount across weighted holders.
package prorata

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/equityledger/libeto-go/ulps"
)

// Share is a holder's weight in a distribution.
type Share struct {
	Holder common.Address
	Weight *big.Int
}

// Payment is a holder's part of a distribution.
type Payment struct {
	Holder common.Address
	Amount *big.Int
}

func check(total *big.Int, shares []Share, totalWeight *big.Int) error {
	if len(shares) == 0 {
		return ErrNoShares
	}
	if total == nil || total.Sign() < 0 {
		return fmt.Errorf("%w: total", ErrNegativeAmount)
	}
	if totalWeight == nil || totalWeight.Sign() == 0 {
		return ErrZeroTotalWeight
	}
	sum := new(big.Int)
	for i, s := range shares {
		if s.Weight == nil || s.Weight.Sign() < 0 {
			return fmt.Errorf("%w: share %d", ErrNegativeAmount, i)
		}
		sum.Add(sum, s.Weight)
	}
	if sum.Cmp(totalWeight) > 0 {
		return fmt.Errorf("%w: %s > %s", ErrWeightExceedsTotal, sum, totalWeight)
	}
	return nil
}

// Distribute splits total across shares in proportion to weight/totalWeight.
// Every share but the last is truncated; the last share takes the remainder,
// so the payments always add up to total. The shares must cover totalWeight
// exactly for the last share's remainder to be fair.
func Distribute(total *big.Int, shares []Share, totalWeight *big.Int) ([]Payment, error) {
	if err := check(total, shares, totalWeight); err != nil {
		return nil, err
	}

	payments := make([]Payment, len(shares))
	distributed := new(big.Int)
	for i, s := range shares {
		payments[i].Holder = s.Holder
		if i == len(shares)-1 {
			payments[i].Amount = new(big.Int).Sub(total, distributed)
			break
		}
		amount, err := ulps.Proportion(total, s.Weight, totalWeight)
		if err != nil {
			return nil, err
		}
		payments[i].Amount = amount
		distributed.Add(distributed, amount)
	}
	return payments, nil
}

// Allocate computes each share's entitlement independently, rounded half up.
// The payments may differ from total by rounding.
func Allocate(total *big.Int, shares []Share, totalWeight *big.Int) ([]Payment, error) {
	if err := check(total, shares, totalWeight); err != nil {
		return nil, err
	}
	payments := make([]Payment, len(shares))
	for i, s := range shares {
		amount, err := ulps.ProportionRound(total, s.Weight, totalWeight)
		if err != nil {
			return nil, err
		}
		payments[i] = Payment{Holder: s.Holder, Amount: amount}
	}
	return payments, nil
}

// Sum adds up the payment amounts.
func Sum(payments []Payment) *big.Int {
	sum := new(big.Int)
	for _, p := range payments {
		if p.Amount != nil {
			sum.Add(sum, p.Amount)
		}
	}
	return sum
}

// CheckConservation verifies that payments add up to total.
func CheckConservation(total *big.Int, payments []Payment) error {
	if sum := Sum(payments); sum.Cmp(total) != 0 {
		return fmt.Errorf("%w: distributed=%s total=%s", ErrConservationViolation, sum, total)
	}
	return nil
}
