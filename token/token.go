// Package token defines the token contract used for the equity, euro and
// ether tokens, and an in-process ledger implementation with balance
// checkpoints for snapshot reads.
package token

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Token is the mint/transfer/burn contract the offering settles through.
// Amounts are in the token's smallest unit (ULPS for all platform tokens).
type Token interface {
	Mint(to common.Address, amount *big.Int) error
	Transfer(from, to common.Address, amount *big.Int) error
	BurnFrom(holder common.Address, amount *big.Int) error
	BalanceOf(addr common.Address) *big.Int
	TotalSupply() *big.Int
}

// Snapshotter reads historical balances. A balance "at" t is the balance
// after every change made strictly before t.
type Snapshotter interface {
	BalanceAt(addr common.Address, t time.Time) *big.Int
	TotalSupplyAt(t time.Time) *big.Int
}

// SnapshotToken is a Token that also answers snapshot reads.
type SnapshotToken interface {
	Token
	Snapshotter
}
