package token

import (
	"fmt"
	"math/big"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/common"
)

// Op is the kind of a journaled balance change.
type Op uint8

const (
	OpMint Op = iota + 1
	OpTransfer
	OpBurn
)

func (o Op) String() string {
	switch o {
	case OpMint:
		return "mint"
	case OpTransfer:
		return "transfer"
	case OpBurn:
		return "burn"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// Entry is one balance change. Mint leaves From zero and burn leaves To zero.
type Entry struct {
	Op     Op
	From   common.Address
	To     common.Address
	Amount *big.Int
	At     time.Time
}

// Journal durably records ledger changes so that a Ledger can be rebuilt
// after a restart.
type Journal interface {
	// Append records e. A Ledger applies a change only after Append succeeds.
	Append(e Entry) error
	// Replay calls fn for every entry in append order.
	Replay(fn func(Entry) error) error
}

// OpenLedger rebuilds a ledger from j and records every later change to it.
// Replayed changes keep their original timestamps, so snapshot reads are
// unaffected by the restart.
func OpenLedger(symbol string, clk clock.Clock, j Journal) (*Ledger, error) {
	l := NewLedger(symbol, clk)
	err := j.Replay(func(e Entry) error {
		if err := checkAmount(e.Amount); err != nil {
			return err
		}
		switch e.Op {
		case OpMint:
			l.mint(e.At, e.To, e.Amount)
		case OpTransfer:
			if err := l.transfer(e.At, e.From, e.To, e.Amount); err != nil {
				return err
			}
		case OpBurn:
			if err := l.burn(e.At, e.From, e.Amount); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown %s", e.Op)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("token: replay %s: %w", symbol, err)
	}
	l.journal = j
	return l, nil
}
