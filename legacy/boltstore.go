package legacy

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"go.etcd.io/bbolt"

	"github.com/equityledger/libeto-go/rates"
	"github.com/equityledger/libeto-go/token"
)

// record is the stored state of one investor.
type record struct {
	Locked   *big.Int
	Migrated bool
}

// OpenWallet is NewWallet backed by db: locked balances and migration flags
// are loaded from, and written through to, a bucket named after cur.
func OpenWallet(db *bbolt.DB, addr common.Address, cur rates.Currency, tok token.Token, log *logrus.Entry) (*Wallet, error) {
	w := NewWallet(addr, cur, tok, log)
	w.bucket = []byte("legacy/" + string(cur))
	err := db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(w.bucket)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			var rec record
			if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&rec); err != nil {
				return fmt.Errorf("decode %x: %w", k, err)
			}
			investor := common.BytesToAddress(k)
			if rec.Locked != nil && rec.Locked.Sign() > 0 {
				w.locked[investor] = rec.Locked
			}
			if rec.Migrated {
				w.migrated[investor] = true
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("legacy: open %s wallet: %w", cur, err)
	}
	w.db = db
	return w, nil
}

// save writes the investor's record. The caller holds w.mu.
func (w *Wallet) save(investor common.Address) error {
	if w.db == nil {
		return nil
	}
	rec := record{Locked: new(big.Int), Migrated: w.migrated[investor]}
	if bal := w.locked[investor]; bal != nil {
		rec.Locked.Set(bal)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return fmt.Errorf("legacy: encode %s: %w", investor.Hex(), err)
	}
	err := w.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(w.bucket).Put(investor.Bytes(), buf.Bytes())
	})
	if err != nil {
		return fmt.Errorf("legacy: store %s: %w", investor.Hex(), err)
	}
	return nil
}
