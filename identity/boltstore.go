package identity

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.etcd.io/bbolt"
)

var bucketAccounts = []byte("identity")

// Status flags stored per account.
const (
	flagVerified byte = 1 << iota
	flagFrozen
)

// OpenRegistry loads a registry from db and writes later changes back to it.
func OpenRegistry(db *bbolt.DB) (*Registry, error) {
	r := NewRegistry()
	err := db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketAccounts)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			if len(k) != common.AddressLength || len(v) != 1 {
				return fmt.Errorf("malformed account record %x", k)
			}
			addr := common.BytesToAddress(k)
			if v[0]&flagVerified != 0 {
				r.verified[addr] = true
			}
			if v[0]&flagFrozen != 0 {
				r.frozen[addr] = true
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("identity: open registry: %w", err)
	}
	r.db = db
	return r, nil
}

func (r *Registry) put(addr common.Address, verified, frozen bool) error {
	var flags byte
	if verified {
		flags |= flagVerified
	}
	if frozen {
		flags |= flagFrozen
	}
	err := r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAccounts)
		if flags == 0 {
			return b.Delete(addr.Bytes())
		}
		return b.Put(addr.Bytes(), []byte{flags})
	})
	if err != nil {
		return fmt.Errorf("identity: store %s: %w", addr.Hex(), err)
	}
	return nil
}
