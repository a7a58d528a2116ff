package token

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"

	"go.etcd.io/bbolt"
)

// BoltJournal keeps one ledger's entries in a bbolt bucket, keyed by the
// bucket sequence.
type BoltJournal struct {
	db     *bbolt.DB
	bucket []byte
}

// Compile-time interface check.
var _ Journal = (*BoltJournal)(nil)

// NewBoltJournal opens the journal of the ledger named symbol in db. Several
// ledgers may share one database.
func NewBoltJournal(db *bbolt.DB, symbol string) (*BoltJournal, error) {
	name := []byte("ledger/" + symbol)
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(name)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("token: create bucket %q: %w", name, err)
	}
	return &BoltJournal{db: db, bucket: name}, nil
}

// Append implements Journal.
func (j *BoltJournal) Append(e Entry) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	return j.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(j.bucket)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return b.Put(key, buf.Bytes())
	})
}

// Replay implements Journal.
func (j *BoltJournal) Replay(fn func(Entry) error) error {
	return j.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(j.bucket).ForEach(func(k, v []byte) error {
			var e Entry
			if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&e); err != nil {
				return fmt.Errorf("decode entry %x: %w", k, err)
			}
			return fn(e)
		})
	})
}

// Len returns the number of journaled entries.
func (j *BoltJournal) Len() (int, error) {
	var n int
	err := j.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(j.bucket).Stats().KeyN
		return nil
	})
	return n, err
}
