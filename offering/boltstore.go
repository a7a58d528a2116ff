package offering

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/equityledger/libeto-go/whitelist"
)

var (
	bucketState     = []byte("state")
	bucketTickets   = []byte("tickets")
	bucketWhitelist = []byte("whitelist")
	bucketEvents    = []byte("events")

	keyState = []byte("offering")
)

// BoltStore persists the offering in a bbolt database. Every Commit is a
// single bbolt transaction.
type BoltStore struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ Store = (*BoltStore)(nil)

// OpenBoltStore opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltStore(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("offering: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("offering: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketState, bucketTickets, bucketWhitelist, bucketEvents} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("boltstore: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("offering: create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error { return s.db.Close() }

// seqKey encodes an event sequence number as an 8-byte big-endian key.
func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

// encodeGob serializes a value using gob encoding.
func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeGob deserializes gob-encoded data into a value.
func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// Load reads the state, every ticket and the whitelist.
func (s *BoltStore) Load() (*Batch, error) {
	b := &Batch{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		if data := tx.Bucket(bucketState).Get(keyState); data != nil {
			var st State
			if err := decodeGob(data, &st); err != nil {
				return fmt.Errorf("boltstore: decode state: %w", err)
			}
			st.normalize()
			b.State = &st
		}
		err := tx.Bucket(bucketTickets).ForEach(func(k, v []byte) error {
			var t Ticket
			if err := decodeGob(v, &t); err != nil {
				return fmt.Errorf("boltstore: decode ticket %x: %w", k, err)
			}
			t.normalize()
			b.Tickets = append(b.Tickets, &t)
			return nil
		})
		if err != nil {
			return err
		}
		return tx.Bucket(bucketWhitelist).ForEach(func(k, v []byte) error {
			var e whitelist.Entry
			if err := decodeGob(v, &e); err != nil {
				return fmt.Errorf("boltstore: decode whitelist entry %x: %w", k, err)
			}
			b.Whitelist = append(b.Whitelist, e)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("offering: load: %w", err)
	}
	return b, nil
}

// Commit writes the batch in one transaction.
func (s *BoltStore) Commit(b *Batch) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if b.State != nil {
			data, err := encodeGob(b.State)
			if err != nil {
				return fmt.Errorf("encode state: %w", err)
			}
			if err := tx.Bucket(bucketState).Put(keyState, data); err != nil {
				return fmt.Errorf("boltstore: put state: %w", err)
			}
		}

		tb := tx.Bucket(bucketTickets)
		for _, t := range b.Tickets {
			data, err := encodeGob(t)
			if err != nil {
				return fmt.Errorf("encode ticket: %w", err)
			}
			if err := tb.Put(t.Investor.Bytes(), data); err != nil {
				return fmt.Errorf("boltstore: put ticket: %w", err)
			}
		}

		if b.Whitelist != nil {
			if err := tx.DeleteBucket(bucketWhitelist); err != nil {
				return fmt.Errorf("boltstore: reset whitelist: %w", err)
			}
			wb, err := tx.CreateBucket(bucketWhitelist)
			if err != nil {
				return fmt.Errorf("boltstore: reset whitelist: %w", err)
			}
			for _, e := range b.Whitelist {
				data, err := encodeGob(e)
				if err != nil {
					return fmt.Errorf("encode whitelist entry: %w", err)
				}
				if err := wb.Put(e.Investor.Bytes(), data); err != nil {
					return fmt.Errorf("boltstore: put whitelist entry: %w", err)
				}
			}
		}

		eb := tx.Bucket(bucketEvents)
		for _, ev := range b.Events {
			if eb.Get(seqKey(ev.Seq)) != nil {
				return fmt.Errorf("boltstore: duplicate event seq %d", ev.Seq)
			}
			data, err := encodeGob(ev)
			if err != nil {
				return fmt.Errorf("encode event: %w", err)
			}
			if err := eb.Put(seqKey(ev.Seq), data); err != nil {
				return fmt.Errorf("boltstore: put event: %w", err)
			}
		}
		return nil
	})
}

// Events returns the journal in sequence order.
func (s *BoltStore) Events() ([]Event, error) {
	var events []Event
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEvents).ForEach(func(k, v []byte) error {
			var ev Event
			if err := decodeGob(v, &ev); err != nil {
				return fmt.Errorf("boltstore: decode event %d: %w", binary.BigEndian.Uint64(k), err)
			}
			events = append(events, ev)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("offering: list events: %w", err)
	}
	return events, nil
}
