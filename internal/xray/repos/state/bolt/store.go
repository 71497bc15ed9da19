// Package bolt persists allowlist state in a bbolt database. It is the
// default backend when a single execution context owns the state.
package bolt

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/agch-dev/analytics-x-ray/internal/xray/domain"
	"github.com/agch-dev/analytics-x-ray/internal/xray/services/store"
)

var (
	bucketState = []byte("state")
	bucketMeta  = []byte("meta")
)

type boltStore struct {
	db *bbolt.DB
}

// New opens (or creates) a Bolt database at path and ensures buckets exist.
func New(path string) (store.Persistence, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketState); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketMeta); err != nil {
			return err
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &boltStore{db: db}, nil
}

func (s *boltStore) Close() error { return s.db.Close() }

func (s *boltStore) Load() (domain.State, bool, error) {
	var raw []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketState)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(domain.StateKey)); v != nil {
			raw = make([]byte, len(v))
			copy(raw, v)
		}
		return nil
	})
	if err != nil {
		return domain.State{}, false, err
	}
	if raw == nil {
		return domain.State{}, false, nil
	}
	var st domain.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return domain.State{}, false, fmt.Errorf("decode persisted state: %w", err)
	}
	return st, true, nil
}

func (s *boltStore) Save(st domain.State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketState).Put([]byte(domain.StateKey), raw); err != nil {
			return err
		}
		var stamp [8]byte
		binary.BigEndian.PutUint64(stamp[:], uint64(time.Now().Unix()))
		return tx.Bucket(bucketMeta).Put([]byte("updated"), stamp[:])
	})
}

// UpdatedUnix returns the last save timestamp, or 0 when never saved.
func (s *boltStore) UpdatedUnix() int64 {
	var ts int64
	_ = s.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket(bucketMeta); b != nil {
			if v := b.Get([]byte("updated")); len(v) == 8 {
				ts = int64(binary.BigEndian.Uint64(v))
			}
		}
		return nil
	})
	return ts
}

var _ store.Persistence = (*boltStore)(nil)
