// Package checkpoint persists the last applied change timestamp per namespace.
package checkpoint

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketCheckpoints = []byte("checkpoints")

// Store is a bbolt-backed checkpoint table
type Store struct {
	db *bolt.DB
}

// Open opens or creates the checkpoint file at path
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open checkpoint store %s: %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCheckpoints)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("create checkpoint bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Get returns the checkpoint of a namespace; ok is false when none was saved
func (s *Store) Get(namespace string) (ts int64, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketCheckpoints).Get([]byte(namespace))
		if v == nil {
			return nil
		}
		if len(v) != 8 {
			return fmt.Errorf("corrupt checkpoint for %s: %d bytes", namespace, len(v))
		}
		ts, ok = int64(binary.BigEndian.Uint64(v)), true
		return nil
	})
	return ts, ok, err
}

// Advance stores ts when it is newer than the saved checkpoint. It never moves backwards.
func (s *Store) Advance(namespace string, ts int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCheckpoints)
		if v := b.Get([]byte(namespace)); len(v) == 8 && int64(binary.BigEndian.Uint64(v)) >= ts {
			return nil
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(ts))
		return b.Put([]byte(namespace), buf)
	})
}

// All returns every saved checkpoint
func (s *Store) All() (map[string]int64, error) {
	out := map[string]int64{}
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketCheckpoints).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if len(v) == 8 {
				out[string(k)] = int64(binary.BigEndian.Uint64(v))
			}
		}
		return nil
	})
	return out, err
}

// Close releases the file lock
func (s *Store) Close() error {
	return s.db.Close()
}
