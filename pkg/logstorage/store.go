package logstorage

import (
	"encoding/binary"
	"fmt"
	"strconv"

	bolt "go.etcd.io/bbolt"
)

// Store is a single bbolt database shared by every partition on a node,
// one bucket per partition keyed by its partition ID, mirroring the
// teacher's BoltStore bucket-per-entity layout.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the index-mapping database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("logstorage: opening %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

func bucketName(partitionID uint32) []byte {
	return []byte("partition-" + strconv.FormatUint(uint64(partitionID), 10))
}

// EnsureBucket creates the partition's bucket if it does not already exist.
func (s *Store) EnsureBucket(partitionID uint32) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName(partitionID))
		return err
	})
}

// PutOffset records the stream-processor byte offset applied for a given
// Raft log index.
func (s *Store) PutOffset(partitionID uint32, logIndex, offset uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName(partitionID))
		if b == nil {
			return fmt.Errorf("logstorage: bucket for partition %d not initialized", partitionID)
		}
		return b.Put(encodeKey(logIndex), encodeKey(offset))
	})
}

// LastIndex returns the highest Raft log index recorded for the partition,
// or 0 if none has been recorded yet.
func (s *Store) LastIndex(partitionID uint32) (uint64, error) {
	var last uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName(partitionID))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		k, _ := c.Last()
		if k == nil {
			return nil
		}
		last = decodeKey(k)
		return nil
	})
	return last, err
}

// Compact removes all recorded index mappings at or below upTo, the
// bounded cleanup the compaction hook runs on a cadence for mappings
// behind its retention threshold.
func (s *Store) Compact(partitionID uint32, upTo uint64) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName(partitionID))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if decodeKey(k) > upTo {
				break
			}
			if err := c.Delete(); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

func encodeKey(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func decodeKey(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}
