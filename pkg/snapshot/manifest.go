package snapshot

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"
)

var manifestBucket = []byte("snapshots")

// Manifest records, per partition, when the last snapshot was taken and
// at what Raft log index, surviving process restarts.
type Manifest struct {
	db *bolt.DB
}

// OpenManifest opens (creating if necessary) the manifest database at path.
func OpenManifest(path string) (*Manifest, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("snapshot: opening manifest %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(manifestBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Manifest{db: db}, nil
}

// Close releases the manifest database file.
func (m *Manifest) Close() error {
	return m.db.Close()
}

// Record stores the index and time of a completed snapshot for partitionID.
func (m *Manifest) Record(partitionID uint32, index uint64, at time.Time) error {
	return m.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(manifestBucket)
		buf := make([]byte, 16)
		binary.BigEndian.PutUint64(buf[:8], index)
		binary.BigEndian.PutUint64(buf[8:], uint64(at.Unix()))
		return b.Put(partitionKey(partitionID), buf)
	})
}

// Last returns the most recently recorded index and time, or zero values
// if no snapshot has ever been recorded for partitionID.
func (m *Manifest) Last(partitionID uint32) (index uint64, at time.Time, err error) {
	err = m.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(manifestBucket)
		v := b.Get(partitionKey(partitionID))
		if v == nil {
			return nil
		}
		index = binary.BigEndian.Uint64(v[:8])
		at = time.Unix(int64(binary.BigEndian.Uint64(v[8:])), 0)
		return nil
	})
	return index, at, err
}

func partitionKey(id uint32) []byte {
	return []byte(strconv.FormatUint(uint64(id), 10))
}
