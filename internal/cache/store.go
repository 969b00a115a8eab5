// Package cache keeps registrants that could not be written to the
// spreadsheet in a local bbolt file until they can be flushed.
package cache

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"tournament-bot/internal/models"
)

const PendingBucket = "pending"

// Entry is a stored registrant and its insertion sequence.
type Entry struct {
	Seq        uint64
	Registrant models.Registrant
}

type record struct {
	Nickname     string    `json:"nickname"`
	PlayerID     string    `json:"pubg_id"`
	AccountID    int64     `json:"telegram_id"`
	RegisteredAt time.Time `json:"registration_time"`
}

type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(dbPath string) (*BoltStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory %s: %w", dir, err)
	}

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db at %s: %w", dbPath, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(PendingBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Append(r models.Registrant) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(PendingBucket))
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		data, err := json.Marshal(record{
			Nickname:     r.Nickname,
			PlayerID:     r.PlayerID,
			AccountID:    r.AccountID,
			RegisteredAt: r.RegisteredAt,
		})
		if err != nil {
			return fmt.Errorf("marshal registrant: %w", err)
		}
		return b.Put(key(seq), data)
	})
}

// List returns entries in insertion order. Undecodable values are skipped.
func (s *BoltStore) List() ([]Entry, error) {
	var out []Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(PendingBucket)).ForEach(func(k, v []byte) error {
			var rec record
			if err := json.Unmarshal(v, &rec); err != nil {
				return nil
			}
			out = append(out, Entry{
				Seq: binary.BigEndian.Uint64(k),
				Registrant: models.Registrant{
					Nickname:     rec.Nickname,
					PlayerID:     rec.PlayerID,
					AccountID:    rec.AccountID,
					RegisteredAt: rec.RegisteredAt,
				},
			})
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	return out, nil
}

func (s *BoltStore) Delete(seqs ...uint64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(PendingBucket))
		for _, seq := range seqs {
			if err := b.Delete(key(seq)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(PendingBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(PendingBucket))
		return err
	})
}

func (s *BoltStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func key(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}
