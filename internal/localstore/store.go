// Package localstore is the durable guest-side key/value store.
//
// Each session (the "device") gets its own top-level bbolt bucket; inside it,
// keys such as "wishlist_items" hold Collection JSON. Writes replace the whole
// value, so the last write for a key wins. A value that no longer parses is
// treated as absent: it is logged and cleared instead of surfacing an error.
package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	bolt "go.etcd.io/bbolt"

	"storefront-sync/internal/model"
)

// Store is a bbolt-backed collection store shared by all sessions.
type Store struct {
	db     *bolt.DB
	logger *slog.Logger
}

// Open opens (or creates) the database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Scope returns the view of the store belonging to one session.
func (s *Store) Scope(sessionID string) *Scoped {
	return &Scoped{store: s, bucket: []byte(sessionID)}
}

// DropScope deletes every key held for a session.
func (s *Store) DropScope(sessionID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		err := tx.DeleteBucket([]byte(sessionID))
		if errors.Is(err, bolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
}

// Scoped is a session-scoped key space.
type Scoped struct {
	store  *Store
	bucket []byte
}

// Read returns the collection stored under key. The boolean is false when
// nothing usable is stored, including the case of a corrupted value, which is
// removed as a side effect.
func (s *Scoped) Read(key string) (model.Collection, bool) {
	var raw []byte
	err := s.store.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		// bbolt slices are only valid inside the transaction
		if v := b.Get([]byte(key)); v != nil {
			raw = make([]byte, len(v))
			copy(raw, v)
		}
		return nil
	})
	if err != nil {
		s.store.logger.Warn("local store read failed",
			slog.String("scope", string(s.bucket)),
			slog.String("key", key),
			slog.String("error", err.Error()))
		return nil, false
	}
	if raw == nil {
		return nil, false
	}

	var items model.Collection
	if err := json.Unmarshal(raw, &items); err != nil {
		s.store.logger.Warn("discarding corrupted local data",
			slog.String("scope", string(s.bucket)),
			slog.String("key", key),
			slog.String("error", err.Error()))
		if clearErr := s.Clear(key); clearErr != nil {
			s.store.logger.Warn("clearing corrupted key failed",
				slog.String("key", key),
				slog.String("error", clearErr.Error()))
		}
		return nil, false
	}
	return items.Dedupe(), true
}

// Write replaces the value under key.
func (s *Scoped) Write(key string, items model.Collection) error {
	if items == nil {
		items = model.Collection{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.writeRaw(key, data)
}

// Clear removes key. Clearing a missing key is not an error.
func (s *Scoped) Clear(key string) error {
	return s.store.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

func (s *Scoped) writeRaw(key string, data []byte) error {
	return s.store.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(s.bucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}
