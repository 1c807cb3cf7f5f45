package memory

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
)

const badgerKeyPrefix = "memory:"

// BadgerStore persists timelines in a Badger key-value database. Keys are
// memory:{hex(user)}:{timestamp}:{seq} so a prefix scan yields a user's
// items in chronological order. The user segment is hex-encoded: user IDs
// are free-form, and an ID containing the separator must not collide with
// another user's prefix. The Badger DB lifecycle is managed by the caller.
type BadgerStore struct {
	db  *badger.DB
	seq atomic.Uint64
}

// NewBadgerStore creates a Badger-backed store over an open database.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func badgerUserSegment(userID string) string {
	return hex.EncodeToString([]byte(userID))
}

func (s *BadgerStore) itemKey(item MemoryItem) []byte {
	// Zero-padded nanos keep byte order chronological; the sequence number
	// disambiguates identical timestamps within this process.
	return []byte(fmt.Sprintf("%s%s:%020d:%012d",
		badgerKeyPrefix, badgerUserSegment(item.UserID), item.Timestamp.UnixNano(), s.seq.Add(1)))
}

func badgerUserPrefix(userID string) []byte {
	return []byte(badgerKeyPrefix + badgerUserSegment(userID) + ":")
}

// Append persists one item.
func (s *BadgerStore) Append(ctx context.Context, item MemoryItem) error {
	if item.UserID == "" {
		return ErrInvalidUserID
	}
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("memory: marshal item: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.itemKey(item), data)
	})
}

// GetAll returns the user's timeline, ascending by timestamp.
func (s *BadgerStore) GetAll(ctx context.Context, userID string) ([]MemoryItem, error) {
	var items []MemoryItem
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = badgerUserPrefix(userID)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var item MemoryItem
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &item)
			}); err != nil {
				return err
			}
			items = append(items, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Items written by other processes may interleave; keep the contract.
	sortChronological(items)
	return items, nil
}

// DeleteAll removes every item for the user and returns the count.
func (s *BadgerStore) DeleteAll(ctx context.Context, userID string) (int, error) {
	count := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = badgerUserPrefix(userID)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// UserCounts scans the full keyspace and counts items per user.
func (s *BadgerStore) UserCounts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(badgerKeyPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			// Key format: memory:{hex(user)}:{timestamp}:{seq}
			rest := strings.TrimPrefix(key, badgerKeyPrefix)
			segment, _, ok := strings.Cut(rest, ":")
			if !ok {
				continue
			}
			userID, err := hex.DecodeString(segment)
			if err != nil {
				continue
			}
			counts[string(userID)]++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// Close is a no-op; the Badger DB lifecycle is managed externally.
func (s *BadgerStore) Close() error {
	return nil
}
