package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Store is the persistence collaborator for per-user timelines. Appends and
// deletes mutate the store; GetAll returns a snapshot copy ordered ascending
// by timestamp so a concurrent append can never be observed as a partially
// updated list by a ranking pass.
type Store interface {
	// Append adds one item to a user's timeline.
	Append(ctx context.Context, item MemoryItem) error

	// GetAll returns a copy of the user's timeline, ascending by timestamp.
	// Unknown users yield an empty slice, never an error.
	GetAll(ctx context.Context, userID string) ([]MemoryItem, error)

	// DeleteAll removes every item for the user and returns the count.
	DeleteAll(ctx context.Context, userID string) (int, error)

	// UserCounts maps each known user to their item count.
	UserCounts(ctx context.Context) (map[string]int, error)

	// Close releases backend resources.
	Close() error
}

// InMemoryStore keeps timelines in process memory. Suitable for prototyping
// and tests; swap for the Badger or Redis backend for persistence.
type InMemoryStore struct {
	mu    sync.RWMutex
	items map[string][]MemoryItem
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{items: make(map[string][]MemoryItem)}
}

// Append adds an item to the user's timeline.
func (s *InMemoryStore) Append(ctx context.Context, item MemoryItem) error {
	if item.UserID == "" {
		return ErrInvalidUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.UserID] = append(s.items[item.UserID], item)
	return nil
}

// GetAll returns a chronological copy of the user's timeline.
func (s *InMemoryStore) GetAll(ctx context.Context, userID string) ([]MemoryItem, error) {
	s.mu.RLock()
	stored := s.items[userID]
	snapshot := make([]MemoryItem, len(stored))
	copy(snapshot, stored)
	s.mu.RUnlock()

	sortChronological(snapshot)
	return snapshot, nil
}

// DeleteAll removes the user's timeline and returns the number of items.
func (s *InMemoryStore) DeleteAll(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := len(s.items[userID])
	delete(s.items, userID)
	return count, nil
}

// UserCounts returns the item count per user.
func (s *InMemoryStore) UserCounts(ctx context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int, len(s.items))
	for user, items := range s.items {
		counts[user] = len(items)
	}
	return counts, nil
}

// Close is a no-op for the in-memory backend.
func (s *InMemoryStore) Close() error {
	return nil
}

// sortChronological orders items ascending by timestamp, preserving append
// order for equal timestamps.
func sortChronological(items []MemoryItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp.Before(items[j].Timestamp)
	})
}

// filterByLLM returns the subset of items produced by the given model.
// An empty filter keeps everything.
func filterByLLM(items []MemoryItem, llm string) []MemoryItem {
	if llm == "" {
		return items
	}
	filtered := items[:0:0]
	for _, item := range items {
		if item.LLM == llm {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// searchSubstring returns items whose content contains the query,
// case-insensitively.
func searchSubstring(items []MemoryItem, query string) []MemoryItem {
	queryLC := strings.ToLower(query)
	var matched []MemoryItem
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.Content), queryLC) {
			matched = append(matched, item)
		}
	}
	return matched
}

// windowFilter restricts items to the most recent count and/or those within
// the recent span before now. Both constraints intersect; zero values
// disable the corresponding constraint. Items must be chronological.
func windowFilter(items []MemoryItem, count int, hours float64, now time.Time) []MemoryItem {
	if hours > 0 {
		cutoff := now.Add(-time.Duration(hours * float64(time.Hour)))
		idx := sort.Search(len(items), func(i int) bool {
			return !items[i].Timestamp.Before(cutoff)
		})
		items = items[idx:]
	}
	if count > 0 && count < len(items) {
		items = items[len(items)-count:]
	}
	return items
}
