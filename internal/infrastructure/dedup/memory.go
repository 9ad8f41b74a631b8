package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// defaultMaxEntries bounds the in-memory window so a redelivery storm
// cannot grow the process without limit.
const defaultMaxEntries = 16384

// MemoryStore is the in-process dedup store. Entries expire after the
// configured window; eviction is handled by the backing expirable LRU.
//
// Correct only for a single instance; see the sqlite and mysql stores
// for restart-durable and multi-instance windows.
type MemoryStore struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, time.Time]
}

// NewMemoryStore creates an in-memory dedup store with the given window.
func NewMemoryStore(window time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: expirable.NewLRU[string, time.Time](defaultMaxEntries, nil, window),
	}
}

// Seen implements Store. The lock makes lookup-then-insert one atomic
// step; a duplicate never refreshes its first-seen timestamp.
func (s *MemoryStore) Seen(ctx context.Context, identity string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Get checks the entry's expiry exactly; Contains would report
	// stale entries until the background reaper gets to them.
	if _, ok := s.cache.Get(identity); ok {
		return true, nil
	}

	s.cache.Add(identity, time.Now().UTC())
	return false, nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Name implements Store.
func (s *MemoryStore) Name() string {
	return "memory"
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Purge()
	return nil
}

// Len returns the number of identities currently remembered.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}
