package dlq

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/xraph/taskdispatch/id"
)

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-process Store. Entries expire after the retention
// period given to NewMemoryStore; a zero retention keeps them until they
// are deleted or purged.
type MemoryStore struct {
	// mu guards mutation of stored entries; the cache guards its own map.
	mu      sync.RWMutex
	entries *cache.Cache
}

// NewMemoryStore creates a MemoryStore that keeps entries for retention.
func NewMemoryStore(retention time.Duration) *MemoryStore {
	expiration, cleanup := cache.NoExpiration, time.Duration(0)
	if retention > 0 {
		expiration, cleanup = retention, retention/2
	}
	return &MemoryStore{entries: cache.New(expiration, cleanup)}
}

// Push adds an entry to the dead letter queue.
func (m *MemoryStore) Push(_ context.Context, entry *Entry) error {
	m.entries.Set(entry.ID.String(), entry, cache.DefaultExpiration)
	return nil
}

// List returns entries matching the given options, oldest first.
func (m *MemoryStore) List(_ context.Context, opts ListOpts) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := m.entries.Items()
	result := make([]*Entry, 0, len(items))
	for _, item := range items {
		e := item.Object.(*Entry)
		if opts.Stage != "" && e.Stage != opts.Stage {
			continue
		}
		result = append(result, e.clone())
	}

	sort.Slice(result, func(i, k int) bool {
		if result[i].FailedAt.Equal(result[k].FailedAt) {
			return result[i].ID.String() < result[k].ID.String()
		}
		return result[i].FailedAt.Before(result[k].FailedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}

// Get retrieves an entry by ID.
func (m *MemoryStore) Get(_ context.Context, entryID id.ID) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.entries.Get(entryID.String())
	if !ok {
		return nil, ErrEntryNotFound
	}
	return v.(*Entry).clone(), nil
}

// MarkReplayed sets ReplayedAt on an entry.
func (m *MemoryStore) MarkReplayed(_ context.Context, entryID id.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.entries.Get(entryID.String())
	if !ok {
		return ErrEntryNotFound
	}
	now := time.Now().UTC()
	v.(*Entry).ReplayedAt = &now
	return nil
}

// Delete removes a single entry.
func (m *MemoryStore) Delete(_ context.Context, entryID id.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := entryID.String()
	if _, ok := m.entries.Get(key); !ok {
		return ErrEntryNotFound
	}
	m.entries.Delete(key)
	return nil
}

// Purge removes entries with FailedAt before the given time.
func (m *MemoryStore) Purge(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for key, item := range m.entries.Items() {
		if item.Object.(*Entry).FailedAt.Before(before) {
			m.entries.Delete(key)
			count++
		}
	}
	return count, nil
}

// Count returns the number of unexpired entries.
func (m *MemoryStore) Count(_ context.Context) (int64, error) {
	return int64(len(m.entries.Items())), nil
}

func (e *Entry) clone() *Entry {
	c := *e
	if e.ReplayedAt != nil {
		t := *e.ReplayedAt
		c.ReplayedAt = &t
	}
	return &c
}
