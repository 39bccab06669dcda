// Package history holds the in-memory "current items" view read by
// consumers. It is a cache: callers refresh it after each mutation and
// readers may see stale data in between.
package history

import (
	"fmt"
	"sync"
	"time"

	"github.com/berrythewa/clipkeep/internal/storage"
	"github.com/berrythewa/clipkeep/internal/types"
)

// DefaultSize is how many items a snapshot keeps.
const DefaultSize = 100

type Snapshot struct {
	mu        sync.RWMutex
	items     []*types.ClipboardItem
	size      int
	refreshed time.Time
}

func NewSnapshot(size int) *Snapshot {
	if size <= 0 {
		size = DefaultSize
	}
	return &Snapshot{size: size}
}

// Refresh reloads the newest items from store. On error the previous
// contents are kept.
func (s *Snapshot) Refresh(store storage.Store) error {
	items, err := store.FetchAll(s.size)
	if err != nil {
		return fmt.Errorf("failed to refresh history snapshot: %w", err)
	}

	s.mu.Lock()
	s.items = items
	s.refreshed = time.Now()
	s.mu.Unlock()
	return nil
}

// Items returns up to n items, newest first. n <= 0 returns everything held.
func (s *Snapshot) Items(n int) []*types.ClipboardItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || n > len(s.items) {
		n = len(s.items)
	}
	out := make([]*types.ClipboardItem, n)
	copy(out, s.items[:n])
	return out
}

// Latest returns the newest item, or nil.
func (s *Snapshot) Latest() *types.ClipboardItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.items) == 0 {
		return nil
	}
	return s.items[0]
}

func (s *Snapshot) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// RefreshedAt returns when the snapshot was last reloaded.
func (s *Snapshot) RefreshedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshed
}
