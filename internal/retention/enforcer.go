// Package retention keeps the history bounded in size and age. Pinned items
// are never counted and never evicted.
package retention

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/berrythewa/clipkeep/internal/storage"
	"github.com/berrythewa/clipkeep/internal/types"
)

// DefaultMaxItems is the default number of unpinned items kept.
const DefaultMaxItems = 500

// Policy configures the enforcer.
type Policy struct {
	// MaxItems bounds the number of unpinned items. <= 0 means DefaultMaxItems.
	MaxItems int
	// MaxAgeDays enables the age sweep when > 0.
	MaxAgeDays int
}

// Enforcer evicts items that fall outside the policy.
type Enforcer struct {
	store  storage.Store
	policy Policy
	clock  clock.Clock
	logger *zap.Logger
}

// NewEnforcer creates an enforcer. A nil clock means the wall clock.
func NewEnforcer(store storage.Store, policy Policy, clk clock.Clock, logger *zap.Logger) *Enforcer {
	if policy.MaxItems <= 0 {
		policy.MaxItems = DefaultMaxItems
	}
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enforcer{store: store, policy: policy, clock: clk, logger: logger}
}

// Policy returns the active policy.
func (e *Enforcer) Policy() Policy {
	return e.policy
}

// EnforceLimit deletes the oldest unpinned items beyond MaxItems. It returns
// the number of deleted items.
func (e *Enforcer) EnforceLimit() (int, error) {
	unpinned, err := e.store.FetchWhere(storage.NotPinned, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to list unpinned items: %w", err)
	}
	if len(unpinned) <= e.policy.MaxItems {
		return 0, nil
	}

	// newest first: everything after the first MaxItems goes
	evict := ids(unpinned[e.policy.MaxItems:])
	deleted, err := e.store.DeleteItems(evict)
	if err != nil {
		return 0, fmt.Errorf("failed to evict items: %w", err)
	}

	e.logger.Info("History limit enforced",
		zap.Int("limit", e.policy.MaxItems),
		zap.Int("evicted", deleted))
	return deleted, nil
}

// ClearExpired deletes unpinned items older than MaxAgeDays. It is a no-op
// when the age limit is disabled.
func (e *Enforcer) ClearExpired() (int, error) {
	if e.policy.MaxAgeDays <= 0 {
		return 0, nil
	}

	cutoff := e.clock.Now().Add(-time.Duration(e.policy.MaxAgeDays) * 24 * time.Hour)
	expired, err := e.store.FetchWhere(func(item *types.ClipboardItem) bool {
		return !item.IsPinned && item.Timestamp.Before(cutoff)
	}, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired items: %w", err)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	deleted, err := e.store.DeleteItems(ids(expired))
	if err != nil {
		return 0, fmt.Errorf("failed to clear expired items: %w", err)
	}

	e.logger.Info("Expired items cleared",
		zap.Int("max_age_days", e.policy.MaxAgeDays),
		zap.Time("cutoff", cutoff),
		zap.Int("deleted", deleted))
	return deleted, nil
}

func ids(items []*types.ClipboardItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}
