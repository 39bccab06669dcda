package history

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/berrythewa/clipkeep/internal/retention"
	"github.com/berrythewa/clipkeep/internal/storage"
	"github.com/berrythewa/clipkeep/internal/types"
)

// Recorder is the single write path into the history: every insert is
// followed by the retention pass and a snapshot refresh. Writes are
// serialized, so the snapshot always reflects the last completed mutation.
type Recorder struct {
	mu       sync.Mutex
	store    storage.Store
	enforcer *retention.Enforcer
	snapshot *Snapshot
	logger   *zap.Logger
}

// NewRecorder wires the store, its retention policy and the reader
// snapshot. enforcer may be nil to disable size eviction.
func NewRecorder(store storage.Store, enforcer *retention.Enforcer, snapshot *Snapshot, logger *zap.Logger) *Recorder {
	if snapshot == nil {
		snapshot = NewSnapshot(DefaultSize)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{store: store, enforcer: enforcer, snapshot: snapshot, logger: logger}
}

// Store returns the underlying store for read queries. Mutations must go
// through the Recorder.
func (r *Recorder) Store() storage.Store { return r.store }

func (r *Recorder) Snapshot() *Snapshot { return r.snapshot }

// Record persists item. Eviction failures are logged and do not fail the
// insert.
func (r *Recorder) Record(item *types.ClipboardItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.record(item)
}

// Capture runs build under the write lock and records the item it returns.
// build may consult the store (duplicate checks) without another write
// landing in between. A nil item records nothing.
func (r *Recorder) Capture(build func() *types.ClipboardItem) (*types.ClipboardItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item := build()
	if item == nil {
		return nil, nil
	}
	if err := r.record(item); err != nil {
		return nil, err
	}
	return item, nil
}

// Delete removes one item.
func (r *Recorder) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.Delete(id); err != nil {
		return err
	}
	r.refresh()
	return nil
}

// TogglePin flips the pin flag of an item and returns the new value.
func (r *Recorder) TogglePin(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pinned, err := r.store.TogglePin(id)
	if err != nil {
		return false, err
	}
	r.refresh()
	return pinned, nil
}

// Refresh reloads the snapshot.
func (r *Recorder) Refresh() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refresh()
}

// ClearExpired runs the age sweep and refreshes the snapshot when anything
// was removed.
func (r *Recorder) ClearExpired() (int, error) {
	if r.enforcer == nil {
		return 0, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	n, err := r.enforcer.ClearExpired()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.refresh()
	}
	return n, nil
}

// record must be called with mu held.
func (r *Recorder) record(item *types.ClipboardItem) error {
	if err := r.store.Insert(item); err != nil {
		return fmt.Errorf("failed to record item: %w", err)
	}

	if r.enforcer != nil {
		if _, err := r.enforcer.EnforceLimit(); err != nil {
			r.logger.Error("Retention pass failed", zap.Error(err))
		}
	}
	r.refresh()
	return nil
}

// refresh must be called with mu held.
func (r *Recorder) refresh() {
	if err := r.snapshot.Refresh(r.store); err != nil {
		r.logger.Error("Snapshot refresh failed", zap.Error(err))
	}
}
