package clipboard

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/berrythewa/clipkeep/internal/history"
	"github.com/berrythewa/clipkeep/internal/retention"
	"github.com/berrythewa/clipkeep/internal/storage"
	"github.com/berrythewa/clipkeep/internal/types"
)

// fakeClipboard bumps its counter every time set is called.
type fakeClipboard struct {
	mu      sync.Mutex
	count   int64
	rep     types.Representations
	readErr error
	written []*types.ClipboardItem
}

func (f *fakeClipboard) set(rep types.Representations) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rep = rep
	f.count++
}

func (f *fakeClipboard) ChangeCount() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count, nil
}

func (f *fakeClipboard) Read() (*types.Representations, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	rep := f.rep
	return &rep, nil
}

func (f *fakeClipboard) Write(item *types.ClipboardItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, item)
	f.rep = types.Representations{Text: string(item.Content)}
	f.count++
	return nil
}

func (f *fakeClipboard) Close() {}

type fakeThumbnailer struct {
	data  []byte
	err   error
	calls int
}

func (f *fakeThumbnailer) Thumbnail(ctx context.Context, path string) ([]byte, error) {
	f.calls++
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("thumbnail called without deadline")
	}
	return f.data, f.err
}

type pipeline struct {
	store      *storage.BoltStorage
	clock      *clock.Mock
	clipboard  *fakeClipboard
	classifier *Classifier
	recorder   *history.Recorder
	monitor    *Monitor
}

func newPipeline(t *testing.T, maxItems int) *pipeline {
	t.Helper()

	store, err := storage.NewBoltStorage(storage.StorageConfig{DBPath: filepath.Join(t.TempDir(), "clip.db")})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	mock := clock.NewMock()
	cb := &fakeClipboard{}
	classifier := NewClassifier(ClassifierConfig{Store: store, Clock: mock, SensitiveProtection: true})
	enforcer := retention.NewEnforcer(store, retention.Policy{MaxItems: maxItems}, mock, nil)
	recorder := history.NewRecorder(store, enforcer, history.NewSnapshot(50), nil)
	monitor := NewMonitor(MonitorConfig{
		Clipboard:  cb,
		Classifier: classifier,
		Recorder:   recorder,
		Clock:      mock,
	})

	return &pipeline{
		store:      store,
		clock:      mock,
		clipboard:  cb,
		classifier: classifier,
		recorder:   recorder,
		monitor:    monitor,
	}
}

func (p *pipeline) items(t *testing.T) []*types.ClipboardItem {
	t.Helper()
	items, err := p.store.FetchAll(0)
	require.NoError(t, err)
	return items
}
