package retention

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berrythewa/clipkeep/internal/storage"
	"github.com/berrythewa/clipkeep/internal/types"
)

func newStore(t *testing.T) *storage.BoltStorage {
	t.Helper()
	store, err := storage.NewBoltStorage(storage.StorageConfig{DBPath: filepath.Join(t.TempDir(), "retention.db")})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func insert(t *testing.T, store storage.Store, ts time.Time, pinned bool) *types.ClipboardItem {
	t.Helper()
	item := &types.ClipboardItem{
		ID:          uuid.NewString(),
		Content:     []byte("x"),
		ContentType: types.TypeText,
		Timestamp:   ts,
		IsPinned:    pinned,
	}
	require.NoError(t, store.Insert(item))
	return item
}

func TestEnforceLimit_KeepsMostRecent(t *testing.T) {
	store := newStore(t)
	mock := clock.NewMock()
	e := NewEnforcer(store, Policy{MaxItems: 3}, mock, nil)

	var items []*types.ClipboardItem
	for i := 0; i < 5; i++ {
		mock.Add(time.Second)
		items = append(items, insert(t, store, mock.Now(), false))
		_, err := e.EnforceLimit()
		require.NoError(t, err)
	}

	left, err := store.FetchAll(0)
	require.NoError(t, err)
	require.Len(t, left, 3)
	assert.Equal(t, items[4].ID, left[0].ID)
	assert.Equal(t, items[3].ID, left[1].ID)
	assert.Equal(t, items[2].ID, left[2].ID)

	// a pinned insert is neither counted nor evicted
	mock.Add(time.Second)
	pinned := insert(t, store, mock.Now(), true)
	deleted, err := e.EnforceLimit()
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)

	got, err := store.FetchByID(pinned.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPinned)

	n, err := store.Count(nil)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestEnforceLimit_OldPinnedSurvives(t *testing.T) {
	store := newStore(t)
	mock := clock.NewMock()
	e := NewEnforcer(store, Policy{MaxItems: 1}, mock, nil)

	old := insert(t, store, mock.Now(), true)
	mock.Add(time.Minute)
	insert(t, store, mock.Now(), false)
	mock.Add(time.Minute)
	newest := insert(t, store, mock.Now(), false)

	deleted, err := e.EnforceLimit()
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	left, err := store.FetchAll(0)
	require.NoError(t, err)
	require.Len(t, left, 2)
	assert.Equal(t, newest.ID, left[0].ID)
	assert.Equal(t, old.ID, left[1].ID)

	// idempotent on a consistent store
	deleted, err = e.EnforceLimit()
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
}

func TestClearExpired(t *testing.T) {
	store := newStore(t)
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	e := NewEnforcer(store, Policy{MaxAgeDays: 7}, mock, nil)

	tenDaysAgo := mock.Now().Add(-10 * 24 * time.Hour)
	stale := insert(t, store, tenDaysAgo, false)
	pinned := insert(t, store, tenDaysAgo, true)
	fresh := insert(t, store, mock.Now().Add(-time.Hour), false)

	deleted, err := e.ClearExpired()
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = store.FetchByID(stale.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.FetchByID(pinned.ID)
	assert.NoError(t, err)
	_, err = store.FetchByID(fresh.ID)
	assert.NoError(t, err)

	deleted, err = e.ClearExpired()
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
}

func TestClearExpired_DisabledByZero(t *testing.T) {
	store := newStore(t)
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	e := NewEnforcer(store, Policy{MaxAgeDays: 0}, mock, nil)

	insert(t, store, mock.Now().Add(-365*24*time.Hour), false)

	deleted, err := e.ClearExpired()
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
}

func TestNewEnforcer_DefaultLimit(t *testing.T) {
	e := NewEnforcer(newStore(t), Policy{}, nil, nil)
	assert.Equal(t, DefaultMaxItems, e.Policy().MaxItems)
}
