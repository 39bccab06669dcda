package daemon

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berrythewa/clipkeep/internal/clipboard"
	"github.com/berrythewa/clipkeep/internal/config"
	"github.com/berrythewa/clipkeep/internal/storage"
	"github.com/berrythewa/clipkeep/internal/token"
	"github.com/berrythewa/clipkeep/internal/types"
)

type stubClipboard struct {
	mu    sync.Mutex
	count int64
	rep   types.Representations
}

func (c *stubClipboard) copy(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rep = types.Representations{Text: text}
	c.count++
}

func (c *stubClipboard) ChangeCount() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count, nil
}

func (c *stubClipboard) Read() (*types.Representations, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rep := c.rep
	return &rep, nil
}

func (c *stubClipboard) Write(item *types.ClipboardItem) error {
	c.copy(item.TextContent)
	return nil
}

func (c *stubClipboard) Close() {}

type stubPaster struct{}

func (stubPaster) SimulatePaste() bool { return false }

type fixture struct {
	cfg       *config.Config
	clock     *clock.Mock
	clipboard *stubClipboard
	tokens    token.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	paths := config.ConfigPaths{
		DataDir:    dir,
		DBFile:     filepath.Join(dir, "clipkeep.db"),
		LogDir:     filepath.Join(dir, "logs"),
		RunDir:     filepath.Join(dir, "run"),
		SecretsDir: filepath.Join(dir, "secrets"),
	}
	cfg := config.DefaultConfig(paths)
	cfg.API.Port = 0
	cfg.API.TokenStore = config.TokenStoreFile

	clk := clock.NewMock()
	clk.Set(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))

	return &fixture{
		cfg:       cfg,
		clock:     clk,
		clipboard: &stubClipboard{},
		tokens:    token.NewFileStore(paths.SecretsDir),
	}
}

func (f *fixture) newDaemon(t *testing.T) *Daemon {
	t.Helper()
	d, err := New(Options{
		Config:     f.cfg,
		Clock:      f.clock,
		Clipboard:  f.clipboard,
		Paster:     stubPaster{},
		TokenStore: f.tokens,
	})
	require.NoError(t, err)
	return d
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestDaemonCapturesAndServes(t *testing.T) {
	f := newFixture(t)
	d := f.newDaemon(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, d.Start(ctx))
	require.NoError(t, d.Start(ctx))
	defer d.Close()

	assert.True(t, d.Monitor().IsRunning())
	addr := d.Server().Addr()
	require.NotEmpty(t, addr)

	f.clipboard.copy("daemon wiring")
	require.Eventually(t, func() bool {
		f.clock.Add(clipboard.DefaultPollInterval)
		return d.Recorder().Snapshot().Len() == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "daemon wiring", d.Recorder().Snapshot().Latest().TextContent)

	tok, err := token.NewManager(f.tokens, nil).Token()
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, "http://"+addr+"/api/health", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	assert.False(t, d.Monitor().IsRunning())
	assert.Empty(t, d.Server().Addr())
}

func TestDaemonStartupSweep(t *testing.T) {
	f := newFixture(t)
	f.cfg.History.AutoClearDays = 7
	f.cfg.API.Enabled = false

	store, err := storage.NewBoltStorage(storage.StorageConfig{DBPath: f.cfg.Storage.DBPath})
	require.NoError(t, err)
	now := f.clock.Now()
	old := clipboard.NewItem(types.TypeText, []byte("old"), "old", now.AddDate(0, 0, -10))
	fresh := clipboard.NewItem(types.TypeText, []byte("fresh"), "fresh", now.AddDate(0, 0, -1))
	pinned := clipboard.NewItem(types.TypeText, []byte("pinned"), "pinned", now.AddDate(0, 0, -30))
	pinned.IsPinned = true
	for _, item := range []*types.ClipboardItem{old, fresh, pinned} {
		require.NoError(t, store.Insert(item))
	}
	require.NoError(t, store.Close())

	d := f.newDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, d.Start(ctx))
	defer d.Close()

	items, err := d.Recorder().Store().FetchAll(0)
	require.NoError(t, err)
	var texts []string
	for _, item := range items {
		texts = append(texts, item.TextContent)
	}
	assert.ElementsMatch(t, []string{"fresh", "pinned"}, texts)
	assert.Equal(t, 2, d.Recorder().Snapshot().Len())
	assert.Empty(t, d.Server().Addr(), "api disabled")
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	f.cfg.API.Enabled = false
	d := f.newDaemon(t)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- d.Run(ctx) }()

	require.Eventually(t, d.Monitor().IsRunning, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, d.Monitor().IsRunning())
}

func TestNewTokenStore(t *testing.T) {
	cfg := config.DefaultConfig(config.ConfigPaths{SecretsDir: t.TempDir()})
	assert.IsType(t, &token.KeyringStore{}, NewTokenStore(cfg))

	cfg.API.TokenStore = config.TokenStoreFile
	assert.IsType(t, &token.FileStore{}, NewTokenStore(cfg))
}

func TestPIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "clipkeep.pid")

	st := Status(path)
	assert.False(t, st.Running)
	assert.False(t, st.Stale)

	_, err := Stop(path)
	assert.ErrorIs(t, err, ErrNotRunning)

	require.NoError(t, WritePIDFile(path))
	pid, err := ReadPIDFile(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	st = Status(path)
	assert.True(t, st.Running)
	assert.Equal(t, os.Getpid(), st.PID)

	// rewriting our own pid is allowed
	require.NoError(t, WritePIDFile(path))

	RemovePIDFile(path)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestPIDFileStale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clipkeep.pid")

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0644))
	st := Status(path)
	assert.False(t, st.Running)
	assert.True(t, st.Stale)

	_, err := Stop(path)
	assert.ErrorIs(t, err, ErrNotRunning)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "stale pid file is removed")

	// RemovePIDFile leaves files owned by other processes alone
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid()+100000)), 0644))
	RemovePIDFile(path)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}
