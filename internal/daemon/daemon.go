package daemon

import (
	"context"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/berrythewa/clipkeep/internal/api"
	"github.com/berrythewa/clipkeep/internal/authgate"
	"github.com/berrythewa/clipkeep/internal/clipboard"
	"github.com/berrythewa/clipkeep/internal/config"
	"github.com/berrythewa/clipkeep/internal/history"
	"github.com/berrythewa/clipkeep/internal/platform"
	"github.com/berrythewa/clipkeep/internal/retention"
	"github.com/berrythewa/clipkeep/internal/storage"
	"github.com/berrythewa/clipkeep/internal/token"
)

// Options carries the collaborators of a Daemon. Only Config is required;
// the rest default to the real system implementations.
type Options struct {
	Config     *config.Config
	Logger     *zap.Logger
	Clock      clock.Clock
	Clipboard  platform.Clipboard
	Paster     platform.Paster
	Apps       platform.AppResolver
	TokenStore token.Store
}

// Daemon owns every long-running component: the history store, the
// clipboard monitor, the automation API and the periodic age sweep.
type Daemon struct {
	cfg    *config.Config
	logger *zap.Logger
	clock  clock.Clock

	store     storage.Store
	recorder  *history.Recorder
	clipboard platform.Clipboard
	monitor   *clipboard.Monitor
	server    *api.Server
	tokens    *token.Manager

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewTokenStore returns the token backend selected by the config.
func NewTokenStore(cfg *config.Config) token.Store {
	if cfg.API.TokenStore == config.TokenStoreFile {
		return token.NewFileStore(cfg.SystemPaths.SecretsDir)
	}
	return token.NewKeyringStore(token.Service)
}

// New opens the history store and wires every component. The caller owns
// the returned Daemon and must call Run or Close.
func New(opts Options) (*Daemon, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("daemon: missing configuration")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}

	store, err := storage.NewBoltStorage(storage.StorageConfig{
		DBPath: cfg.Storage.DBPath,
		Logger: logger.Named("storage"),
	})
	if err != nil {
		return nil, err
	}

	d := &Daemon{cfg: cfg, logger: logger, clock: clk, store: store}
	if err := d.wire(opts); err != nil {
		store.Close()
		return nil, err
	}
	return d, nil
}

func (d *Daemon) wire(opts Options) error {
	cfg := d.cfg

	enforcer := retention.NewEnforcer(d.store, retention.Policy{
		MaxItems:   cfg.History.MaxItems,
		MaxAgeDays: cfg.History.AutoClearDays,
	}, d.clock, d.logger.Named("retention"))
	d.recorder = history.NewRecorder(d.store, enforcer, history.NewSnapshot(history.DefaultSize), d.logger.Named("history"))
	d.recorder.Refresh()

	xdo := platform.NewXdotool(d.logger.Named("xdotool"))
	apps := opts.Apps
	if apps == nil {
		apps = xdo
	}
	paster := opts.Paster
	if paster == nil {
		paster = xdo
	}

	d.clipboard = opts.Clipboard
	if d.clipboard == nil {
		cb, err := platform.NewSystemClipboard(apps, d.logger.Named("clipboard"))
		if err != nil {
			return err
		}
		d.clipboard = cb
	}

	classifier := clipboard.NewClassifier(clipboard.ClassifierConfig{
		Store:               d.store,
		Clock:               d.clock,
		Logger:              d.logger.Named("classifier"),
		SensitiveProtection: cfg.Privacy.SensitiveProtection,
	})
	d.monitor = clipboard.NewMonitor(clipboard.MonitorConfig{
		Clipboard:    d.clipboard,
		Classifier:   classifier,
		Recorder:     d.recorder,
		Clock:        d.clock,
		Logger:       d.logger.Named("monitor"),
		PollInterval: cfg.PollDuration(),
		Incognito:    cfg.Privacy.Incognito,
		ExcludedApps: cfg.Privacy.ExcludedApps,
	})

	tokenStore := opts.TokenStore
	if tokenStore == nil {
		tokenStore = NewTokenStore(cfg)
	}
	d.tokens = token.NewManager(tokenStore, d.logger.Named("token"))

	d.server = api.NewServer(api.ServerConfig{
		Enabled:             cfg.API.Enabled,
		Port:                cfg.API.Port,
		ReadTimeout:         cfg.ReadTimeoutDuration(),
		MaxConnections:      cfg.API.MaxConnections,
		SensitiveProtection: cfg.Privacy.SensitiveProtection,
		Recorder:            d.recorder,
		Tokens:              d.tokens,
		Gate:                authgate.New(cfg.AuthTimeoutDuration(), d.clock),
		Clipboard:           d.clipboard,
		Paster:              paster,
		Watcher:             d.monitor,
		Clock:               d.clock,
		Logger:              d.logger.Named("api"),
	})
	return nil
}

// Start sweeps expired items, then starts the monitor, the API and the
// periodic sweep. A failing API bind is logged and the daemon keeps running
// without it.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return nil
	}

	if n, err := d.recorder.ClearExpired(); err != nil {
		d.logger.Error("Startup age sweep failed", zap.Error(err))
	} else if n > 0 {
		d.logger.Info("Removed expired items", zap.Int("count", n))
	}

	if d.cfg.API.Enabled {
		if _, err := d.tokens.Token(); err != nil {
			d.logger.Error("Failed to provision API token", zap.Error(err))
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})

	d.monitor.Start(ctx)
	if err := d.server.Start(); err != nil {
		d.logger.Error("Automation API failed to start", zap.Error(err))
	}

	d.running = true
	go d.sweepLoop(ctx, d.done)

	d.logger.Info("Daemon started",
		zap.String("db_path", d.cfg.Storage.DBPath),
		zap.Int("max_items", d.cfg.History.MaxItems),
		zap.Int("auto_clear_days", d.cfg.History.AutoClearDays),
		zap.String("api", d.server.Addr()))
	return nil
}

// Run starts the daemon and blocks until ctx is done, then shuts down.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	d.logger.Info("Shutdown requested")
	return d.Close()
}

func (d *Daemon) sweepLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	if d.cfg.History.AutoClearDays <= 0 {
		return
	}
	ticker := d.clock.Ticker(d.cfg.AutoClearEvery())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := d.recorder.ClearExpired()
			if err != nil {
				d.logger.Error("Age sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				d.logger.Info("Removed expired items", zap.Int("count", n))
			}
		}
	}
}

// Close stops every component and closes the store. It is safe to call
// more than once.
func (d *Daemon) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		d.cancel()
		<-d.done
		d.running = false
	}
	d.server.Stop()
	d.monitor.Stop()

	if d.clipboard != nil {
		d.clipboard.Close()
		d.clipboard = nil
	}
	if d.store == nil {
		return nil
	}
	err := d.store.Close()
	d.store = nil
	if err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	d.logger.Info("Daemon stopped")
	return nil
}

// Recorder exposes the history write path.
func (d *Daemon) Recorder() *history.Recorder { return d.recorder }

// Monitor exposes the clipboard monitor.
func (d *Daemon) Monitor() *clipboard.Monitor { return d.monitor }

// Server exposes the automation API.
func (d *Daemon) Server() *api.Server { return d.server }
