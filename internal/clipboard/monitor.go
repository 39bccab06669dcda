// Package clipboard captures OS clipboard changes into the history.
package clipboard

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/berrythewa/clipkeep/internal/history"
	"github.com/berrythewa/clipkeep/internal/platform"
	"github.com/berrythewa/clipkeep/internal/types"
)

// DefaultPollInterval is how often the change counter is checked.
const DefaultPollInterval = 500 * time.Millisecond

// MonitorConfig configures a Monitor.
type MonitorConfig struct {
	Clipboard    platform.Clipboard
	Classifier   *Classifier
	Recorder     *history.Recorder
	Clock        clock.Clock
	Logger       *zap.Logger
	PollInterval time.Duration
	Incognito    bool
	ExcludedApps []string
}

// Monitor polls the clipboard change counter and records one item per
// observed change. Changes between two ticks collapse into the last one.
type Monitor struct {
	clipboard  platform.Clipboard
	classifier *Classifier
	recorder   *history.Recorder
	clock      clock.Clock
	logger     *zap.Logger
	interval   time.Duration
	incognito  atomic.Bool

	// stateMu guards the running state; pollMu serializes capture passes
	// and baseline updates.
	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	pollMu    sync.Mutex
	lastCount int64
	excluded  map[string]bool
	status    types.MonitoringStatus
}

func NewMonitor(cfg MonitorConfig) *Monitor {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	m := &Monitor{
		clipboard:  cfg.Clipboard,
		classifier: cfg.Classifier,
		recorder:   cfg.Recorder,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
		interval:   cfg.PollInterval,
	}
	m.incognito.Store(cfg.Incognito)
	m.SetExcludedApps(cfg.ExcludedApps)
	return m
}

// Start begins polling. Starting a running monitor is a no-op. The current
// clipboard contents become the baseline and are not captured.
func (m *Monitor) Start(ctx context.Context) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	if m.running {
		return
	}

	m.SyncBaseline()

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true
	m.setRunning(true)

	ticker := m.clock.Ticker(m.interval)
	go m.loop(ctx, ticker, m.done)

	m.logger.Info("Clipboard monitor started", zap.Duration("interval", m.interval))
}

// Stop halts polling and waits for an in-flight pass to finish. Stopping an
// idle monitor is a no-op.
func (m *Monitor) Stop() {
	m.stateMu.Lock()
	if !m.running {
		m.stateMu.Unlock()
		return
	}
	m.running = false
	m.cancel()
	done := m.done
	m.stateMu.Unlock()

	<-done
	m.setRunning(false)
	m.logger.Info("Clipboard monitor stopped")
}

// IsRunning reports whether the monitor is active.
func (m *Monitor) IsRunning() bool {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.running
}

func (m *Monitor) loop(ctx context.Context, ticker *clock.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

// poll runs one tick: a changed counter triggers exactly one capture pass.
func (m *Monitor) poll(ctx context.Context) {
	m.pollMu.Lock()
	defer m.pollMu.Unlock()

	count, err := m.clipboard.ChangeCount()
	if err != nil {
		m.logger.Warn("Failed to read clipboard change count", zap.Error(err))
		m.recordError(err)
		return
	}
	if count == m.lastCount {
		return
	}
	m.lastCount = count
	m.status.LastChange = count

	m.capture(ctx)
}

func (m *Monitor) capture(ctx context.Context) {
	if m.incognito.Load() {
		m.logger.Debug("Incognito, change ignored")
		return
	}

	rep, err := m.clipboard.Read()
	if err != nil {
		m.logger.Warn("Failed to read clipboard", zap.Error(err))
		m.recordError(err)
		return
	}
	if m.excluded[strings.ToLower(rep.SourceApp)] {
		m.logger.Debug("Excluded app, change ignored", zap.String("app", rep.SourceApp))
		return
	}

	// classification consults the store for duplicates, so it runs inside
	// the recorder's write lock
	item, err := m.recorder.Capture(func() *types.ClipboardItem {
		return m.classifier.Classify(ctx, rep)
	})
	if err != nil {
		m.logger.Error("Failed to store clipboard item", zap.Error(err))
		m.recordError(err)
		return
	}
	if item == nil {
		return
	}

	m.status.LastActivity = m.clock.Now()
	m.logger.Debug("Clipboard item captured",
		zap.String("id", item.ID),
		zap.String("type", string(item.ContentType)),
		zap.Bool("sensitive", item.IsSensitive))
}

// SyncBaseline adopts the current change counter without capturing. It is
// called after the history itself writes to the clipboard.
func (m *Monitor) SyncBaseline() {
	m.pollMu.Lock()
	defer m.pollMu.Unlock()

	count, err := m.clipboard.ChangeCount()
	if err != nil {
		m.logger.Warn("Failed to sync clipboard baseline", zap.Error(err))
		m.recordError(err)
		return
	}
	m.lastCount = count
}

// SetIncognito suspends or resumes capture.
func (m *Monitor) SetIncognito(on bool) {
	m.incognito.Store(on)
	m.logger.Info("Incognito mode changed", zap.Bool("incognito", on))
}

// Incognito reports whether capture is suspended.
func (m *Monitor) Incognito() bool {
	return m.incognito.Load()
}

// SetExcludedApps replaces the list of application identifiers whose
// copies are ignored. Matching is case-insensitive.
func (m *Monitor) SetExcludedApps(apps []string) {
	excluded := make(map[string]bool, len(apps))
	for _, app := range apps {
		if app = strings.TrimSpace(app); app != "" {
			excluded[strings.ToLower(app)] = true
		}
	}

	m.pollMu.Lock()
	m.excluded = excluded
	m.pollMu.Unlock()
}

// Status returns a copy of the monitoring status.
func (m *Monitor) Status() types.MonitoringStatus {
	m.pollMu.Lock()
	defer m.pollMu.Unlock()
	return m.status
}

func (m *Monitor) setRunning(running bool) {
	m.pollMu.Lock()
	m.status.IsRunning = running
	m.pollMu.Unlock()
}

// recordError must be called with pollMu held.
func (m *Monitor) recordError(err error) {
	m.status.ErrorCount++
	m.status.LastError = err.Error()
}
