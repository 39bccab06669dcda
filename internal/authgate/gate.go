// Package authgate tracks which sensitive items have recently been unlocked.
//
// An entry maps an item id to the instant it was authenticated. It is valid
// while now - authenticatedAt < timeout; expired entries are pruned when
// read. There is no background timer.
package authgate

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultTimeout is how long an unlock lasts.
const DefaultTimeout = 300 * time.Second

// Gate is safe for concurrent use.
type Gate struct {
	mu      sync.Mutex
	entries map[string]time.Time
	timeout time.Duration
	clock   clock.Clock
}

// New creates a gate. timeout <= 0 means DefaultTimeout and a nil clock
// means the wall clock.
func New(timeout time.Duration, clk clock.Clock) *Gate {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Gate{
		entries: make(map[string]time.Time),
		timeout: timeout,
		clock:   clk,
	}
}

// Timeout returns the unlock duration.
func (g *Gate) Timeout() time.Duration {
	return g.timeout
}

// MarkAuthenticated unlocks id from now until now+timeout and returns the
// expiry instant.
func (g *Gate) MarkAuthenticated(id string) time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	g.entries[id] = now
	return now.Add(g.timeout)
}

// IsUnlocked reports whether id is currently unlocked.
func (g *Gate) IsUnlocked(id string) bool {
	_, ok := g.ExpiresAt(id)
	return ok
}

// ExpiresAt returns when the unlock for id runs out. The second result is
// false when id is locked.
func (g *Gate) ExpiresAt(id string) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	at, ok := g.entries[id]
	if !ok {
		return time.Time{}, false
	}
	if g.clock.Now().Sub(at) >= g.timeout {
		delete(g.entries, id)
		return time.Time{}, false
	}
	return at.Add(g.timeout), true
}

// Revoke locks id again.
func (g *Gate) Revoke(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entries, id)
}

// RevokeAll locks every item.
func (g *Gate) RevokeAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries = make(map[string]time.Time)
}

// Len returns the number of live entries, pruning expired ones.
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	for id, at := range g.entries {
		if now.Sub(at) >= g.timeout {
			delete(g.entries, id)
		}
	}
	return len(g.entries)
}
