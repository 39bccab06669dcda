//go:build linux
// +build linux

package platform

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

const xdotoolTimeout = 2 * time.Second

// Xdotool drives paste simulation and focus lookup through the xdotool CLI.
type Xdotool struct {
	logger *zap.Logger
	path   string
}

// NewXdotool locates xdotool on PATH. A missing binary is not an error;
// every call then reports failure.
func NewXdotool(logger *zap.Logger) *Xdotool {
	if logger == nil {
		logger = zap.NewNop()
	}
	path, err := exec.LookPath("xdotool")
	if err != nil {
		logger.Warn("xdotool not found, paste simulation disabled", zap.Error(err))
	}
	return &Xdotool{logger: logger, path: path}
}

// Available reports whether xdotool was found.
func (x *Xdotool) Available() bool {
	return x.path != ""
}

// SimulatePaste sends ctrl+v to the focused window.
func (x *Xdotool) SimulatePaste() bool {
	if !x.Available() {
		return false
	}
	if _, err := x.run("key", "--clearmodifiers", "ctrl+v"); err != nil {
		x.logger.Warn("Paste simulation failed", zap.Error(err))
		return false
	}
	return true
}

// FrontmostApp returns the window class of the focused window as the
// identifier. X11 has no separate display name, so the name is left empty.
func (x *Xdotool) FrontmostApp() (string, string) {
	if !x.Available() {
		return "", ""
	}
	class, err := x.run("getactivewindow", "getwindowclassname")
	if err != nil {
		x.logger.Debug("Focused window lookup failed", zap.Error(err))
		return "", ""
	}
	return class, ""
}

func (x *Xdotool) run(args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), xdotoolTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, x.path, args...).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
