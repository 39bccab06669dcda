//go:build !linux
// +build !linux

package platform

import "go.uber.org/zap"

// Xdotool is unavailable off Linux; paste simulation always reports false.
type Xdotool struct{}

func NewXdotool(logger *zap.Logger) *Xdotool {
	if logger != nil {
		logger.Warn("Paste simulation is not supported on this platform")
	}
	return &Xdotool{}
}

func (x *Xdotool) Available() bool { return false }

func (x *Xdotool) SimulatePaste() bool { return false }

func (x *Xdotool) FrontmostApp() (string, string) { return "", "" }
