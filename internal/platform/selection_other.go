//go:build !linux

package platform

import (
	"errors"

	"go.uber.org/zap"
)

func newChangeSource(*zap.Logger) (changeSource, error) {
	return nil, errors.New("selection owner events are only watched on X11")
}
