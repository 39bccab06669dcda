//go:build linux

package platform

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xfixes"
	"github.com/BurntSushi/xgb/xproto"
	"go.uber.org/zap"
)

const clipboardSelection = "CLIPBOARD"

// selectionWatcher counts XFixes selection-owner notifications for the
// CLIPBOARD selection. Every copy takes ownership of the selection, so a
// repeated copy of identical content is still seen.
type selectionWatcher struct {
	conn      *xgb.Conn
	clipboard xproto.Atom
	logger    *zap.Logger
	closeOnce sync.Once
}

func newChangeSource(logger *zap.Logger) (changeSource, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	w := &selectionWatcher{conn: conn, logger: logger}
	if err := w.subscribe(); err != nil {
		conn.Close()
		return nil, err
	}
	return w, nil
}

func (w *selectionWatcher) subscribe() error {
	if err := xfixes.Init(w.conn); err != nil {
		return fmt.Errorf("XFixes extension not available: %w", err)
	}
	if _, err := xfixes.QueryVersion(w.conn, 5, 0).Reply(); err != nil {
		return fmt.Errorf("failed to negotiate XFixes version: %w", err)
	}

	atom, err := xproto.InternAtom(w.conn, false, uint16(len(clipboardSelection)), clipboardSelection).Reply()
	if err != nil {
		return fmt.Errorf("failed to intern %s atom: %w", clipboardSelection, err)
	}
	w.clipboard = atom.Atom

	root := xproto.Setup(w.conn).DefaultScreen(w.conn).Root
	mask := uint32(xfixes.SelectionEventMaskSetSelectionOwner)
	if err := xfixes.SelectSelectionInputChecked(w.conn, root, w.clipboard, mask).Check(); err != nil {
		return fmt.Errorf("failed to watch %s selection: %w", clipboardSelection, err)
	}
	return nil
}

func (w *selectionWatcher) name() string { return "xfixes" }

// Pending drains the queued events without blocking.
func (w *selectionWatcher) Pending() (int64, error) {
	var n int64
	for {
		ev, xerr := w.conn.PollForEvent()
		if ev == nil && xerr == nil {
			return n, nil
		}
		if xerr != nil {
			w.logger.Debug("X error while polling selection events", zap.Error(xerr))
			continue
		}
		if notify, ok := ev.(xfixes.SelectionNotifyEvent); ok && notify.Selection == w.clipboard {
			n++
		}
	}
}

// Flush makes a round trip to the server. Owner changes caused by requests
// that completed earlier are queued on this connection once it returns.
func (w *selectionWatcher) Flush() error {
	if _, err := xproto.GetInputFocus(w.conn).Reply(); err != nil {
		return fmt.Errorf("X server round trip failed: %w", err)
	}
	return nil
}

func (w *selectionWatcher) Close() {
	w.closeOnce.Do(func() {
		// xgb closes the connection itself after a read error, and a second
		// close panics
		defer func() { _ = recover() }()
		w.conn.Close()
	})
}
