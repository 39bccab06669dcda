// Package platform holds the OS collaborators used by the capture pipeline
// and the automation API: the system clipboard and paste simulation.
package platform

import (
	"github.com/berrythewa/clipkeep/internal/types"
)

// Clipboard is the OS clipboard primitive.
type Clipboard interface {
	// ChangeCount returns a counter that moves whenever the clipboard
	// contents change.
	ChangeCount() (int64, error)

	// Read returns every representation currently on the clipboard.
	Read() (*types.Representations, error)

	// Write places item on the clipboard.
	Write(item *types.ClipboardItem) error

	// Close releases any resources held by the implementation.
	Close()
}

// Paster simulates the paste keystroke in the focused application.
type Paster interface {
	// SimulatePaste returns false when the host cannot synthesize input,
	// for example because the required tool or permission is missing.
	SimulatePaste() bool
}

// AppResolver names the application that currently has focus.
type AppResolver interface {
	// FrontmostApp returns an identifier and a display name. Both are empty
	// when unknown.
	FrontmostApp() (id, name string)
}
