package window

import "context"

// Backend defines the windowing system operations needed to locate a window
type Backend interface {
	// ListWindows returns all open application windows with their titles
	ListWindows() ([]*WindowInfo, error)

	// FindByName searches the whole window tree for a window whose title is exactly name
	FindByName(name string) (*WindowInfo, error)

	// Geometry returns the absolute on-screen rectangle of a window
	Geometry(id uint32) (Rect, error)

	// SelectWindow lets the user pick a window by clicking on it.
	// It blocks until a window is picked, the pick is cancelled or ctx is done.
	SelectWindow(ctx context.Context) (*WindowInfo, error)

	// ScreenSize returns the size of the full virtual screen
	ScreenSize() (width, height int, err error)

	// Close releases the connection to the display server
	Close() error
}
