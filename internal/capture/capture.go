package capture

import (
	"fmt"

	"github.com/bryanchriswhite/WindowRecorder/internal/window"
)

// Capturer grabs the pixels of a screen rectangle
type Capturer interface {
	// Grab copies the current contents of rect into frame, resizing it if needed
	Grab(rect window.Rect, frame *Frame) error

	// Name returns a human-readable name for this capturer
	Name() string

	// Close releases the connection to the display server
	Close() error
}

// CaptureError reports a failed frame grab
type CaptureError struct {
	Rect window.Rect
	Err  error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("failed to capture %s: %v", e.Rect, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}
