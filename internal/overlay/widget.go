package overlay

import (
	"image/draw"
	"time"
)

// Stamp describes the frame being annotated
type Stamp struct {
	// Frame is the zero-based index of the frame in the recording
	Frame int64
	// Elapsed is the time since recording started
	Elapsed time.Duration
	// Time is the wall clock time of the grab
	Time time.Time
}

// Widget draws an annotation onto a frame
type Widget interface {
	// ID returns the unique identifier for this widget instance
	ID() string

	// Render draws the widget onto dst
	Render(dst draw.Image, stamp Stamp)
}
