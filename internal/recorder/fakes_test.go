package recorder

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/bryanchriswhite/WindowRecorder/internal/capture"
	"github.com/bryanchriswhite/WindowRecorder/internal/output"
	"github.com/bryanchriswhite/WindowRecorder/internal/window"
)

// fakeCapturer fills frames with a counter value
type fakeCapturer struct {
	grabs  atomic.Int64
	closed atomic.Int64

	// failAt makes the n-th grab (1-based) fail, 0 never fails
	failAt int64
	// panicAt makes the n-th grab panic
	panicAt int64
	// size overrides the size of grabbed frames
	size *window.Rect
}

func (c *fakeCapturer) Grab(rect window.Rect, frame *capture.Frame) error {
	n := c.grabs.Add(1)
	if c.failAt > 0 && n >= c.failAt {
		return errors.New("window vanished")
	}
	if c.panicAt > 0 && n >= c.panicAt {
		panic("grab exploded")
	}
	if c.size != nil {
		rect = *c.size
	}
	frame.Resize(rect.Width, rect.Height)
	for i := range frame.Pix {
		frame.Pix[i] = byte(n)
	}
	return nil
}

func (c *fakeCapturer) Name() string { return "fake" }

func (c *fakeCapturer) Close() error {
	c.closed.Add(1)
	return nil
}

func (c *fakeCapturer) factory() CapturerFactory {
	return func() (capture.Capturer, error) {
		return c, nil
	}
}

// fakeSink remembers what was written to it
type fakeSink struct {
	mu       sync.Mutex
	path     string
	width    int
	height   int
	frames   int
	first    []byte
	closes   int
	writeErr error
	closeErr error
}

func (s *fakeSink) WriteFrame(frame *capture.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	if s.frames == 0 {
		s.first = append([]byte(nil), frame.Pix...)
	}
	s.frames++
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return s.closeErr
}

func (s *fakeSink) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func (s *fakeSink) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// fakeOpener hands out one fakeSink
type fakeOpener struct {
	sink    *fakeSink
	openErr error
	opens   atomic.Int64
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{sink: &fakeSink{}}
}

func (o *fakeOpener) Open(path string, frameRate float64, width, height int) (output.Sink, error) {
	o.opens.Add(1)
	if o.openErr != nil {
		return nil, o.openErr
	}
	o.sink.path = path
	o.sink.width = width
	o.sink.height = height
	return o.sink, nil
}

// hasActiveGuard reports whether a termination guard is installed
func hasActiveGuard() bool {
	activeGuardMu.Lock()
	defer activeGuardMu.Unlock()
	return activeGuard != nil
}

// currentRoute returns the registered signal route, if any
func currentRoute() *signalRoute {
	activeGuardMu.Lock()
	defer activeGuardMu.Unlock()
	return activeRoute
}
