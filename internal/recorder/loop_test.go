package recorder

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bryanchriswhite/WindowRecorder/internal/capture"
	"github.com/bryanchriswhite/WindowRecorder/internal/output"
	"github.com/bryanchriswhite/WindowRecorder/internal/overlay"
	"github.com/bryanchriswhite/WindowRecorder/internal/window"
)

var testRect = window.Rect{Left: 10, Top: 20, Width: 32, Height: 24}

func newTestLoop(c *fakeCapturer, o *fakeOpener, fps float64) *Loop {
	return &Loop{
		NewCapturer: c.factory(),
		Opener:      o,
		Path:        "out.mp4",
		Rect:        testRect,
		FrameRate:   fps,
	}
}

func TestLoopPendingStopStillRecordsOneFrame(t *testing.T) {
	c := &fakeCapturer{}
	o := newFakeOpener()
	l := newTestLoop(c, o, 30)

	stop := make(chan struct{}, 1)
	stop <- struct{}{}

	if err := l.Run(stop); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if o.sink.Frames() != 1 || l.Frames() != 1 {
		t.Errorf("frames = %d (loop %d), want 1", o.sink.Frames(), l.Frames())
	}
	if o.sink.Closes() != 1 {
		t.Errorf("sink closed %d times, want 1", o.sink.Closes())
	}
	if c.closed.Load() != 1 {
		t.Errorf("capturer closed %d times, want 1", c.closed.Load())
	}
	if o.sink.width != testRect.Width || o.sink.height != testRect.Height {
		t.Errorf("sink size = %dx%d, want %dx%d", o.sink.width, o.sink.height, testRect.Width, testRect.Height)
	}
}

func TestLoopPacing(t *testing.T) {
	c := &fakeCapturer{}
	o := newFakeOpener()
	l := newTestLoop(c, o, 50)

	stop := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() { done <- l.Run(stop) }()

	time.Sleep(400 * time.Millisecond)
	stop <- struct{}{}
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// 50 fps for 0.4s is 20 frames; leave room for slow CI machines
	if n := o.sink.Frames(); n < 10 || n > 24 {
		t.Errorf("frames = %d, want about 20", n)
	}
}

func TestLoopStopsPromptlyAtLowFrameRate(t *testing.T) {
	c := &fakeCapturer{}
	o := newFakeOpener()
	l := newTestLoop(c, o, 0.5)

	stop := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() { done <- l.Run(stop) }()

	time.Sleep(50 * time.Millisecond)
	stop <- struct{}{}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return while waiting for the next frame")
	}
}

func TestLoopErrors(t *testing.T) {
	tests := []struct {
		name      string
		capturer  *fakeCapturer
		newCap    func(c *fakeCapturer) CapturerFactory
		opener    func() *fakeOpener
		wantType  interface{}
		wantMsg   string
		wantClose int
	}{
		{
			name:     "capturer unavailable",
			capturer: &fakeCapturer{},
			newCap: func(*fakeCapturer) CapturerFactory {
				return func() (capture.Capturer, error) { return nil, errors.New("no display") }
			},
			opener:    newFakeOpener,
			wantType:  &capture.CaptureError{},
			wantMsg:   "no display",
			wantClose: 0,
		},
		{
			name:     "encoder unavailable",
			capturer: &fakeCapturer{},
			opener: func() *fakeOpener {
				o := newFakeOpener()
				o.openErr = output.ErrNoFFmpeg
				return o
			},
			wantType:  &output.EncoderOpenError{},
			wantMsg:   "ffmpeg not found",
			wantClose: 0,
		},
		{
			name:      "grab fails mid recording",
			capturer:  &fakeCapturer{failAt: 3},
			opener:    newFakeOpener,
			wantType:  &capture.CaptureError{},
			wantMsg:   "window vanished",
			wantClose: 1,
		},
		{
			name:      "capturer returns wrong size",
			capturer:  &fakeCapturer{size: &window.Rect{Width: 8, Height: 8}},
			opener:    newFakeOpener,
			wantType:  &capture.CaptureError{},
			wantMsg:   "captured 8x8 frame",
			wantClose: 1,
		},
		{
			name:     "encoder write fails",
			capturer: &fakeCapturer{},
			opener: func() *fakeOpener {
				o := newFakeOpener()
				o.sink.writeErr = errors.New("broken pipe")
				return o
			},
			wantMsg:   "broken pipe",
			wantClose: 1,
		},
		{
			name:      "panic is recovered",
			capturer:  &fakeCapturer{panicAt: 2},
			opener:    newFakeOpener,
			wantMsg:   "grab exploded",
			wantClose: 1,
		},
		{
			name:     "close error is reported",
			capturer: &fakeCapturer{failAt: 2},
			opener: func() *fakeOpener {
				o := newFakeOpener()
				o.sink.closeErr = errors.New("trailer not written")
				return o
			},
			wantType:  &capture.CaptureError{},
			wantMsg:   "trailer not written",
			wantClose: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := tt.opener()
			l := newTestLoop(tt.capturer, o, 200)
			if tt.newCap != nil {
				l.NewCapturer = tt.newCap(tt.capturer)
			}

			done := make(chan error, 1)
			go func() { done <- l.Run(make(chan struct{})) }()

			var err error
			select {
			case err = <-done:
			case <-time.After(5 * time.Second):
				t.Fatal("Run() did not return")
			}
			if err == nil {
				t.Fatal("Run() error = nil")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Run() error = %q, want it to contain %q", err, tt.wantMsg)
			}
			switch tt.wantType.(type) {
			case *capture.CaptureError:
				var target *capture.CaptureError
				if !errors.As(err, &target) {
					t.Errorf("Run() error = %v, want CaptureError", err)
				}
			case *output.EncoderOpenError:
				var target *output.EncoderOpenError
				if !errors.As(err, &target) {
					t.Errorf("Run() error = %v, want EncoderOpenError", err)
				}
			}
			if got := o.sink.Closes(); got != tt.wantClose {
				t.Errorf("sink closed %d times, want %d", got, tt.wantClose)
			}
		})
	}
}

func TestLoopDrawsOverlay(t *testing.T) {
	c := &fakeCapturer{}
	o := newFakeOpener()
	l := newTestLoop(c, o, 30)
	l.Overlay = overlay.FromConfig(overlay.Config{Enabled: true, Text: "{frame}", X: 0, Y: 0})

	stop := make(chan struct{}, 1)
	stop <- struct{}{}
	if err := l.Run(stop); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// The fake fills grabs with 0x01; the overlay box darkens the corner
	if o.sink.first[0] == 1 && o.sink.first[1] == 1 && o.sink.first[2] == 1 {
		t.Error("overlay was not drawn on the first frame")
	}
	last := len(o.sink.first) - 1
	if o.sink.first[last] != 1 {
		t.Errorf("pixel outside the overlay = %d, want 1", o.sink.first[last])
	}
}
