package recorder

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bryanchriswhite/WindowRecorder/internal/capture"
	"github.com/bryanchriswhite/WindowRecorder/internal/logger"
	"github.com/bryanchriswhite/WindowRecorder/internal/output"
	"github.com/bryanchriswhite/WindowRecorder/internal/overlay"
	"github.com/bryanchriswhite/WindowRecorder/internal/window"
)

// CapturerFactory opens a capturer. The capture loop calls it from its own
// goroutine and closes the capturer when it exits.
type CapturerFactory func() (capture.Capturer, error)

// Loop grabs a fixed rectangle at a steady frame rate and feeds the frames
// to an encoder until told to stop
type Loop struct {
	NewCapturer CapturerFactory
	Opener      output.Opener
	Overlay     *overlay.Manager

	Path      string
	Rect      window.Rect
	FrameRate float64

	frames atomic.Int64
}

// Frames returns the number of frames encoded so far
func (l *Loop) Frames() int64 {
	return l.frames.Load()
}

// Run records until a message arrives on stop or a frame cannot be captured
// or encoded. The encoder is closed exactly once on every exit path so the
// container trailer is always written. The first frame is recorded even if
// stop is already pending.
func (l *Loop) Run(stop <-chan struct{}) (err error) {
	log := logger.WithComponent("capture-loop")

	capturer, err := l.NewCapturer()
	if err != nil {
		return &capture.CaptureError{Rect: l.Rect, Err: fmt.Errorf("failed to open capturer: %w", err)}
	}
	defer capturer.Close()

	sink, err := l.Opener.Open(l.Path, l.FrameRate, l.Rect.Width, l.Rect.Height)
	if err != nil {
		var openErr *output.EncoderOpenError
		if !errors.As(err, &openErr) {
			err = &output.EncoderOpenError{Path: l.Path, Err: err}
		}
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("capture loop panic: %v", r)
		}
		if closeErr := sink.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	log.Debug().
		Str("capturer", capturer.Name()).
		Str("path", l.Path).
		Stringer("rect", l.Rect).
		Float64("fps", l.FrameRate).
		Msg("Capture loop started")

	period := time.Duration(float64(time.Second) / l.FrameRate)
	frame := capture.NewFrame(l.Rect.Width, l.Rect.Height)
	started := time.Now()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		n := l.frames.Load()
		if n > 0 {
			select {
			case <-stop:
				log.Debug().Int64("frames", n).Msg("Stop requested")
				return nil
			default:
			}
		}

		frameStart := time.Now()
		if err := capturer.Grab(l.Rect, frame); err != nil {
			var captureErr *capture.CaptureError
			if !errors.As(err, &captureErr) {
				err = &capture.CaptureError{Rect: l.Rect, Err: err}
			}
			return err
		}
		if frame.Width != l.Rect.Width || frame.Height != l.Rect.Height {
			return &capture.CaptureError{
				Rect: l.Rect,
				Err:  fmt.Errorf("captured %dx%d frame", frame.Width, frame.Height),
			}
		}

		if l.Overlay != nil {
			l.Overlay.Render(frame, overlay.Stamp{
				Frame:   n,
				Elapsed: frameStart.Sub(started),
				Time:    frameStart,
			})
		}

		if err := sink.WriteFrame(frame); err != nil {
			return fmt.Errorf("failed to encode frame %d: %w", n, err)
		}
		l.frames.Add(1)

		// Behind schedule: go straight to the next frame
		remaining := period - time.Since(frameStart)
		if remaining <= 0 {
			continue
		}
		timer.Reset(remaining)
		select {
		case <-stop:
			log.Debug().Int64("frames", n+1).Msg("Stop requested")
			return nil
		case <-timer.C:
		}
	}
}
