package recorder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bryanchriswhite/WindowRecorder/internal/capture"
	"github.com/bryanchriswhite/WindowRecorder/internal/logger"
	"github.com/bryanchriswhite/WindowRecorder/internal/output"
	"github.com/bryanchriswhite/WindowRecorder/internal/overlay"
	"github.com/bryanchriswhite/WindowRecorder/internal/window"
	"github.com/google/uuid"
)

// ErrTerminated is returned when starting a session that was already stopped
var ErrTerminated = errors.New("recording session already terminated")

// State is the lifecycle state of a session
type State string

const (
	// StateInert sessions were created with recording disabled and never record
	StateInert State = "inert"
	// StateReady sessions have a resolved window and have not started yet
	StateReady State = "ready"
	// StateActive sessions have a capture loop that has not been joined
	StateActive State = "active"
	// StateTerminated sessions have been stopped
	StateTerminated State = "terminated"
)

// Resolver finds the capture rectangle of a window
type Resolver interface {
	Resolve(ctx context.Context, fragments []string, adj window.Adjustments) (*window.Resolution, error)
}

// Deps are the collaborators of a session. Zero values select the X11
// capturer, the ffmpeg encoder and real signal re-delivery.
type Deps struct {
	NewCapturer CapturerFactory
	Opener      output.Opener
	Raise       RaiseFunc

	// OnStart and OnStop observe lifecycle transitions, e.g. for notifications
	OnStart func(Status)
	OnStop  func(Status)

	Now func() time.Time
}

// Status is a snapshot of a session
type Status struct {
	ID        string             `json:"id"`
	State     State              `json:"state"`
	Running   bool               `json:"running"`
	Path      string             `json:"path,omitempty"`
	Window    *window.WindowInfo `json:"window,omitempty"`
	Rect      window.Rect        `json:"rect"`
	FrameRate float64            `json:"frame_rate"`
	Frames    int64              `json:"frames"`
	StartedAt *time.Time         `json:"started_at,omitempty"`
	StoppedAt *time.Time         `json:"stopped_at,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// Session records one window to one video file. Start launches the capture
// loop in its own goroutine; Stop asks it to finish and waits until the
// video file is complete. Stop is idempotent and may be called from any
// goroutine, including the signal guard.
type Session struct {
	id     string
	opts   Options
	window *window.WindowInfo
	rect   window.Rect
	deps   Deps

	mu        sync.Mutex
	state     State
	path      string
	loop      *Loop
	stopCh    chan struct{}
	done      chan struct{}
	guard     *terminationGuard
	err       error
	startedAt time.Time
	stoppedAt time.Time

	// loopErr is written by the loop goroutine before done is closed
	loopErr error
}

// New resolves the target window from name fragments and returns a session
// ready to start. With opts.Record false nothing is resolved and the
// session is inert. Resolution errors are returned as is.
func New(ctx context.Context, resolver Resolver, fragments []string, opts Options, deps Deps) (*Session, error) {
	if !opts.Record {
		return &Session{id: uuid.NewString(), opts: opts, deps: deps, state: StateInert}, nil
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	res, err := resolver.Resolve(ctx, fragments, opts.Adjustments)
	if err != nil {
		return nil, err
	}
	return newSession(res.Window, res.Rect, opts, deps), nil
}

// NewForRect returns a session recording a rectangle that is already known
func NewForRect(rect window.Rect, opts Options, deps Deps) (*Session, error) {
	if !opts.Record {
		return &Session{id: uuid.NewString(), opts: opts, deps: deps, state: StateInert}, nil
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if rect.Empty() {
		return nil, fmt.Errorf("invalid capture rectangle %s: %w", rect, window.ErrEmptyRect)
	}
	return newSession(nil, rect, opts, deps), nil
}

func newSession(info *window.WindowInfo, rect window.Rect, opts Options, deps Deps) *Session {
	if deps.NewCapturer == nil {
		deps.NewCapturer = func() (capture.Capturer, error) {
			return capture.NewX11Capturer()
		}
	}
	if deps.Opener == nil {
		deps.Opener = output.NewFFmpegOpener(output.FFmpegConfig{
			Path:  opts.FFmpegPath,
			Codec: opts.Codec,
		})
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Session{
		id:     uuid.NewString(),
		opts:   opts,
		window: info,
		rect:   rect,
		deps:   deps,
		state:  StateReady,
	}
}

// ID returns the session's unique identifier
func (s *Session) ID() string {
	return s.id
}

// Rect returns the capture rectangle
func (s *Session) Rect() window.Rect {
	return s.rect
}

// Start launches the capture loop. It is a no-op for inert or already
// active sessions.
func (s *Session) Start() error {
	s.mu.Lock()

	switch s.state {
	case StateInert, StateActive:
		s.mu.Unlock()
		return nil
	case StateTerminated:
		s.mu.Unlock()
		return ErrTerminated
	}

	log := logger.WithComponent("recorder")

	path := s.opts.OutputPath(s.deps.Now())
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	loop := &Loop{
		NewCapturer: s.deps.NewCapturer,
		Opener:      s.deps.Opener,
		Overlay:     overlay.FromConfig(s.opts.Overlay),
		Path:        path,
		Rect:        s.rect,
		FrameRate:   s.opts.FrameRate,
	}
	stopCh := make(chan struct{}, 1)
	done := make(chan struct{})

	go func() {
		defer close(done)
		err := loop.Run(stopCh)
		if err != nil {
			log.Error().Err(err).Str("session_id", s.id).Msg("Capture loop failed")
		}
		s.loopErr = err
	}()

	s.path = path
	s.loop = loop
	s.stopCh = stopCh
	s.done = done
	s.state = StateActive
	s.startedAt = s.deps.Now()

	if s.opts.HandleSignals {
		s.guard = installGuard(s.Stop, s.deps.Raise)
	}

	log.Info().
		Str("session_id", s.id).
		Str("path", path).
		Stringer("rect", s.rect).
		Float64("fps", s.opts.FrameRate).
		Msg("Recording started")

	status := s.statusLocked()
	s.mu.Unlock()

	if s.deps.OnStart != nil {
		s.deps.OnStart(status)
	}
	return nil
}

// Stop asks the capture loop to finish and blocks until the video file has
// been finalized. Only the first call does any work; later calls return
// the same result. The returned error is the capture loop's failure, if
// any, including failures that ended the loop before Stop was called.
func (s *Session) Stop() error {
	s.mu.Lock()

	if s.done == nil {
		err := s.err
		s.mu.Unlock()
		return err
	}

	// The loop may already have exited on its own; the buffered send never blocks
	select {
	case s.stopCh <- struct{}{}:
	default:
	}
	<-s.done

	s.err = s.loopErr
	s.done = nil
	s.stopCh = nil
	s.state = StateTerminated
	s.stoppedAt = s.deps.Now()

	if s.guard != nil {
		s.guard.uninstall()
		s.guard = nil
	}

	logger.WithComponent("recorder").Info().
		Str("session_id", s.id).
		Str("path", s.path).
		Int64("frames", s.loop.Frames()).
		Dur("duration", s.stoppedAt.Sub(s.startedAt)).
		AnErr("error", s.err).
		Msg("Recording stopped")

	status := s.statusLocked()
	err := s.err
	s.mu.Unlock()

	if s.deps.OnStop != nil {
		s.deps.OnStop(status)
	}
	return err
}

// Record starts the session, runs fn and stops the session on every exit
// path, including panics. fn's error takes precedence over Stop's.
func (s *Session) Record(fn func() error) (err error) {
	if err := s.Start(); err != nil {
		return err
	}
	defer func() {
		if stopErr := s.Stop(); err == nil {
			err = stopErr
		}
	}()
	return fn()
}

// Done is closed when the capture loop exits, whether stopped or failed.
// For sessions that are not active it returns a closed channel.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return s.done
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

// Err returns the capture loop's error once the session has stopped
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Status returns a snapshot of the session
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Session) statusLocked() Status {
	st := Status{
		ID:        s.id,
		State:     s.state,
		Path:      s.path,
		Window:    s.window,
		Rect:      s.rect,
		FrameRate: s.opts.FrameRate,
	}
	if s.loop != nil {
		st.Frames = s.loop.Frames()
	}
	if !s.startedAt.IsZero() {
		t := s.startedAt
		st.StartedAt = &t
	}
	if !s.stoppedAt.IsZero() {
		t := s.stoppedAt
		st.StoppedAt = &t
	}

	err := s.err
	if s.done != nil {
		select {
		case <-s.done:
			err = s.loopErr
		default:
			st.Running = true
		}
	}
	if err != nil {
		st.Error = err.Error()
	}
	return st
}
