package recorder

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/bryanchriswhite/WindowRecorder/internal/logger"
)

// TerminationSignals are intercepted while a session is recording
var TerminationSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}

// RaiseFunc re-delivers a signal once cleanup has finished
type RaiseFunc func(sig os.Signal)

// Raise sends sig to the current process
func Raise(sig os.Signal) {
	p, err := os.FindProcess(os.Getpid())
	if err != nil {
		logger.WithComponent("recorder").Error().Err(err).Msg("Failed to find own process")
		os.Exit(1)
	}
	if err := p.Signal(sig); err != nil {
		logger.WithComponent("recorder").Error().Err(err).Stringer("signal", sig).Msg("Failed to re-raise signal")
		os.Exit(1)
	}
}

// Only one session is the process-wide cleanup target at a time. Signals
// reach it through a single route that stays registered while targets are
// replaced, so there is no moment where a signal falls through to the
// default disposition.
var (
	activeGuardMu sync.Mutex
	activeGuard   *terminationGuard
	activeRoute   *signalRoute
)

// terminationGuard stops a session when the process receives SIGINT or
// SIGTERM, then re-raises the signal so the process terminates as if the
// guard had never been installed
type terminationGuard struct {
	stop func() error
}

// signalRoute is one signal.Notify registration and its dispatch goroutine
type signalRoute struct {
	sigCh chan os.Signal
	quit  chan struct{}
	// raise belongs to the most recently installed guard
	raise RaiseFunc
}

// installGuard registers stop as the process cleanup target, replacing any
// previously installed guard
func installGuard(stop func() error, raise RaiseFunc) *terminationGuard {
	if raise == nil {
		raise = Raise
	}
	g := &terminationGuard{stop: stop}

	activeGuardMu.Lock()
	replaced := activeGuard != nil
	activeGuard = g
	if activeRoute == nil {
		r := &signalRoute{
			sigCh: make(chan os.Signal, 1),
			quit:  make(chan struct{}),
		}
		signal.Notify(r.sigCh, TerminationSignals...)
		activeRoute = r
		go r.dispatch()
	}
	activeRoute.raise = raise
	activeGuardMu.Unlock()

	if replaced {
		logger.WithComponent("recorder").Warn().Msg("Replacing the active signal cleanup target")
	}
	return g
}

// uninstall removes g as the cleanup target. Signal delivery is released
// when g was the active target; a replaced guard has nothing to release.
func (g *terminationGuard) uninstall() {
	activeGuardMu.Lock()
	defer activeGuardMu.Unlock()

	if activeGuard != g {
		return
	}
	activeGuard = nil
	if activeRoute != nil {
		signal.Stop(activeRoute.sigCh)
		close(activeRoute.quit)
		activeRoute = nil
	}
}

func (r *signalRoute) dispatch() {
	select {
	case <-r.quit:
		// A signal that raced with uninstall must not be swallowed
		select {
		case sig := <-r.sigCh:
			r.handle(sig)
		default:
		}
	case sig := <-r.sigCh:
		r.handle(sig)
	}
}

// handle runs on the route goroutine. Further signals of either kind stay
// captured by sigCh until stop returns, so cleanup cannot be interrupted.
func (r *signalRoute) handle(sig os.Signal) {
	log := logger.WithComponent("recorder")

	// A route that was already released only re-raises; the current
	// target, if any, belongs to a newer route
	activeGuardMu.Lock()
	var g *terminationGuard
	if activeRoute == r {
		g = activeGuard
		activeGuard = nil
	}
	raise := r.raise
	activeGuardMu.Unlock()

	if g != nil {
		log.Info().Stringer("signal", sig).Msg("Received signal, stopping recording")
		if err := g.stop(); err != nil {
			log.Error().Err(err).Msg("Recording finished with error")
		}
	}

	activeGuardMu.Lock()
	if activeRoute == r {
		signal.Stop(r.sigCh)
		close(r.quit)
		activeRoute = nil
	}
	activeGuardMu.Unlock()

	// Default disposition, even if something else still subscribes to sig
	signal.Reset(sig)
	raise(sig)
}
