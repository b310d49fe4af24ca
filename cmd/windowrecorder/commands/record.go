package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/bryanchriswhite/WindowRecorder/internal/logger"
	"github.com/bryanchriswhite/WindowRecorder/internal/notify"
	"github.com/bryanchriswhite/WindowRecorder/internal/overlay"
	"github.com/bryanchriswhite/WindowRecorder/internal/recorder"
	"github.com/bryanchriswhite/WindowRecorder/internal/window"
	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record [flags] [-- COMMAND [ARGS...]]",
	Short: "Record a window to a video file",
	Long: `Record one window to an MP4 file.

The window is found by title fragment (--window, tried in order) or, when no
fragment is given, by clicking on it. Recording lasts for --duration, while
COMMAND runs, or until interrupted with Ctrl+C. The video file's path is
printed on stdout as soon as recording starts, and the file is finalized in
every case.`,
	Example: `  # Click on a window and record until Ctrl+C
  windowrecorder record

  # Record the first window titled like "Firefox" or "Chromium" for 10s
  windowrecorder record --window Firefox --window Chromium --duration 10s

  # Record a terminal while a test suite runs
  windowrecorder record --window xterm --output run.mp4 -- make test

  # Record at 10 fps, skipping a 30px title bar
  windowrecorder record --window Editor --fps 10 --offset-y 30`,
	Args: cobra.ArbitraryArgs,
	RunE: runRecord,
}

var (
	recordWindows  []string
	recordDuration time.Duration
	recordOutput   string
	recordOverlay  string
)

func init() {
	rootCmd.AddCommand(recordCmd)

	flags := recordCmd.Flags()
	flags.StringArrayVarP(&recordWindows, "window", "w", nil, "window title fragment, may be repeated")
	flags.DurationVarP(&recordDuration, "duration", "d", 0, "stop after this long (0 records until interrupted)")
	flags.StringVarP(&recordOutput, "output", "o", "", "output file (default is a timestamped file in --dir)")
	flags.StringVar(&recordOverlay, "overlay", "", "overlay text, may use {frame}, {elapsed} and {time}")
	flags.Float64("fps", recorder.DefaultFrameRate, "frames per second")
	flags.String("dir", "", "directory for timestamped recordings")
	flags.String("suffix", "", "suffix appended to timestamped file names")
	flags.Int("offset-x", 0, "shift the capture rectangle right")
	flags.Int("offset-y", 0, "shift the capture rectangle down")
	flags.Int("width", 0, "override the capture width")
	flags.Int("height", 0, "override the capture height")

	bindFlags(flags, map[string]string{
		"fps":      "recording.frame_rate",
		"dir":      "recording.save_dir",
		"suffix":   "recording.name_suffix",
		"offset-x": "recording.offset_x",
		"offset-y": "recording.offset_y",
		"width":    "recording.width_override",
		"height":   "recording.height_override",
	})
}

func runRecord(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("record")

	opts := configMgr.RecordingOptions()
	opts.VideoPath = recordOutput
	opts.HandleSignals = true
	if recordOverlay != "" {
		opts.Overlay = overlay.Config{Enabled: true, Text: recordOverlay, X: opts.Overlay.X, Y: opts.Overlay.Y}
	}

	deps := recorder.Deps{}
	if configMgr.Get().Notify {
		notifier, err := notify.New()
		if err != nil {
			log.Warn().Err(err).Msg("Desktop notifications unavailable")
		} else {
			defer notifier.Close()
			deps.OnStart, deps.OnStop = notifier.Hooks()
		}
	}
	deps.OnStart = printPath(cmd.OutOrStdout(), deps.OnStart)

	sess, err := resolveSession(cmd, opts, deps)
	if err != nil {
		return err
	}

	return sess.Record(func() error {
		switch {
		case len(args) > 0:
			return runChild(args, sess.Done())
		case recordDuration > 0:
			select {
			case <-time.After(recordDuration):
			case <-sess.Done():
			}
		default:
			log.Info().Msg("Recording, press Ctrl+C to stop")
			<-sess.Done()
		}
		return nil
	})
}

// printPath prints the output path when recording starts, then calls next.
// A signal re-raised after cleanup ends the process before Record returns.
func printPath(w io.Writer, next func(recorder.Status)) func(recorder.Status) {
	return func(st recorder.Status) {
		fmt.Fprintln(w, st.Path)
		if next != nil {
			next(st)
		}
	}
}

// resolveSession finds the window while Ctrl+C cancels the lookup. The
// interrupt handler is released before recording starts so the session's
// own guard is the only one intercepting termination signals.
func resolveSession(cmd *cobra.Command, opts recorder.Options, deps recorder.Deps) (*recorder.Session, error) {
	backend, err := window.NewX11Backend()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	defer backend.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := recorder.New(ctx, window.NewResolver(backend), recordWindows, opts, deps)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("window selection interrupted: %w", err)
		}
		return nil, err
	}
	return sess, nil
}

// runChild runs a command with the recorder's stdio. A capture failure ends
// the wait early but leaves the command running.
func runChild(args []string, captureDone <-chan struct{}) error {
	child := exec.Command(args[0], args[1:]...)
	child.Stdin = os.Stdin
	// stdout is reserved for the recording path
	child.Stdout = os.Stderr
	child.Stderr = os.Stderr

	if err := child.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", args[0], err)
	}

	exited := make(chan error, 1)
	go func() {
		exited <- child.Wait()
	}()

	select {
	case err := <-exited:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%s exited with status %d", args[0], exitErr.ExitCode())
		}
		return err
	case <-captureDone:
		logger.WithComponent("record").Warn().
			Int("pid", child.Process.Pid).
			Msg("Capture ended before the command exited")
		return nil
	}
}
