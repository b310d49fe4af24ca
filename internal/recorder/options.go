package recorder

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/bryanchriswhite/WindowRecorder/internal/output"
	"github.com/bryanchriswhite/WindowRecorder/internal/overlay"
	"github.com/bryanchriswhite/WindowRecorder/internal/window"
)

const (
	// DefaultFrameRate is the capture rate when none is configured
	DefaultFrameRate = 30.0

	// DefaultSaveDir holds auto-named recordings, relative to the working directory
	DefaultSaveDir = "captures"

	timestampLayout = "2006_01_02_15_04_05"
)

// Options configures a recording session. Options are copied into the
// session at construction and never change afterwards.
type Options struct {
	// FrameRate in frames per second, sets the pacing period
	FrameRate float64 `json:"frame_rate" mapstructure:"frame_rate"`
	// NameSuffix is appended to auto-generated file names
	NameSuffix string `json:"name_suffix" mapstructure:"name_suffix"`
	// SaveDir receives auto-named recordings
	SaveDir string `json:"save_dir" mapstructure:"save_dir"`
	// VideoPath overrides auto-naming when set
	VideoPath string `json:"video_path" mapstructure:"video_path"`
	// Record false turns the session into a no-op
	Record bool `json:"record" mapstructure:"record"`

	window.Adjustments `mapstructure:",squash"`

	// Codec is the ffmpeg encoder used by the default opener
	Codec string `json:"codec" mapstructure:"codec"`
	// FFmpegPath locates the ffmpeg binary used by the default opener
	FFmpegPath string `json:"ffmpeg_path" mapstructure:"ffmpeg_path"`
	// HandleSignals installs the SIGINT/SIGTERM guard while recording
	HandleSignals bool `json:"handle_signals" mapstructure:"handle_signals"`

	Overlay overlay.Config `json:"overlay" mapstructure:"overlay"`
}

// DefaultOptions returns options for recording at 30 fps into ./captures
func DefaultOptions() Options {
	return Options{
		FrameRate:     DefaultFrameRate,
		SaveDir:       DefaultSaveDir,
		Record:        true,
		Codec:         output.DefaultCodec,
		HandleSignals: true,
	}
}

// Validate checks the options of an active session
func (o Options) Validate() error {
	if !o.Record {
		return nil
	}
	if o.FrameRate <= 0 {
		return fmt.Errorf("frame rate must be positive, got %v", o.FrameRate)
	}
	if o.VideoPath == "" && o.SaveDir == "" {
		return fmt.Errorf("either a video path or a save directory is required")
	}
	return nil
}

// OutputPath returns VideoPath, or a timestamped file under SaveDir
func (o Options) OutputPath(now time.Time) string {
	if o.VideoPath != "" {
		return o.VideoPath
	}
	name := now.Format(timestampLayout)
	if o.NameSuffix != "" {
		name += "_" + o.NameSuffix
	}
	return filepath.Join(o.SaveDir, name+".mp4")
}
