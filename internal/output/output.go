package output

import (
	"errors"
	"fmt"

	"github.com/bryanchriswhite/WindowRecorder/internal/capture"
)

// ErrNoFFmpeg is returned when the ffmpeg binary cannot be found
var ErrNoFFmpeg = errors.New("ffmpeg not found")

// Opener creates video sinks
type Opener interface {
	// Open creates a sink writing width x height frames at frameRate to path
	Open(path string, frameRate float64, width, height int) (Sink, error)
}

// Sink consumes frames of a fixed size and writes them to a video file
type Sink interface {
	// WriteFrame encodes one frame. The frame may be reused once it returns.
	WriteFrame(frame *capture.Frame) error

	// Close flushes pending frames and finalizes the container. Calling
	// Close more than once returns the result of the first call.
	Close() error
}

// EncoderOpenError reports that a video sink could not be created
type EncoderOpenError struct {
	Path string
	Err  error
}

func (e *EncoderOpenError) Error() string {
	return fmt.Sprintf("failed to open encoder for %s: %v", e.Path, e.Err)
}

func (e *EncoderOpenError) Unwrap() error {
	return e.Err
}
