package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/bryanchriswhite/WindowRecorder/internal/capture"
	"github.com/bryanchriswhite/WindowRecorder/internal/logger"
)

const (
	// DefaultCodec is H.264, lossy but sharp enough for screen content
	DefaultCodec = "libx264"

	stderrTailLines = 20
)

// FFmpegConfig configures the ffmpeg encoder
type FFmpegConfig struct {
	// Path to the ffmpeg binary, looked up in $PATH when empty
	Path string
	// Codec is the ffmpeg encoder name
	Codec string
}

// FFmpegOpener starts one ffmpeg process per sink, feeding it raw RGB24
// frames on stdin
type FFmpegOpener struct {
	cfg FFmpegConfig

	encodersOnce sync.Once
	encoders     map[string]bool
}

// NewFFmpegOpener creates an opener, filling in defaults
func NewFFmpegOpener(cfg FFmpegConfig) *FFmpegOpener {
	if cfg.Path == "" {
		cfg.Path = "ffmpeg"
	}
	if cfg.Codec == "" {
		cfg.Codec = DefaultCodec
	}
	return &FFmpegOpener{cfg: cfg}
}

// Open starts an ffmpeg process writing to path
func (o *FFmpegOpener) Open(path string, frameRate float64, width, height int) (Sink, error) {
	log := logger.WithComponent("ffmpeg")

	if frameRate <= 0 {
		return nil, &EncoderOpenError{Path: path, Err: fmt.Errorf("invalid frame rate %v", frameRate)}
	}
	if width <= 0 || height <= 0 {
		return nil, &EncoderOpenError{Path: path, Err: fmt.Errorf("invalid frame size %dx%d", width, height)}
	}

	binary, err := exec.LookPath(o.cfg.Path)
	if err != nil {
		return nil, &EncoderOpenError{Path: path, Err: fmt.Errorf("%w: %v", ErrNoFFmpeg, err)}
	}

	if !o.supports(binary, o.cfg.Codec) {
		return nil, &EncoderOpenError{Path: path, Err: fmt.Errorf("unsupported codec %q", o.cfg.Codec)}
	}

	// ffmpeg only notices an unwritable output after reading input, so
	// check it up front
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, &EncoderOpenError{Path: path, Err: err}
	}
	f.Close()

	args := ffmpegArgs(o.cfg.Codec, path, frameRate, width, height)
	cmd := exec.Command(binary, args...)
	detach(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &EncoderOpenError{Path: path, Err: fmt.Errorf("failed to get stdin pipe: %w", err)}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &EncoderOpenError{Path: path, Err: fmt.Errorf("failed to get stderr pipe: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		return nil, &EncoderOpenError{Path: path, Err: fmt.Errorf("failed to start ffmpeg: %w", err)}
	}

	s := &FFmpegSink{
		path:      path,
		width:     width,
		height:    height,
		cmd:       cmd,
		stdin:     stdin,
		stderrEOF: make(chan struct{}),
	}
	go s.logStderr(stderr)

	log.Debug().
		Str("path", path).
		Int("pid", cmd.Process.Pid).
		Strs("args", args).
		Msg("ffmpeg started")

	return s, nil
}

// supports reports whether ffmpeg lists codec as an encoder. If the list
// cannot be read the codec is assumed to be available and ffmpeg reports
// the problem itself.
func (o *FFmpegOpener) supports(binary, codec string) bool {
	o.encodersOnce.Do(func() {
		out, err := exec.Command(binary, "-hide_banner", "-encoders").Output()
		if err != nil {
			logger.WithComponent("ffmpeg").Warn().Err(err).Msg("Failed to list ffmpeg encoders")
			return
		}
		o.encoders = parseEncoders(string(out))
	})
	if o.encoders == nil {
		return true
	}
	return o.encoders[codec]
}

// parseEncoders extracts encoder names from `ffmpeg -encoders` output, whose
// entries look like " V....D libx264   libx264 H.264 / AVC ..."
func parseEncoders(out string) map[string]bool {
	encoders := make(map[string]bool)
	listing := false
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if !listing {
			listing = len(fields) > 0 && strings.HasPrefix(fields[0], "---")
			continue
		}
		if len(fields) >= 2 && len(fields[0]) == 6 {
			encoders[fields[1]] = true
		}
	}
	return encoders
}

// pixelFormat picks 4:2:0 chroma when the size allows it. x264 rejects odd
// dimensions in 4:2:0, and padding would change the recorded size, so odd
// sizes fall back to 4:4:4.
func pixelFormat(codec string, width, height int) string {
	if width%2 == 0 && height%2 == 0 {
		return "yuv420p"
	}
	switch codec {
	case "libx264", "libx265":
		return "yuv444p"
	}
	return "yuv420p"
}

func ffmpegArgs(codec, path string, frameRate float64, width, height int) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-video_size", fmt.Sprintf("%dx%d", width, height),
		"-framerate", strconv.FormatFloat(frameRate, 'f', -1, 64),
		"-i", "pipe:0",
		"-an",
		"-c:v", codec,
	}
	switch codec {
	case "libx264", "libx265":
		args = append(args, "-preset", "veryfast", "-crf", "23")
	case "mpeg4":
		args = append(args, "-q:v", "5")
	}
	args = append(args,
		"-pix_fmt", pixelFormat(codec, width, height),
		"-movflags", "+faststart",
		path,
	)
	return args
}

// FFmpegSink writes frames into a running ffmpeg process
type FFmpegSink struct {
	path   string
	width  int
	height int

	cmd   *exec.Cmd
	stdin io.WriteCloser

	stderrMu   sync.Mutex
	stderrTail []string
	stderrEOF  chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// WriteFrame pipes one raw frame to ffmpeg
func (s *FFmpegSink) WriteFrame(frame *capture.Frame) error {
	if frame.Width != s.width || frame.Height != s.height {
		return fmt.Errorf("frame size %dx%d does not match encoder size %dx%d",
			frame.Width, frame.Height, s.width, s.height)
	}
	if _, err := s.stdin.Write(frame.Pix); err != nil {
		return fmt.Errorf("failed to write frame to ffmpeg: %w%s", err, s.tail())
	}
	return nil
}

// Close ends the input stream and waits for ffmpeg to write the trailer
func (s *FFmpegSink) Close() error {
	s.closeOnce.Do(func() {
		log := logger.WithComponent("ffmpeg")

		closeErr := s.stdin.Close()
		<-s.stderrEOF
		if err := s.cmd.Wait(); err != nil {
			s.closeErr = fmt.Errorf("ffmpeg exited with error: %w%s", err, s.tail())
			return
		}
		if closeErr != nil {
			s.closeErr = fmt.Errorf("failed to close ffmpeg input: %w", closeErr)
			return
		}
		log.Debug().Str("path", s.path).Msg("ffmpeg finished")
	})
	return s.closeErr
}

// logStderr forwards ffmpeg diagnostics to the log and keeps the last lines
// for error messages
func (s *FFmpegSink) logStderr(r io.Reader) {
	defer close(s.stderrEOF)
	log := logger.WithComponent("ffmpeg")

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		log.Debug().Str("path", s.path).Msg(line)

		s.stderrMu.Lock()
		s.stderrTail = append(s.stderrTail, line)
		if len(s.stderrTail) > stderrTailLines {
			s.stderrTail = s.stderrTail[1:]
		}
		s.stderrMu.Unlock()
	}
}

func (s *FFmpegSink) tail() string {
	s.stderrMu.Lock()
	defer s.stderrMu.Unlock()
	if len(s.stderrTail) == 0 {
		return ""
	}
	return ": " + strings.Join(s.stderrTail, "; ")
}
