package output

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/bryanchriswhite/WindowRecorder/internal/capture"
)

const encodersOutput = `Encoders:
 V..... = Video
 A..... = Audio
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC (codec h264)
 V....D mpeg4                MPEG-4 part 2
 A....D aac                  AAC (Advanced Audio Coding)
`

func TestParseEncoders(t *testing.T) {
	got := parseEncoders(encodersOutput)

	for _, name := range []string{"libx264", "mpeg4", "aac"} {
		if !got[name] {
			t.Errorf("parseEncoders() missing %q", name)
		}
	}
	// Legend lines before the separator are not encoders
	for _, name := range []string{"=", "Video", "Audio"} {
		if got[name] {
			t.Errorf("parseEncoders() included legend entry %q", name)
		}
	}
	if len(got) != 3 {
		t.Errorf("parseEncoders() = %v, want 3 entries", got)
	}
}

func TestPixelFormat(t *testing.T) {
	tests := []struct {
		codec         string
		width, height int
		want          string
	}{
		{codec: "libx264", width: 640, height: 480, want: "yuv420p"},
		{codec: "libx264", width: 641, height: 480, want: "yuv444p"},
		{codec: "libx264", width: 640, height: 481, want: "yuv444p"},
		{codec: "libx265", width: 3, height: 3, want: "yuv444p"},
		{codec: "mpeg4", width: 641, height: 481, want: "yuv420p"},
	}

	for _, tt := range tests {
		if got := pixelFormat(tt.codec, tt.width, tt.height); got != tt.want {
			t.Errorf("pixelFormat(%s, %dx%d) = %s, want %s", tt.codec, tt.width, tt.height, got, tt.want)
		}
	}
}

func TestFFmpegArgs(t *testing.T) {
	got := ffmpegArgs("libx264", "/tmp/out.mp4", 29.97, 321, 240)
	want := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-video_size", "321x240",
		"-framerate", "29.97",
		"-i", "pipe:0",
		"-an",
		"-c:v", "libx264",
		"-preset", "veryfast", "-crf", "23",
		"-pix_fmt", "yuv444p",
		"-movflags", "+faststart",
		"/tmp/out.mp4",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ffmpegArgs() =\n%v\nwant\n%v", got, want)
	}
}

func TestOpenInvalidParameters(t *testing.T) {
	o := NewFFmpegOpener(FFmpegConfig{})
	path := filepath.Join(t.TempDir(), "out.mp4")

	tests := []struct {
		name          string
		fps           float64
		width, height int
	}{
		{name: "zero frame rate", fps: 0, width: 10, height: 10},
		{name: "negative frame rate", fps: -1, width: 10, height: 10},
		{name: "zero width", fps: 10, width: 0, height: 10},
		{name: "zero height", fps: 10, width: 10, height: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.Open(path, tt.fps, tt.width, tt.height)
			var openErr *EncoderOpenError
			if !errors.As(err, &openErr) {
				t.Fatalf("Open() error = %v, want EncoderOpenError", err)
			}
			if openErr.Path != path {
				t.Errorf("EncoderOpenError.Path = %q, want %q", openErr.Path, path)
			}
		})
	}
}

func TestOpenMissingFFmpeg(t *testing.T) {
	o := NewFFmpegOpener(FFmpegConfig{Path: filepath.Join(t.TempDir(), "no-such-ffmpeg")})

	_, err := o.Open(filepath.Join(t.TempDir(), "out.mp4"), 10, 16, 16)
	if !errors.Is(err, ErrNoFFmpeg) {
		t.Fatalf("Open() error = %v, want ErrNoFFmpeg", err)
	}
}

func requireFFmpeg(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not installed", bin)
		}
	}
}

func TestOpenUnwritablePath(t *testing.T) {
	requireFFmpeg(t)

	o := NewFFmpegOpener(FFmpegConfig{})
	_, err := o.Open(filepath.Join(t.TempDir(), "missing", "dir", "out.mp4"), 10, 16, 16)
	var openErr *EncoderOpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("Open() error = %v, want EncoderOpenError", err)
	}
}

func TestOpenUnsupportedCodec(t *testing.T) {
	requireFFmpeg(t)

	o := NewFFmpegOpener(FFmpegConfig{Codec: "no-such-codec"})
	_, err := o.Open(filepath.Join(t.TempDir(), "out.mp4"), 10, 16, 16)
	var openErr *EncoderOpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("Open() error = %v, want EncoderOpenError", err)
	}
}

func TestFFmpegSinkRoundTrip(t *testing.T) {
	requireFFmpeg(t)

	tests := []struct {
		name          string
		width, height int
		frames        int
	}{
		{name: "even size", width: 64, height: 48, frames: 10},
		{name: "odd size", width: 65, height: 49, frames: 5},
		{name: "single frame", width: 32, height: 32, frames: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out.mp4")
			sink, err := NewFFmpegOpener(FFmpegConfig{}).Open(path, 10, tt.width, tt.height)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}

			frame := capture.NewFrame(tt.width, tt.height)
			for i := 0; i < tt.frames; i++ {
				for p := range frame.Pix {
					frame.Pix[p] = byte(i * 20)
				}
				if err := sink.WriteFrame(frame); err != nil {
					t.Fatalf("WriteFrame(%d) error = %v", i, err)
				}
			}
			if err := sink.Close(); err != nil {
				t.Fatalf("Close() error = %v", err)
			}
			if err := sink.Close(); err != nil {
				t.Errorf("second Close() error = %v", err)
			}

			info, err := Probe(context.Background(), "", path)
			if err != nil {
				t.Fatalf("Probe() error = %v", err)
			}
			if info.Width != tt.width || info.Height != tt.height {
				t.Errorf("encoded size = %dx%d, want %dx%d", info.Width, info.Height, tt.width, tt.height)
			}
			if info.Frames != tt.frames {
				t.Errorf("encoded frames = %d, want %d", info.Frames, tt.frames)
			}
			if info.Codec != "h264" {
				t.Errorf("codec = %q, want h264", info.Codec)
			}
		})
	}
}

func TestFFmpegSinkRejectsWrongSize(t *testing.T) {
	requireFFmpeg(t)

	sink, err := NewFFmpegOpener(FFmpegConfig{}).Open(filepath.Join(t.TempDir(), "out.mp4"), 10, 16, 16)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer sink.Close()

	if err := sink.WriteFrame(capture.NewFrame(8, 8)); err == nil {
		t.Error("WriteFrame() accepted a frame of the wrong size")
	}
}
