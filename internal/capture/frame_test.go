package capture

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/bryanchriswhite/WindowRecorder/internal/window"
)

func TestPackBGRX(t *testing.T) {
	data := []byte{
		3, 2, 1, 0xff, 30, 20, 10, 0xff,
		6, 5, 4, 0x00, 60, 50, 40, 0x00,
	}

	f := NewFrame(1, 1)
	packBGRX(f, data, 2, 2)

	if f.Width != 2 || f.Height != 2 {
		t.Fatalf("frame size = %dx%d, want 2x2", f.Width, f.Height)
	}
	want := []byte{1, 2, 3, 10, 20, 30, 4, 5, 6, 40, 50, 60}
	if string(f.Pix) != string(want) {
		t.Errorf("Pix = %v, want %v", f.Pix, want)
	}
}

func TestFrameResizeReusesBuffer(t *testing.T) {
	f := NewFrame(10, 10)
	if len(f.Pix) != 300 {
		t.Fatalf("len(Pix) = %d, want 300", len(f.Pix))
	}
	before := &f.Pix[0]

	f.Resize(5, 4)
	if len(f.Pix) != 60 || f.Stride() != 15 {
		t.Errorf("after shrink len(Pix) = %d stride = %d, want 60 and 15", len(f.Pix), f.Stride())
	}
	if &f.Pix[0] != before {
		t.Error("shrinking reallocated the buffer")
	}

	f.Resize(20, 20)
	if len(f.Pix) != 1200 {
		t.Errorf("after grow len(Pix) = %d, want 1200", len(f.Pix))
	}
}

func TestFrameSetAndAt(t *testing.T) {
	f := NewFrame(4, 3)

	tests := []struct {
		name  string
		start color.RGBA
		set   color.Color
		want  color.RGBA
	}{
		{
			name:  "opaque replaces",
			start: color.RGBA{R: 9, G: 9, B: 9, A: 255},
			set:   color.RGBA{R: 200, G: 100, B: 50, A: 255},
			want:  color.RGBA{R: 200, G: 100, B: 50, A: 255},
		},
		{
			name:  "half black over white",
			start: color.RGBA{R: 255, G: 255, B: 255, A: 255},
			set:   color.RGBA{R: 0, G: 0, B: 0, A: 128},
			want:  color.RGBA{R: 127, G: 127, B: 127, A: 255},
		},
		{
			name:  "transparent keeps pixel",
			start: color.RGBA{R: 40, G: 50, B: 60, A: 255},
			set:   color.RGBA{},
			want:  color.RGBA{R: 40, G: 50, B: 60, A: 255},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.Set(2, 1, tt.start)
			f.Set(2, 1, tt.set)
			if got := f.At(2, 1); got != tt.want {
				t.Errorf("At() = %v, want %v", got, tt.want)
			}
		})
	}

	// Out of bounds writes are ignored
	f.Set(-1, 0, color.White)
	f.Set(4, 0, color.White)
	if got := f.At(10, 10); got != (color.RGBA{}) {
		t.Errorf("At(out of bounds) = %v, want zero", got)
	}
}

func TestFrameIsDrawImage(t *testing.T) {
	var _ draw.Image = (*Frame)(nil)

	f := NewFrame(3, 2)
	draw.Draw(f, image.Rect(1, 0, 3, 2), image.NewUniform(color.RGBA{R: 255, A: 255}), image.Point{}, draw.Src)

	want := []byte{
		0, 0, 0, 255, 0, 0, 255, 0, 0,
		0, 0, 0, 255, 0, 0, 255, 0, 0,
	}
	if string(f.Pix) != string(want) {
		t.Errorf("Pix = %v, want %v", f.Pix, want)
	}
}

func TestCaptureError(t *testing.T) {
	cause := errors.New("BadMatch")
	err := error(&CaptureError{Rect: window.Rect{Left: 1, Top: 2, Width: 3, Height: 4}, Err: cause})

	if !errors.Is(err, cause) {
		t.Error("CaptureError does not unwrap to its cause")
	}
	if got, want := err.Error(), "failed to capture 3x4+1+2: BadMatch"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
