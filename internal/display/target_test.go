package display

import (
	"image"
	"image/color"
	"testing"
)

func TestEncodeRows(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.Set(0, 0, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	img.Set(2, 1, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	tests := []struct {
		name          string
		top, n        int
		bytesPerPixel int
		stride        int
		want          []byte
	}{
		{
			name:          "32bpp padded to 16 bytes",
			top:           0,
			n:             2,
			bytesPerPixel: 4,
			stride:        16,
			want: []byte{
				3, 2, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
				0, 0, 0, 0, 0, 0, 0, 0, 30, 20, 10, 0, 0, 0, 0, 0,
			},
		},
		{
			name:          "24bpp second row only",
			top:           1,
			n:             1,
			bytesPerPixel: 3,
			stride:        12,
			want:          []byte{0, 0, 0, 0, 0, 0, 30, 20, 10, 0, 0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := encodeRows(img, tt.top, tt.n, tt.bytesPerPixel, tt.stride)
			if string(got) != string(tt.want) {
				t.Errorf("encodeRows() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTargetStride(t *testing.T) {
	tests := []struct {
		width, bpp, pad int
		want            int
	}{
		{width: 3, bpp: 32, pad: 32, want: 12},
		{width: 3, bpp: 24, pad: 32, want: 12},
		{width: 5, bpp: 24, pad: 32, want: 16},
		{width: 5, bpp: 24, pad: 8, want: 15},
	}

	for _, tt := range tests {
		tg := &Target{width: tt.width, bitsPerPixel: tt.bpp, scanlinePad: tt.pad}
		if got := tg.stride(); got != tt.want {
			t.Errorf("stride(width=%d, bpp=%d, pad=%d) = %d, want %d", tt.width, tt.bpp, tt.pad, got, tt.want)
		}
	}
}

func TestNewTargetRejectsBadSize(t *testing.T) {
	if _, err := NewTarget("bad", 0, 0, 0, 10); err == nil {
		t.Fatal("expected error for zero width")
	}
}
