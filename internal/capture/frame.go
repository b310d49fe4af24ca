package capture

import (
	"image"
	"image/color"
)

// Frame is a packed 24-bit RGB pixel buffer, three bytes per pixel in R, G, B
// order with no row padding. It implements draw.Image so overlays can be
// drawn on it before encoding.
type Frame struct {
	Width  int
	Height int
	Pix    []byte
}

// NewFrame allocates a black frame of the given size
func NewFrame(width, height int) *Frame {
	f := &Frame{}
	f.Resize(width, height)
	return f
}

// Resize sets the frame dimensions, reusing the pixel buffer when it is large enough
func (f *Frame) Resize(width, height int) {
	n := width * height * 3
	if cap(f.Pix) < n {
		f.Pix = make([]byte, n)
	}
	f.Pix = f.Pix[:n]
	f.Width = width
	f.Height = height
}

// Stride returns the number of bytes per row
func (f *Frame) Stride() int {
	return f.Width * 3
}

func (f *Frame) ColorModel() color.Model {
	return color.RGBAModel
}

func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

func (f *Frame) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(f.Bounds())) {
		return color.RGBA{}
	}
	i := y*f.Stride() + x*3
	return color.RGBA{R: f.Pix[i], G: f.Pix[i+1], B: f.Pix[i+2], A: 255}
}

// Set writes a pixel, compositing translucent colors over the existing pixel
func (f *Frame) Set(x, y int, c color.Color) {
	if !(image.Point{x, y}.In(f.Bounds())) {
		return
	}
	i := y*f.Stride() + x*3
	r, g, b, a := c.RGBA()
	if a == 0xffff {
		f.Pix[i], f.Pix[i+1], f.Pix[i+2] = uint8(r>>8), uint8(g>>8), uint8(b>>8)
		return
	}
	// c is alpha-premultiplied
	inv := 0xffff - a
	f.Pix[i] = uint8((r + uint32(f.Pix[i])*0x101*inv/0xffff) >> 8)
	f.Pix[i+1] = uint8((g + uint32(f.Pix[i+1])*0x101*inv/0xffff) >> 8)
	f.Pix[i+2] = uint8((b + uint32(f.Pix[i+2])*0x101*inv/0xffff) >> 8)
}

// packBGRX converts 32-bit little-endian X11 pixels (B, G, R, X) into the
// frame, dropping the padding channel
func packBGRX(f *Frame, data []byte, width, height int) {
	f.Resize(width, height)
	n := width * height
	for i := 0; i < n; i++ {
		s := i * 4
		d := i * 3
		f.Pix[d] = data[s+2]
		f.Pix[d+1] = data[s+1]
		f.Pix[d+2] = data[s]
	}
}
