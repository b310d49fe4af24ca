package display

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/WindowRecorder/internal/logger"
)

// maxRequestBytes keeps PutImage requests under the core protocol limit
// without relying on BIG-REQUESTS
const maxRequestBytes = 256 * 1024

// Target is a plain top-level window painted with known content. Recording
// it gives a reproducible picture to compare the output against.
type Target struct {
	conn   *xgb.Conn
	screen *xproto.ScreenInfo
	win    xproto.Window
	gc     xproto.Gcontext
	width  int
	height int

	bitsPerPixel int
	scanlinePad  int

	mu     sync.Mutex
	closed bool
}

// NewTarget creates and maps a width x height window titled title at (x, y)
func NewTarget(title string, x, y, width, height int) (*Target, error) {
	if width <= 0 || height <= 0 || width > 0xffff || height > 0xffff {
		return nil, fmt.Errorf("invalid window size %dx%d", width, height)
	}

	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	t := &Target{
		conn:   conn,
		screen: screen,
		width:  width,
		height: height,
	}

	// Find the format that matches the root depth
	for _, format := range setup.PixmapFormats {
		if format.Depth == screen.RootDepth {
			t.bitsPerPixel = int(format.BitsPerPixel)
			t.scanlinePad = int(format.ScanlinePad)
			break
		}
	}
	if t.bitsPerPixel != 32 && t.bitsPerPixel != 24 {
		conn.Close()
		return nil, fmt.Errorf("unsupported pixmap format: depth %d, %d bits per pixel", screen.RootDepth, t.bitsPerPixel)
	}

	if err := t.create(title, x, y); err != nil {
		conn.Close()
		return nil, err
	}

	logger.WithComponent("display").Debug().
		Str("title", title).
		Uint32("window_id", uint32(t.win)).
		Int("width", width).
		Int("height", height).
		Msg("Target window created")

	return t, nil
}

func (t *Target) create(title string, x, y int) error {
	win, err := xproto.NewWindowId(t.conn)
	if err != nil {
		return fmt.Errorf("failed to create window ID: %w", err)
	}
	t.win = win

	// Black background, no exposure handling: Paint redraws explicitly
	mask := uint32(xproto.CwBackPixel | xproto.CwEventMask)
	values := []uint32{
		0x000000,
		xproto.EventMaskStructureNotify,
	}

	err = xproto.CreateWindowChecked(
		t.conn,
		t.screen.RootDepth,
		t.win,
		t.screen.Root,
		int16(x), int16(y),
		uint16(t.width), uint16(t.height),
		0,
		xproto.WindowClassInputOutput,
		t.screen.RootVisual,
		mask,
		values,
	).Check()
	if err != nil {
		return fmt.Errorf("failed to create window: %w", err)
	}

	if err := t.setTitle(title); err != nil {
		logger.WithComponent("display").Warn().Err(err).Msg("Failed to set window title")
	}
	if err := t.setClass("windowrecorder", "WindowRecorder"); err != nil {
		logger.WithComponent("display").Warn().Err(err).Msg("Failed to set window class")
	}

	if err := xproto.MapWindowChecked(t.conn, t.win).Check(); err != nil {
		return fmt.Errorf("failed to map window: %w", err)
	}

	gc, err := xproto.NewGcontextId(t.conn)
	if err != nil {
		return fmt.Errorf("failed to create graphics context ID: %w", err)
	}
	if err := xproto.CreateGCChecked(t.conn, gc, xproto.Drawable(t.win), 0, nil).Check(); err != nil {
		return fmt.Errorf("failed to create graphics context: %w", err)
	}
	t.gc = gc

	t.conn.Sync()
	return nil
}

// ID returns the X window ID
func (t *Target) ID() uint32 {
	return uint32(t.win)
}

// Fill paints the whole window with c
func (t *Target) Fill(c color.Color) error {
	img := image.NewRGBA(image.Rect(0, 0, t.width, t.height))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return t.Paint(img)
}

// Paint copies img, which must match the window size, into the window
func (t *Target) Paint(img *image.RGBA) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return fmt.Errorf("target window closed")
	}
	if b := img.Bounds(); b.Dx() != t.width || b.Dy() != t.height {
		return fmt.Errorf("image size mismatch: got %dx%d, expected %dx%d",
			b.Dx(), b.Dy(), t.width, t.height)
	}

	stride := t.stride()
	rows := max(1, maxRequestBytes/stride)

	for top := 0; top < t.height; top += rows {
		n := min(rows, t.height-top)
		data := encodeRows(img, top, n, t.bitsPerPixel/8, stride)

		err := xproto.PutImageChecked(
			t.conn,
			xproto.ImageFormatZPixmap,
			xproto.Drawable(t.win),
			t.gc,
			uint16(t.width),
			uint16(n),
			0, int16(top),
			0,
			t.screen.RootDepth,
			data,
		).Check()
		if err != nil {
			return fmt.Errorf("failed to put image rows %d-%d: %w", top, top+n, err)
		}
	}

	t.conn.Sync()
	return nil
}

// stride is the padded length of one scanline in bytes
func (t *Target) stride() int {
	unpadded := t.width * t.bitsPerPixel / 8
	padBytes := t.scanlinePad / 8
	if padBytes == 0 {
		return unpadded
	}
	return ((unpadded + padBytes - 1) / padBytes) * padBytes
}

// encodeRows converts n rows of img starting at top into BGR(X) scanlines.
// Byte order matches the usual visual masks: 0xff blue, 0xff00 green,
// 0xff0000 red.
func encodeRows(img *image.RGBA, top, n, bytesPerPixel, stride int) []byte {
	b := img.Bounds()
	data := make([]byte, stride*n)
	for y := 0; y < n; y++ {
		src := img.Pix[(top+y)*img.Stride:]
		dst := data[y*stride:]
		for x := 0; x < b.Dx(); x++ {
			s := src[x*4:]
			d := dst[x*bytesPerPixel:]
			d[0] = s[2]
			d[1] = s[1]
			d[2] = s[0]
		}
	}
	return data
}

// Close destroys the window and closes the connection
func (t *Target) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	xproto.FreeGC(t.conn, t.gc)
	xproto.DestroyWindow(t.conn, t.win)
	t.conn.Sync()
	t.conn.Close()
	return nil
}

func (t *Target) setTitle(title string) error {
	utf8Atom, err := t.getAtom("UTF8_STRING")
	if err != nil {
		return err
	}
	netName, err := t.getAtom("_NET_WM_NAME")
	if err != nil {
		return err
	}

	if err := xproto.ChangePropertyChecked(t.conn, xproto.PropModeReplace, t.win,
		netName, utf8Atom, 8, uint32(len(title)), []byte(title)).Check(); err != nil {
		return err
	}
	// Legacy WM_NAME for clients that ignore EWMH
	return xproto.ChangePropertyChecked(t.conn, xproto.PropModeReplace, t.win,
		xproto.AtomWmName, xproto.AtomString, 8, uint32(len(title)), []byte(title)).Check()
}

// setClass sets WM_CLASS, formatted as instance\0class\0
func (t *Target) setClass(instance, class string) error {
	classStr := instance + "\x00" + class + "\x00"
	return xproto.ChangePropertyChecked(t.conn, xproto.PropModeReplace, t.win,
		xproto.AtomWmClass, xproto.AtomString, 8, uint32(len(classStr)), []byte(classStr)).Check()
}

func (t *Target) getAtom(name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(t.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	return reply.Atom, nil
}
