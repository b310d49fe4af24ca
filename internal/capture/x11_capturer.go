package capture

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/WindowRecorder/internal/logger"
	"github.com/bryanchriswhite/WindowRecorder/internal/window"
)

// X11Capturer grabs screen regions from the X11 root window, so whatever is
// on top at that position is recorded, exactly as a screen recording would
type X11Capturer struct {
	conn   *xgb.Conn
	root   xproto.Window
	screen *xproto.ScreenInfo
	mu     sync.Mutex
}

// NewX11Capturer opens a dedicated X11 connection for grabbing frames
func NewX11Capturer() (*X11Capturer, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	logger.WithComponent("x11-capturer").Debug().
		Uint8("depth", screen.RootDepth).
		Uint16("width", screen.WidthInPixels).
		Uint16("height", screen.HeightInPixels).
		Msg("Connected to X server")

	return &X11Capturer{
		conn:   conn,
		root:   screen.Root,
		screen: screen,
	}, nil
}

// Name returns the capturer name
func (c *X11Capturer) Name() string {
	return "X11"
}

// Close closes the X11 connection
func (c *X11Capturer) Close() error {
	c.conn.Close()
	return nil
}

// Grab captures a region of the root window into frame
func (c *X11Capturer) Grab(rect window.Rect, frame *Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	depth := int(c.screen.RootDepth)
	if depth != 24 && depth != 32 {
		return &CaptureError{Rect: rect, Err: fmt.Errorf("unsupported root depth %d", depth)}
	}

	reply, err := xproto.GetImage(
		c.conn,
		xproto.ImageFormatZPixmap,
		xproto.Drawable(c.root),
		int16(rect.Left), int16(rect.Top),
		uint16(rect.Width), uint16(rect.Height),
		0xffffffff,
	).Reply()
	if err != nil {
		return &CaptureError{Rect: rect, Err: fmt.Errorf("failed to get image: %w", err)}
	}

	if want := rect.Width * rect.Height * 4; len(reply.Data) < want {
		return &CaptureError{Rect: rect, Err: fmt.Errorf("short image: got %d bytes, want %d", len(reply.Data), want)}
	}

	packBGRX(frame, reply.Data, rect.Width, rect.Height)
	return nil
}
