package window

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/WindowRecorder/internal/logger"
)

// Glyphs from the standard X cursor font
const (
	xcCrosshair     = 34
	xcCrosshairMask = 35
)

// X11Backend implements the Backend interface using X11
type X11Backend struct {
	conn   *xgb.Conn
	root   xproto.Window
	screen *xproto.ScreenInfo

	atomMu sync.Mutex
	atoms  map[string]xproto.Atom
}

// NewX11Backend creates a new X11 backend connected to $DISPLAY
func NewX11Backend() (*X11Backend, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	return &X11Backend{
		conn:   conn,
		root:   screen.Root,
		screen: screen,
		atoms:  make(map[string]xproto.Atom),
	}, nil
}

// Close closes the X11 connection
func (b *X11Backend) Close() error {
	b.conn.Close()
	return nil
}

// ScreenSize returns the size of the root window, which spans all monitors
func (b *X11Backend) ScreenSize() (int, int, error) {
	geom, err := xproto.GetGeometry(b.conn, xproto.Drawable(b.root)).Reply()
	if err != nil {
		return int(b.screen.WidthInPixels), int(b.screen.HeightInPixels), nil
	}
	return int(geom.Width), int(geom.Height), nil
}

// ListWindows returns all client windows using EWMH _NET_CLIENT_LIST with QueryTree fallback
func (b *X11Backend) ListWindows() ([]*WindowInfo, error) {
	log := logger.WithComponent("x11-backend")

	windows, err := b.listWindowsEWMH()
	if err == nil && len(windows) > 0 {
		log.Debug().Int("count", len(windows)).Msg("ListWindows: using EWMH _NET_CLIENT_LIST")
		return windows, nil
	}
	if err != nil {
		log.Debug().Err(err).Msg("ListWindows: EWMH failed, falling back to QueryTree")
	}

	windows, err = b.listWindowsQueryTree()
	if err != nil {
		return nil, err
	}
	log.Debug().Int("count", len(windows)).Msg("ListWindows: using QueryTree fallback")
	return windows, nil
}

// listWindowsEWMH gets windows from _NET_CLIENT_LIST (EWMH standard)
func (b *X11Backend) listWindowsEWMH() ([]*WindowInfo, error) {
	clientListAtom, err := b.getAtom("_NET_CLIENT_LIST")
	if err != nil {
		return nil, fmt.Errorf("failed to get _NET_CLIENT_LIST atom: %w", err)
	}

	reply, err := xproto.GetProperty(
		b.conn,
		false,
		b.root,
		clientListAtom,
		xproto.GetPropertyTypeAny,
		0,
		(1<<32)-1,
	).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get _NET_CLIENT_LIST property: %w", err)
	}
	if reply.ValueLen == 0 {
		return nil, fmt.Errorf("_NET_CLIENT_LIST is empty")
	}

	windows := make([]*WindowInfo, 0, len(reply.Value)/4)
	for i := 0; i+4 <= len(reply.Value); i += 4 {
		win := xproto.Window(le32(reply.Value[i:]))
		info := b.getWindowInfo(win)
		if info.Title == "" && info.Class == "" {
			continue
		}
		windows = append(windows, info)
	}
	return windows, nil
}

// listWindowsQueryTree gets windows by querying root window children
func (b *X11Backend) listWindowsQueryTree() ([]*WindowInfo, error) {
	tree, err := xproto.QueryTree(b.conn, b.root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to query window tree: %w", err)
	}

	windows := make([]*WindowInfo, 0)
	for _, child := range tree.Children {
		client := b.findClient(child)
		info := b.getWindowInfo(client)
		if info.Title == "" {
			continue
		}
		windows = append(windows, info)
	}
	return windows, nil
}

// FindByName walks the whole window tree looking for an exact title match,
// the same lookup xwininfo -name performs
func (b *X11Backend) FindByName(name string) (*WindowInfo, error) {
	queue := []xproto.Window{b.root}
	for len(queue) > 0 {
		win := queue[0]
		queue = queue[1:]

		if win != b.root {
			if title := b.getTitle(win); title == name {
				return b.getWindowInfo(win), nil
			}
		}

		tree, err := xproto.QueryTree(b.conn, win).Reply()
		if err != nil {
			continue
		}
		queue = append(queue, tree.Children...)
	}
	return nil, fmt.Errorf("no window named %q", name)
}

// Geometry returns the absolute rectangle of a window. The origin is
// translated to root coordinates since GetGeometry is parent relative.
func (b *X11Backend) Geometry(id uint32) (Rect, error) {
	win := xproto.Window(id)

	geom, err := xproto.GetGeometry(b.conn, xproto.Drawable(win)).Reply()
	if err != nil {
		return Rect{}, fmt.Errorf("failed to get window geometry: %w", err)
	}

	pos, err := xproto.TranslateCoordinates(b.conn, win, b.root, 0, 0).Reply()
	if err != nil {
		return Rect{}, fmt.Errorf("failed to translate window coordinates: %w", err)
	}

	return Rect{
		Left:   int(pos.DstX),
		Top:    int(pos.DstY),
		Width:  int(geom.Width),
		Height: int(geom.Height),
	}, nil
}

// SelectWindow grabs the pointer with a crosshair cursor and returns the
// client window under the first left click. Right click or any key cancels.
func (b *X11Backend) SelectWindow(ctx context.Context) (*WindowInfo, error) {
	log := logger.WithComponent("x11-backend")

	cursor, err := b.createCrosshair()
	if err != nil {
		log.Debug().Err(err).Msg("Crosshair cursor unavailable, using default cursor")
		cursor = xproto.CursorNone
	} else {
		defer xproto.FreeCursor(b.conn, cursor)
	}

	const pointerMask = xproto.EventMaskButtonPress | xproto.EventMaskButtonRelease
	grab, err := xproto.GrabPointer(
		b.conn,
		false,
		b.root,
		pointerMask,
		xproto.GrabModeAsync,
		xproto.GrabModeAsync,
		xproto.WindowNone,
		cursor,
		xproto.TimeCurrentTime,
	).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to grab pointer: %w", err)
	}
	if grab.Status != xproto.GrabStatusSuccess {
		return nil, fmt.Errorf("failed to grab pointer: status %d", grab.Status)
	}
	defer xproto.UngrabPointer(b.conn, xproto.TimeCurrentTime)

	kbd, err := xproto.GrabKeyboard(
		b.conn,
		false,
		b.root,
		xproto.TimeCurrentTime,
		xproto.GrabModeAsync,
		xproto.GrabModeAsync,
	).Reply()
	if err == nil && kbd.Status == xproto.GrabStatusSuccess {
		defer xproto.UngrabKeyboard(b.conn, xproto.TimeCurrentTime)
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		ev, xerr := b.conn.PollForEvent()
		if xerr != nil {
			log.Debug().Str("error", xerr.Error()).Msg("X11 error while selecting window")
			continue
		}
		if ev == nil {
			time.Sleep(20 * time.Millisecond)
			continue
		}

		switch e := ev.(type) {
		case xproto.ButtonPressEvent:
			if e.Detail != xproto.ButtonIndex1 {
				return nil, ErrSelectionCancelled
			}
			picked := e.Child
			if picked == xproto.WindowNone {
				picked = b.root
			} else {
				picked = b.findClient(picked)
			}
			return b.getWindowInfo(picked), nil
		case xproto.KeyPressEvent:
			return nil, ErrSelectionCancelled
		}
	}
}

// createCrosshair builds the crosshair glyph cursor from the cursor font
func (b *X11Backend) createCrosshair() (xproto.Cursor, error) {
	font, err := xproto.NewFontId(b.conn)
	if err != nil {
		return 0, err
	}
	const fontName = "cursor"
	if err := xproto.OpenFontChecked(b.conn, font, uint16(len(fontName)), fontName).Check(); err != nil {
		return 0, err
	}
	defer xproto.CloseFont(b.conn, font)

	cursor, err := xproto.NewCursorId(b.conn)
	if err != nil {
		return 0, err
	}
	err = xproto.CreateGlyphCursorChecked(
		b.conn, cursor, font, font,
		xcCrosshair, xcCrosshairMask,
		0, 0, 0,
		0xffff, 0xffff, 0xffff,
	).Check()
	if err != nil {
		return 0, err
	}
	return cursor, nil
}

// findClient descends from a window manager frame to the client window that
// carries WM_STATE. Falls back to the frame itself.
func (b *X11Backend) findClient(win xproto.Window) xproto.Window {
	wmState, err := b.getAtom("WM_STATE")
	if err != nil {
		return win
	}
	if client, ok := b.searchClient(win, wmState); ok {
		return client
	}
	return win
}

func (b *X11Backend) searchClient(win xproto.Window, wmState xproto.Atom) (xproto.Window, bool) {
	reply, err := xproto.GetProperty(b.conn, false, win, wmState, xproto.GetPropertyTypeAny, 0, 0).Reply()
	if err == nil && reply.Type != xproto.AtomNone {
		return win, true
	}

	tree, err := xproto.QueryTree(b.conn, win).Reply()
	if err != nil {
		return 0, false
	}
	for _, child := range tree.Children {
		if client, ok := b.searchClient(child, wmState); ok {
			return client, true
		}
	}
	return 0, false
}

// getWindowInfo retrieves title, class and PID of a window
func (b *X11Backend) getWindowInfo(win xproto.Window) *WindowInfo {
	info := &WindowInfo{
		ID:    uint32(win),
		Title: b.getTitle(win),
	}

	// WM_CLASS format is: instance\0class\0
	if classAtom, err := b.getAtom("WM_CLASS"); err == nil {
		if raw, err := b.getProperty(win, classAtom); err == nil {
			parts := strings.Split(raw, "\x00")
			if len(parts) >= 2 && parts[1] != "" {
				info.Class = parts[1]
			} else if parts[0] != "" {
				info.Class = parts[0]
			}
		}
	}

	if pidAtom, err := b.getAtom("_NET_WM_PID"); err == nil {
		reply, err := xproto.GetProperty(b.conn, false, win, pidAtom, xproto.AtomCardinal, 0, 1).Reply()
		if err == nil && len(reply.Value) >= 4 {
			info.PID = int(le32(reply.Value))
		}
	}

	return info
}

// getTitle prefers the UTF-8 _NET_WM_NAME over the legacy WM_NAME
func (b *X11Backend) getTitle(win xproto.Window) string {
	for _, name := range []string{"_NET_WM_NAME", "WM_NAME"} {
		atom, err := b.getAtom(name)
		if err != nil {
			continue
		}
		if title, err := b.getProperty(win, atom); err == nil && title != "" {
			return strings.TrimRight(title, "\x00")
		}
	}
	return ""
}

// getAtom gets an atom ID by name, caching the result
func (b *X11Backend) getAtom(name string) (xproto.Atom, error) {
	b.atomMu.Lock()
	defer b.atomMu.Unlock()

	if atom, ok := b.atoms[name]; ok {
		return atom, nil
	}
	reply, err := xproto.InternAtom(b.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	b.atoms[name] = reply.Atom
	return reply.Atom, nil
}

// getProperty gets a property value as a string
func (b *X11Backend) getProperty(win xproto.Window, atom xproto.Atom) (string, error) {
	reply, err := xproto.GetProperty(
		b.conn,
		false,
		win,
		atom,
		xproto.GetPropertyTypeAny,
		0,
		(1<<32)-1,
	).Reply()
	if err != nil {
		return "", err
	}
	if reply.ValueLen == 0 {
		return "", fmt.Errorf("empty property")
	}
	return string(reply.Value), nil
}

// le32 decodes a little-endian CARDINAL/WINDOW property value
func le32(b []byte) uint32 {
	return uint32(b[0]) |
		uint32(b[1])<<8 |
		uint32(b[2])<<16 |
		uint32(b[3])<<24
}
