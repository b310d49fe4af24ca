package window

import "fmt"

// WindowInfo represents information about a top-level window
type WindowInfo struct {
	ID    uint32 `json:"id"`
	Title string `json:"title"`
	Class string `json:"class"`
	PID   int    `json:"pid"`
}

// Rect is an absolute screen rectangle in pixels
type Rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty reports whether the rectangle has no visible area
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Right returns the exclusive right edge
func (r Rect) Right() int {
	return r.Left + r.Width
}

// Bottom returns the exclusive bottom edge
func (r Rect) Bottom() int {
	return r.Top + r.Height
}

func (r Rect) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.Left, r.Top)
}
