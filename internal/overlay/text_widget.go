package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"
	"strings"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// TextWidget draws a line of text. The text may contain the placeholders
// {frame}, {elapsed} and {time}, expanded for every frame.
type TextWidget struct {
	id        string
	x         int
	y         int
	text      string
	textColor color.RGBA
	bgColor   *color.RGBA
	padding   int
}

// NewTextWidget creates a white-on-translucent-black text widget
func NewTextWidget(id, text string, x, y int) *TextWidget {
	return &TextWidget{
		id:        id,
		x:         x,
		y:         y,
		text:      text,
		textColor: color.RGBA{255, 255, 255, 255},
		bgColor:   &color.RGBA{0, 0, 0, 160},
		padding:   4,
	}
}

// ID returns the widget's unique identifier
func (w *TextWidget) ID() string {
	return w.id
}

// SetBackground sets the background color (nil for transparent)
func (w *TextWidget) SetBackground(c *color.RGBA) {
	w.bgColor = c
}

// Expand returns the text with placeholders replaced
func (w *TextWidget) Expand(stamp Stamp) string {
	return strings.NewReplacer(
		"{frame}", strconv.FormatInt(stamp.Frame, 10),
		"{elapsed}", formatElapsed(stamp.Elapsed),
		"{time}", stamp.Time.Format("15:04:05.000"),
	).Replace(w.text)
}

// Render draws the text widget
func (w *TextWidget) Render(dst draw.Image, stamp Stamp) {
	text := w.Expand(stamp)
	if text == "" {
		return
	}

	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(w.textColor),
		Face: face,
	}

	textWidth := d.MeasureString(text).Ceil()
	lineHeight := face.Metrics().Height.Ceil()

	if w.bgColor != nil {
		box := image.Rect(w.x, w.y, w.x+textWidth+w.padding*2, w.y+lineHeight+w.padding*2)
		draw.Draw(dst, box.Intersect(dst.Bounds()), image.NewUniform(*w.bgColor), image.Point{}, draw.Over)
	}

	d.Dot = fixed.P(w.x+w.padding, w.y+w.padding+face.Metrics().Ascent.Ceil())
	d.DrawString(text)
}

// formatElapsed renders a duration as MM:SS.mmm
func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int(d / time.Minute)
	seconds := int((d % time.Minute) / time.Second)
	millis := int((d % time.Second) / time.Millisecond)
	return fmt.Sprintf("%02d:%02d.%03d", minutes, seconds, millis)
}
