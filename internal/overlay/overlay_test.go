package overlay

import (
	"image"
	"image/color"
	"testing"
	"time"
)

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{in: 0, want: "00:00.000"},
		{in: 1500 * time.Millisecond, want: "00:01.500"},
		{in: 61*time.Second + 7*time.Millisecond, want: "01:01.007"},
		{in: 125 * time.Minute, want: "125:00.000"},
		{in: -time.Second, want: "00:00.000"},
	}

	for _, tt := range tests {
		if got := formatElapsed(tt.in); got != tt.want {
			t.Errorf("formatElapsed(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTextWidgetExpand(t *testing.T) {
	stamp := Stamp{
		Frame:   42,
		Elapsed: 2*time.Second + 250*time.Millisecond,
		Time:    time.Date(2024, 5, 6, 13, 14, 15, 16*int(time.Millisecond), time.UTC),
	}

	tests := []struct {
		text string
		want string
	}{
		{text: "plain", want: "plain"},
		{text: "#{frame}", want: "#42"},
		{text: "{elapsed} @ {time}", want: "00:02.250 @ 13:14:15.016"},
		{text: "{frame}/{frame}", want: "42/42"},
		{text: "{unknown}", want: "{unknown}"},
	}

	for _, tt := range tests {
		w := NewTextWidget("t", tt.text, 0, 0)
		if got := w.Expand(stamp); got != tt.want {
			t.Errorf("Expand(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestTextWidgetRender(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 120, 40))
	w := NewTextWidget("t", "REC", 10, 5)
	w.Render(dst, Stamp{})

	// Background box starts at the widget origin
	if got := dst.RGBAAt(10, 5); got.A == 0 {
		t.Errorf("pixel at origin = %v, want background", got)
	}
	// Nothing is drawn left of the widget
	if got := dst.RGBAAt(5, 5); got != (color.RGBA{}) {
		t.Errorf("pixel left of widget = %v, want untouched", got)
	}

	// Some glyph pixel must be bright
	bright := false
	for y := 5; y < 30 && !bright; y++ {
		for x := 14; x < 40; x++ {
			if dst.RGBAAt(x, y).R > 200 {
				bright = true
				break
			}
		}
	}
	if !bright {
		t.Error("no text pixels rendered")
	}
}

func TestTextWidgetRenderTransparentBackground(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 120, 40))
	w := NewTextWidget("t", "REC", 10, 5)
	w.SetBackground(nil)
	w.Render(dst, Stamp{})

	if got := dst.RGBAAt(10, 5); got != (color.RGBA{}) {
		t.Errorf("pixel at origin = %v, want untouched", got)
	}
}

func TestManager(t *testing.T) {
	m := NewManager()
	if err := m.AddWidget(NewTextWidget("a", "x", 0, 0)); err != nil {
		t.Fatalf("AddWidget() error = %v", err)
	}
	if err := m.AddWidget(NewTextWidget("a", "y", 0, 0)); err == nil {
		t.Error("AddWidget() accepted a duplicate id")
	}
	if err := m.AddWidget(NewTextWidget("b", "y", 0, 30)); err != nil {
		t.Fatalf("AddWidget() error = %v", err)
	}
	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}

	dst := image.NewRGBA(image.Rect(0, 0, 50, 50))
	m.Render(dst, Stamp{})
	if dst.RGBAAt(0, 0).A == 0 || dst.RGBAAt(0, 30).A == 0 {
		t.Error("Render() did not draw every widget")
	}
}

func TestFromConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want bool
	}{
		{name: "disabled", cfg: Config{Enabled: false, Text: "x"}, want: false},
		{name: "empty text", cfg: Config{Enabled: true}, want: false},
		{name: "enabled", cfg: Config{Enabled: true, Text: "{elapsed}", X: 4, Y: 4}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := FromConfig(tt.cfg)
			if (m != nil) != tt.want {
				t.Fatalf("FromConfig() = %v, want non-nil %v", m, tt.want)
			}
			if m == nil {
				return
			}
			if m.Len() != 1 {
				t.Errorf("Len() = %d, want 1", m.Len())
			}
			if err := m.AddWidget(NewTextWidget("label", "dup", 0, 0)); err == nil {
				t.Error("AddWidget() accepted a duplicate of the configured label")
			}
		})
	}
}
