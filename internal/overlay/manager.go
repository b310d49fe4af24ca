package overlay

import (
	"fmt"
	"image/draw"
	"sync"

	"github.com/bryanchriswhite/WindowRecorder/internal/logger"
)

// Config configures the built-in frame annotation
type Config struct {
	Enabled bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Text    string `json:"text" yaml:"text" mapstructure:"text"`
	X       int    `json:"x" yaml:"x" mapstructure:"x"`
	Y       int    `json:"y" yaml:"y" mapstructure:"y"`
}

// Manager renders a set of widgets onto frames in insertion order
type Manager struct {
	mu      sync.RWMutex
	widgets []Widget
}

// NewManager creates an empty overlay manager
func NewManager() *Manager {
	return &Manager{}
}

// FromConfig builds a manager from config, returning nil when the overlay is disabled
func FromConfig(cfg Config) *Manager {
	if !cfg.Enabled || cfg.Text == "" {
		return nil
	}
	return &Manager{
		widgets: []Widget{NewTextWidget("label", cfg.Text, cfg.X, cfg.Y)},
	}
}

// AddWidget adds a widget to the overlay
func (m *Manager) AddWidget(widget Widget) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range m.widgets {
		if w.ID() == widget.ID() {
			return fmt.Errorf("widget with ID %s already exists", widget.ID())
		}
	}
	m.widgets = append(m.widgets, widget)
	logger.WithComponent("overlay").Debug().Str("id", widget.ID()).Msg("Added widget")
	return nil
}

// Len returns the number of widgets
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.widgets)
}

// Render draws all widgets onto dst
func (m *Manager) Render(dst draw.Image, stamp Stamp) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, w := range m.widgets {
		w.Render(dst, stamp)
	}
}
