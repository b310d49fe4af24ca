package window

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bryanchriswhite/WindowRecorder/internal/logger"
)

// Adjustments are caller-supplied corrections applied to a resolved window
// rectangle before it is clipped to the screen
type Adjustments struct {
	OffsetX        int `json:"offset_x" mapstructure:"offset_x"`
	OffsetY        int `json:"offset_y" mapstructure:"offset_y"`
	WidthOverride  int `json:"width_override" mapstructure:"width_override"`
	HeightOverride int `json:"height_override" mapstructure:"height_override"`
}

// Resolution is the outcome of resolving a window
type Resolution struct {
	Window *WindowInfo `json:"window"`
	// Reported is the geometry as reported by the windowing system
	Reported Rect `json:"reported"`
	// Rect is the final capture rectangle
	Rect Rect `json:"rect"`
}

// Resolver finds the capture rectangle of a window from name fragments
type Resolver struct {
	backend Backend
}

// NewResolver creates a resolver on top of a windowing backend
func NewResolver(backend Backend) *Resolver {
	return &Resolver{backend: backend}
}

// Resolve returns the capture rectangle for the first fragment that names a
// live window. With no fragments the user is asked to click on a window.
func (r *Resolver) Resolve(ctx context.Context, fragments []string, adj Adjustments) (*Resolution, error) {
	log := logger.WithComponent("resolver")

	screenW, screenH, err := r.backend.ScreenSize()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen size: %w", err)
	}

	if len(fragments) == 0 {
		log.Info().Msg("Select a window to record by left clicking with your mouse")
		info, err := r.backend.SelectWindow(ctx)
		if err != nil {
			return nil, &SelectionError{Err: err}
		}
		reported, err := r.backend.Geometry(info.ID)
		if err != nil {
			return nil, &SelectionError{Err: fmt.Errorf("failed to get geometry of selected window: %w", err)}
		}
		rect := Normalize(reported, adj, screenW, screenH)
		if rect.Empty() {
			return nil, &SelectionError{Err: ErrEmptyRect}
		}
		log.Info().
			Uint32("window_id", info.ID).
			Str("title", info.Title).
			Stringer("rect", rect).
			Msg("Selected window")
		return &Resolution{Window: info, Reported: reported, Rect: rect}, nil
	}

	windows, err := r.backend.ListWindows()
	if err != nil {
		// Fragments can still resolve through FindByName
		log.Warn().Err(err).Msg("Failed to list windows")
	}

	notFound := &WindowNotFoundError{Fragments: fragments}
	for _, fragment := range fragments {
		info := matchTitle(windows, fragment)
		if info == nil {
			found, err := r.backend.FindByName(fragment)
			if err != nil {
				log.Debug().Str("fragment", fragment).Err(err).Msg("Could not find window, trying next in list")
				notFound.Attempts = append(notFound.Attempts, Attempt{
					Fragment: fragment,
					Err:      fmt.Errorf("%w (lookup by name: %v)", ErrNoTitleMatch, err),
				})
				continue
			}
			info = found
		}

		reported, err := r.backend.Geometry(info.ID)
		if err == nil {
			rect := Normalize(reported, adj, screenW, screenH)
			if !rect.Empty() {
				log.Info().
					Str("fragment", fragment).
					Uint32("window_id", info.ID).
					Str("title", info.Title).
					Stringer("reported", reported).
					Stringer("rect", rect).
					Msg("Resolved window")
				return &Resolution{Window: info, Reported: reported, Rect: rect}, nil
			}
			err = ErrEmptyRect
		}

		log.Debug().
			Str("fragment", fragment).
			Str("title", info.Title).
			Err(err).
			Msg("Matched window is not usable, trying next in list")
		notFound.Attempts = append(notFound.Attempts, Attempt{
			Fragment:     fragment,
			MatchedTitle: info.Title,
			Err:          err,
		})
	}

	return nil, notFound
}

// matchTitle returns the window whose title equals fragment, or else the
// first window whose title contains it
func matchTitle(windows []*WindowInfo, fragment string) *WindowInfo {
	for _, w := range windows {
		if w.Title == fragment {
			return w
		}
	}
	for _, w := range windows {
		if strings.Contains(w.Title, fragment) {
			return w
		}
	}
	return nil
}

// Normalize applies adjustments to a reported window rectangle and crops it
// to the visible part of a screenW x screenH virtual screen. Windows hanging
// off the top or left edge lose the hidden part instead of being shifted.
func Normalize(reported Rect, adj Adjustments, screenW, screenH int) Rect {
	r := reported
	r.Left += adj.OffsetX
	r.Top += adj.OffsetY
	if adj.WidthOverride > 0 {
		r.Width = adj.WidthOverride
	}
	if adj.HeightOverride > 0 {
		r.Height = adj.HeightOverride
	}

	if r.Left < 0 {
		r.Width += r.Left
		r.Left = 0
	}
	if r.Top < 0 {
		r.Height += r.Top
		r.Top = 0
	}
	r.Width = min(r.Width, screenW-r.Left)
	r.Height = min(r.Height, screenH-r.Top)
	return r
}

// IsNotFound reports whether err means no window could be resolved
func IsNotFound(err error) bool {
	var nf *WindowNotFoundError
	return errors.As(err, &nf)
}
