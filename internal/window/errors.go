package window

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSelectionCancelled is returned when the user aborts an interactive pick
	ErrSelectionCancelled = errors.New("window selection cancelled")

	// ErrEmptyRect is returned when a window has no visible area after clipping
	ErrEmptyRect = errors.New("window has no visible area on screen")

	// ErrNoTitleMatch is recorded for a fragment that matched no window at all
	ErrNoTitleMatch = errors.New("no window title matched")
)

// SelectionError reports a failed or cancelled interactive window pick
type SelectionError struct {
	Err error
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("window selection failed: %v", e.Err)
}

func (e *SelectionError) Unwrap() error {
	return e.Err
}

// Attempt records why a single name fragment did not resolve
type Attempt struct {
	Fragment string
	// MatchedTitle is set when a window title matched but its geometry could not be used
	MatchedTitle string
	Err          error
}

func (a Attempt) String() string {
	if a.MatchedTitle != "" {
		return fmt.Sprintf("%q: matched %q but geometry lookup failed: %v", a.Fragment, a.MatchedTitle, a.Err)
	}
	return fmt.Sprintf("%q: %v", a.Fragment, a.Err)
}

// WindowNotFoundError reports that none of the name fragments resolved to a window
type WindowNotFoundError struct {
	Fragments []string
	Attempts  []Attempt
}

func (e *WindowNotFoundError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.String())
	}
	return fmt.Sprintf("could not find any windows with names from %q: %s",
		e.Fragments, strings.Join(parts, "; "))
}

func (e *WindowNotFoundError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}
	return errs
}
