package slidestudio

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSlideNotFound   = errors.New("slide not found")
	ErrLastSlide       = errors.New("cannot delete the only slide")
	ErrOutOfRange      = errors.New("slide position out of range")
	ErrNothingToUndo   = errors.New("nothing to undo")
	ErrNothingToRedo   = errors.New("nothing to redo")
	ErrInvalidDeck     = errors.New("invalid deck file")
	ErrUnknownTemplate = errors.New("unknown template")
)

// DeckError describes a failed deck operation with context for the user.
type DeckError struct {
	Op      string // Operation, e.g. "delete"
	SlideID string // Slide the operation targeted, if any
	Err     error  // Underlying error, usually one of the Err* sentinels
	Hint    string // Helpful suggestion
}

// Error implements the error interface.
func (e *DeckError) Error() string {
	if e.SlideID != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.SlideID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying error to errors.Is.
func (e *DeckError) Unwrap() error { return e.Err }

// Format renders the error for terminal output, including the hint.
func (e *DeckError) Format() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("❌ %s failed", e.Op))
	if e.SlideID != "" {
		b.WriteString(fmt.Sprintf(" for slide %s", e.SlideID))
	}
	b.WriteString(fmt.Sprintf(": %v\n", e.Err))
	if e.Hint != "" {
		b.WriteString(fmt.Sprintf("\n💡 Tip: %s\n", e.Hint))
	}
	return b.String()
}

// WithHint adds a helpful hint to the error.
func (e *DeckError) WithHint(hint string) *DeckError {
	e.Hint = hint
	return e
}

// Hint returns the hint carried by err, if any.
func Hint(err error) string {
	var de *DeckError
	if errors.As(err, &de) {
		return de.Hint
	}
	return ""
}
