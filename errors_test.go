package slidestudio

import (
	"errors"
	"strings"
	"testing"
)

func TestDeckErrorFormatting(t *testing.T) {
	err := (&DeckError{Op: "delete", SlideID: "slide-1", Err: ErrLastSlide}).
		WithHint("Add another slide first")

	if got, want := err.Error(), "delete slide-1: cannot delete the only slide"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	msg := err.Format()
	t.Logf("Formatted:\n%s", msg)
	if !strings.Contains(msg, "❌ delete failed for slide slide-1") {
		t.Errorf("Format should name the operation and slide")
	}
	if !strings.Contains(msg, "💡 Tip: Add another slide first") {
		t.Errorf("Format should include the hint")
	}
}

func TestDeckErrorUnwrap(t *testing.T) {
	var err error = &DeckError{Op: "undo", Err: ErrNothingToUndo}
	if !errors.Is(err, ErrNothingToUndo) {
		t.Errorf("errors.Is should see the sentinel")
	}
	if Hint(err) != "" {
		t.Errorf("no hint expected")
	}
	if Hint(errors.New("plain")) != "" {
		t.Errorf("plain errors carry no hint")
	}
	if strings.Contains((&DeckError{Op: "undo", Err: ErrNothingToUndo}).Format(), "Tip") {
		t.Errorf("Format should omit an empty hint")
	}
}
