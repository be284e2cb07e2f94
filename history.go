package slidestudio

// HistoryLimit is the number of undo snapshots kept.
const HistoryLimit = 60

// History is coarse, whole-deck undo. A snapshot is pushed before every
// structural operation; typing into a slide is not recorded.
type History struct {
	limit int
	undo  []*Deck
	redo  []*Deck
}

// NewHistory creates a history keeping at most limit snapshots. A
// non-positive limit uses HistoryLimit.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = HistoryLimit
	}
	return &History{limit: limit}
}

// Push records the state before an operation and discards the redo stack.
func (h *History) Push(before *Deck) {
	h.undo = append(h.undo, before.Clone())
	if len(h.undo) > h.limit {
		h.undo = h.undo[len(h.undo)-h.limit:]
	}
	h.redo = nil
}

// Undo returns the previous state, remembering current for Redo.
func (h *History) Undo(current *Deck) (*Deck, error) {
	if len(h.undo) == 0 {
		return nil, &DeckError{Op: "undo", Err: ErrNothingToUndo}
	}
	prev := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, current.Clone())
	return prev.Clone(), nil
}

// Redo returns the state undone last, remembering current for Undo.
func (h *History) Redo(current *Deck) (*Deck, error) {
	if len(h.redo) == 0 {
		return nil, &DeckError{Op: "redo", Err: ErrNothingToRedo}
	}
	next := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, current.Clone())
	return next.Clone(), nil
}

func (h *History) CanUndo() bool { return len(h.undo) > 0 }
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// Reset forgets everything.
func (h *History) Reset() {
	h.undo = nil
	h.redo = nil
}
