// Package slidestudio holds the slide deck domain: decks of HTML slides,
// the structural operations the studio performs on them, coarse undo
// history, speaker notes and the built-in template gallery.
package slidestudio

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Defaults applied to decks and slides with missing fields.
const (
	DefaultDeckTitle  = "Untitled Deck"
	DefaultTransition = "fade"
	UntitledSlide     = "Untitled"
)

// NewSlideCode is the markup of a slide added without a template.
const NewSlideCode = `<!doctype html><html><body><h1>New Slide</h1></body></html>`

//go:embed templates/intro.html
var introCode string

// Slide is one slide of a deck. Code is the slide's complete HTML document.
type Slide struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Code       string `json:"code"`
	Notes      string `json:"notes"`
	Transition string `json:"transition"`
}

// Deck is an ordered list of slides. A deck always has at least one slide
// once it has been through NewDeck or Normalize.
type Deck struct {
	Title  string  `json:"deckTitle"`
	Slides []Slide `json:"slides"`
}

// NewSlideID returns a fresh slide id usable as a file name.
func NewSlideID() string {
	return "slide-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// NewDeck returns the starter deck: one intro slide.
func NewDeck() *Deck {
	return &Deck{
		Title: DefaultDeckTitle,
		Slides: []Slide{{
			ID:         NewSlideID(),
			Title:      "Intro",
			Code:       introCode,
			Transition: DefaultTransition,
		}},
	}
}

// Clone returns a deep copy.
func (d *Deck) Clone() *Deck {
	c := &Deck{Title: d.Title, Slides: make([]Slide, len(d.Slides))}
	copy(c.Slides, d.Slides)
	return c
}

// Normalize fills missing fields and ids. A deck without slides gets the
// intro slide.
func (d *Deck) Normalize() {
	if strings.TrimSpace(d.Title) == "" {
		d.Title = DefaultDeckTitle
	}
	if len(d.Slides) == 0 {
		d.Slides = NewDeck().Slides
	}
	seen := make(map[string]bool, len(d.Slides))
	for i := range d.Slides {
		s := &d.Slides[i]
		if s.ID == "" || seen[s.ID] {
			s.ID = NewSlideID()
		}
		seen[s.ID] = true
		if s.Title == "" {
			s.Title = UntitledSlide
		}
		if s.Transition == "" {
			s.Transition = DefaultTransition
		}
	}
}

// Index returns the position of the slide, or -1.
func (d *Deck) Index(id string) int {
	for i, s := range d.Slides {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// Slide returns a copy of the slide with the given id.
func (d *Deck) Slide(id string) (Slide, bool) {
	if i := d.Index(id); i >= 0 {
		return d.Slides[i], true
	}
	return Slide{}, false
}

// Add inserts a new slide after the slide with id after, or at the end when
// after is empty or unknown. Empty code gets the plain new-slide markup.
func (d *Deck) Add(after, code string) Slide {
	if code == "" {
		code = NewSlideCode
	}
	s := Slide{
		ID:         NewSlideID(),
		Title:      fmt.Sprintf("Slide %d", len(d.Slides)+1),
		Code:       code,
		Transition: DefaultTransition,
	}
	at := len(d.Slides)
	if i := d.Index(after); i >= 0 {
		at = i + 1
	}
	d.insert(at, s)
	return s
}

// Duplicate inserts a copy of the slide right after it.
func (d *Deck) Duplicate(id string) (Slide, error) {
	i := d.Index(id)
	if i < 0 {
		return Slide{}, &DeckError{Op: "duplicate", SlideID: id, Err: ErrSlideNotFound}
	}
	s := d.Slides[i]
	s.ID = NewSlideID()
	s.Title += " (copy)"
	d.insert(i+1, s)
	return s, nil
}

func (d *Deck) insert(at int, s Slide) {
	d.Slides = append(d.Slides, Slide{})
	copy(d.Slides[at+1:], d.Slides[at:])
	d.Slides[at] = s
}

// Delete removes a slide and returns the id of the slide that should become
// active: the one before it, or the new first slide.
func (d *Deck) Delete(id string) (string, error) {
	i := d.Index(id)
	if i < 0 {
		return "", &DeckError{Op: "delete", SlideID: id, Err: ErrSlideNotFound}
	}
	if len(d.Slides) == 1 {
		return "", &DeckError{Op: "delete", SlideID: id, Err: ErrLastSlide,
			Hint: "A deck needs at least one slide. Add another slide first."}
	}
	d.Slides = append(d.Slides[:i], d.Slides[i+1:]...)
	return d.Slides[max(0, i-1)].ID, nil
}

// Move shifts a slide by delta positions. Moving past either end is a no-op
// and reports false.
func (d *Deck) Move(id string, delta int) (bool, error) {
	i := d.Index(id)
	if i < 0 {
		return false, &DeckError{Op: "move", SlideID: id, Err: ErrSlideNotFound}
	}
	j := i + delta
	if delta == 0 || j < 0 || j >= len(d.Slides) {
		return false, nil
	}
	return true, d.Reorder(i, j)
}

// Reorder moves the slide at position from to position to.
func (d *Deck) Reorder(from, to int) error {
	n := len(d.Slides)
	if from < 0 || from >= n || to < 0 || to >= n {
		return &DeckError{Op: "reorder", Err: ErrOutOfRange,
			Hint: fmt.Sprintf("Positions must be between 0 and %d.", n-1)}
	}
	if from == to {
		return nil
	}
	s := d.Slides[from]
	d.Slides = append(d.Slides[:from], d.Slides[from+1:]...)
	d.Slides = append(d.Slides, Slide{})
	copy(d.Slides[to+1:], d.Slides[to:])
	d.Slides[to] = s
	return nil
}

// SlidePatch lists the fields of a slide to change; nil fields are kept.
type SlidePatch struct {
	Title      *string `json:"title,omitempty"`
	Code       *string `json:"code,omitempty"`
	Notes      *string `json:"notes,omitempty"`
	Transition *string `json:"transition,omitempty"`
}

// Structural reports whether the patch changes what the slide list shows.
// Code and notes edits are too frequent to snapshot individually.
func (p SlidePatch) Structural() bool {
	return p.Title != nil || p.Transition != nil
}

// Update applies a patch to a slide.
func (d *Deck) Update(id string, p SlidePatch) error {
	i := d.Index(id)
	if i < 0 {
		return &DeckError{Op: "update", SlideID: id, Err: ErrSlideNotFound}
	}
	s := &d.Slides[i]
	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		if t == "" {
			t = UntitledSlide
		}
		s.Title = t
	}
	if p.Code != nil {
		s.Code = *p.Code
	}
	if p.Notes != nil {
		s.Notes = *p.Notes
	}
	if p.Transition != nil {
		s.Transition = *p.Transition
	}
	return nil
}

// Rename sets the deck title; a blank title resets it to the default.
func (d *Deck) Rename(title string) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultDeckTitle
	}
	d.Title = title
}

// FileName derives a file-system friendly name from the deck title.
func (d *Deck) FileName(ext string) string {
	name := strings.Join(strings.Fields(strings.ToLower(d.Title)), "-")
	if name == "" {
		name = "deck"
	}
	return name + ext
}
