package slidestudio

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func titles(d *Deck) []string {
	out := make([]string, len(d.Slides))
	for i, s := range d.Slides {
		out[i] = s.Title
	}
	return out
}

func TestNewDeck(t *testing.T) {
	d := NewDeck()
	assert.Equal(t, "Untitled Deck", d.Title)
	require.Len(t, d.Slides, 1)
	assert.Equal(t, "Intro", d.Slides[0].Title)
	assert.Contains(t, d.Slides[0].Code, "Slides from Code")
	assert.True(t, strings.HasPrefix(d.Slides[0].ID, "slide-"))
	assert.NotEqual(t, d.Slides[0].ID, NewDeck().Slides[0].ID)
}

func TestAddAfterActive(t *testing.T) {
	d := NewDeck()
	first := d.Slides[0].ID
	a := d.Add("", "")
	b := d.Add(first, "<p>tpl</p>")

	assert.Equal(t, []string{"Intro", "Slide 3", "Slide 2"}, titles(d))
	assert.Equal(t, NewSlideCode, a.Code)
	assert.Equal(t, "<p>tpl</p>", b.Code)
	assert.Equal(t, 1, d.Index(b.ID))

	d.Add("unknown", "")
	assert.Equal(t, "Slide 4", d.Slides[3].Title)
}

func TestDuplicate(t *testing.T) {
	d := NewDeck()
	d.Add("", "")
	src := d.Slides[0]
	src.Notes = "speaker"
	d.Slides[0] = src

	dup, err := d.Duplicate(src.ID)
	require.NoError(t, err)
	assert.Equal(t, "Intro (copy)", dup.Title)
	assert.NotEqual(t, src.ID, dup.ID)
	assert.Equal(t, dup, d.Slides[1])
	assert.Equal(t, "speaker", dup.Notes)

	_, err = d.Duplicate("nope")
	assert.ErrorIs(t, err, ErrSlideNotFound)
}

func TestDelete(t *testing.T) {
	d := NewDeck()
	only := d.Slides[0].ID

	_, err := d.Delete(only)
	require.ErrorIs(t, err, ErrLastSlide)
	assert.NotEmpty(t, Hint(err))

	b := d.Add(only, "")
	c := d.Add(b.ID, "")
	next, err := d.Delete(c.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, next)

	next, err = d.Delete(only)
	require.NoError(t, err)
	assert.Equal(t, b.ID, next, "deleting the first slide activates the new first")
	assert.Len(t, d.Slides, 1)
}

func TestMoveAndReorder(t *testing.T) {
	d := &Deck{Title: "t", Slides: []Slide{{ID: "a", Title: "A"}, {ID: "b", Title: "B"}, {ID: "c", Title: "C"}}}

	moved, err := d.Move("a", 1)
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, []string{"B", "A", "C"}, titles(d))

	moved, err = d.Move("c", 1)
	require.NoError(t, err)
	assert.False(t, moved)

	require.NoError(t, d.Reorder(2, 0))
	assert.Equal(t, []string{"C", "B", "A"}, titles(d))
	require.NoError(t, d.Reorder(0, 2))
	assert.Equal(t, []string{"B", "A", "C"}, titles(d))

	err = d.Reorder(0, 3)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = d.Move("zz", 1)
	var de *DeckError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "move", de.Op)
	assert.Equal(t, "zz", de.SlideID)
}

func TestUpdate(t *testing.T) {
	d := &Deck{Slides: []Slide{{ID: "a", Title: "A", Code: "x"}}}
	title, notes, blank := "New", "n", "   "

	require.NoError(t, d.Update("a", SlidePatch{Title: &title, Notes: &notes}))
	assert.Equal(t, Slide{ID: "a", Title: "New", Code: "x", Notes: "n"}, d.Slides[0])

	require.NoError(t, d.Update("a", SlidePatch{Title: &blank}))
	assert.Equal(t, UntitledSlide, d.Slides[0].Title)

	assert.ErrorIs(t, d.Update("b", SlidePatch{}), ErrSlideNotFound)
	assert.True(t, SlidePatch{Title: &title}.Structural())
	assert.False(t, SlidePatch{Notes: &notes}.Structural())
}

func TestNormalize(t *testing.T) {
	d := &Deck{Slides: []Slide{{ID: "a"}, {ID: "a", Title: "dup"}, {}}}
	d.Normalize()

	assert.Equal(t, DefaultDeckTitle, d.Title)
	assert.Equal(t, "a", d.Slides[0].ID)
	assert.NotEqual(t, "a", d.Slides[1].ID)
	assert.NotEmpty(t, d.Slides[2].ID)
	for _, s := range d.Slides {
		assert.Equal(t, DefaultTransition, s.Transition)
		assert.NotEmpty(t, s.Title)
	}

	empty := &Deck{Title: "x"}
	empty.Normalize()
	assert.Len(t, empty.Slides, 1)
}

func TestCloneIsDeep(t *testing.T) {
	d := NewDeck()
	c := d.Clone()
	if diff := cmp.Diff(d, c); diff != "" {
		t.Fatalf("clone differs (-want +got):\n%s", diff)
	}
	c.Slides[0].Title = "changed"
	c.Rename("  ")
	assert.Equal(t, "Intro", d.Slides[0].Title)
	assert.Equal(t, DefaultDeckTitle, c.Title)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "q3-planning-review.json", (&Deck{Title: " Q3  Planning Review "}).FileName(".json"))
	assert.Equal(t, "deck.html", (&Deck{}).FileName(".html"))
}
