package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livetemplate/slidestudio"
	"github.com/livetemplate/slidestudio/internal/host"
	"github.com/livetemplate/slidestudio/internal/store"
)

func testDeck() *slidestudio.Deck {
	return &slidestudio.Deck{Title: "Demo", Slides: []slidestudio.Slide{
		{ID: "s1", Title: "One", Code: "<!doctype html><html><head></head><body><h1>Hello</h1><p>World</p></body></html>", Transition: "fade"},
		{ID: "s2", Title: "Two", Code: "<!doctype html><html><body><p>Second</p></body></html>", Transition: "fade", Notes: "**bold** note"},
	}}
}

func newTestStudio(t *testing.T) (*Studio, *store.Memory) {
	t.Helper()
	m := store.NewMemory()
	st := NewStudio(testDeck(), m, 10*time.Millisecond, false)
	t.Cleanup(func() { st.Close(context.Background()) })
	return st, m
}

func slideIDs(v DeckView) []string {
	var ids []string
	for _, s := range v.Slides {
		ids = append(ids, s.ID)
	}
	return ids
}

func TestStudioStructuralEditsAreUndoable(t *testing.T) {
	st, _ := newTestStudio(t)

	added, err := st.AddSlide("stats", "s1")
	require.NoError(t, err)
	assert.Equal(t, "Slide 3", added.Title)
	assert.Contains(t, added.Code, "Our Impact This Year")
	assert.Equal(t, []string{"s1", added.ID, "s2"}, slideIDs(st.View(false)))
	assert.True(t, st.View(false).CanUndo)

	require.NoError(t, st.Undo())
	assert.Equal(t, []string{"s1", "s2"}, slideIDs(st.View(false)))
	assert.True(t, st.View(false).CanRedo)

	require.NoError(t, st.Redo())
	assert.Equal(t, []string{"s1", added.ID, "s2"}, slideIDs(st.View(false)))

	assert.ErrorIs(t, st.Redo(), slidestudio.ErrNothingToRedo)
}

func TestStudioCodeEditsAreNotRecorded(t *testing.T) {
	st, _ := newTestStudio(t)

	require.NoError(t, st.SetCode("s1", "<p>changed</p>", nil))
	code, err := st.CurrentCode("s1")
	require.NoError(t, err)
	assert.Equal(t, "<p>changed</p>", code)
	assert.False(t, st.View(false).CanUndo)

	assert.ErrorIs(t, st.SetCode("missing", "x", nil), slidestudio.ErrSlideNotFound)
}

func TestStudioDeleteAndMove(t *testing.T) {
	st, _ := newTestStudio(t)

	require.NoError(t, st.Move("s2", -1))
	assert.Equal(t, []string{"s2", "s1"}, slideIDs(st.View(false)))

	// Moving past the end changes nothing and records nothing.
	require.NoError(t, st.Move("s2", -1))
	require.NoError(t, st.MoveTo("s2", 1))
	assert.Equal(t, []string{"s1", "s2"}, slideIDs(st.View(false)))
	assert.ErrorIs(t, st.MoveTo("s2", 5), slidestudio.ErrOutOfRange)

	next, err := st.Delete("s2")
	require.NoError(t, err)
	assert.Equal(t, "s1", next)
	_, err = st.Delete("s1")
	assert.ErrorIs(t, err, slidestudio.ErrLastSlide)
}

func TestStudioUpdateSlide(t *testing.T) {
	st, _ := newTestStudio(t)

	notes := "just notes"
	require.NoError(t, st.UpdateSlide("s1", slidestudio.SlidePatch{Notes: &notes}))
	assert.False(t, st.View(false).CanUndo)

	title := "Opening"
	require.NoError(t, st.UpdateSlide("s1", slidestudio.SlidePatch{Title: &title}))
	assert.True(t, st.View(false).CanUndo)
	assert.Equal(t, "Opening", st.View(false).Slides[0].Title)

	html, err := st.Notes("s2")
	require.NoError(t, err)
	assert.Contains(t, html, "<strong>bold</strong>")
}

func TestStudioDesignModeHasOneWriter(t *testing.T) {
	st, _ := newTestStudio(t)
	a, b := &Session{}, &Session{}

	require.NoError(t, st.claimDesign(a, "s1"))
	assert.ErrorIs(t, st.claimDesign(b, "s1"), host.ErrDesignModeActive)
	assert.Same(t, a, st.designer("s1"))

	// Only the designing session writes the slide's code.
	assert.ErrorIs(t, st.SetCode("s1", "<p>other tab</p>", b), host.ErrDesignModeActive)
	assert.ErrorIs(t, st.SetCode("s1", "<p>api</p>", nil), host.ErrDesignModeActive)
	code := "<p>patched</p>"
	err := st.UpdateSlide("s1", slidestudio.SlidePatch{Code: &code})
	assert.ErrorIs(t, err, host.ErrDesignModeActive)
	assert.NotEmpty(t, slidestudio.Hint(err))
	got, _ := st.CurrentCode("s1")
	assert.Contains(t, got, "<h1>Hello</h1>")

	require.NoError(t, st.SetCode("s1", "<p>agent</p>", a))
	title := "Still renamable"
	require.NoError(t, st.UpdateSlide("s1", slidestudio.SlidePatch{Title: &title}))
	require.NoError(t, st.SetCode("s2", "<p>other slide</p>", b))

	// Claiming another slide gives up the first.
	require.NoError(t, st.claimDesign(a, "s2"))
	assert.Nil(t, st.designer("s1"))
	require.NoError(t, st.SetCode("s1", "<p>free again</p>", nil))

	st.releaseDesign(a)
	assert.Nil(t, st.designer("s2"))
	require.NoError(t, st.claimDesign(b, "s2"))
	st.detach(b)
	assert.Nil(t, st.designer("s2"))
}

func TestStudioAutosaves(t *testing.T) {
	st, m := newTestStudio(t)

	require.NoError(t, st.Rename("Board Review"))
	require.Eventually(t, func() bool {
		d, _ := m.Load(context.Background())
		return d != nil && d.Title == "Board Review"
	}, 2*time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		return st.View(false).Status == string(store.StatusSaved)
	}, 2*time.Second, 5*time.Millisecond)
}

func TestStudioReplace(t *testing.T) {
	st, _ := newTestStudio(t)

	imported := &slidestudio.Deck{Title: "Imported", Slides: []slidestudio.Slide{{ID: "x", Code: "<p/>"}}}
	st.Replace(imported, false)
	assert.Equal(t, []string{"x"}, slideIDs(st.View(false)))
	assert.True(t, st.View(false).CanUndo)

	st.Replace(testDeck(), true)
	assert.False(t, st.View(false).CanUndo)
	assert.Equal(t, "Demo", st.View(false).Title)
}

func TestStudioUnknownTemplate(t *testing.T) {
	st, _ := newTestStudio(t)
	_, err := st.AddSlide("nope", "")
	assert.ErrorIs(t, err, slidestudio.ErrUnknownTemplate)
	assert.Len(t, st.View(false).Slides, 2)
}
