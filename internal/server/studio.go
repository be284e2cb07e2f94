package server

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/livetemplate/slidestudio"
	"github.com/livetemplate/slidestudio/internal/cache"
	"github.com/livetemplate/slidestudio/internal/host"
	"github.com/livetemplate/slidestudio/internal/store"
)

// DeckView is the deck as the browser sees it.
type DeckView struct {
	Title   string      `json:"title"`
	Slides  []SlideView `json:"slides"`
	CanUndo bool        `json:"canUndo"`
	CanRedo bool        `json:"canRedo"`
	Status  string      `json:"status,omitempty"`
}

// SlideView is one entry of the slide list. Code is only filled for
// presentation and API reads.
type SlideView struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Notes      string `json:"notes"`
	Transition string `json:"transition"`
	Code       string `json:"code,omitempty"`
}

// errUnchanged aborts a mutation that would not change the deck.
var errUnchanged = errors.New("unchanged")

// change tells a session how the deck moved under it.
type change struct {
	view   DeckView
	origin *Session
	first  string
	live   map[string]bool   // slide ids still in the deck
	moved  map[string]string // deleted slide -> slide to show instead
	reload map[string]bool   // slides whose code changed
	all    bool              // every slide may have changed
	notice bool              // deck was replaced from storage
}

// notesTTL is how long rendered speaker notes stay cached, keyed by their
// markdown source.
const notesTTL = 10 * time.Minute

// Studio owns the deck every session edits. Mutations are recorded in the
// undo history when they change the slide list, saved through the
// autosaver and pushed to all sessions.
type Studio struct {
	saver *store.Autosaver
	notes *cache.Memory[string]
	debug bool

	mu       sync.Mutex
	deck     *slidestudio.Deck
	history  *slidestudio.History
	status   store.Status
	sessions map[*Session]struct{}
	design   map[string]*Session // slide -> session designing it
}

// NewStudio serves d. A nil deck starts from the default deck. Saves go to
// s after autosave of quiet time.
func NewStudio(d *slidestudio.Deck, s store.Store, autosave time.Duration, debug bool) *Studio {
	if d == nil {
		d = slidestudio.NewDeck()
	}
	d.Normalize()
	st := &Studio{
		notes:    cache.New[string](notesTTL),
		debug:    debug,
		deck:     d,
		history:  slidestudio.NewHistory(slidestudio.HistoryLimit),
		status:   store.StatusSaved,
		sessions: make(map[*Session]struct{}),
		design:   make(map[string]*Session),
	}
	st.saver = store.NewAutosaver(s, autosave, st.setStatus, debug)
	return st
}

func (st *Studio) setStatus(s store.Status, err error) {
	if err != nil {
		log.Printf("[Studio] Save failed: %v", err)
	}
	st.mu.Lock()
	if st.status == s {
		st.mu.Unlock()
		return
	}
	st.status = s
	c := change{view: st.viewLocked(false)}
	sessions := st.sessionsLocked()
	st.mu.Unlock()
	st.fanout(sessions, c)
}

// View returns the deck; withCode includes every slide's markup.
func (st *Studio) View(withCode bool) DeckView {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.viewLocked(withCode)
}

func (st *Studio) viewLocked(withCode bool) DeckView {
	v := DeckView{
		Title:   st.deck.Title,
		Slides:  make([]SlideView, 0, len(st.deck.Slides)),
		CanUndo: st.history.CanUndo(),
		CanRedo: st.history.CanRedo(),
		Status:  string(st.status),
	}
	for _, s := range st.deck.Slides {
		sv := SlideView{ID: s.ID, Title: s.Title, Notes: s.Notes, Transition: s.Transition}
		if withCode {
			sv.Code = s.Code
		}
		v.Slides = append(v.Slides, sv)
	}
	return v
}

// Deck returns a copy of the current deck.
func (st *Studio) Deck() *slidestudio.Deck {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.deck.Clone()
}

// Slide returns a copy of one slide.
func (st *Studio) Slide(id string) (slidestudio.Slide, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.deck.Slide(id)
	if !ok {
		return s, &slidestudio.DeckError{Op: "read", SlideID: id, Err: slidestudio.ErrSlideNotFound}
	}
	return s, nil
}

// CurrentCode returns the stored markup of a slide.
func (st *Studio) CurrentCode(id string) (string, error) {
	s, err := st.Slide(id)
	if err != nil {
		return "", err
	}
	return s.Code, nil
}

// SetCode stores markup for a slide. Sessions showing the slide reload,
// except origin, which already displays it. While a session designs the
// slide only that session may write it.
func (st *Studio) SetCode(id, code string, origin *Session) error {
	return st.mutate(false, func(d *slidestudio.Deck, c *change) error {
		if err := st.checkWriterLocked(id, origin); err != nil {
			return err
		}
		if s, ok := d.Slide(id); ok && s.Code == code {
			return errUnchanged
		}
		c.origin = origin
		c.reload[id] = true
		return d.Update(id, slidestudio.SlidePatch{Code: &code})
	})
}

// Rename sets the deck title.
func (st *Studio) Rename(title string) error {
	return st.mutate(true, func(d *slidestudio.Deck, _ *change) error {
		d.Rename(title)
		return nil
	})
}

// AddSlide inserts a slide from a template (or the blank slide for an empty
// id) after the slide after.
func (st *Studio) AddSlide(templateID, after string) (slidestudio.Slide, error) {
	code := ""
	if templateID != "" {
		tpl, err := slidestudio.TemplateByID(templateID)
		if err != nil {
			return slidestudio.Slide{}, err
		}
		code = tpl.Code
	}
	var added slidestudio.Slide
	err := st.mutate(true, func(d *slidestudio.Deck, _ *change) error {
		added = d.Add(after, code)
		return nil
	})
	return added, err
}

// Duplicate copies a slide.
func (st *Studio) Duplicate(id string) (slidestudio.Slide, error) {
	var dup slidestudio.Slide
	err := st.mutate(true, func(d *slidestudio.Deck, _ *change) error {
		var err error
		dup, err = d.Duplicate(id)
		return err
	})
	return dup, err
}

// Delete removes a slide and returns the slide shown in its place.
func (st *Studio) Delete(id string) (string, error) {
	var next string
	err := st.mutate(true, func(d *slidestudio.Deck, c *change) error {
		var err error
		next, err = d.Delete(id)
		c.moved[id] = next
		return err
	})
	return next, err
}

// Move shifts a slide by delta positions.
func (st *Studio) Move(id string, delta int) error {
	return st.mutate(true, func(d *slidestudio.Deck, _ *change) error {
		moved, err := d.Move(id, delta)
		if err == nil && !moved {
			return errUnchanged
		}
		return err
	})
}

// MoveTo places a slide at an absolute position.
func (st *Studio) MoveTo(id string, to int) error {
	return st.mutate(true, func(d *slidestudio.Deck, _ *change) error {
		from := d.Index(id)
		if from < 0 {
			return &slidestudio.DeckError{Op: "move", SlideID: id, Err: slidestudio.ErrSlideNotFound}
		}
		if from == to {
			return errUnchanged
		}
		return d.Reorder(from, to)
	})
}

// UpdateSlide applies a patch. Title and transition changes are undoable.
// Code patches are refused while a session designs the slide.
func (st *Studio) UpdateSlide(id string, p slidestudio.SlidePatch) error {
	return st.mutate(p.Structural(), func(d *slidestudio.Deck, c *change) error {
		if p.Code != nil {
			if err := st.checkWriterLocked(id, nil); err != nil {
				return err
			}
			c.reload[id] = true
		}
		return d.Update(id, p)
	})
}

// Undo restores the deck before the last structural change.
func (st *Studio) Undo() error {
	return st.restore(func(cur *slidestudio.Deck) (*slidestudio.Deck, error) {
		return st.history.Undo(cur)
	})
}

// Redo reapplies the last undone change.
func (st *Studio) Redo() error {
	return st.restore(func(cur *slidestudio.Deck) (*slidestudio.Deck, error) {
		return st.history.Redo(cur)
	})
}

func (st *Studio) restore(step func(*slidestudio.Deck) (*slidestudio.Deck, error)) error {
	st.mu.Lock()
	d, err := step(st.deck)
	if err != nil {
		st.mu.Unlock()
		return err
	}
	st.deck = d
	c := st.changeLocked()
	c.all = true
	sessions := st.sessionsLocked()
	saved := st.deck.Clone()
	st.mu.Unlock()

	st.saver.Touch(saved)
	st.fanout(sessions, c)
	return nil
}

// Replace swaps in a whole deck. Imports are undoable; reloads from storage
// reset the history.
func (st *Studio) Replace(d *slidestudio.Deck, fromStorage bool) {
	d = d.Clone()
	d.Normalize()

	st.mu.Lock()
	if fromStorage {
		st.history.Reset()
	} else {
		st.history.Push(st.deck)
	}
	st.deck = d
	c := st.changeLocked()
	c.all = true
	c.notice = fromStorage
	sessions := st.sessionsLocked()
	saved := st.deck.Clone()
	st.mu.Unlock()

	if !fromStorage {
		st.saver.Touch(saved)
	}
	st.fanout(sessions, c)
}

// Notes renders a slide's speaker notes to sanitized HTML.
func (st *Studio) Notes(id string) (string, error) {
	s, err := st.Slide(id)
	if err != nil {
		return "", err
	}
	return st.notes.GetOrLoad(s.Notes, notesTTL, func() (string, error) {
		return slidestudio.RenderNotes(s.Notes)
	})
}

// ExportJSON writes the deck in the portable export format.
func (st *Studio) ExportJSON(w io.Writer) error {
	return st.Deck().WriteJSON(w, time.Now())
}

// ExportHTML writes a standalone player for the deck.
func (st *Studio) ExportHTML(w io.Writer) error {
	return st.Deck().WriteHTML(w)
}

// Flush saves pending changes now.
func (st *Studio) Flush(ctx context.Context) error {
	return st.saver.Flush(ctx)
}

// Close saves pending changes and stops autosaving.
func (st *Studio) Close(ctx context.Context) error {
	st.notes.Stop()
	return st.saver.Close(ctx)
}

func (st *Studio) attach(s *Session) (DeckView, string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s] = struct{}{}
	if st.debug {
		log.Printf("[Studio] Session attached (%d open)", len(st.sessions))
	}
	return st.viewLocked(false), st.deck.Slides[0].ID
}

func (st *Studio) detach(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, s)
	st.releaseLocked(s)
	if st.debug {
		log.Printf("[Studio] Session detached (%d open)", len(st.sessions))
	}
}

// claimDesign records s as the only writer of slide. A session designs at
// most one slide, so any earlier claim of s is dropped.
func (st *Studio) claimDesign(s *Session, slide string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if owner, ok := st.design[slide]; ok && owner != s {
		return designBusy("design", slide)
	}
	st.releaseLocked(s)
	st.design[slide] = s
	if st.debug {
		log.Printf("[Studio] Slide %s locked for design mode", slide)
	}
	return nil
}

func (st *Studio) releaseDesign(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.releaseLocked(s)
}

func (st *Studio) releaseLocked(s *Session) {
	for slide, owner := range st.design {
		if owner == s {
			delete(st.design, slide)
		}
	}
}

// designer returns the session designing slide, or nil.
func (st *Studio) designer(slide string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.design[slide]
}

func (st *Studio) checkWriterLocked(slide string, origin *Session) error {
	if owner, ok := st.design[slide]; ok && owner != origin {
		return designBusy("edit", slide)
	}
	return nil
}

func designBusy(op, slide string) error {
	return &slidestudio.DeckError{
		Op:      op,
		SlideID: slide,
		Err:     host.ErrDesignModeActive,
		Hint:    "Another tab is editing this slide in design mode; turn design mode off there first.",
	}
}

func (st *Studio) openSessions() []*Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.sessionsLocked()
}

// Sessions returns the number of open sessions.
func (st *Studio) Sessions() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// mutate runs fn on a working copy of the deck. When fn succeeds the copy
// becomes current, the previous deck is pushed to history if record is set,
// and the change is saved and fanned out.
func (st *Studio) mutate(record bool, fn func(d *slidestudio.Deck, c *change) error) error {
	st.mu.Lock()
	work := st.deck.Clone()
	c := change{moved: map[string]string{}, reload: map[string]bool{}}
	if err := fn(work, &c); err != nil {
		st.mu.Unlock()
		if errors.Is(err, errUnchanged) {
			return nil
		}
		return err
	}
	if record {
		st.history.Push(st.deck)
	}
	st.deck = work
	next := st.changeLocked()
	next.origin, next.moved, next.reload = c.origin, c.moved, c.reload
	sessions := st.sessionsLocked()
	saved := st.deck.Clone()
	st.mu.Unlock()

	st.saver.Touch(saved)
	st.fanout(sessions, next)
	return nil
}

func (st *Studio) changeLocked() change {
	c := change{
		view:  st.viewLocked(false),
		first: st.deck.Slides[0].ID,
		live:  make(map[string]bool, len(st.deck.Slides)),
	}
	for _, s := range st.deck.Slides {
		c.live[s.ID] = true
	}
	return c
}

func (st *Studio) sessionsLocked() []*Session {
	out := make([]*Session, 0, len(st.sessions))
	for s := range st.sessions {
		out = append(out, s)
	}
	return out
}

func (st *Studio) fanout(sessions []*Session, c change) {
	for _, s := range sessions {
		s.notify(c)
	}
}
