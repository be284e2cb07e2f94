package store

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/bep/debounce"

	"github.com/livetemplate/slidestudio"
)

// DefaultAutosaveDelay is the quiet period before a pending deck is saved.
const DefaultAutosaveDelay = 1500 * time.Millisecond

// Status is the save state reported to the studio.
type Status string

const (
	StatusDirty Status = "dirty"
	StatusSaved Status = "saved"
	StatusError Status = "error"
)

// Autosaver coalesces deck changes into one Save after a quiet period.
type Autosaver struct {
	store    Store
	debounce func(func())
	onStatus func(Status, error)
	debug    bool

	mu      sync.Mutex
	pending *slidestudio.Deck
	closed  bool
	saving  sync.Mutex
}

// NewAutosaver saves to s. onStatus may be nil.
func NewAutosaver(s Store, delay time.Duration, onStatus func(Status, error), debug bool) *Autosaver {
	if delay <= 0 {
		delay = DefaultAutosaveDelay
	}
	if onStatus == nil {
		onStatus = func(Status, error) {}
	}
	return &Autosaver{
		store:    s,
		debounce: debounce.New(delay),
		onStatus: onStatus,
		debug:    debug,
	}
}

// Touch schedules d to be saved. Only the latest deck is kept.
func (a *Autosaver) Touch(d *slidestudio.Deck) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.pending = d.Clone()
	a.mu.Unlock()

	a.onStatus(StatusDirty, nil)
	a.debounce(func() {
		if err := a.Flush(context.Background()); err != nil {
			log.Printf("[Store] Autosave failed: %v", err)
		}
	})
}

// Pending reports whether a deck is waiting to be saved.
func (a *Autosaver) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending != nil
}

// Flush saves the pending deck now, if any.
func (a *Autosaver) Flush(ctx context.Context) error {
	a.saving.Lock()
	defer a.saving.Unlock()

	a.mu.Lock()
	d := a.pending
	a.pending = nil
	a.mu.Unlock()
	if d == nil {
		return nil
	}

	if err := a.store.Save(ctx, d); err != nil {
		a.mu.Lock()
		if a.pending == nil {
			a.pending = d
		}
		a.mu.Unlock()
		a.onStatus(StatusError, err)
		return err
	}
	if a.debug {
		log.Printf("[Store] Saved deck %q (%d slides)", d.Title, len(d.Slides))
	}
	a.onStatus(StatusSaved, nil)
	return nil
}

// Close flushes the pending deck and ignores later touches.
func (a *Autosaver) Close(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	return a.Flush(ctx)
}
