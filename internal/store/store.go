// Package store persists decks. Every backend stores the whole deck at once;
// the studio saves through a debounced Autosaver.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/livetemplate/slidestudio"
)

// Store loads and saves one deck.
type Store interface {
	// Load returns the stored deck, or nil and no error when nothing has
	// been saved yet.
	Load(ctx context.Context) (*slidestudio.Deck, error)
	Save(ctx context.Context, d *slidestudio.Deck) error
	Close() error
}

// Backend names.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendFolder   = "folder"
)

// Options selects and configures a backend.
type Options struct {
	Backend string
	Path    string // sqlite database file or deck folder
	DSN     string // postgres connection string
	Debug   bool
}

// Open creates the configured backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendSQLite, BackendPostgres:
		dsn := opts.DSN
		if opts.Backend == BackendSQLite {
			dsn = opts.Path
		}
		s, err := OpenSQL(ctx, opts.Backend, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendFolder:
		f, err := NewFolder(opts.Path, opts.Debug)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	return nil, fmt.Errorf("store: unknown backend %q", opts.Backend)
}

// Memory keeps the deck in process.
type Memory struct {
	mu   sync.Mutex
	deck *slidestudio.Deck
}

// NewMemory returns an empty memory store.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Load(context.Context) (*slidestudio.Deck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deck == nil {
		return nil, nil
	}
	return m.deck.Clone(), nil
}

func (m *Memory) Save(_ context.Context, d *slidestudio.Deck) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deck = d.Clone()
	return nil
}

func (m *Memory) Close() error { return nil }
