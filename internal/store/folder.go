package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/livetemplate/slidestudio"
)

// Folder layout.
const (
	DeckFile      = "deck.json"
	SlidesDir     = "slides"
	FolderVersion = 3
)

// folderMeta is deck.json: metadata only, slide markup lives in
// slides/<id>.html so each slide diffs on its own.
type folderMeta struct {
	Version   int               `json:"version"`
	DeckTitle string            `json:"deckTitle"`
	Slides    []folderSlideMeta `json:"slides"`
	SavedAt   time.Time         `json:"savedAt"`
}

type folderSlideMeta struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Notes      string `json:"notes"`
	Transition string `json:"transition"`
}

// Folder stores a deck as a directory tree meant to live in version control.
type Folder struct {
	dir   string
	debug bool

	mu        sync.Mutex
	lastWrite time.Time
}

// NewFolder returns a store rooted at dir, creating it if needed.
func NewFolder(dir string, debug bool) (*Folder, error) {
	if dir == "" {
		return nil, fmt.Errorf("store: folder path is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create folder %s: %w", dir, err)
	}
	return &Folder{dir: dir, debug: debug}, nil
}

// Dir returns the root directory.
func (f *Folder) Dir() string { return f.dir }

func (f *Folder) Load(ctx context.Context) (*slidestudio.Deck, error) {
	data, err := os.ReadFile(filepath.Join(f.dir, DeckFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", DeckFile, err)
	}
	var meta folderMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("store: parse %s: %w", DeckFile, err)
	}

	d := &slidestudio.Deck{Title: meta.DeckTitle}
	for _, m := range meta.Slides {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		code, err := os.ReadFile(f.slidePath(m.ID))
		if err != nil && f.debug {
			log.Printf("[Store] Slide %s has no markup: %v", m.ID, err)
		}
		d.Slides = append(d.Slides, slidestudio.Slide{
			ID:         m.ID,
			Title:      m.Title,
			Code:       string(code),
			Notes:      m.Notes,
			Transition: m.Transition,
		})
	}
	d.Normalize()
	return d, nil
}

func (f *Folder) slidePath(id string) string {
	return filepath.Join(f.dir, SlidesDir, id+".html")
}

// Save writes every slide, removes markup of slides no longer in the deck
// and writes deck.json last.
func (f *Folder) Save(ctx context.Context, d *slidestudio.Deck) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	defer func() { f.lastWrite = time.Now() }()
	f.lastWrite = time.Now()

	slidesDir := filepath.Join(f.dir, SlidesDir)
	if err := os.MkdirAll(slidesDir, 0o755); err != nil {
		return fmt.Errorf("store: create %s: %w", slidesDir, err)
	}

	keep := make(map[string]bool, len(d.Slides))
	for _, s := range d.Slides {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !validID(s.ID) {
			return fmt.Errorf("store: slide id %q is not a valid file name", s.ID)
		}
		keep[s.ID+".html"] = true
		if err := writeFileAtomic(f.slidePath(s.ID), []byte(s.Code)); err != nil {
			return fmt.Errorf("store: write slide %s: %w", s.ID, err)
		}
	}

	entries, err := os.ReadDir(slidesDir)
	if err != nil {
		return fmt.Errorf("store: list %s: %w", slidesDir, err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".html") || keep[name] {
			continue
		}
		if err := os.Remove(filepath.Join(slidesDir, name)); err != nil {
			return fmt.Errorf("store: remove orphan %s: %w", name, err)
		}
		if f.debug {
			log.Printf("[Store] Removed orphaned slide %s", name)
		}
	}

	meta := folderMeta{Version: FolderVersion, DeckTitle: d.Title, SavedAt: time.Now().UTC()}
	for _, s := range d.Slides {
		meta.Slides = append(meta.Slides, folderSlideMeta{
			ID: s.ID, Title: s.Title, Notes: s.Notes, Transition: s.Transition,
		})
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", DeckFile, err)
	}
	if err := writeFileAtomic(filepath.Join(f.dir, DeckFile), append(data, '\n')); err != nil {
		return fmt.Errorf("store: write %s: %w", DeckFile, err)
	}
	return nil
}

// WroteWithin reports whether a save is running or finished less than d ago.
// The watcher uses it to skip events caused by our own writes.
func (f *Folder) WroteWithin(d time.Duration) bool {
	if !f.mu.TryLock() {
		return true
	}
	defer f.mu.Unlock()
	return time.Since(f.lastWrite) < d
}

func (f *Folder) Close() error { return nil }

func validID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
