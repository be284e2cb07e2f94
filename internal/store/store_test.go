package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livetemplate/slidestudio"
)

func sampleDeck() *slidestudio.Deck {
	return &slidestudio.Deck{Title: "Quarterly", Slides: []slidestudio.Slide{
		{ID: "slide-a", Title: "Intro", Code: "<!doctype html><html><body><h1>Hi</h1></body></html>", Notes: "say hi", Transition: "fade"},
		{ID: "slide-b", Title: "Numbers", Code: "<p>42</p>", Transition: "slide"},
	}}
}

// exerciseStore runs the contract every backend must satisfy.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "empty store should load nil")

	want := sampleDeck()
	require.NoError(t, s.Save(ctx, want))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("load after save mismatch (-want +got):\n%s", diff)
	}

	want.Title = "Renamed"
	want.Slides = want.Slides[1:]
	require.NoError(t, s.Save(ctx, want))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("load after second save mismatch (-want +got):\n%s", diff)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemoryStoreClones(t *testing.T) {
	m := NewMemory()
	d := sampleDeck()
	require.NoError(t, m.Save(context.Background(), d))
	d.Slides[0].Title = "changed"

	got, err := m.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Intro", got.Slides[0].Title)
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQL(context.Background(), BackendSQLite, filepath.Join(t.TempDir(), "deck.db"))
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("SLIDESTUDIO_PG_DSN")
	if dsn == "" {
		t.Skip("SLIDESTUDIO_PG_DSN not set")
	}
	s, err := OpenSQL(context.Background(), BackendPostgres, dsn)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.db.Exec(`DELETE FROM slides; DELETE FROM decks`)
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{driver: BackendPostgres}
	assert.Equal(t, "a = $1 AND b = $2", pg.rebind("a = ? AND b = ?"))
	lite := &SQLStore{driver: BackendSQLite}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestFolderStore(t *testing.T) {
	f, err := NewFolder(t.TempDir(), false)
	require.NoError(t, err)
	exerciseStore(t, f)
}

func TestFolderLayout(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFolder(dir, false)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, f.Save(ctx, sampleDeck()))
	code, err := os.ReadFile(filepath.Join(dir, SlidesDir, "slide-b.html"))
	require.NoError(t, err)
	assert.Equal(t, "<p>42</p>", string(code))

	meta, err := os.ReadFile(filepath.Join(dir, DeckFile))
	require.NoError(t, err)
	assert.Contains(t, string(meta), `"version": 3`)
	assert.NotContains(t, string(meta), "<p>42</p>")

	// Orphans go away once their slide is deleted.
	d := sampleDeck()
	d.Slides = d.Slides[:1]
	require.NoError(t, f.Save(ctx, d))
	_, err = os.Stat(filepath.Join(dir, SlidesDir, "slide-b.html"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	// A missing markup file loads as an empty slide.
	require.NoError(t, os.Remove(filepath.Join(dir, SlidesDir, "slide-a.html")))
	got, err := f.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got.Slides, 1)
	assert.Empty(t, got.Slides[0].Code)
}

func TestFolderRejectsBadIDs(t *testing.T) {
	f, err := NewFolder(t.TempDir(), false)
	require.NoError(t, err)
	d := sampleDeck()
	d.Slides[0].ID = "../escape"
	assert.Error(t, f.Save(context.Background(), d))
}

func TestFolderWroteWithin(t *testing.T) {
	f, err := NewFolder(t.TempDir(), false)
	require.NoError(t, err)
	assert.False(t, f.WroteWithin(time.Second))
	require.NoError(t, f.Save(context.Background(), sampleDeck()))
	assert.True(t, f.WroteWithin(time.Minute))
}

func TestOpenBackends(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(ctx, Options{Backend: BackendFolder, Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &Folder{}, s)

	s, err = Open(ctx, Options{Backend: BackendSQLite, Path: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, Options{Backend: "redis"})
	assert.Error(t, err)

	_, err = Open(ctx, Options{Backend: BackendFolder})
	assert.Error(t, err)
}

type failingStore struct {
	*Memory
	fail atomic.Bool
}

func (f *failingStore) Save(ctx context.Context, d *slidestudio.Deck) error {
	if f.fail.Load() {
		return errors.New("disk full")
	}
	return f.Memory.Save(ctx, d)
}

type statusLog struct {
	mu  sync.Mutex
	got []Status
}

func (l *statusLog) record(s Status, _ error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.got = append(l.got, s)
}

func (l *statusLog) last() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.got) == 0 {
		return ""
	}
	return l.got[len(l.got)-1]
}

func TestAutosaverCoalesces(t *testing.T) {
	m := NewMemory()
	var log statusLog
	a := NewAutosaver(m, 20*time.Millisecond, log.record, false)

	d := sampleDeck()
	a.Touch(d)
	d.Title = "Second"
	a.Touch(d)
	assert.Equal(t, StatusDirty, log.last())

	require.Eventually(t, func() bool { return log.last() == StatusSaved }, time.Second, 5*time.Millisecond)
	got, err := m.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Second", got.Title)
	assert.False(t, a.Pending())
}

func TestAutosaverFlushAndClose(t *testing.T) {
	m := NewMemory()
	a := NewAutosaver(m, time.Hour, nil, false)
	a.Touch(sampleDeck())
	assert.True(t, a.Pending())
	require.NoError(t, a.Close(context.Background()))

	got, err := m.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)

	a.Touch(&slidestudio.Deck{Title: "ignored"})
	assert.False(t, a.Pending())
}

func TestAutosaverKeepsDeckOnError(t *testing.T) {
	s := &failingStore{Memory: NewMemory()}
	s.fail.Store(true)
	var log statusLog
	a := NewAutosaver(s, time.Hour, log.record, false)

	a.Touch(sampleDeck())
	assert.Error(t, a.Flush(context.Background()))
	assert.Equal(t, StatusError, log.last())
	assert.True(t, a.Pending())

	s.fail.Store(false)
	require.NoError(t, a.Flush(context.Background()))
	assert.Equal(t, StatusSaved, log.last())
}

func TestWatcherReloadsOnExternalEdit(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFolder(dir, false)
	require.NoError(t, err)
	require.NoError(t, f.Save(context.Background(), sampleDeck()))

	var reloads atomic.Int32
	w, err := NewWatcher(f, func() error {
		reloads.Add(1)
		return nil
	}, 10*time.Millisecond, false)
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	time.Sleep(50 * time.Millisecond)
	path := filepath.Join(dir, SlidesDir, "slide-b.html")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("<p>edited</p>"), 0o644))
	}

	require.Eventually(t, func() bool { return reloads.Load() == 1 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(WatcherDelay + 100*time.Millisecond)
	assert.Equal(t, int32(1), reloads.Load())
}
