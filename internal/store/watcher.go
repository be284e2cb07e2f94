package store

import (
	"log"
	"path/filepath"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a folder deck when it is edited outside the studio.
type Watcher struct {
	watcher  *fsnotify.Watcher
	folder   *Folder
	onReload func() error
	debounce func(func())
	quiet    time.Duration
	done     chan bool
	debug    bool
}

// WatcherDelay is how long the folder must stay quiet before a reload.
const WatcherDelay = 300 * time.Millisecond

// NewWatcher watches folder and its slides directory. Events that arrive
// within quiet of our own Save are ignored.
func NewWatcher(folder *Folder, onReload func() error, quiet time.Duration, debug bool) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:  fsWatcher,
		folder:   folder,
		onReload: onReload,
		debounce: debounce.New(WatcherDelay),
		quiet:    quiet,
		done:     make(chan bool),
		debug:    debug,
	}

	for _, dir := range []string{folder.Dir(), filepath.Join(folder.Dir(), SlidesDir)} {
		if err := fsWatcher.Add(dir); err != nil {
			// slides/ appears on first save
			if dir == folder.Dir() {
				fsWatcher.Close()
				return nil, err
			}
			continue
		}
		if debug {
			log.Printf("[Watch] Added directory: %s", dir)
		}
	}
	return w, nil
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(event.Name)
	return name == DeckFile || filepath.Ext(name) == ".html"
}

// Start begins watching.
func (w *Watcher) Start() {
	go func() {
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) && filepath.Base(event.Name) == SlidesDir {
					if err := w.watcher.Add(event.Name); err == nil && w.debug {
						log.Printf("[Watch] Added directory: %s", event.Name)
					}
					continue
				}
				if !w.relevant(event) {
					continue
				}
				if w.folder.WroteWithin(w.quiet) {
					continue
				}
				if w.debug {
					log.Printf("[Watch] File changed: %s", event.Name)
				}
				w.debounce(w.reload)

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[Watch] Error: %v", err)

			case <-w.done:
				return
			}
		}
	}()
}

func (w *Watcher) reload() {
	select {
	case <-w.done:
		return
	default:
	}
	if w.folder.WroteWithin(w.quiet) {
		return
	}
	if err := w.onReload(); err != nil {
		log.Printf("[Watch] Reload failed: %v", err)
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.watcher.Close()
}
