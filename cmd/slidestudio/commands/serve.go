package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/livetemplate/slidestudio"
	"github.com/livetemplate/slidestudio/internal/config"
	"github.com/livetemplate/slidestudio/internal/server"
	"github.com/livetemplate/slidestudio/internal/store"
)

// shutdownTimeout bounds the final save and connection drain.
const shutdownTimeout = 10 * time.Second

// ServeCommand implements the serve command.
func ServeCommand(args []string) error {
	dir := "."
	var configPath string
	var port string
	var host string
	var debug bool

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--port" || arg == "-p" {
			if i+1 < len(args) {
				port = args[i+1]
				i++
			}
		} else if arg == "--host" {
			if i+1 < len(args) {
				host = args[i+1]
				i++
			}
		} else if arg == "--config" || arg == "-c" {
			if i+1 < len(args) {
				configPath = args[i+1]
				i++
			}
		} else if arg == "--debug" || arg == "-d" {
			debug = true
		} else if !strings.HasPrefix(arg, "-") {
			dir = arg
		}
	}

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("directory does not exist: %s", dir)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	cfg, err := loadConfig(absDir, configPath)
	if err != nil {
		return err
	}
	if configPath != "" {
		fmt.Printf("📝 Using config: %s\n", configPath)
	}
	if port != "" {
		portInt, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid port: %s", port)
		}
		cfg.Server.Port = portInt
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if debug {
		cfg.Server.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if closer := setupLogging(cfg.Log); closer != nil {
		defer closer.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, deck, err := openDeck(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	studio := server.NewStudio(deck, st, cfg.Storage.GetAutosaveDelay(), cfg.Server.Debug)
	srv := server.New(studio, cfg)

	if folder, ok := st.(*store.Folder); ok {
		w, err := watchFolder(folder, studio, cfg.Server.Debug)
		if err != nil {
			return err
		}
		defer w.Stop()
	}

	fmt.Printf("🎞  %s\n\n", cfg.Title)
	fmt.Printf("Deck: %s (%d slides)\n", deck.Title, len(deck.Slides))
	fmt.Printf("Storage: %s\n", describeStorage(cfg))
	fmt.Printf("\n🌐 Studio running at http://%s\n", cfg.Addr())
	fmt.Printf("🎬 Present at http://%s/present\n", cfg.Addr())
	fmt.Printf("Press Ctrl+C to stop\n\n")

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			srv.Close()
			studio.Close(context.Background())
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		fmt.Printf("\nShutting down...\n")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Websocket connections are hijacked, so close sessions before draining.
	srv.Close()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[HTTP] Shutdown: %v", err)
	}
	if err := studio.Close(shutdownCtx); err != nil {
		return fmt.Errorf("failed to save deck: %w", err)
	}
	return nil
}

// loadConfig reads an explicit config file, or slidestudio.yaml in dir.
func loadConfig(dir, configPath string) (*config.Config, error) {
	if configPath != "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.LoadFromDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openDeck opens the configured store and loads its deck. An empty store
// yields the starter deck.
func openDeck(ctx context.Context, cfg *config.Config) (store.Store, *slidestudio.Deck, error) {
	st, err := store.Open(ctx, store.Options{
		Backend: cfg.Storage.Backend,
		Path:    cfg.Storage.Path,
		DSN:     cfg.Storage.GetDSN(),
		Debug:   cfg.Server.Debug,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}
	d, err := st.Load(ctx)
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("failed to load deck: %w", err)
	}
	if d == nil {
		d = slidestudio.NewDeck()
	}
	return st, d, nil
}

// watchFolder reloads the studio when the deck folder is edited outside it.
func watchFolder(folder *store.Folder, studio *server.Studio, debug bool) (*store.Watcher, error) {
	w, err := store.NewWatcher(folder, func() error {
		d, err := folder.Load(context.Background())
		if err != nil {
			return err
		}
		if d == nil {
			return nil
		}
		studio.Replace(d, true)
		log.Printf("[Watch] Reloaded %s", folder.Dir())
		return nil
	}, 2*store.WatcherDelay, debug)
	if err != nil {
		return nil, fmt.Errorf("failed to watch deck folder: %w", err)
	}
	w.Start()
	return w, nil
}

// setupLogging adds a rotating log file next to stderr when one is
// configured.
func setupLogging(lc config.LogConfig) io.Closer {
	if lc.File == "" {
		return nil
	}
	lj := &lumberjack.Logger{
		Filename:   lc.File,
		MaxSize:    lc.GetMaxSizeMB(),
		MaxBackups: lc.GetMaxBackups(),
		MaxAge:     lc.GetMaxAgeDays(),
	}
	log.SetOutput(io.MultiWriter(os.Stderr, lj))
	return lj
}

// parseFlags parses fs from args and returns the positional arguments.
// Flags may follow positionals, as in "new q3-review --template=stats".
func parseFlags(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func describeStorage(cfg *config.Config) string {
	switch cfg.Storage.Backend {
	case "", config.BackendMemory:
		return "memory (changes are lost on exit)"
	case config.BackendPostgres:
		return "postgres"
	}
	return fmt.Sprintf("%s (%s)", cfg.Storage.Backend, cfg.Storage.Path)
}

func init() {
	log.SetFlags(0)
}
