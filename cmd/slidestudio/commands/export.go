package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/livetemplate/slidestudio"
)

// defaultTimeout bounds storage access for one-shot commands.
const defaultTimeout = 30 * time.Second

// ExportCommand writes the deck stored under a directory's config as an
// export file. The format follows the output extension; stdout gets JSON
// unless --format=html.
func ExportCommand(args []string) error {
	flagSet := flag.NewFlagSet("export", flag.ContinueOnError)
	output := flagSet.String("o", "", "Output file (.json or .html); stdout when empty")
	format := flagSet.String("format", "", "json or html (default: from the output extension)")
	configPath := flagSet.String("config", "", "Config file (default: <dir>/slidestudio.yaml)")
	positional, err := parseFlags(flagSet, args)
	if err != nil {
		return err
	}

	dir := "."
	if len(positional) > 0 {
		dir = positional[0]
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("directory does not exist: %s", dir)
	}

	f := strings.ToLower(*format)
	if f == "" {
		f = "json"
		if strings.EqualFold(filepath.Ext(*output), ".html") {
			f = "html"
		}
	}
	if f != "json" && f != "html" {
		return fmt.Errorf("unknown format: %s (use json or html)", *format)
	}

	cfg, err := loadConfig(dir, *configPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	st, d, err := openDeck(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	var w io.Writer = os.Stdout
	if *output != "" {
		out, err := os.Create(*output)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", *output, err)
		}
		defer out.Close()
		w = out
	}

	if err := writeDeck(w, d, f); err != nil {
		return fmt.Errorf("failed to export deck: %w", err)
	}
	if *output != "" {
		fmt.Fprintf(os.Stderr, "📦 Exported %d slides to %s\n", len(d.Slides), *output)
	}
	return nil
}

func writeDeck(w io.Writer, d *slidestudio.Deck, format string) error {
	if format == "html" {
		return d.WriteHTML(w)
	}
	return d.WriteJSON(w, time.Now())
}
