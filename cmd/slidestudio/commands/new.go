package commands

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/livetemplate/slidestudio"
	"github.com/livetemplate/slidestudio/internal/config"
	"github.com/livetemplate/slidestudio/internal/store"
)

// NewCommand implements the new command: it creates a folder-backed deck
// with a slidestudio.yaml pointing at it.
func NewCommand(args []string) error {
	flagSet := flag.NewFlagSet("new", flag.ContinueOnError)
	templateID := flagSet.String("template", "", "Add a second slide from this template (see 'slidestudio templates')")
	title := flagSet.String("title", "", "Deck title (default: derived from the folder name)")

	flagSet.Usage = func() {
		fmt.Println("Usage: slidestudio new [options] <deck-name>")
		fmt.Println()
		fmt.Println("Create a deck folder that 'slidestudio serve' edits in place.")
		fmt.Println()
		fmt.Println("Options:")
		flagSet.PrintDefaults()
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  slidestudio new q3-review")
		fmt.Println("  slidestudio new q3-review --template=stats")
	}

	remaining, err := parseFlags(flagSet, args)
	if err != nil {
		return err
	}

	if len(remaining) < 1 {
		return fmt.Errorf("deck name required\n\nUsage: slidestudio new [options] <deck-name>")
	}
	name := remaining[0]
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("deck name cannot be empty")
	}
	if strings.Contains(name, " ") {
		return fmt.Errorf("deck name cannot contain spaces")
	}
	if _, err := os.Stat(name); !os.IsNotExist(err) {
		return fmt.Errorf("directory '%s' already exists", name)
	}

	d := slidestudio.NewDeck()
	d.Title = toTitle(filepath.Base(name))
	if *title != "" {
		d.Title = *title
	}
	if *templateID != "" {
		t, err := slidestudio.TemplateByID(*templateID)
		if err != nil {
			return err
		}
		s := d.Add(d.Slides[0].ID, t.Code)
		if err := d.Update(s.ID, slidestudio.SlidePatch{Title: &t.Name}); err != nil {
			return err
		}
	}

	if err := createDeck(name, d); err != nil {
		os.RemoveAll(name)
		return err
	}

	fmt.Printf("✨ Created deck: %s\n\n", name)
	fmt.Printf("🚀 Next steps:\n")
	fmt.Printf("   slidestudio serve %s\n\n", name)
	fmt.Printf("📚 The studio will be available at http://localhost:8080\n")
	return nil
}

// createDeck writes d as a deck folder plus its config file.
func createDeck(dir string, d *slidestudio.Deck) error {
	folder, err := store.NewFolder(dir, false)
	if err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := folder.Save(context.Background(), d); err != nil {
		return fmt.Errorf("failed to write deck: %w", err)
	}

	cfg := config.DefaultConfig()
	cfg.Title = d.Title
	cfg.Storage.Backend = config.BackendFolder
	cfg.Storage.Path = "."
	if err := cfg.Save(filepath.Join(dir, config.FileName)); err != nil {
		return err
	}
	return nil
}

// toTitle converts a folder name to a title case string
// Example: "q3-review" -> "Q3 Review"
func toTitle(name string) string {
	name = strings.ReplaceAll(name, "-", " ")
	name = strings.ReplaceAll(name, "_", " ")

	words := strings.Fields(name)
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
	}
	return strings.Join(words, " ")
}
