// Command slidestudio is the CLI for editing and presenting HTML slide decks.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/livetemplate/slidestudio"
	"github.com/livetemplate/slidestudio/cmd/slidestudio/commands"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "serve":
		err = commands.ServeCommand(args)
	case "new":
		err = commands.NewCommand(args)
	case "templates":
		err = commands.TemplatesCommand(args)
	case "export":
		err = commands.ExportCommand(args)
	case "version":
		fmt.Printf("slidestudio version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		var de *slidestudio.DeckError
		if errors.As(err, &de) {
			fmt.Fprint(os.Stderr, de.Format())
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("slidestudio - Edit HTML slide decks visually")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  slidestudio serve [directory]              Start the studio")
	fmt.Println("  slidestudio new <name> [--template=ID]     Create a deck folder")
	fmt.Println("  slidestudio templates [--category=NAME]    List slide templates")
	fmt.Println("  slidestudio export [directory] [-o FILE]   Export a deck as JSON or HTML")
	fmt.Println("  slidestudio version                        Show version")
	fmt.Println("  slidestudio help                           Show this help")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  slidestudio serve                          # In-memory deck on :8080")
	fmt.Println("  slidestudio new q3-review --template=stats # Deck folder with a stats slide")
	fmt.Println("  slidestudio serve q3-review --port 9000    # Edit the folder deck")
	fmt.Println("  slidestudio export q3-review -o q3.html    # Standalone player")
}
