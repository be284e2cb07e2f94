package commands

import (
	"flag"
	"fmt"

	"github.com/livetemplate/slidestudio"
)

// TemplatesCommand lists the built-in slide templates by category.
func TemplatesCommand(args []string) error {
	flagSet := flag.NewFlagSet("templates", flag.ContinueOnError)
	category := flagSet.String("category", "", "Only list this category")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	all, err := slidestudio.Templates()
	if err != nil {
		return err
	}

	found := false
	for _, cat := range slidestudio.TemplateCategories() {
		if *category != "" && cat != *category {
			continue
		}
		found = true
		fmt.Printf("%s:\n", cat)
		for _, t := range all {
			if t.Category == cat {
				fmt.Printf("  %-14s %s\n", t.ID, t.Description)
			}
		}
		fmt.Println()
	}
	if !found {
		return fmt.Errorf("unknown category: %s", *category)
	}
	return nil
}
