package slidestudio

import (
	"embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed templates/templates.yaml templates/*.html
var templateFS embed.FS

// Template is a starting point for a new slide.
type Template struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Category    string `yaml:"category" json:"category"`
	Description string `yaml:"description" json:"description"`
	Thumb       string `yaml:"thumb" json:"thumb"`
	Code        string `yaml:"-" json:"code,omitempty"`
}

var (
	templatesOnce sync.Once
	templates     []Template
	templatesErr  error
)

func loadTemplates() {
	data, err := templateFS.ReadFile("templates/templates.yaml")
	if err != nil {
		templatesErr = fmt.Errorf("read template manifest: %w", err)
		return
	}
	var manifest struct {
		Templates []Template `yaml:"templates"`
	}
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		templatesErr = fmt.Errorf("parse template manifest: %w", err)
		return
	}
	for i := range manifest.Templates {
		t := &manifest.Templates[i]
		code, err := templateFS.ReadFile("templates/" + t.ID + ".html")
		if err != nil {
			templatesErr = fmt.Errorf("template %s: %w", t.ID, err)
			return
		}
		t.Code = string(code)
	}
	templates = manifest.Templates
}

// Templates returns the built-in gallery in manifest order.
func Templates() ([]Template, error) {
	templatesOnce.Do(loadTemplates)
	if templatesErr != nil {
		return nil, templatesErr
	}
	out := make([]Template, len(templates))
	copy(out, templates)
	return out, nil
}

// TemplateByID looks up one template.
func TemplateByID(id string) (Template, error) {
	all, err := Templates()
	if err != nil {
		return Template{}, err
	}
	for _, t := range all {
		if t.ID == id {
			return t, nil
		}
	}
	return Template{}, &DeckError{Op: "template", Err: fmt.Errorf("%w: %q", ErrUnknownTemplate, id),
		Hint: "Run 'slidestudio templates' to list the available templates."}
}

// TemplateCategories returns the distinct categories, sorted.
func TemplateCategories() []string {
	all, _ := Templates()
	seen := map[string]bool{}
	var cats []string
	for _, t := range all {
		if !seen[t.Category] {
			seen[t.Category] = true
			cats = append(cats, t.Category)
		}
	}
	sort.Strings(cats)
	return cats
}
