package slidestudio

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	notesOnce     sync.Once
	notesMarkdown goldmark.Markdown
	notesPolicy   *bluemonday.Policy
)

// RenderNotes converts speaker notes from Markdown to HTML safe to embed in
// the presenter view. Raw HTML in the notes is sanitized, not escaped.
func RenderNotes(notes string) (string, error) {
	notesOnce.Do(func() {
		notesMarkdown = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(
				html.WithHardWraps(),
				html.WithUnsafe(),
			),
		)
		notesPolicy = bluemonday.UGCPolicy()
	})

	var buf bytes.Buffer
	if err := notesMarkdown.Convert([]byte(notes), &buf); err != nil {
		return "", fmt.Errorf("render notes: %w", err)
	}
	return notesPolicy.Sanitize(buf.String()), nil
}
