// Package inject places the design-mode bundle (outline styles plus the
// bridge script) into a slide document before it is loaded into a frame.
package inject

import (
	"strings"

	"github.com/livetemplate/slidestudio/internal/agent"
	"github.com/livetemplate/slidestudio/internal/assets"
)

// marker identifies an already injected bundle.
var marker = `<script ` + agent.MarkerAgent + `="1"`

// Bundle returns the markup inserted into design-mode frames. Both elements
// carry the agent marker so emission strips them.
func Bundle() (string, error) {
	css, err := assets.GetEditorCSS()
	if err != nil {
		return "", err
	}
	js, err := assets.GetBridgeJS()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(`<style ` + agent.MarkerAgent + `="1">`)
	b.Write(css)
	b.WriteString(`</style>`)
	b.WriteString(marker + `>`)
	b.Write(js)
	b.WriteString(`</script>`)
	return b.String(), nil
}

// Into inserts bundle immediately before the last closing body tag, else
// before the last closing html tag, else at the end. Tags match case
// insensitively. A document that already carries a bundle is returned
// unchanged.
func Into(doc, bundle string) string {
	if Injected(doc) {
		return doc
	}
	lower := strings.ToLower(doc)
	for _, anchor := range []string{"</body", "</html"} {
		if i := strings.LastIndex(lower, anchor); i >= 0 {
			return doc[:i] + bundle + doc[i:]
		}
	}
	return doc + bundle
}

// Injected reports whether doc already carries the bundle.
func Injected(doc string) bool {
	return strings.Contains(strings.ToLower(doc), marker)
}
