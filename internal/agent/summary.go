package agent

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/livetemplate/slidestudio/internal/csscolor"
	"github.com/livetemplate/slidestudio/internal/protocol"
)

// maxTextChildren bounds the child count of an inline-editable element.
const maxTextChildren = 3

// Summarize builds the selection report for el.
func Summarize(doc Document, el Element) protocol.Selection {
	cs := doc.ComputedStyle(el)
	isText := IsSimpleText(el)
	text := ""
	if isText {
		text = strings.TrimSpace(el.InnerText())
	}
	color := csscolor.Hex(cs["color"])
	if color == "" {
		color = "#000000"
	}
	return protocol.Selection{
		Tag:     el.Tag(),
		Text:    text,
		HasText: isText,
		Style: protocol.StyleSummary{
			Color:         color,
			Background:    csscolor.Hex(cs["background-color"]),
			FontSize:      floatOr(cs["font-size"], 16),
			FontWeight:    cs["font-weight"],
			TextAlign:     cs["text-align"],
			LetterSpacing: floatOr(cs["letter-spacing"], 0),
			LineHeight:    floatOr(cs["line-height"], 1.5),
			BorderRadius:  floatOr(cs["border-radius"], 0),
			Opacity:       floatOr(cs["opacity"], 1),
			Transform:     el.Style("transform"),
			Width:         el.Style("width"),
			Height:        el.Style("height"),
		},
	}
}

// IsSimpleText reports whether el holds at most three children, each a text
// node or a <br>. Only such elements are offered inline text editing.
func IsSimpleText(el Element) bool {
	children := el.Children()
	if len(children) > maxTextChildren {
		return false
	}
	for _, c := range children {
		switch {
		case c.Kind == ChildText:
		case c.Kind == ChildElement && c.Tag == "br":
		default:
			return false
		}
	}
	return true
}

var leadingNumberRe = regexp.MustCompile(`^\s*[-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?`)

// floatOr parses the leading number of a CSS value ("16px" -> 16) and
// returns def when there is none ("normal", "").
func floatOr(v string, def float64) float64 {
	m := leadingNumberRe.FindString(v)
	if m == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(m), 64)
	if err != nil {
		return def
	}
	return f
}

// KebabCase converts a DOM style property name (backgroundColor) to its CSS
// form (background-color). Names already in CSS form pass through.
func KebabCase(prop string) string {
	if strings.HasPrefix(prop, "--") {
		return prop
	}
	var b strings.Builder
	for _, r := range prop {
		if unicode.IsUpper(r) {
			// A leading capital marks a vendor prefix: WebkitTransform.
			b.WriteByte('-')
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
