package htmldom

import (
	"strings"

	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
)

// declaration is one inline style entry.
type declaration struct {
	prop      string
	value     string
	important bool
}

// parseInline splits a style attribute into declarations, preserving order.
func parseInline(text string) []declaration {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if !strings.HasSuffix(text, ";") {
		text += ";"
	}
	decls, err := parser.ParseDeclarations(text)
	if err != nil {
		return splitInline(text)
	}
	return fromCSS(decls)
}

func fromCSS(decls []*css.Declaration) []declaration {
	out := make([]declaration, 0, len(decls))
	for _, d := range decls {
		prop := strings.ToLower(strings.TrimSpace(d.Property))
		if prop == "" {
			continue
		}
		out = append(out, declaration{prop: prop, value: strings.TrimSpace(d.Value), important: d.Important})
	}
	return out
}

// splitInline is the fallback for attribute text the CSS parser rejects.
func splitInline(text string) []declaration {
	var out []declaration
	for _, part := range strings.Split(text, ";") {
		prop, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		value = strings.TrimSpace(value)
		important := false
		if v, found := strings.CutSuffix(value, "!important"); found {
			value = strings.TrimSpace(v)
			important = true
		}
		if prop != "" {
			out = append(out, declaration{prop: prop, value: value, important: important})
		}
	}
	return out
}

func serializeInline(decls []declaration) string {
	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		s := d.prop + ": " + d.value
		if d.important {
			s += " !important"
		}
		parts = append(parts, s+";")
	}
	return strings.Join(parts, " ")
}

func lookup(decls []declaration, prop string) (declaration, bool) {
	for i := len(decls) - 1; i >= 0; i-- {
		if decls[i].prop == prop {
			return decls[i], true
		}
	}
	return declaration{}, false
}

// setDeclaration replaces prop in place, appends it, or removes it when
// value is empty.
func setDeclaration(decls []declaration, prop, value string) []declaration {
	out := decls[:0:0]
	replaced := false
	for _, d := range decls {
		if d.prop != prop {
			out = append(out, d)
			continue
		}
		if value == "" || replaced {
			continue
		}
		out = append(out, declaration{prop: prop, value: value})
		replaced = true
	}
	if value != "" && !replaced {
		out = append(out, declaration{prop: prop, value: value})
	}
	return out
}
