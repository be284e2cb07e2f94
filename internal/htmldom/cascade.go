package htmldom

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/livetemplate/slidestudio/internal/agent"
	"github.com/livetemplate/slidestudio/internal/csscolor"
)

// rule is one selector of a stylesheet rule with its declarations.
type rule struct {
	sel   cascadia.Sel
	decls []declaration
	order int
}

// Properties reported by ComputedStyle. The first six inherit.
var (
	inherited = []string{"color", "font-size", "font-weight", "text-align", "letter-spacing", "line-height"}
	reported  = append(append([]string(nil), inherited...), "background-color", "border-radius", "opacity")
)

var initialValues = map[string]string{
	"color":            "rgb(0, 0, 0)",
	"font-size":        "16px",
	"font-weight":      "400",
	"text-align":       "start",
	"letter-spacing":   "normal",
	"line-height":      "normal",
	"background-color": "rgba(0, 0, 0, 0)",
	"border-radius":    "0px",
	"opacity":          "1",
}

// userAgent holds the few default-stylesheet rules that change the reported
// properties.
var userAgent = map[atom.Atom]map[string]string{
	atom.H1:     {"font-size": "2em", "font-weight": "bold"},
	atom.H2:     {"font-size": "1.5em", "font-weight": "bold"},
	atom.H3:     {"font-size": "1.17em", "font-weight": "bold"},
	atom.H4:     {"font-weight": "bold"},
	atom.H5:     {"font-size": "0.83em", "font-weight": "bold"},
	atom.H6:     {"font-size": "0.67em", "font-weight": "bold"},
	atom.B:      {"font-weight": "bolder"},
	atom.Strong: {"font-weight": "bolder"},
	atom.Th:     {"font-weight": "bold", "text-align": "center"},
	atom.Small:  {"font-size": "smaller"},
	atom.Code:   {"font-size": "0.8125em"},
	atom.Pre:    {"font-size": "0.8125em"},
}

// computed is the resolved state of one element, kept for its children.
type computed struct {
	specified map[string]string // cascaded values, used for inheritance
	fontPx    float64
	rootPx    float64
	values    map[string]string
}

// ComputedStyle resolves the reported properties of el against the
// document's <style> sheets, inline styles and inheritance. Values use the
// browser's computed forms: rgb()/rgba() colors and px lengths.
func (d *Document) ComputedStyle(el agent.Element) map[string]string {
	n := unwrap(el)
	if n == nil {
		return copyMap(initialValues)
	}
	d.loadRules()

	var chain []*html.Node
	for p := n; p != nil && p.Type == html.ElementNode; p = p.Parent {
		chain = append(chain, p)
	}
	var parent *computed
	for i := len(chain) - 1; i >= 0; i-- {
		parent = d.resolve(chain[i], parent)
	}
	return parent.values
}

func (d *Document) loadRules() {
	if d.rulesSet {
		return
	}
	d.rules = d.rules[:0]
	order := 0
	walk(d.root, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		if hasAttr(n, agent.MarkerAgent) {
			return false
		}
		if n.DataAtom != atom.Style {
			return true
		}
		var text strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				text.WriteString(c.Data)
			}
		}
		sheet, err := parser.Parse(text.String())
		if err != nil {
			return false
		}
		d.addRules(sheet.Rules, &order)
		return false
	})
	sort.SliceStable(d.rules, func(i, j int) bool {
		a, b := d.rules[i].sel.Specificity(), d.rules[j].sel.Specificity()
		if a != b {
			return a.Less(b)
		}
		return d.rules[i].order < d.rules[j].order
	})
	d.rulesSet = true
}

func (d *Document) addRules(rules []*css.Rule, order *int) {
	for _, r := range rules {
		switch r.Kind {
		case css.AtRule:
			if r.Name == "@media" && d.mediaMatches(r.Prelude) {
				d.addRules(r.Rules, order)
			}
		case css.QualifiedRule:
			decls := fromCSS(r.Declarations)
			for _, text := range r.Selectors {
				sel, ok := parseSelector(text)
				if !ok {
					continue
				}
				d.rules = append(d.rules, rule{sel: sel, decls: decls, order: *order})
				*order++
			}
		}
	}
}

// dynamicPseudo names pseudo-classes that depend on user interaction. A
// static tree never matches them.
var dynamicPseudo = regexp.MustCompile(`:(hover|active|focus|focus-within|focus-visible|visited|target)\b`)

// parseSelector compiles one selector of a rule's list. ok is false for
// syntax cascadia rejects, pseudo-elements and interaction states.
func parseSelector(text string) (cascadia.Sel, bool) {
	text = strings.TrimSpace(text)
	if text == "" || strings.Contains(text, "::") || dynamicPseudo.MatchString(text) {
		return nil, false
	}
	sel, err := cascadia.Parse(text)
	if err != nil {
		return nil, false
	}
	return sel, true
}

var mediaFeatureRe = regexp.MustCompile(`\(\s*(min|max)-width\s*:\s*([\d.]+)px\s*\)`)

// mediaMatches evaluates a media prelude for a screen of the viewport width.
func (d *Document) mediaMatches(prelude string) bool {
	p := strings.ToLower(prelude)
	if strings.Contains(p, "print") && !strings.Contains(p, "screen") {
		return false
	}
	width := d.viewport.W
	if width <= 0 {
		width = 1280
	}
	for _, m := range mediaFeatureRe.FindAllStringSubmatch(p, -1) {
		v, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		if m[1] == "min" && width < v || m[1] == "max" && width > v {
			return false
		}
	}
	return true
}

// cascade picks the winning declaration per property: important beats
// normal, inline beats sheets within the same importance, then specificity
// and source order.
func (d *Document) cascade(n *html.Node) map[string]string {
	out := make(map[string]string)
	for prop, v := range userAgent[n.DataAtom] {
		out[prop] = v
	}
	apply := func(decls []declaration, important bool) {
		for _, dec := range decls {
			if dec.important != important {
				continue
			}
			if dec.prop == "background" {
				out["background-color"] = backgroundColor(dec.value)
				continue
			}
			out[dec.prop] = dec.value
		}
	}
	raw, _ := getAttr(n, "style")
	inline := parseInline(raw)
	matched := make([]rule, 0, 4)
	for _, r := range d.rules {
		if r.sel.Match(n) {
			matched = append(matched, r)
		}
	}
	for _, r := range matched {
		apply(r.decls, false)
	}
	apply(inline, false)
	for _, r := range matched {
		apply(r.decls, true)
	}
	apply(inline, true)
	return out
}

func (d *Document) resolve(n *html.Node, parent *computed) *computed {
	specified := d.cascade(n)

	// Custom properties always inherit.
	if parent != nil {
		for k, v := range parent.specified {
			if strings.HasPrefix(k, "--") {
				if _, own := specified[k]; !own {
					specified[k] = v
				}
			}
		}
	}
	for k, v := range specified {
		if !strings.HasPrefix(k, "--") {
			specified[k] = substituteVars(v, specified)
		}
	}

	parentValue := func(prop string) string {
		if parent == nil {
			return initialValues[prop]
		}
		return parent.specified[prop]
	}
	for _, prop := range reported {
		v, ok := specified[prop]
		switch {
		case !ok && isInherited(prop), v == "inherit", v == "unset" && isInherited(prop):
			specified[prop] = parentValue(prop)
		case !ok, v == "initial", v == "unset":
			specified[prop] = initialValues[prop]
		}
	}

	parentFont, rootPx := 16.0, 16.0
	if parent != nil {
		parentFont, rootPx = parent.fontPx, parent.rootPx
	}
	fontPx := fontSize(specified["font-size"], parentFont, rootPx)
	if parent == nil {
		rootPx = fontPx
	}
	specified["font-size"] = px(fontPx)
	specified["font-weight"] = fontWeight(specified["font-weight"], parentValue("font-weight"))

	c := &computed{specified: specified, fontPx: fontPx, rootPx: rootPx, values: make(map[string]string, len(reported))}
	c.values["color"] = csscolor.ToComputed(specified["color"])
	bg := specified["background-color"]
	if strings.EqualFold(bg, "currentcolor") {
		bg = specified["color"]
	}
	c.values["background-color"] = csscolor.ToComputed(bg)
	c.values["font-size"] = px(fontPx)
	c.values["font-weight"] = specified["font-weight"]
	c.values["text-align"] = specified["text-align"]
	c.values["letter-spacing"] = spacing(specified["letter-spacing"], fontPx, rootPx)
	c.values["line-height"] = lineHeight(specified["line-height"], fontPx, rootPx)
	c.values["border-radius"] = radius(specified["border-radius"], fontPx, rootPx)
	c.values["opacity"] = opacity(specified["opacity"])
	return c
}

func isInherited(prop string) bool {
	for _, p := range inherited {
		if p == prop {
			return true
		}
	}
	return false
}

var varRe = regexp.MustCompile(`var\(\s*(--[\w-]+)\s*(?:,\s*([^()]*(?:\([^()]*\))?[^()]*))?\)`)

// substituteVars resolves var() references against the element's custom
// properties, nesting up to a fixed depth.
func substituteVars(v string, props map[string]string) string {
	for i := 0; i < 8 && strings.Contains(v, "var("); i++ {
		v = varRe.ReplaceAllStringFunc(v, func(m string) string {
			sub := varRe.FindStringSubmatch(m)
			if val, ok := props[sub[1]]; ok {
				return strings.TrimSpace(val)
			}
			return strings.TrimSpace(sub[2])
		})
	}
	return v
}

// backgroundColor extracts the color layer of a background shorthand. The
// shorthand resets the color to transparent when it names none.
func backgroundColor(v string) string {
	if v == "inherit" || v == "initial" || v == "unset" {
		return v
	}
	for _, tok := range splitTopLevel(v) {
		if _, ok := csscolor.Parse(tok); ok {
			return tok
		}
	}
	return "transparent"
}

// splitTopLevel splits on whitespace outside parentheses.
func splitTopLevel(v string) []string {
	var out []string
	depth, start := 0, -1
	for i, r := range v {
		switch {
		case r == '(':
			depth++
		case r == ')':
			depth--
		case (r == ' ' || r == '\t' || r == ',') && depth == 0:
			if start >= 0 {
				out = append(out, v[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, v[start:])
	}
	return out
}

var lengthRe = regexp.MustCompile(`^\s*([-+]?(?:\d+\.?\d*|\.\d+))\s*([a-z%]*)\s*$`)

// length converts a CSS length to px. Percentages resolve against pct.
func length(v string, fontPx, rootPx, pct float64) (float64, bool) {
	m := lengthRe.FindStringSubmatch(strings.ToLower(v))
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	switch m[2] {
	case "px", "":
		return f, true
	case "em":
		return f * fontPx, true
	case "rem":
		return f * rootPx, true
	case "%":
		return f / 100 * pct, true
	case "pt":
		return f * 4 / 3, true
	case "pc":
		return f * 16, true
	case "in":
		return f * 96, true
	case "cm":
		return f * 96 / 2.54, true
	case "mm":
		return f * 96 / 25.4, true
	case "vw":
		return f * 1280 / 100, true
	case "vh":
		return f * 720 / 100, true
	}
	return 0, false
}

var absoluteSizes = map[string]float64{
	"xx-small": 9, "x-small": 10, "small": 13, "medium": 16,
	"large": 18, "x-large": 24, "xx-large": 32, "xxx-large": 48,
}

func fontSize(v string, parentPx, rootPx float64) float64 {
	v = strings.ToLower(strings.TrimSpace(v))
	if l, ok := absoluteSizes[v]; ok {
		return l
	}
	switch v {
	case "smaller":
		return parentPx / 1.2
	case "larger":
		return parentPx * 1.2
	}
	if l, ok := length(v, parentPx, rootPx, parentPx); ok && l >= 0 {
		return l
	}
	return parentPx
}

func fontWeight(v, parent string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	p, err := strconv.Atoi(parent)
	if err != nil {
		p = 400
	}
	switch v {
	case "normal":
		return "400"
	case "bold":
		return "700"
	case "bolder":
		switch {
		case p < 350:
			return "400"
		case p < 550:
			return "700"
		default:
			return "900"
		}
	case "lighter":
		switch {
		case p < 550:
			return "100"
		case p < 750:
			return "400"
		default:
			return "700"
		}
	}
	if w, err := strconv.Atoi(v); err == nil && w >= 1 && w <= 1000 {
		return v
	}
	return strconv.Itoa(p)
}

func spacing(v string, fontPx, rootPx float64) string {
	if strings.TrimSpace(v) == "normal" {
		return "normal"
	}
	if l, ok := length(v, fontPx, rootPx, 0); ok {
		return px(l)
	}
	return "normal"
}

func lineHeight(v string, fontPx, rootPx float64) string {
	v = strings.TrimSpace(v)
	if v == "normal" || v == "" {
		return "normal"
	}
	m := lengthRe.FindStringSubmatch(strings.ToLower(v))
	if m != nil && m[2] == "" {
		f, _ := strconv.ParseFloat(m[1], 64)
		return px(f * fontPx)
	}
	if l, ok := length(v, fontPx, rootPx, fontPx); ok {
		return px(l)
	}
	return "normal"
}

func radius(v string, fontPx, rootPx float64) string {
	fields := splitTopLevel(v)
	if len(fields) == 0 {
		return "0px"
	}
	first := strings.SplitN(fields[0], "/", 2)[0]
	if strings.HasSuffix(first, "%") {
		return first
	}
	if l, ok := length(first, fontPx, rootPx, 0); ok {
		return px(l)
	}
	return "0px"
}

func opacity(v string) string {
	v = strings.TrimSpace(v)
	var f float64
	var err error
	if p, ok := strings.CutSuffix(v, "%"); ok {
		f, err = strconv.ParseFloat(p, 64)
		f /= 100
	} else {
		f, err = strconv.ParseFloat(v, 64)
	}
	if err != nil {
		return v
	}
	return strconv.FormatFloat(math.Max(0, math.Min(1, f)), 'f', -1, 64)
}

// px formats a pixel length the way computed styles do.
func px(v float64) string {
	return strconv.FormatFloat(math.Round(v*1000)/1000, 'f', -1, 64) + "px"
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
