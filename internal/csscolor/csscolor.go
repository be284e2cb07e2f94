// Package csscolor parses CSS color values and renders them in the forms a
// rendering engine reports (computed rgb()/rgba()) and the editor panel
// consumes (#rrggbb).
package csscolor

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"
)

// RGBA is a parsed color with 8-bit channels and alpha in [0,1].
type RGBA struct {
	R, G, B uint8
	A       float64
}

var numberRe = regexp.MustCompile(`[-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?%?`)

// Parse understands rgb()/rgba() in comma or space syntax, #rgb, #rrggbb,
// #rrggbbaa, named colors and "transparent".
func Parse(s string) (RGBA, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "":
		return RGBA{}, false
	case s == "transparent":
		return RGBA{}, true
	case strings.HasPrefix(s, "rgb"):
		return parseFunctional(s)
	case strings.HasPrefix(s, "#"):
		return parseHex(s)
	}
	if c, ok := colornames.Map[s]; ok {
		return RGBA{R: c.R, G: c.G, B: c.B, A: 1}, true
	}
	return RGBA{}, false
}

func parseFunctional(s string) (RGBA, bool) {
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return RGBA{}, false
	}
	parts := numberRe.FindAllString(s[open:], -1)
	if len(parts) < 3 {
		return RGBA{}, false
	}
	var ch [3]uint8
	for i := 0; i < 3; i++ {
		v, ok := channel(parts[i], 255)
		if !ok {
			return RGBA{}, false
		}
		ch[i] = uint8(math.Round(v))
	}
	alpha := 1.0
	if len(parts) > 3 {
		v, ok := channel(parts[3], 1)
		if !ok {
			return RGBA{}, false
		}
		alpha = v
	}
	return RGBA{R: ch[0], G: ch[1], B: ch[2], A: alpha}, true
}

// channel parses a number or percentage and clamps it to [0,max].
func channel(tok string, max float64) (float64, bool) {
	pct := strings.HasSuffix(tok, "%")
	v, err := strconv.ParseFloat(strings.TrimSuffix(tok, "%"), 64)
	if err != nil {
		return 0, false
	}
	if pct {
		v = v / 100 * max
	}
	return math.Min(math.Max(v, 0), max), true
}

func parseHex(s string) (RGBA, bool) {
	alpha := 1.0
	switch len(s) {
	case 4, 5:
		var b strings.Builder
		b.WriteByte('#')
		for _, r := range s[1:] {
			b.WriteRune(r)
			b.WriteRune(r)
		}
		s = b.String()
	}
	if len(s) == 9 {
		a, err := strconv.ParseUint(s[7:], 16, 8)
		if err != nil {
			return RGBA{}, false
		}
		alpha = float64(a) / 255
		s = s[:7]
	}
	if len(s) != 7 {
		return RGBA{}, false
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return RGBA{}, false
	}
	r, g, b := c.RGB255()
	return RGBA{R: r, G: g, B: b, A: alpha}, true
}

// Hex renders a color as #rrggbb. Unparsable, empty and fully transparent
// colors render as "" so callers can tell "no fill" from black.
func Hex(s string) string {
	c, ok := Parse(s)
	if !ok || c.A == 0 {
		return ""
	}
	return c.Hex()
}

// Hex renders the color channels as #rrggbb, ignoring alpha.
func (c RGBA) Hex() string {
	return colorful.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
	}.Hex()
}

// Computed renders the color the way getComputedStyle reports it.
func (c RGBA) Computed() string {
	if c.A >= 1 {
		return "rgb(" + strconv.Itoa(int(c.R)) + ", " + strconv.Itoa(int(c.G)) + ", " + strconv.Itoa(int(c.B)) + ")"
	}
	return "rgba(" + strconv.Itoa(int(c.R)) + ", " + strconv.Itoa(int(c.G)) + ", " + strconv.Itoa(int(c.B)) + ", " +
		strconv.FormatFloat(math.Round(c.A*1000)/1000, 'f', -1, 64) + ")"
}

// ToComputed normalizes any parsable color to its computed form. Values it
// cannot parse (currentcolor, gradients) are returned unchanged.
func ToComputed(s string) string {
	c, ok := Parse(s)
	if !ok {
		return s
	}
	return c.Computed()
}
