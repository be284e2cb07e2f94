package host

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/livetemplate/slidestudio/internal/csscolor"
	"github.com/livetemplate/slidestudio/internal/protocol"
)

// Panel control names.
const (
	ControlColor         = "color"
	ControlBackground    = "backgroundColor"
	ControlFontSize      = "fontSize"
	ControlFontWeight    = "fontWeight"
	ControlTextAlign     = "textAlign"
	ControlLetterSpacing = "letterSpacing"
	ControlOpacity       = "opacity"
	ControlBorderRadius  = "borderRadius"
	ControlText          = "text"
	ControlResetPosition = "resetPosition"
	ControlDeselect      = "deselect"
)

var (
	fontWeights = []string{"400", "600", "700", "900"}
	textAligns  = []string{"left", "center", "right", "justify"}
)

// edit is one resolved control: the command for the agent and the matching
// optimistic mirror update.
type edit struct {
	cmd    protocol.Command
	mirror func(s *protocol.Selection)
}

// resolveControl validates a control value, clamping numeric input to the
// control's range.
func resolveControl(name string, raw json.RawMessage) (edit, error) {
	switch name {
	case ControlColor, ControlBackground:
		v, err := stringValue(raw)
		if err != nil {
			return edit{}, invalid(name, err)
		}
		v = strings.TrimSpace(v)
		if _, ok := csscolor.Parse(v); !ok {
			return edit{}, invalid(name, fmt.Errorf("not a color: %q", v))
		}
		hex := csscolor.Hex(v)
		return edit{
			cmd: protocol.SetStyle{Property: name, Value: v},
			mirror: func(s *protocol.Selection) {
				if name == ControlColor {
					s.Style.Color = hex
				} else {
					s.Style.Background = hex
				}
			},
		}, nil

	case ControlFontSize:
		n, err := numberValue(raw)
		if err != nil {
			return edit{}, invalid(name, err)
		}
		n = math.Round(clamp(n, 8, 120))
		return edit{
			cmd:    protocol.SetStyle{Property: name, Value: px(n)},
			mirror: func(s *protocol.Selection) { s.Style.FontSize = n },
		}, nil

	case ControlFontWeight:
		v, err := stringValue(raw)
		if err != nil || !oneOf(v, fontWeights) {
			return edit{}, invalid(name, fmt.Errorf("unsupported weight %s", raw))
		}
		return edit{
			cmd:    protocol.SetStyle{Property: name, Value: v},
			mirror: func(s *protocol.Selection) { s.Style.FontWeight = v },
		}, nil

	case ControlTextAlign:
		v, err := stringValue(raw)
		if err != nil || !oneOf(v, textAligns) {
			return edit{}, invalid(name, fmt.Errorf("unsupported alignment %s", raw))
		}
		return edit{
			cmd:    protocol.SetStyle{Property: name, Value: v},
			mirror: func(s *protocol.Selection) { s.Style.TextAlign = v },
		}, nil

	case ControlLetterSpacing:
		n, err := numberValue(raw)
		if err != nil {
			return edit{}, invalid(name, err)
		}
		n = math.Round(clamp(n, -5, 20)*2) / 2
		return edit{
			cmd:    protocol.SetStyle{Property: name, Value: px(n)},
			mirror: func(s *protocol.Selection) { s.Style.LetterSpacing = n },
		}, nil

	case ControlOpacity:
		n, err := numberValue(raw)
		if err != nil {
			return edit{}, invalid(name, err)
		}
		n = math.Round(clamp(n, 0, 1)*100) / 100
		return edit{
			cmd:    protocol.SetStyle{Property: name, Value: strconv.FormatFloat(n, 'f', -1, 64)},
			mirror: func(s *protocol.Selection) { s.Style.Opacity = n },
		}, nil

	case ControlBorderRadius:
		n, err := numberValue(raw)
		if err != nil {
			return edit{}, invalid(name, err)
		}
		n = math.Round(clamp(n, 0, 100))
		return edit{
			cmd:    protocol.SetStyle{Property: name, Value: px(n)},
			mirror: func(s *protocol.Selection) { s.Style.BorderRadius = n },
		}, nil

	case ControlText:
		v, err := stringValue(raw)
		if err != nil {
			return edit{}, invalid(name, err)
		}
		return edit{
			cmd:    protocol.SetText{Value: v},
			mirror: func(s *protocol.Selection) { s.Text = strings.TrimSpace(v) },
		}, nil

	case ControlResetPosition:
		return edit{
			cmd:    protocol.SetStyle{Property: "transform", Value: ""},
			mirror: func(s *protocol.Selection) { s.Style.Transform = "" },
		}, nil
	}
	return edit{}, fmt.Errorf("%w: unknown control %q", ErrInvalidControl, name)
}

func invalid(name string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrInvalidControl, name, err)
}

// stringValue accepts a JSON string or number.
func stringValue(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	}
	return "", fmt.Errorf("expected a string, got %s", raw)
}

// numberValue accepts a JSON number or a numeric string with an optional
// px suffix.
func numberValue(raw json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("expected a number, got %s", raw)
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "px"), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("expected a number, got %q", s)
	}
	return f, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func px(v float64) string {
	if v == 0 {
		v = 0 // no "-0px"
	}
	return strconv.FormatFloat(v, 'f', -1, 64) + "px"
}

func oneOf(v string, set []string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
