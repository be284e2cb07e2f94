// Package protocol defines the messages exchanged between the design-mode
// editor agent running inside a rendering context and the host controller
// that owns the canonical slide markup.
//
// Both directions are closed variant types: every message implements a
// sealed interface and the codecs reject anything outside the set.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Kind is the wire tag carried in the "t" field.
type Kind string

const (
	KindSelection Kind = "sel"
	KindNone      Kind = "none"
	KindHTML      Kind = "html"

	KindStyle    Kind = "style"
	KindText     Kind = "text"
	KindDeselect Kind = "desel"
	KindPing     Kind = "ping"
)

// ErrUnknownKind is returned when a payload carries a tag outside the
// protocol's closed set for that direction.
var ErrUnknownKind = errors.New("protocol: unknown message kind")

// StyleSummary is the normalized snapshot of the selected element's style.
type StyleSummary struct {
	Color         string  `json:"color"`
	Background    string  `json:"bg"`
	FontSize      float64 `json:"fs"`
	FontWeight    string  `json:"fw"`
	TextAlign     string  `json:"ta"`
	LetterSpacing float64 `json:"ls"`
	LineHeight    float64 `json:"lh"`
	BorderRadius  float64 `json:"br"`
	Opacity       float64 `json:"op"`
	Transform     string  `json:"tr"`
	Width         string  `json:"w"`
	Height        string  `json:"h"`
}

// AgentMessage is a message posted by the agent to the host.
type AgentMessage interface {
	Kind() Kind
	agentMessage()
}

// Selection reports the current selection and its style summary.
type Selection struct {
	Tag     string       `json:"tag"`
	Text    string       `json:"text"`
	HasText bool         `json:"hasText"`
	Style   StyleSummary `json:"s"`
}

// NoSelection reports that nothing is selected.
type NoSelection struct{}

// DocumentChanged carries the new canonical slide document after a mutation.
type DocumentChanged struct {
	HTML string `json:"html"`
}

func (Selection) Kind() Kind       { return KindSelection }
func (NoSelection) Kind() Kind     { return KindNone }
func (DocumentChanged) Kind() Kind { return KindHTML }

func (Selection) agentMessage()       {}
func (NoSelection) agentMessage()     {}
func (DocumentChanged) agentMessage() {}

// Command is a message posted by the host to the agent.
type Command interface {
	Kind() Kind
	command()
}

// SetStyle sets one inline style property on the selection. An empty value
// removes the declaration.
type SetStyle struct {
	Property string `json:"p"`
	Value    string `json:"v"`
}

// SetText replaces the selection's text content.
type SetText struct {
	Value string `json:"v"`
}

// Deselect clears the selection.
type Deselect struct{}

// Ping asks the agent to re-report its selection.
type Ping struct{}

func (SetStyle) Kind() Kind { return KindStyle }
func (SetText) Kind() Kind  { return KindText }
func (Deselect) Kind() Kind { return KindDeselect }
func (Ping) Kind() Kind     { return KindPing }

func (SetStyle) command() {}
func (SetText) command()  {}
func (Deselect) command() {}
func (Ping) command()     {}

type tagged struct {
	T Kind `json:"t"`
}

// EncodeAgent serializes an agent message with its "t" tag.
func EncodeAgent(m AgentMessage) ([]byte, error) {
	switch v := m.(type) {
	case Selection:
		return json.Marshal(struct {
			tagged
			Selection
		}{tagged{KindSelection}, v})
	case NoSelection:
		return json.Marshal(tagged{KindNone})
	case DocumentChanged:
		return json.Marshal(struct {
			tagged
			DocumentChanged
		}{tagged{KindHTML}, v})
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, m)
	}
}

// DecodeAgent parses a tagged agent message.
func DecodeAgent(data []byte) (AgentMessage, error) {
	var head tagged
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("protocol: decode agent message: %w", err)
	}
	switch head.T {
	case KindSelection:
		var m Selection
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("protocol: decode sel: %w", err)
		}
		return m, nil
	case KindNone:
		return NoSelection{}, nil
	case KindHTML:
		var m DocumentChanged
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("protocol: decode html: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, head.T)
	}
}

// EncodeCommand serializes a host command with its "t" tag.
func EncodeCommand(c Command) ([]byte, error) {
	switch v := c.(type) {
	case SetStyle:
		return json.Marshal(struct {
			tagged
			SetStyle
		}{tagged{KindStyle}, v})
	case SetText:
		return json.Marshal(struct {
			tagged
			SetText
		}{tagged{KindText}, v})
	case Deselect:
		return json.Marshal(tagged{KindDeselect})
	case Ping:
		return json.Marshal(tagged{KindPing})
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, c)
	}
}

// DecodeCommand parses a tagged host command. The value of a style command
// may arrive as a JSON number (opacity sliders post raw numbers).
func DecodeCommand(data []byte) (Command, error) {
	var raw struct {
		T Kind            `json:"t"`
		P string          `json:"p"`
		V json.RawMessage `json:"v"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("protocol: decode command: %w", err)
	}
	switch raw.T {
	case KindStyle:
		v, err := scalarString(raw.V)
		if err != nil {
			return nil, fmt.Errorf("protocol: decode style value: %w", err)
		}
		return SetStyle{Property: raw.P, Value: v}, nil
	case KindText:
		v, err := scalarString(raw.V)
		if err != nil {
			return nil, fmt.Errorf("protocol: decode text value: %w", err)
		}
		return SetText{Value: v}, nil
	case KindDeselect:
		return Deselect{}, nil
	case KindPing:
		return Ping{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, raw.T)
	}
}

// scalarString accepts a JSON string, number, boolean or null.
func scalarString(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b), nil
	}
	return "", fmt.Errorf("unsupported value %s", raw)
}
