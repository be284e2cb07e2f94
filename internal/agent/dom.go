package agent

import "github.com/livetemplate/slidestudio/internal/protocol"

// Marker attributes owned by the agent.
const (
	// MarkerAgent tags elements the agent injected itself: the overlay and
	// the injected style and script blocks.
	MarkerAgent = "data-sfc"
	// MarkerHover tags the element under the pointer.
	MarkerHover = "data-sfc-h"
	// MarkerSelected tags the selected element.
	MarkerSelected = "data-sfc-s"
)

// ChildKind classifies a child node for the simple-text test.
type ChildKind int

const (
	ChildText ChildKind = iota
	ChildElement
	ChildOther
)

// Child describes one child node of an element.
type Child struct {
	Kind ChildKind
	Tag  string // lower-case tag name for ChildElement
}

// Element is the agent's capability handle on one live element.
// Implementations must hand out the same Element value for the same node so
// that handles compare equal with ==.
type Element interface {
	Tag() string
	HasAttr(name string) bool
	SetAttr(name, value string)
	RemoveAttr(name string)

	// Style returns an inline declaration; SetStyle with an empty value
	// removes it. Property names are kebab-case.
	Style(prop string) string
	SetStyle(prop, value string)

	Children() []Child
	InnerText() string
	SetInnerText(text string)
	SetInnerHTML(markup string) error

	// Closest reports whether the element or an ancestor carries attr.
	Closest(attr string) bool
	// Connected reports whether the element is still attached to the document.
	Connected() bool
}

// Document is the agent's capability handle on the live rendering context.
type Document interface {
	Root() Element
	Body() Element
	ElementAt(path protocol.Path) (Element, bool)

	// ComputedStyle returns resolved values keyed by kebab-case property.
	ComputedStyle(el Element) map[string]string
	// Rect returns the element's bounding box in viewport coordinates.
	Rect(el Element) protocol.Rect

	// MountOverlay appends an agent-owned container to the body.
	MountOverlay(style string) Element

	// Clone deep-copies the document; mutations of the clone are not
	// observable in the live document.
	Clone() Document
	RemoveElements(attr string)
	StripAttr(attr string)
	OuterHTML() string
}
