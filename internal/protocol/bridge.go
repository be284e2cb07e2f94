package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// GestureKind is the wire tag carried in the "g" field of a gesture.
type GestureKind string

const (
	GestureOver     GestureKind = "over"
	GestureOut      GestureKind = "out"
	GestureClick    GestureKind = "click"
	GestureDown     GestureKind = "down"
	GestureMove     GestureKind = "move"
	GestureUp       GestureKind = "up"
	GestureViewport GestureKind = "viewport"
	GestureMeasure  GestureKind = "measure"
)

// Path addresses an element by its element-child indices starting below
// the <html> element. An empty path is the <html> element itself.
//
// Scripts in the slide may add or remove elements in the browser, which
// shifts indices there but not in the agent's document. Messages that carry
// a path also carry the element's lower-case tag name; a receiver that
// finds a different tag at the path treats it as unresolved.
type Path []int

// Rect is a bounding box in the rendering context's viewport coordinates.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// MeasuredRect pairs an element path with its measured bounding box.
type MeasuredRect struct {
	Path Path   `json:"path"`
	Tag  string `json:"tag,omitempty"`
	Rect
}

// Gesture is a pointer or viewport event relayed by the in-frame bridge.
type Gesture interface {
	GestureKind() GestureKind
	gesture()
}

// PointerOver reports the pointer entering an element.
type PointerOver struct {
	Path Path   `json:"path"`
	Tag  string `json:"tag,omitempty"`
}

// PointerOut reports the pointer leaving an element.
type PointerOut struct {
	Path Path   `json:"path"`
	Tag  string `json:"tag,omitempty"`
}

// Click reports a capture-phase click on an element.
type Click struct {
	Path Path   `json:"path"`
	Tag  string `json:"tag,omitempty"`
}

// HandleDown reports pointer-down on one of the overlay's handles.
type HandleDown struct {
	Handle string  `json:"handle"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// PointerMove reports pointer movement in viewport coordinates.
type PointerMove struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PointerUp reports the end of a pointer press.
type PointerUp struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Viewport reports a resize or scroll of the rendering context.
type Viewport struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Measure carries bounding boxes measured by the rendering engine.
type Measure struct {
	Rects []MeasuredRect `json:"rects"`
}

func (PointerOver) GestureKind() GestureKind { return GestureOver }
func (PointerOut) GestureKind() GestureKind  { return GestureOut }
func (Click) GestureKind() GestureKind       { return GestureClick }
func (HandleDown) GestureKind() GestureKind  { return GestureDown }
func (PointerMove) GestureKind() GestureKind { return GestureMove }
func (PointerUp) GestureKind() GestureKind   { return GestureUp }
func (Viewport) GestureKind() GestureKind    { return GestureViewport }
func (Measure) GestureKind() GestureKind     { return GestureMeasure }

func (PointerOver) gesture() {}
func (PointerOut) gesture()  {}
func (Click) gesture()       {}
func (HandleDown) gesture()  {}
func (PointerMove) gesture() {}
func (PointerUp) gesture()   {}
func (Viewport) gesture()    {}
func (Measure) gesture()     {}

// DecodeGesture parses a gesture tagged by its "g" field.
func DecodeGesture(data []byte) (Gesture, error) {
	var head struct {
		G GestureKind `json:"g"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("protocol: decode gesture: %w", err)
	}
	var (
		g   Gesture
		err error
	)
	switch head.G {
	case GestureOver:
		var v PointerOver
		err = json.Unmarshal(data, &v)
		g = v
	case GestureOut:
		var v PointerOut
		err = json.Unmarshal(data, &v)
		g = v
	case GestureClick:
		var v Click
		err = json.Unmarshal(data, &v)
		g = v
	case GestureDown:
		var v HandleDown
		err = json.Unmarshal(data, &v)
		g = v
	case GestureMove:
		var v PointerMove
		err = json.Unmarshal(data, &v)
		g = v
	case GestureUp:
		var v PointerUp
		err = json.Unmarshal(data, &v)
		g = v
	case GestureViewport:
		var v Viewport
		err = json.Unmarshal(data, &v)
		g = v
	case GestureMeasure:
		var v Measure
		err = json.Unmarshal(data, &v)
		g = v
	default:
		return nil, fmt.Errorf("%w: gesture %q", ErrUnknownKind, head.G)
	}
	if err != nil {
		return nil, fmt.Errorf("protocol: decode %s gesture: %w", head.G, err)
	}
	return g, nil
}

// PatchOp names a live-DOM mutation the bridge replays in the browser.
type PatchOp string

const (
	PatchSetAttr    PatchOp = "attr"
	PatchRemoveAttr PatchOp = "rmattr"
	PatchText       PatchOp = "text"
	PatchHTML       PatchOp = "html"

	// The overlay is created by each side independently, so its patches
	// address it by op instead of by path.
	PatchOverlay     PatchOp = "overlay"
	PatchOverlayAttr PatchOp = "oattr"
)

// Patch is one journaled mutation of the agent's live document.
type Patch struct {
	Op    PatchOp `json:"op"`
	Path  Path    `json:"path,omitempty"`
	Tag   string  `json:"tag,omitempty"`
	Name  string  `json:"name,omitempty"`
	Value string  `json:"value,omitempty"`
}

// TagMatches reports whether an element with tag may stand for want. An
// empty want matches any element. Case is ignored for SVG names such as
// linearGradient.
func TagMatches(want, tag string) bool {
	return want == "" || strings.EqualFold(want, tag)
}
