// Package agent implements the design-mode editor agent: the state machine
// that runs inside a slide's rendering context, turns pointer gestures into
// selection, hover, move and resize, applies host commands, and reports the
// selection and the cleaned document back to the host.
//
// The agent never touches a real browser. It drives a Document capability
// interface, so every transition is testable against a parsed HTML tree.
package agent

import (
	"github.com/livetemplate/slidestudio/internal/protocol"
)

// State is the agent's externally visible mode.
type State int

const (
	Idle State = iota
	Hovering
	Selected
	Dragging
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Hovering:
		return "hovering"
	case Selected:
		return "selected"
	case Dragging:
		return "dragging"
	}
	return "unknown"
}

// Outbox receives everything the agent posts to the host, in order.
type Outbox interface {
	Post(m protocol.AgentMessage)
}

// OutboxFunc adapts a function to Outbox.
type OutboxFunc func(m protocol.AgentMessage)

// Post calls f(m).
func (f OutboxFunc) Post(m protocol.AgentMessage) { f(m) }

// Options tunes agent behavior.
type Options struct {
	// EmitDuringDrag posts the serialized document on every drag step
	// instead of once on pointer-up.
	EmitDuringDrag bool
	// Logf receives debug traces. Nil disables tracing.
	Logf func(format string, args ...any)
}

const overlayStyle = "position: fixed; inset: 0; z-index: 2147483647; pointer-events: none;"

// Agent is the per-context editor state machine. It is not safe for
// concurrent use: the owning rendering context feeds it from one goroutine.
type Agent struct {
	doc     Document
	out     Outbox
	opts    Options
	overlay Element

	sel  Element
	hov  Element
	drag *dragSession
}

// New mounts the overlay into doc and returns an idle agent.
func New(doc Document, out Outbox, opts Options) *Agent {
	return &Agent{
		doc:     doc,
		out:     out,
		opts:    opts,
		overlay: doc.MountOverlay(overlayStyle),
	}
}

// State reports the current mode.
func (a *Agent) State() State {
	switch {
	case a.drag != nil:
		return Dragging
	case a.sel != nil:
		return Selected
	case a.hov != nil:
		return Hovering
	}
	return Idle
}

// Selection returns the selected element, or nil.
func (a *Agent) Selection() Element {
	if !a.hasSelection() {
		return nil
	}
	return a.sel
}

// HandleGesture applies one pointer or viewport event.
func (a *Agent) HandleGesture(g protocol.Gesture) {
	switch g := g.(type) {
	case protocol.PointerOver:
		a.pointerOver(g.Path, g.Tag)
	case protocol.PointerOut:
		a.pointerOut(g.Path, g.Tag)
	case protocol.Click:
		a.click(g.Path, g.Tag)
	case protocol.HandleDown:
		a.startDrag(g)
	case protocol.PointerMove:
		a.dragTo(g.X, g.Y)
	case protocol.PointerUp:
		a.endDrag()
	case protocol.Viewport:
		a.Redraw()
	case protocol.Measure:
		// Measurements update the document's layout; the owner applies them
		// and then calls Redraw.
	}
}

// HandleCommand applies one host command synchronously.
func (a *Agent) HandleCommand(c protocol.Command) {
	switch c := c.(type) {
	case protocol.SetStyle:
		if !a.hasSelection() {
			a.logf("style %s ignored: no selection", c.Property)
			return
		}
		a.sel.SetStyle(KebabCase(c.Property), c.Value)
		a.Redraw()
		a.emit()
	case protocol.SetText:
		if !a.hasSelection() {
			a.logf("text ignored: no selection")
			return
		}
		if !IsSimpleText(a.sel) {
			a.logf("text ignored: <%s> holds markup", a.sel.Tag())
			return
		}
		a.sel.SetInnerText(c.Value)
		a.Redraw()
		a.emit()
	case protocol.Deselect:
		a.clearHover()
		if a.sel != nil {
			a.sel.RemoveAttr(MarkerSelected)
			a.sel = nil
		}
		a.drag = nil
		a.Redraw()
		a.report()
	case protocol.Ping:
		a.report()
	}
}

// Close discards selection, hover and any in-flight drag without emitting.
func (a *Agent) Close() {
	a.drag = nil
	a.sel = nil
	a.hov = nil
}

// target resolves a gesture's element. A tag that disagrees with the
// element at path means the browser's tree has drifted from the document,
// and the gesture is dropped.
func (a *Agent) target(path protocol.Path, tag string) (Element, bool) {
	el, ok := a.doc.ElementAt(path)
	if !ok {
		return nil, false
	}
	if !protocol.TagMatches(tag, el.Tag()) {
		a.logf("gesture for <%s> resolved to <%s>, ignored", tag, el.Tag())
		return nil, false
	}
	return el, true
}

func (a *Agent) pointerOver(path protocol.Path, tag string) {
	if a.drag != nil {
		return
	}
	el, ok := a.target(path, tag)
	if !ok || el == a.doc.Body() || el == a.doc.Root() || el.Closest(MarkerAgent) {
		return
	}
	a.clearHover()
	a.hov = el
	el.SetAttr(MarkerHover, "")
}

func (a *Agent) pointerOut(path protocol.Path, tag string) {
	el, ok := a.target(path, tag)
	if !ok || el != a.hov {
		return
	}
	a.clearHover()
}

func (a *Agent) clearHover() {
	if a.hov != nil {
		a.hov.RemoveAttr(MarkerHover)
		a.hov = nil
	}
}

func (a *Agent) click(path protocol.Path, tag string) {
	el, ok := a.target(path, tag)
	if !ok || el == a.doc.Root() || el.Closest(MarkerAgent) {
		return
	}
	if a.sel != nil {
		a.sel.RemoveAttr(MarkerSelected)
	}
	if a.sel == el {
		a.sel = nil
		a.Redraw()
		a.report()
		return
	}
	a.sel = el
	el.SetAttr(MarkerSelected, "")
	a.Redraw()
	a.report()
}

// hasSelection drops a selection whose element left the document.
func (a *Agent) hasSelection() bool {
	if a.sel == nil {
		return false
	}
	if !a.sel.Connected() {
		a.logf("selection detached from document")
		a.sel = nil
		a.drag = nil
		return false
	}
	return true
}

// emit posts the cleaned document followed by the selection report.
func (a *Agent) emit() {
	clone := a.doc.Clone()
	clone.RemoveElements(MarkerAgent)
	clone.StripAttr(MarkerHover)
	clone.StripAttr(MarkerSelected)
	a.out.Post(protocol.DocumentChanged{HTML: "<!doctype html>" + clone.OuterHTML()})
	a.report()
}

func (a *Agent) report() {
	if !a.hasSelection() {
		a.out.Post(protocol.NoSelection{})
		return
	}
	a.out.Post(Summarize(a.doc, a.sel))
}

func (a *Agent) logf(format string, args ...any) {
	if a.opts.Logf != nil {
		a.opts.Logf(format, args...)
	}
}
