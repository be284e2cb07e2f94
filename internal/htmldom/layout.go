package htmldom

import (
	"golang.org/x/net/html"

	"github.com/livetemplate/slidestudio/internal/agent"
	"github.com/livetemplate/slidestudio/internal/protocol"
)

// measurement is a browser-reported box together with the translate that
// was in effect when it was taken.
type measurement struct {
	rect   protocol.Rect
	tx, ty float64
}

// SetViewport records the frame's viewport size.
func (d *Document) SetViewport(w, h float64) {
	if w == d.viewport.W && h == d.viewport.H {
		return
	}
	d.viewport = protocol.Rect{W: w, H: h}
	d.rulesSet = false
}

// Viewport returns the last recorded viewport.
func (d *Document) Viewport() protocol.Rect { return d.viewport }

// Measure stores browser-reported boxes by element path. Paths that no
// longer resolve, or resolve to an element with another tag, are ignored.
func (d *Document) Measure(rects []protocol.MeasuredRect) {
	for _, m := range rects {
		n := d.nodeAt(m.Path)
		if n == nil || !protocol.TagMatches(m.Tag, n.Data) {
			continue
		}
		tr, _ := getAttr(n, "style")
		decl, _ := lookup(parseInline(tr), "transform")
		tx, ty := agent.ParseTranslate(decl.value)
		d.measured[n] = measurement{rect: m.Rect, tx: tx, ty: ty}
	}
}

// Rect returns el's viewport-relative box. A measured box is shifted by any
// translate change since it was measured and takes inline pixel sizes as
// they are written; unmeasured elements are estimated from inline
// positioning.
func (d *Document) Rect(el agent.Element) protocol.Rect {
	n := unwrap(el)
	if n == nil {
		return protocol.Rect{}
	}
	if n == d.htmlEl || n == d.body() {
		return protocol.Rect{W: d.viewport.W, H: d.viewport.H}
	}
	raw, _ := getAttr(n, "style")
	decls := parseInline(raw)
	get := func(prop string) string {
		dec, _ := lookup(decls, prop)
		return dec.value
	}
	tx, ty := agent.ParseTranslate(get("transform"))

	if m, ok := d.measured[n]; ok {
		r := m.rect
		r.X += tx - m.tx
		r.Y += ty - m.ty
		if w, ok := pxValue(get("width")); ok {
			r.W = w
		}
		if h, ok := pxValue(get("height")); ok {
			r.H = h
		}
		return r
	}

	var r protocol.Rect
	r.X, _ = pxValue(get("left"))
	r.Y, _ = pxValue(get("top"))
	r.W, _ = pxValue(get("width"))
	r.H, _ = pxValue(get("height"))
	for p := parentElement(n); p != nil && p != d.body() && p != d.htmlEl; p = parentElement(p) {
		if pm, ok := d.measured[p]; ok {
			r.X += pm.rect.X
			r.Y += pm.rect.Y
			break
		}
	}
	r.X += tx
	r.Y += ty
	return r
}

// pxValue parses a plain pixel length.
func pxValue(v string) (float64, bool) {
	m := lengthRe.FindStringSubmatch(v)
	if m == nil || m[2] != "px" && m[2] != "" {
		return 0, false
	}
	l, ok := length(v, 16, 16, 0)
	return l, ok
}

// forget drops measurements and wrappers of detached elements.
func (d *Document) forget() {
	for n := range d.measured {
		if !attached(d.root, n) {
			delete(d.measured, n)
		}
	}
	for n := range d.wrappers {
		if !attached(d.root, n) {
			delete(d.wrappers, n)
		}
	}
}

func attached(root, n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == root {
			return true
		}
	}
	return false
}

func parentElement(n *html.Node) *html.Node {
	p := n.Parent
	if p == nil || p.Type != html.ElementNode {
		return nil
	}
	return p
}
