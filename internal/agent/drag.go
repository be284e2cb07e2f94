package agent

import (
	"math"
	"regexp"
	"strconv"

	"github.com/livetemplate/slidestudio/internal/protocol"
)

// Minimum element size a resize can produce.
const (
	MinWidth  = 20
	MinHeight = 10
)

// Handle identifies a resize handle or the move badge. The first byte names
// the vertical edge (t, m, b), the second the horizontal edge (l, m, r).
type Handle string

const (
	HandleTopLeft     Handle = "tl"
	HandleTopMid      Handle = "tm"
	HandleTopRight    Handle = "tr"
	HandleMidRight    Handle = "mr"
	HandleBottomRight Handle = "br"
	HandleBottomMid   Handle = "bm"
	HandleBottomLeft  Handle = "bl"
	HandleMidLeft     Handle = "ml"
	HandleMove        Handle = "mv"
)

// ResizeHandles lists the eight resize handles in overlay drawing order.
var ResizeHandles = []Handle{
	HandleTopLeft, HandleTopMid, HandleTopRight, HandleMidRight,
	HandleBottomRight, HandleBottomMid, HandleBottomLeft, HandleMidLeft,
}

// Valid reports whether h is a known handle.
func (h Handle) Valid() bool {
	if h == HandleMove {
		return true
	}
	if len(h) != 2 || h == "mm" {
		return false
	}
	return (h[0] == 't' || h[0] == 'm' || h[0] == 'b') && (h[1] == 'l' || h[1] == 'm' || h[1] == 'r')
}

func (h Handle) top() bool    { return h != HandleMove && h[0] == 't' }
func (h Handle) bottom() bool { return h != HandleMove && h[0] == 'b' }
func (h Handle) left() bool   { return h != HandleMove && h[1] == 'l' }
func (h Handle) right() bool  { return h != HandleMove && h[1] == 'r' }

type dragSession struct {
	handle         Handle
	startX, startY float64
	tx, ty         float64
	w, h           float64
}

// Frame is the element geometry a drag step produces.
type Frame struct {
	TX, TY float64
	W, H   float64
}

// Step computes the geometry for a pointer delta of (dx, dy). A left or top
// resize shifts the translation by however much the size actually changed,
// so the opposite edge stays put even when the size is clamped.
func Step(handle Handle, start Frame, dx, dy float64) Frame {
	next := start
	if handle == HandleMove {
		next.TX = start.TX + dx
		next.TY = start.TY + dy
		return next
	}
	if handle.right() {
		next.W = math.Max(MinWidth, start.W+dx)
	}
	if handle.left() {
		next.W = math.Max(MinWidth, start.W-dx)
		next.TX = start.TX + (start.W - next.W)
	}
	if handle.bottom() {
		next.H = math.Max(MinHeight, start.H+dy)
	}
	if handle.top() {
		next.H = math.Max(MinHeight, start.H-dy)
		next.TY = start.TY + (start.H - next.H)
	}
	return next
}

var translateRe = regexp.MustCompile(`translate\(\s*([-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?)px\s*,\s*([-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?)px\s*\)`)

// ParseTranslate extracts the offsets of a translate(Xpx, Ypx) transform.
// Anything else yields (0, 0).
func ParseTranslate(transform string) (x, y float64) {
	m := translateRe.FindStringSubmatch(transform)
	if m == nil {
		return 0, 0
	}
	x, errX := strconv.ParseFloat(m[1], 64)
	y, errY := strconv.ParseFloat(m[2], 64)
	if errX != nil || errY != nil {
		return 0, 0
	}
	return x, y
}

// FormatTranslate renders offsets in the form ParseTranslate reads.
func FormatTranslate(x, y float64) string {
	return "translate(" + Px(x) + ", " + Px(y) + ")"
}

// Px renders a length in pixels with the shortest exact decimal form.
func Px(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "px"
}

func (a *Agent) startDrag(g protocol.HandleDown) {
	if !a.hasSelection() {
		return
	}
	h := Handle(g.Handle)
	if !h.Valid() {
		a.logf("unknown handle %q", g.Handle)
		return
	}
	r := a.doc.Rect(a.sel)
	tx, ty := ParseTranslate(a.sel.Style("transform"))
	a.drag = &dragSession{
		handle: h,
		startX: g.X,
		startY: g.Y,
		tx:     tx,
		ty:     ty,
		w:      r.W,
		h:      r.H,
	}
	a.overlay.SetStyle("pointer-events", "all")
}

func (a *Agent) dragTo(x, y float64) {
	if a.drag == nil || !a.hasSelection() {
		return
	}
	d := a.drag
	start := Frame{TX: d.tx, TY: d.ty, W: d.w, H: d.h}
	next := Step(d.handle, start, x-d.startX, y-d.startY)
	if d.handle != HandleMove {
		if next.W != start.W {
			a.sel.SetStyle("width", Px(next.W))
		}
		if next.H != start.H {
			a.sel.SetStyle("height", Px(next.H))
		}
	}
	a.sel.SetStyle("transform", FormatTranslate(next.TX, next.TY))
	a.Redraw()
	if a.opts.EmitDuringDrag {
		a.emit()
	}
}

func (a *Agent) endDrag() {
	if a.drag == nil {
		return
	}
	a.overlay.SetStyle("pointer-events", "none")
	a.drag = nil
	if !a.hasSelection() {
		a.Redraw()
		a.report()
		return
	}
	a.emit()
}
