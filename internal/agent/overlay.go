package agent

import (
	"fmt"
	"html"
	"strings"
)

const accent = "#6366f1"

var handleCursors = map[Handle]string{
	HandleTopLeft:     "nwse-resize",
	HandleTopMid:      "n-resize",
	HandleTopRight:    "nesw-resize",
	HandleMidRight:    "e-resize",
	HandleBottomRight: "nwse-resize",
	HandleBottomMid:   "s-resize",
	HandleBottomLeft:  "nesw-resize",
	HandleMidLeft:     "w-resize",
}

// handleAnchor returns the handle's position relative to the box origin.
func handleAnchor(h Handle, w, hgt float64) (x, y float64) {
	switch h[1] {
	case 'm':
		x = w / 2
	case 'r':
		x = w
	}
	switch h[0] {
	case 'm':
		y = hgt / 2
	case 'b':
		y = hgt
	}
	return x, y
}

// Redraw rebuilds the overlay from the selection's current bounding box.
// Positions are measured on every call.
func (a *Agent) Redraw() {
	if !a.hasSelection() {
		if err := a.overlay.SetInnerHTML(""); err != nil {
			a.logf("clear overlay: %v", err)
		}
		return
	}
	if err := a.overlay.SetInnerHTML(a.overlayMarkup()); err != nil {
		a.logf("draw overlay: %v", err)
	}
}

func (a *Agent) overlayMarkup() string {
	r := a.doc.Rect(a.sel)
	var b strings.Builder
	fmt.Fprintf(&b, `<div style="position:absolute;left:%s;top:%s;width:%s;height:%s;border:2px solid %s;box-sizing:border-box;pointer-events:none;">`,
		Px(r.X), Px(r.Y), Px(r.W), Px(r.H), accent)
	for _, h := range ResizeHandles {
		x, y := handleAnchor(h, r.W, r.H)
		fmt.Fprintf(&b, `<div data-h="%s" style="position:absolute;left:%s;top:%s;width:10px;height:10px;background:%s;border:1.5px solid #fff;border-radius:2px;cursor:%s;pointer-events:all;transform:translate(-50%%,-50%%);box-sizing:border-box;"></div>`,
			h, Px(x), Px(y), accent, handleCursors[h])
	}
	fmt.Fprintf(&b, `<div data-h="%s" style="position:absolute;left:50%%;top:-22px;transform:translateX(-50%%);background:%s;color:#fff;font:600 10px/1 system-ui;padding:4px 10px;border-radius:4px;cursor:move;pointer-events:all;white-space:nowrap;">&uarr;&darr;&larr;&rarr; %s</div>`,
		HandleMove, accent, html.EscapeString(a.sel.Tag()))
	b.WriteString(`</div>`)
	return b.String()
}
