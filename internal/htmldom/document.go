// Package htmldom is the agent's DOM capability backed by
// golang.org/x/net/html. A live Document journals every mutation as a
// protocol.Patch so a browser-side bridge can replay it; clones used for
// serialization journal nothing.
package htmldom

import (
	"bytes"
	"errors"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/livetemplate/slidestudio/internal/agent"
	"github.com/livetemplate/slidestudio/internal/protocol"
)

// ErrNoDocumentElement is returned when parsing yields no <html> element.
var ErrNoDocumentElement = errors.New("htmldom: document has no html element")

// Document is a parsed slide document.
type Document struct {
	root     *html.Node // document node
	htmlEl   *html.Node
	overlay  *html.Node
	wrappers map[*html.Node]*Element

	live    bool
	journal []protocol.Patch

	rules    []rule
	rulesSet bool

	measured map[*html.Node]measurement
	viewport protocol.Rect
}

var _ agent.Document = (*Document)(nil)

// Parse parses src into a live, journaling document.
func Parse(src string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, err
	}
	d := newDocument(root)
	if d.htmlEl == nil {
		return nil, ErrNoDocumentElement
	}
	d.live = true
	return d, nil
}

func newDocument(root *html.Node) *Document {
	d := &Document{
		root:     root,
		wrappers: make(map[*html.Node]*Element),
		measured: make(map[*html.Node]measurement),
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Html {
			d.htmlEl = c
			break
		}
	}
	return d
}

func (d *Document) wrap(n *html.Node) *Element {
	if n == nil {
		return nil
	}
	if e, ok := d.wrappers[n]; ok {
		return e
	}
	e := &Element{n: n, doc: d}
	d.wrappers[n] = e
	return e
}

func unwrap(el agent.Element) *html.Node {
	e, ok := el.(*Element)
	if !ok || e == nil {
		return nil
	}
	return e.n
}

// Root returns the <html> element.
func (d *Document) Root() agent.Element { return d.wrap(d.htmlEl) }

// Body returns the <body> element. The HTML parser always synthesizes one.
func (d *Document) Body() agent.Element {
	if b := d.body(); b != nil {
		return d.wrap(b)
	}
	return nil
}

func (d *Document) body() *html.Node {
	for c := d.htmlEl.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Body {
			return c
		}
	}
	return nil
}

// ElementAt resolves an element-child index path below <html>.
func (d *Document) ElementAt(path protocol.Path) (agent.Element, bool) {
	n := d.nodeAt(path)
	if n == nil {
		return nil, false
	}
	return d.wrap(n), true
}

func (d *Document) nodeAt(path protocol.Path) *html.Node {
	n := d.htmlEl
	for _, idx := range path {
		if idx < 0 {
			return nil
		}
		n = nthElementChild(n, idx)
		if n == nil {
			return nil
		}
	}
	return n
}

func nthElementChild(n *html.Node, idx int) *html.Node {
	i := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if i == idx {
			return c
		}
		i++
	}
	return nil
}

// PathOf returns the element-child index path of el, or false when el is
// not attached below <html>.
func (d *Document) PathOf(el agent.Element) (protocol.Path, bool) {
	return d.pathOf(unwrap(el))
}

func (d *Document) pathOf(n *html.Node) (protocol.Path, bool) {
	var rev []int
	for n != nil && n != d.htmlEl {
		p := n.Parent
		if p == nil {
			return nil, false
		}
		i := 0
		for c := p.FirstChild; c != n; c = c.NextSibling {
			if c == nil {
				return nil, false
			}
			if c.Type == html.ElementNode {
				i++
			}
		}
		rev = append(rev, i)
		n = p
	}
	if n == nil {
		return nil, false
	}
	path := make(protocol.Path, len(rev))
	for i := range rev {
		path[i] = rev[len(rev)-1-i]
	}
	return path, true
}

// MountOverlay appends the agent's overlay container to <body>. The browser
// bridge creates its own twin, so mounting journals nothing.
func (d *Document) MountOverlay(style string) agent.Element {
	if d.overlay != nil {
		return d.wrap(d.overlay)
	}
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
		Attr: []html.Attribute{
			{Key: agent.MarkerAgent, Val: "1"},
			{Key: "style", Val: style},
		},
	}
	parent := d.body()
	if parent == nil {
		parent = d.htmlEl
	}
	parent.AppendChild(n)
	d.overlay = n
	return d.wrap(n)
}

// Clone deep-copies the document. The clone does not journal.
func (d *Document) Clone() agent.Document {
	return newDocument(cloneNode(d.root))
}

func cloneNode(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		c.AppendChild(cloneNode(ch))
	}
	return c
}

// RemoveElements detaches every element carrying attr.
func (d *Document) RemoveElements(attr string) {
	var doomed []*html.Node
	walk(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && hasAttr(n, attr) {
			doomed = append(doomed, n)
			return false
		}
		return true
	})
	for _, n := range doomed {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		if n == d.overlay {
			d.overlay = nil
		}
	}
}

// StripAttr removes attr from every element.
func (d *Document) StripAttr(attr string) {
	walk(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			removeAttr(n, attr)
		}
		return true
	})
}

// OuterHTML renders the <html> element.
func (d *Document) OuterHTML() string {
	var buf bytes.Buffer
	if err := html.Render(&buf, d.htmlEl); err != nil {
		return ""
	}
	return buf.String()
}

// Drain returns and clears the mutation journal.
func (d *Document) Drain() []protocol.Patch {
	p := d.journal
	d.journal = nil
	return p
}

func (d *Document) record(n *html.Node, p protocol.Patch) {
	if !d.live {
		return
	}
	if n == d.overlay {
		switch p.Op {
		case protocol.PatchHTML:
			p.Op = protocol.PatchOverlay
		case protocol.PatchSetAttr:
			p.Op = protocol.PatchOverlayAttr
		default:
			return
		}
		p.Path = nil
		d.journal = append(d.journal, p)
		return
	}
	path, ok := d.pathOf(n)
	if !ok {
		return
	}
	p.Path = path
	p.Tag = n.Data
	d.journal = append(d.journal, p)
}

// walk visits nodes depth-first; returning false skips a node's children.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		walk(c, fn)
		c = next
	}
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return true
		}
	}
	return false
}

func getAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) bool {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return true
		}
	}
	return false
}
