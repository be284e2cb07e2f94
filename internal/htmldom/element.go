package htmldom

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/livetemplate/slidestudio/internal/agent"
	"github.com/livetemplate/slidestudio/internal/protocol"
)

// Element wraps one element node of a Document.
type Element struct {
	n   *html.Node
	doc *Document
}

var _ agent.Element = (*Element)(nil)

// Tag returns the lower-case tag name.
func (e *Element) Tag() string { return strings.ToLower(e.n.Data) }

// Attr returns an attribute value.
func (e *Element) Attr(name string) (string, bool) { return getAttr(e.n, name) }

func (e *Element) HasAttr(name string) bool { return hasAttr(e.n, name) }

func (e *Element) SetAttr(name, value string) {
	setAttr(e.n, name, value)
	e.doc.record(e.n, protocol.Patch{Op: protocol.PatchSetAttr, Name: name, Value: value})
}

func (e *Element) RemoveAttr(name string) {
	if removeAttr(e.n, name) {
		e.doc.record(e.n, protocol.Patch{Op: protocol.PatchRemoveAttr, Name: name})
	}
}

// Style returns the inline declaration for prop.
func (e *Element) Style(prop string) string {
	raw, _ := getAttr(e.n, "style")
	d, _ := lookup(parseInline(raw), prop)
	return d.value
}

// SetStyle writes one inline declaration; an empty value removes it and an
// emptied style attribute is dropped.
func (e *Element) SetStyle(prop, value string) {
	raw, _ := getAttr(e.n, "style")
	decls := setDeclaration(parseInline(raw), prop, strings.TrimSpace(value))
	if len(decls) == 0 {
		e.RemoveAttr("style")
		return
	}
	e.SetAttr("style", serializeInline(decls))
}

// Children classifies the element's child nodes.
func (e *Element) Children() []agent.Child {
	var out []agent.Child
	for c := e.n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			out = append(out, agent.Child{Kind: agent.ChildText})
		case html.ElementNode:
			out = append(out, agent.Child{Kind: agent.ChildElement, Tag: strings.ToLower(c.Data)})
		default:
			out = append(out, agent.Child{Kind: agent.ChildOther})
		}
	}
	return out
}

// InnerText returns the rendered text with <br> as newlines. Script and
// style contents are skipped.
func (e *Element) InnerText() string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch {
			case c.Type == html.TextNode:
				b.WriteString(c.Data)
			case c.Type == html.ElementNode && c.DataAtom == atom.Br:
				b.WriteByte('\n')
			case c.Type == html.ElementNode && (c.DataAtom == atom.Script || c.DataAtom == atom.Style):
			case c.Type == html.ElementNode:
				collect(c)
			}
		}
	}
	collect(e.n)
	return b.String()
}

// SetInnerText replaces all children with text, newlines becoming <br>.
func (e *Element) SetInnerText(text string) {
	removeChildren(e.n)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			e.n.AppendChild(&html.Node{Type: html.ElementNode, Data: "br", DataAtom: atom.Br})
		}
		if line != "" {
			e.n.AppendChild(&html.Node{Type: html.TextNode, Data: line})
		}
	}
	e.doc.rulesSet = false
	e.doc.forget()
	e.doc.record(e.n, protocol.Patch{Op: protocol.PatchText, Value: text})
}

// SetInnerHTML replaces all children with the parsed markup.
func (e *Element) SetInnerHTML(markup string) error {
	nodes, err := html.ParseFragment(strings.NewReader(markup), e.n)
	if err != nil {
		return err
	}
	removeChildren(e.n)
	for _, n := range nodes {
		e.n.AppendChild(n)
	}
	if e.n != e.doc.overlay {
		e.doc.rulesSet = false
		e.doc.forget()
	}
	e.doc.record(e.n, protocol.Patch{Op: protocol.PatchHTML, Value: markup})
	return nil
}

// Closest reports whether e or an ancestor carries attr.
func (e *Element) Closest(attr string) bool {
	for n := e.n; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && hasAttr(n, attr) {
			return true
		}
	}
	return false
}

// Connected reports whether e is still attached to its document.
func (e *Element) Connected() bool {
	for n := e.n; n != nil; n = n.Parent {
		if n == e.doc.root {
			return true
		}
	}
	return false
}

// Remove detaches e from its parent.
func (e *Element) Remove() {
	if e.n.Parent != nil {
		e.n.Parent.RemoveChild(e.n)
	}
}

func removeChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}
