package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// detach removes n from its current parent, recording the removal.
func (d *Document) detach(n *html.Node) {
	p := n.Parent
	if p == nil {
		return
	}
	p.RemoveChild(n)
	d.queue(Record{Type: ChildList, Target: p, Removed: []*html.Node{n}})
}

// AppendChild adds child as the last child of parent, moving it if it is
// already attached elsewhere.
func (d *Document) AppendChild(parent, child *html.Node) {
	d.InsertBefore(parent, child, nil)
}

// InsertBefore inserts child before ref under parent; a nil ref appends.
func (d *Document) InsertBefore(parent, child, ref *html.Node) {
	if parent == nil || child == nil || child == ref || Contains(child, parent) {
		return
	}
	if ref != nil && ref.Parent != parent {
		ref = nil
	}
	d.detach(child)
	parent.InsertBefore(child, ref)
	d.queue(Record{Type: ChildList, Target: parent, Added: []*html.Node{child}})
}

// Prepend inserts child as the first child of parent.
func (d *Document) Prepend(parent, child *html.Node) {
	if parent == nil {
		return
	}
	d.InsertBefore(parent, child, parent.FirstChild)
}

// Remove detaches n from the tree.
func (d *Document) Remove(n *html.Node) {
	if n == nil {
		return
	}
	d.detach(n)
}

// Replace puts repl where old is and detaches old. It reports false when
// old is not attached or repl contains old.
func (d *Document) Replace(old, repl *html.Node) bool {
	if old == nil || repl == nil || old.Parent == nil || Contains(repl, old) {
		return false
	}
	d.detach(repl)
	p := old.Parent
	p.InsertBefore(repl, old)
	p.RemoveChild(old)
	d.queue(Record{Type: ChildList, Target: p, Added: []*html.Node{repl}, Removed: []*html.Node{old}})
	return true
}

// SetAttr sets key to val on n.
func (d *Document) SetAttr(n *html.Node, key, val string) {
	if n == nil || n.Type != html.ElementNode {
		return
	}
	old, had := Attr(n, key)
	if had && old == val {
		return
	}
	if had {
		for i := range n.Attr {
			if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
				n.Attr[i].Val = val
				break
			}
		}
	} else {
		n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
	}
	d.queue(Record{Type: Attributes, Target: n, AttributeName: key, OldValue: old})
}

// RemoveAttr removes key from n when present.
func (d *Document) RemoveAttr(n *html.Node, key string) {
	if n == nil {
		return
	}
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr = append(n.Attr[:i:i], n.Attr[i+1:]...)
			d.queue(Record{Type: Attributes, Target: n, AttributeName: key, OldValue: a.Val})
			return
		}
	}
}

// AddClass appends cls to the class list of n.
func (d *Document) AddClass(n *html.Node, cls string) {
	if n == nil || HasClass(n, cls) {
		return
	}
	classes := strings.TrimSpace(AttrOr(n, "class", ""))
	if classes != "" {
		classes += " "
	}
	d.SetAttr(n, "class", classes+cls)
}

// Hide sets display: none on n, keeping any other inline style.
func (d *Document) Hide(n *html.Node) {
	style := strings.TrimSpace(AttrOr(n, "style", ""))
	if strings.Contains(style, "display: none") {
		return
	}
	if style != "" && !strings.HasSuffix(style, ";") {
		style += ";"
	}
	if style != "" {
		style += " "
	}
	d.SetAttr(n, "style", style+"display: none;")
}

// SetData changes the content of a text or comment node.
func (d *Document) SetData(n *html.Node, data string) {
	if n == nil || n.Data == data {
		return
	}
	if n.Type != html.TextNode && n.Type != html.CommentNode {
		return
	}
	old := n.Data
	n.Data = data
	d.queue(Record{Type: CharacterData, Target: n, OldValue: old})
}

// SetTextContent replaces every child of n with a single text node.
func (d *Document) SetTextContent(n *html.Node, text string) {
	if n == nil {
		return
	}
	var removed []*html.Node
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		removed = append(removed, c)
		c = next
	}
	var added []*html.Node
	if text != "" {
		t := &html.Node{Type: html.TextNode, Data: text}
		n.AppendChild(t)
		added = append(added, t)
	}
	if len(removed) > 0 || len(added) > 0 {
		d.queue(Record{Type: ChildList, Target: n, Added: added, Removed: removed})
	}
}

// ReplaceText applies fn to every text node under n, descending through
// nested inline elements. It returns the number of text nodes changed.
func (d *Document) ReplaceText(n *html.Node, fn func(string) string) int {
	if n == nil {
		return 0
	}
	if n.Type == html.TextNode {
		if out := fn(n.Data); out != n.Data {
			d.SetData(n, out)
			return 1
		}
		return 0
	}
	changed := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode, html.ElementNode:
			changed += d.ReplaceText(c, fn)
		}
	}
	return changed
}
