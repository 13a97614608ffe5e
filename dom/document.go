// Package dom holds a parsed HTML document and the small set of mutation
// primitives the rewrite engine is allowed to use: attribute changes, text
// changes, element insertion/removal/replacement and class changes.
//
// Every change goes through Document so that registered observers receive
// mutation records, the same way a browser MutationObserver would. A Document
// is owned by a single goroutine; it is not safe for concurrent use.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is a mutable HTML tree with mutation observation.
type Document struct {
	root      *html.Node
	observers []*Observer
}

// Parse reads a complete HTML document.
func Parse(r io.Reader) (*Document, error) {
	gq, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	if len(gq.Nodes) == 0 {
		return nil, fmt.Errorf("dom: parse: empty document")
	}
	return &Document{root: gq.Nodes[0]}, nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// New wraps an existing tree.
func New(root *html.Node) *Document {
	return &Document{root: root}
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

// Body returns the <body> element, or the root when there is none.
func (d *Document) Body() *html.Node {
	if b := findAtom(d.root, atom.Body); b != nil {
		return b
	}
	return d.root
}

// Selection exposes the tree as a read-only goquery selection.
func (d *Document) Selection() *goquery.Selection {
	return goquery.NewDocumentFromNode(d.root).Selection
}

// Render serialises the document.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// String renders the document, or returns "" when rendering fails.
func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

// Reset replaces the whole tree. Observers registered on the previous tree
// are disconnected: their targets no longer belong to this document.
func (d *Document) Reset(root *html.Node) {
	for _, o := range append([]*Observer(nil), d.observers...) {
		o.Disconnect()
	}
	d.root = root
}

// ParseFragment parses markup in the context of parent (or <body> when
// parent is nil or not an element).
func (d *Document) ParseFragment(parent *html.Node, markup string) ([]*html.Node, error) {
	ctx := parent
	if ctx == nil || ctx.Type != html.ElementNode {
		ctx = &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), ctx)
	if err != nil {
		return nil, fmt.Errorf("dom: parse fragment: %w", err)
	}
	return nodes, nil
}

// OuterHTML renders a single node and its subtree.
func OuterHTML(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return buf.String()
}

func findAtom(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findAtom(c, a); found != nil {
			return found
		}
	}
	return nil
}
