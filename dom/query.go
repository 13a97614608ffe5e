package dom

import (
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// compiled caches parsed selector groups. Provider selectors and the
// combined domain selector are reused on every scan.
var compiled sync.Map // string -> cascadia.SelectorGroup

// Compile parses a comma-separated selector group, caching the result.
func Compile(sel string) (cascadia.SelectorGroup, error) {
	if v, ok := compiled.Load(sel); ok {
		return v.(cascadia.SelectorGroup), nil
	}
	g, err := cascadia.ParseGroup(sel)
	if err != nil {
		return nil, err
	}
	compiled.Store(sel, g)
	return g, nil
}

// QueryAll returns the descendants of root matching sel, in document order.
// An empty or unparsable selector matches nothing.
func QueryAll(root *html.Node, sel string) []*html.Node {
	if root == nil || sel == "" {
		return nil
	}
	g, err := Compile(sel)
	if err != nil {
		return nil
	}
	return cascadia.QueryAll(root, g)
}

// Query returns the first descendant of root matching sel.
func Query(root *html.Node, sel string) *html.Node {
	if root == nil || sel == "" {
		return nil
	}
	g, err := Compile(sel)
	if err != nil {
		return nil
	}
	return cascadia.Query(root, g)
}

// Matches reports whether n itself matches sel.
func Matches(n *html.Node, sel string) bool {
	if n == nil || n.Type != html.ElementNode || sel == "" {
		return false
	}
	g, err := Compile(sel)
	if err != nil {
		return false
	}
	return g.Match(n)
}

// Closest returns n or its nearest ancestor element matching sel.
func Closest(n *html.Node, sel string) *html.Node {
	for ; n != nil; n = n.Parent {
		if Matches(n, sel) {
			return n
		}
	}
	return nil
}

// ParentElement returns the parent of n when it is an element.
func ParentElement(n *html.Node) *html.Node {
	if n == nil || n.Parent == nil || n.Parent.Type != html.ElementNode {
		return nil
	}
	return n.Parent
}

// ClimbTo locates an ancestor of n matching sel. With maxDepth < 0 it is
// Closest (n included). Otherwise at most maxDepth strict ancestors are
// inspected; running out of budget yields nil.
func ClimbTo(n *html.Node, sel string, maxDepth int) *html.Node {
	if n == nil || ParentElement(n) == nil {
		return nil
	}
	if maxDepth < 0 {
		return Closest(n, sel)
	}
	for i := 0; i < maxDepth; i++ {
		n = ParentElement(n)
		if n == nil {
			return nil
		}
		if Matches(n, sel) {
			return n
		}
	}
	return nil
}

// Contains reports whether n is ancestor or self of other.
func Contains(n, other *html.Node) bool {
	for ; other != nil; other = other.Parent {
		if other == n {
			return true
		}
	}
	return false
}

// Follows reports whether a comes after b in document order without being
// inside b. Nodes from different trees never follow each other.
func Follows(a, b *html.Node) bool {
	if a == nil || b == nil || a == b || Contains(b, a) || Contains(a, b) {
		return false
	}
	pa, pb := ancestry(a), ancestry(b)
	if pa[0] != pb[0] {
		return false
	}
	i := 0
	for i < len(pa) && i < len(pb) && pa[i] == pb[i] {
		i++
	}
	// pa[i] and pb[i] are siblings under pa[i-1].
	for s := pb[i].NextSibling; s != nil; s = s.NextSibling {
		if s == pa[i] {
			return true
		}
	}
	return false
}

// ancestry lists the path from the tree root down to n.
func ancestry(n *html.Node) []*html.Node {
	var path []*html.Node
	for ; n != nil; n = n.Parent {
		path = append(path, n)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// Attr returns the value of key on n.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// AttrOr returns the value of key on n, or def when absent.
func AttrOr(n *html.Node, key, def string) string {
	if v, ok := Attr(n, key); ok {
		return v
	}
	return def
}

// HasClass reports whether the class attribute of n lists cls.
func HasClass(n *html.Node, cls string) bool {
	for _, c := range strings.Fields(AttrOr(n, "class", "")) {
		if c == cls {
			return true
		}
	}
	return false
}

// IsTag reports whether n is an element named tag.
func IsTag(n *html.Node, tag string) bool {
	return n != nil && n.Type == html.ElementNode && strings.EqualFold(n.Data, tag)
}

// TextContent concatenates every text node under n.
func TextContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Type {
			case html.TextNode:
				sb.WriteString(c.Data)
			case html.ElementNode:
				walk(c)
			}
		}
	}
	walk(n)
	return sb.String()
}
