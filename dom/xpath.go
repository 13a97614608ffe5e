package dom

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// ErrBadXPath is returned when a path does not resolve in the document.
var ErrBadXPath = errors.New("dom: xpath does not resolve")

// Step is one element step of a positional XPath ("div[3]").
type Step struct {
	Tag   string
	Index int // 1-based position among same-tag siblings
}

// ParseXPath splits "/html/body/div[2]/span" into steps. A trailing
// "text()" or "comment()" step is returned separately as kind.
func ParseXPath(path string) (steps []Step, kind string, err error) {
	if !strings.HasPrefix(path, "/") {
		return nil, "", fmt.Errorf("%w: %q", ErrBadXPath, path)
	}
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		if part == "" {
			continue
		}
		if part == "text()" || part == "comment()" {
			kind = part
			continue
		}
		s := Step{Tag: strings.ToLower(part), Index: 1}
		if i := strings.IndexByte(part, '['); i >= 0 && strings.HasSuffix(part, "]") {
			n, convErr := strconv.Atoi(part[i+1 : len(part)-1])
			if convErr != nil || n < 1 {
				return nil, "", fmt.Errorf("%w: %q", ErrBadXPath, path)
			}
			s.Tag = strings.ToLower(part[:i])
			s.Index = n
		}
		steps = append(steps, s)
	}
	return steps, kind, nil
}

// Resolve walks a positional XPath from the document root.
func (d *Document) Resolve(path string) (*html.Node, error) {
	steps, kind, err := ParseXPath(path)
	if err != nil {
		return nil, err
	}
	n := d.root
	for _, s := range steps {
		n = nthChild(n, s)
		if n == nil {
			return nil, fmt.Errorf("%w: %q", ErrBadXPath, path)
		}
	}
	switch kind {
	case "text()":
		return firstChildOfType(n, html.TextNode), nil
	case "comment()":
		return firstChildOfType(n, html.CommentNode), nil
	}
	return n, nil
}

// XPath computes the positional path of n. Indexes are only written when
// a parent holds several children with the same tag.
func XPath(n *html.Node) string {
	switch {
	case n == nil || n.Type == html.DocumentNode:
		return ""
	case n.Type == html.TextNode:
		return XPath(n.Parent) + "/text()"
	case n.Type == html.CommentNode:
		return XPath(n.Parent) + "/comment()"
	case n.Type != html.ElementNode:
		return XPath(n.Parent)
	}
	prefix := XPath(n.Parent)
	if n.Parent == nil {
		return "/" + n.Data
	}
	idx, total := 0, 0
	for c := n.Parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == n.Data {
			total++
			if c == n {
				idx = total
			}
		}
	}
	if total > 1 {
		return fmt.Sprintf("%s/%s[%d]", prefix, n.Data, idx)
	}
	return prefix + "/" + n.Data
}

func nthChild(n *html.Node, s Step) *html.Node {
	seen := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == s.Tag {
			seen++
			if seen == s.Index {
				return c
			}
		}
	}
	return nil
}

// NthChild returns the index-th (1-based) element child of n named tag.
func NthChild(n *html.Node, tag string, index int) *html.Node {
	return nthChild(n, Step{Tag: strings.ToLower(tag), Index: index})
}

func firstChildOfType(n *html.Node, t html.NodeType) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == t {
			return c
		}
	}
	return nil
}
