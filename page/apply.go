package page

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/farmshift/dom"
	"github.com/hazyhaar/farmshift/mutation"
)

// applyRecord performs one mutation on doc. It returns the nodes inserted,
// if any, and whether the whole document was replaced.
func applyRecord(doc *dom.Document, rec mutation.Record) (inserted []*html.Node, reset bool, err error) {
	switch rec.Op {
	case mutation.OpInsert:
		inserted, err = insert(doc, rec)
		return inserted, false, err

	case mutation.OpRemove:
		n, err := doc.Resolve(rec.XPath)
		if err != nil {
			return nil, false, err
		}
		if n == nil || n.Parent == nil {
			return nil, false, fmt.Errorf("%w: %q", dom.ErrBadXPath, rec.XPath)
		}
		doc.Remove(n)

	case mutation.OpText:
		n, err := doc.Resolve(rec.XPath)
		if err != nil {
			return nil, false, err
		}
		switch {
		case n == nil:
			return nil, false, fmt.Errorf("%w: %q", dom.ErrBadXPath, rec.XPath)
		case n.Type == html.TextNode || n.Type == html.CommentNode:
			doc.SetData(n, rec.Value)
		default:
			doc.SetTextContent(n, rec.Value)
		}

	case mutation.OpAttr, mutation.OpAttrDel:
		n, err := doc.Resolve(rec.XPath)
		if err != nil {
			return nil, false, err
		}
		if n == nil || n.Type != html.ElementNode {
			return nil, false, fmt.Errorf("%w: %q", dom.ErrBadXPath, rec.XPath)
		}
		if rec.Op == mutation.OpAttr {
			doc.SetAttr(n, rec.Name, rec.Value)
		} else {
			doc.RemoveAttr(n, rec.Name)
		}

	case mutation.OpDocReset:
		fresh, err := dom.ParseString(rec.HTML)
		if err != nil {
			return nil, false, err
		}
		doc.Reset(fresh.Root())
		return nil, true, nil

	default:
		return nil, false, fmt.Errorf("%w: unknown op %q", mutation.ErrInvalid, rec.Op)
	}
	return nil, false, nil
}

// insert places the fragment so that it ends up at rec.XPath: under the
// parent named by every step but the last, before the sibling currently
// holding that position.
func insert(doc *dom.Document, rec mutation.Record) ([]*html.Node, error) {
	steps, kind, err := dom.ParseXPath(rec.XPath)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: %q", dom.ErrBadXPath, rec.XPath)
	}

	parentSteps, last := steps, dom.Step{}
	if kind == "" {
		parentSteps, last = steps[:len(steps)-1], steps[len(steps)-1]
	}
	parent := doc.Root()
	for _, s := range parentSteps {
		if parent = dom.NthChild(parent, s.Tag, s.Index); parent == nil {
			return nil, fmt.Errorf("%w: %q", dom.ErrBadXPath, rec.XPath)
		}
	}

	if kind != "" {
		data := rec.Value
		if data == "" {
			data = rec.HTML
		}
		n := &html.Node{Type: html.TextNode, Data: data}
		if kind == "comment()" {
			n.Type = html.CommentNode
		}
		doc.AppendChild(parent, n)
		return []*html.Node{n}, nil
	}

	nodes, err := doc.ParseFragment(parent, rec.HTML)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: empty fragment for %q", mutation.ErrInvalid, rec.XPath)
	}
	if tag := strings.ToLower(rec.Tag); tag != "" && tag != last.Tag {
		return nil, fmt.Errorf("%w: tag %q does not match %q", mutation.ErrInvalid, rec.Tag, rec.XPath)
	}
	ref := dom.NthChild(parent, last.Tag, last.Index)
	for _, n := range nodes {
		doc.InsertBefore(parent, n, ref)
	}
	return nodes, nil
}
