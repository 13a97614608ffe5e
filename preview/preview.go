// Package preview renders rewritten result pages as Markdown, either whole
// or only the result containers the engine touched.
package preview

import (
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"github.com/hazyhaar/farmshift/dom"
	"github.com/hazyhaar/farmshift/search"
)

// Renderer converts HTML to Markdown.
type Renderer struct {
	conv *converter.Converter
}

// New creates a Renderer with the commonmark and table plugins.
func New() *Renderer {
	return &Renderer{conv: converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)}
}

// Page converts the whole document. Relative links resolve against
// pageURL when it is set.
func (r *Renderer) Page(doc *dom.Document, pageURL string) (string, error) {
	return r.convert(doc.String(), pageURL)
}

// Results converts each marked result container and joins them with a
// horizontal rule.
func (r *Renderer) Results(doc *dom.Document, pageURL string) (string, error) {
	var parts []string
	for _, c := range dom.QueryAll(doc.Root(), "["+search.MarkerAttr+"]") {
		md, err := r.convert(dom.OuterHTML(c), pageURL)
		if err != nil {
			return "", err
		}
		if md = strings.TrimSpace(md); md != "" {
			parts = append(parts, md)
		}
	}
	return strings.Join(parts, "\n\n---\n\n"), nil
}

func (r *Renderer) convert(markup, pageURL string) (string, error) {
	var (
		md  string
		err error
	)
	if pageURL != "" {
		md, err = r.conv.ConvertString(markup, converter.WithDomain(pageURL))
	} else {
		md, err = r.conv.ConvertString(markup)
	}
	if err != nil {
		return "", fmt.Errorf("preview: convert: %w", err)
	}
	return md, nil
}
