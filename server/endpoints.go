package server

import (
	"bytes"
	"context"
	"strings"

	"github.com/hazyhaar/farmshift/dom"
	"github.com/hazyhaar/farmshift/kit"
	"github.com/hazyhaar/farmshift/scan"
	"github.com/hazyhaar/farmshift/search"
	"github.com/hazyhaar/farmshift/sink"
)

// RewriteRequest is the input of a one-shot rewrite. HTML wins over URL.
type RewriteRequest struct {
	Provider string `json:"provider"`
	HTML     string `json:"html,omitempty"`
	URL      string `json:"url,omitempty"`
	Format   string `json:"format,omitempty"` // html | md | results
}

// RewriteResponse carries the rewritten output and what changed.
type RewriteResponse struct {
	Output string         `json:"output"`
	Format string         `json:"format"`
	Report *search.Report `json:"report"`
}

func (s *Server) rewriteEndpoint(ctx context.Context, req any) (any, error) {
	r := req.(*RewriteRequest)
	if r.Format == "" {
		r.Format = "html"
	}
	if !validFormat(r.Format) {
		return nil, badRequest("unknown format %q", r.Format)
	}
	e, err := s.Engine(r.Provider)
	if err != nil {
		return nil, err
	}

	body := []byte(r.HTML)
	if len(body) == 0 {
		if r.URL == "" {
			return nil, badRequest("html or url required")
		}
		if s.source == nil {
			return nil, badRequest("page fetching is disabled")
		}
		snap, err := s.source.Snapshot(ctx, r.URL, "")
		if err != nil {
			return nil, err
		}
		body = snap.HTML
	}

	doc, err := dom.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, badRequest("%v", err)
	}
	rep, err := e.Invoke(ctx, doc, nil)
	if err != nil {
		return nil, err
	}

	ev := sink.NewEvent(sink.TypeRewrite, "", rep)
	ev.PageURL = r.URL
	if err := s.sink.Send(ctx, ev); err != nil {
		s.logger.Warn("server: sink", "error", err)
	}

	resp := &RewriteResponse{Format: r.Format, Report: rep}
	switch r.Format {
	case "md":
		resp.Output, err = s.preview.Page(doc, r.URL)
	case "results":
		resp.Output, err = s.preview.Results(doc, r.URL)
	default:
		resp.Output = doc.String()
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// LookupRequest asks which site a URL belongs to.
type LookupRequest struct {
	URL string `json:"url"`
}

// LookupResponse describes the matched site.
type LookupResponse struct {
	Matched      bool   `json:"matched"`
	Site         string `json:"site,omitempty"`
	Name         string `json:"name,omitempty"`
	RootDomain   string `json:"root_domain,omitempty"`
	CanonicalURL string `json:"canonical_url,omitempty"`
	Rewritten    string `json:"rewritten,omitempty"`
	BannerOnly   bool   `json:"banner_only,omitempty"`
}

func (s *Server) lookupEndpoint(_ context.Context, req any) (any, error) {
	r := req.(*LookupRequest)
	if r.URL == "" {
		return nil, badRequest("url required")
	}
	sub, root, ok := scan.SplitHost(r.URL)
	if !ok {
		return &LookupResponse{}, nil
	}

	cat := s.catalog.Load()
	site := s.index().Lookup(root, sub)
	if site == nil {
		// Banner-only sites are not indexed but are still known.
		for _, c := range cat.Sites {
			if c.BannerOnly && containsFold(c.LegacyIDs(), sub) {
				return &LookupResponse{Matched: true, Site: c.ID, Name: c.DisplayName(), BannerOnly: true}, nil
			}
		}
		return &LookupResponse{}, nil
	}

	rw := search.NewRewriter(search.Target{Site: site, Origins: cat.Origins, RootDomain: root})
	return &LookupResponse{
		Matched:      true,
		Site:         site.ID,
		Name:         site.DisplayName(),
		RootDomain:   cat.Origins.Canonicalize(root),
		CanonicalURL: site.CanonicalURL(cat.Origins),
		Rewritten:    rw.Host(r.URL),
	}, nil
}

func containsFold(ids []string, sub string) bool {
	for _, id := range ids {
		if strings.EqualFold(id, sub) {
			return true
		}
	}
	return false
}

// Rewrite runs the rewrite endpoint outside any network transport.
func (s *Server) Rewrite(ctx context.Context, req *RewriteRequest) (*RewriteResponse, error) {
	resp, err := s.rewrite(kit.WithTransport(ctx, "cli"), req)
	if err != nil {
		return nil, err
	}
	return resp.(*RewriteResponse), nil
}
