// Package server exposes the rewrite engine over HTTP (chi) and MCP. Both
// transports call the same kit endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hazyhaar/farmshift/browser"
	"github.com/hazyhaar/farmshift/catalog"
	"github.com/hazyhaar/farmshift/horosafe"
	"github.com/hazyhaar/farmshift/index"
	"github.com/hazyhaar/farmshift/kit"
	"github.com/hazyhaar/farmshift/metrics"
	"github.com/hazyhaar/farmshift/mutation"
	"github.com/hazyhaar/farmshift/page"
	"github.com/hazyhaar/farmshift/preview"
	"github.com/hazyhaar/farmshift/search"
	"github.com/hazyhaar/farmshift/settings"
	"github.com/hazyhaar/farmshift/shield"
	"github.com/hazyhaar/farmshift/sink"
)

// Options configures a Server.
type Options struct {
	Providers []search.Provider
	Catalog   *catalog.Catalog
	Settings  settings.Source
	Logger    *slog.Logger

	// Metrics and Gatherer back /metrics; both may be nil.
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	Sink       sink.Sink
	Source     browser.Source // fetches pages for rewrite requests carrying a URL
	MaxBody    int64
	RateLimits []shield.RateRule
}

// Server holds one engine per provider and the live page sessions.
type Server struct {
	providers *search.Registry
	engines   map[string]*search.Engine
	catalog   atomic.Pointer[catalog.Catalog]
	pages     *page.Registry
	preview   *preview.Renderer
	source    browser.Source
	sink      sink.Sink
	logger    *slog.Logger
	gatherer  prometheus.Gatherer
	maxBody   int64
	limiter   *shield.RateLimiter

	// Lookup index, memoised per catalog generation apart from the
	// engines' filtered ones.
	idxMu  sync.Mutex
	idx    *index.Index
	idxGen uint64

	rewrite kit.Endpoint
	lookup  kit.Endpoint
}

// New builds a server.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Sink == nil {
		opts.Sink = sink.Discard{}
	}
	s := &Server{
		providers: search.NewRegistry(opts.Providers...),
		engines:   make(map[string]*search.Engine, len(opts.Providers)),
		preview:   preview.New(),
		source:    opts.Source,
		sink:      opts.Sink,
		logger:    opts.Logger,
		gatherer:  opts.Gatherer,
		maxBody:   opts.MaxBody,
		limiter:   shield.NewRateLimiter(opts.RateLimits),
	}
	s.catalog.Store(opts.Catalog)
	for _, p := range opts.Providers {
		s.engines[p.ID] = search.NewEngine(p, opts.Catalog,
			search.WithSettings(opts.Settings),
			search.WithLogger(opts.Logger),
			search.WithMetrics(opts.Metrics),
		)
	}
	s.pages = page.NewRegistry(s.Engine,
		page.WithSink(opts.Sink),
		page.WithLogger(opts.Logger),
		page.WithMetrics(opts.Metrics),
	)
	s.rewrite = kit.Chain(kit.Logging(opts.Logger, "rewrite"))(s.rewriteEndpoint)
	s.lookup = kit.Chain(kit.Logging(opts.Logger, "lookup"))(s.lookupEndpoint)
	return s
}

// Engine returns the engine for a provider id.
func (s *Server) Engine(provider string) (*search.Engine, error) {
	e, ok := s.engines[provider]
	if !ok {
		return nil, fmt.Errorf("server: %w: %q", search.ErrUnknownProvider, provider)
	}
	return e, nil
}

// Providers lists the served provider ids.
func (s *Server) Providers() []string { return s.providers.IDs() }

// Pages returns the live page registry.
func (s *Server) Pages() *page.Registry { return s.pages }

// SetCatalog swaps the catalog of every engine. Open page sessions pick
// it up on their next batch.
func (s *Server) SetCatalog(c *catalog.Catalog) {
	s.catalog.Store(c)
	for _, e := range s.engines {
		e.SetCatalog(c)
	}
}

// Close ends every page session.
func (s *Server) Close() {
	s.pages.CloseAll()
}

// index returns the full domain index, disabled sites included.
func (s *Server) index() *index.Index {
	cat := s.catalog.Load()
	s.idxMu.Lock()
	defer s.idxMu.Unlock()
	if s.idx == nil || s.idxGen != cat.Generation() {
		s.idx = index.Build(cat, nil)
		s.idxGen = cat.Generation()
	}
	return s.idx
}

// statusFor maps errors to HTTP status codes.
func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, search.ErrUnknownProvider), errors.Is(err, page.ErrNoSession):
		return http.StatusNotFound
	case errors.Is(err, page.ErrStaleBatch), errors.Is(err, page.ErrNoDocument):
		return http.StatusConflict
	case errors.Is(err, mutation.ErrInvalid), errors.Is(err, errBadRequest),
		errors.Is(err, horosafe.ErrSSRF), errors.Is(err, horosafe.ErrUnsafeScheme):
		return http.StatusBadRequest
	case errors.Is(err, search.ErrNotImplemented):
		return http.StatusNotImplemented
	case errors.Is(err, horosafe.ErrTooLarge):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

var formats = []string{"html", "md", "results"}

func validFormat(f string) bool { return slices.Contains(formats, f) }
