package search

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/farmshift/catalog"
	"github.com/hazyhaar/farmshift/dom"
	"github.com/hazyhaar/farmshift/idgen"
	"github.com/hazyhaar/farmshift/index"
	"github.com/hazyhaar/farmshift/livewatch"
	"github.com/hazyhaar/farmshift/metrics"
	"github.com/hazyhaar/farmshift/scan"
	"github.com/hazyhaar/farmshift/settings"
)

// Reasons a matched link is not transformed.
const (
	SkipMode        = "mode"
	SkipNoContainer = "no_container"
	SkipDetached    = "detached"
	SkipMarked      = "marked"
)

// Scan paths.
const (
	PathIndexed  = "indexed"
	PathFallback = "fallback"
)

// Report summarises one invocation.
type Report struct {
	RunID       string                `json:"run_id"`
	Provider    string                `json:"provider"`
	Path        string                `json:"path,omitempty"`
	Supported   bool                  `json:"supported"`
	Hits        int                   `json:"hits"`
	Transformed map[settings.Mode]int `json:"transformed"`
	Skipped     map[string]int        `json:"skipped"`
	// Sites lists the ids of transformed sites in first-seen order.
	Sites []string `json:"sites"`
}

// Total counts transformed containers.
func (r *Report) Total() int {
	n := 0
	for _, c := range r.Transformed {
		n += c
	}
	return n
}

// Merge adds the counters of o to r. Sites keep first-seen order.
func (r *Report) Merge(o *Report) {
	if o == nil {
		return
	}
	r.Supported = r.Supported || o.Supported
	if r.Path == "" {
		r.Path = o.Path
	}
	r.Hits += o.Hits
	if r.Transformed == nil {
		r.Transformed = make(map[settings.Mode]int)
	}
	if r.Skipped == nil {
		r.Skipped = make(map[string]int)
	}
	for m, n := range o.Transformed {
		r.Transformed[m] += n
	}
	for k, n := range o.Skipped {
		r.Skipped[k] += n
	}
	for _, id := range o.Sites {
		if !slices.Contains(r.Sites, id) {
			r.Sites = append(r.Sites, id)
		}
	}
}

// Engine runs one provider adapter over documents. It is safe for
// concurrent use across documents; a single document must only be handed
// to one Invoke at a time.
type Engine struct {
	provider Provider
	catalog  atomic.Pointer[catalog.Catalog]
	settings settings.Source
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu       sync.Mutex
	idx      *index.Index
	idxKey   string
	idxBuilt int
}

// Option configures an Engine.
type Option func(*Engine)

// WithSettings sets the settings source. Default: settings.Static with
// defaults.
func WithSettings(src settings.Source) Option {
	return func(e *Engine) { e.settings = src }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics enables Prometheus collection.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an engine for provider p over cat.
func NewEngine(p Provider, cat *catalog.Catalog, opts ...Option) *Engine {
	e := &Engine{provider: p}
	e.catalog.Store(cat)
	for _, o := range opts {
		o(e)
	}
	if e.settings == nil {
		e.settings = settings.Static{}
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Provider returns the provider id.
func (e *Engine) Provider() string { return e.provider.ID }

// Catalog returns the catalog in use.
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog.Load() }

// SetCatalog swaps the catalog. Invocations already running keep the one
// they started with.
func (e *Engine) SetCatalog(c *catalog.Catalog) {
	e.catalog.Store(c)
}

// Index returns the domain index for cat with disabled sites removed. The
// last index is kept and reused while the catalog and the disabled set are
// unchanged.
func (e *Engine) Index(cat *catalog.Catalog, disabled []string) *index.Index {
	sorted := slices.Clone(disabled)
	slices.Sort(sorted)
	key := fmt.Sprintf("%d|%s", cat.Generation(), strings.Join(sorted, ","))

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.idx != nil && e.idxKey == key {
		return e.idx
	}
	e.idx = index.Build(cat, disabled)
	e.idxKey = key
	e.idxBuilt++
	return e.idx
}

// Invoke scans root (the whole document when nil) and transforms every
// matched result container that is not marked yet. It fails only when a
// module lacks a transformation for a selected mode.
func (e *Engine) Invoke(ctx context.Context, doc *dom.Document, root *html.Node) (*Report, error) {
	start := time.Now()
	if root == nil {
		root = doc.Root()
	}
	cat := e.catalog.Load()
	rep := &Report{
		RunID:       idgen.Run(),
		Provider:    e.provider.ID,
		Transformed: make(map[settings.Mode]int),
		Skipped:     make(map[string]int),
	}
	log := e.logger.With("provider", e.provider.ID, "run_id", rep.RunID)

	view, err := e.settings.Load(ctx)
	if err != nil {
		log.Warn("search: settings unavailable, using defaults", "error", err)
		view = settings.Defaults()
	}
	if !e.anyActive(view, cat) {
		log.Debug("search: no active mode")
		return rep, nil
	}

	mod := e.provider.New()
	mod.Initialise(doc)
	if !mod.IsSupported(doc) {
		log.Debug("search: page not supported")
		return rep, nil
	}
	rep.Supported = true

	var hits iter.Seq[scan.Hit]
	if view.Indexed() {
		rep.Path = PathIndexed
		hits = scan.Indexed(root, e.Index(cat, view.DisabledSites))
	} else {
		rep.Path = PathFallback
		hits = scan.Fallback(root, cat, view.IsDisabled)
	}

	handlers := make(map[settings.Mode]func(Target) error, 3)
	seen := make(map[string]bool)
	for hit := range hits {
		rep.Hits++
		mode := view.ModeFor(e.provider.ID, hit.Site.ID)
		do, ok := handlers[mode]
		if !ok {
			do = handlerFor(mod, mode)
			handlers[mode] = do
		}
		if do == nil {
			e.skip(rep, SkipMode)
			continue
		}

		container := mod.ResolveContainer(hit.Element)
		switch {
		case container == nil:
			e.skip(rep, SkipNoContainer)
			continue
		case container.Parent == nil:
			e.skip(rep, SkipDetached)
			continue
		case dom.AttrOr(container, MarkerAttr, "") != "":
			e.skip(rep, SkipMarked)
			continue
		}

		t := Target{
			Doc:        doc,
			Site:       hit.Site,
			Origins:    cat.Origins,
			RootDomain: hit.RootDomain,
			Container:  container,
			Link:       hit.Element,
		}
		if err := do(t); err != nil {
			return rep, fmt.Errorf("search: %s: %s %s: %w", mod.ID(), mode, hit.Site.ID, err)
		}
		doc.SetAttr(container, MarkerAttr, "true")

		rep.Transformed[mode]++
		e.metrics.IncTransformed(e.provider.ID, string(mode))
		if !seen[hit.Site.ID] {
			seen[hit.Site.ID] = true
			rep.Sites = append(rep.Sites, hit.Site.ID)
		}
		log.Debug("search: transformed", "site", hit.Site.ID, "mode", mode, "root_domain", hit.RootDomain)
	}

	elapsed := time.Since(start)
	e.metrics.ObserveScan(e.provider.ID, rep.Path, elapsed)
	if rep.Total() > 0 {
		log.Info("search: invoke", "hits", rep.Hits, "transformed", rep.Total(), "path", rep.Path, "duration", elapsed)
	}
	return rep, nil
}

// anyActive reports whether at least one site could be dispatched.
func (e *Engine) anyActive(v *settings.View, cat *catalog.Catalog) bool {
	if active(v.ModeFor(e.provider.ID, "")) {
		return true
	}
	for id := range v.SiteModes {
		if active(v.ModeFor(e.provider.ID, id)) && cat.Site(id) != nil {
			return true
		}
	}
	return false
}

func active(m settings.Mode) bool {
	return m == settings.ModeFilter || m == settings.ModeRewrite || m == settings.ModeDisarm
}

// handlerFor maps a mode to the module's transformation. none and unknown
// modes have no handler.
func handlerFor(mod Module, m settings.Mode) func(Target) error {
	switch m {
	case settings.ModeFilter:
		return mod.Hide
	case settings.ModeRewrite:
		return mod.Replace
	case settings.ModeDisarm:
		return mod.Disarm
	}
	return nil
}

func (e *Engine) skip(rep *Report, reason string) {
	rep.Skipped[reason]++
	e.metrics.IncSkipped(e.provider.ID, reason)
}

// Watch follows the provider's live-update area on doc and invokes the
// engine on every batch it loads, passing each report to onReport when it
// is not nil. It returns nil when the provider has no live updates. The
// caller must Stop the watcher and drive doc.Deliver.
func (e *Engine) Watch(ctx context.Context, doc *dom.Document, onReport func(*Report)) *livewatch.Watcher {
	lu, ok := e.provider.New().(LiveUpdater)
	if !ok {
		return nil
	}
	return livewatch.Watch(doc, lu.LiveSpec(), func(subtree *html.Node) {
		rep, err := e.Invoke(ctx, doc, subtree)
		if err != nil {
			e.logger.Error("search: live update", "provider", e.provider.ID, "error", err)
		}
		if onReport != nil && rep != nil {
			onReport(rep)
		}
	})
}
