// Package page keeps server-side copies of live search result pages. A page
// watcher posts a snapshot, then mutation batches; each one is applied to
// the session's document and the rewrite engine runs over what changed.
package page

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/farmshift/dom"
	"github.com/hazyhaar/farmshift/livewatch"
	"github.com/hazyhaar/farmshift/metrics"
	"github.com/hazyhaar/farmshift/mutation"
	"github.com/hazyhaar/farmshift/search"
	"github.com/hazyhaar/farmshift/settings"
	"github.com/hazyhaar/farmshift/sink"
)

// Result describes one applied snapshot or batch.
type Result struct {
	PageID    string         `json:"page_id"`
	Seq       uint64         `json:"seq"`
	Applied   int            `json:"applied"`
	Unapplied int            `json:"unapplied"`
	Report    *search.Report `json:"report"`
}

// Info is a point-in-time view of a session.
type Info struct {
	ID         string         `json:"id"`
	Provider   string         `json:"provider"`
	URL        string         `json:"url,omitempty"`
	SnapshotID string         `json:"snapshot_id,omitempty"`
	Seq        uint64         `json:"seq"`
	Updated    time.Time      `json:"updated"`
	Totals     *search.Report `json:"totals"`
}

// Session mirrors one page. Its methods serialise on an internal mutex.
type Session struct {
	ID       string
	Provider string

	engine  *search.Engine
	sink    sink.Sink
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu         sync.Mutex
	doc        *dom.Document
	watcher    *livewatch.Watcher
	url        string
	snapshotID string
	seq        uint64
	totals     *search.Report
	live       *search.Report
	updated    time.Time
}

func newReport(provider string) *search.Report {
	return &search.Report{
		Provider:    provider,
		Transformed: make(map[settings.Mode]int),
		Skipped:     make(map[string]int),
	}
}

// ApplySnapshot replaces the document with snap, rewrites it in full and
// starts following the provider's live-update area.
func (s *Session) ApplySnapshot(ctx context.Context, snap *mutation.Snapshot) (*Result, error) {
	doc, err := dom.Parse(bytes.NewReader(snap.HTML))
	if err != nil {
		return nil, fmt.Errorf("page: %s: snapshot: %w", s.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopWatch()
	s.doc = doc
	s.url = snap.PageURL
	s.snapshotID = snap.ID
	s.seq = 0
	s.live = newReport(s.Provider)
	s.arm(ctx)

	rep, err := s.engine.Invoke(ctx, doc, nil)
	if err != nil {
		return nil, fmt.Errorf("page: %s: %w", s.ID, err)
	}
	doc.Deliver()
	rep.Merge(s.live)

	res := &Result{PageID: s.ID, Report: rep}
	s.finish(ctx, sink.TypeSnapshot, res)
	return res, nil
}

// ApplyBatch applies b's records in order, lets the live-update watcher
// react, then rewrites the subtrees the batch inserted. Records that do not
// resolve are counted and skipped.
func (s *Session) ApplyBatch(ctx context.Context, b *mutation.Batch) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return nil, ErrNoDocument
	}
	if b.Seq != 0 && b.Seq <= s.seq {
		return nil, fmt.Errorf("%w: seq %d after %d", ErrStaleBatch, b.Seq, s.seq)
	}

	s.live = newReport(s.Provider)
	res := &Result{PageID: s.ID}
	var inserted []*html.Node
	full := false
	for i, rec := range b.Records {
		added, reset, err := applyRecord(s.doc, rec)
		if err != nil {
			res.Unapplied++
			s.logger.Debug("page: record skipped", "page_id", s.ID, "seq", b.Seq, "index", i, "op", rec.Op, "error", err)
			continue
		}
		res.Applied++
		if reset {
			s.stopWatch()
			s.arm(ctx)
			full, inserted = true, nil
			continue
		}
		inserted = append(inserted, added...)
	}
	// The records are in the document now: a failed rescan must not let
	// the same seq apply them twice.
	if b.Seq != 0 {
		s.seq = b.Seq
	} else {
		s.seq++
	}
	s.doc.Deliver()

	rep := newReport(s.Provider)
	for _, root := range s.rescanRoots(full, inserted) {
		r, err := s.engine.Invoke(ctx, s.doc, root)
		if err != nil {
			return nil, fmt.Errorf("page: %s: %w", s.ID, err)
		}
		rep.Merge(r)
	}
	s.doc.Deliver()
	rep.Merge(s.live)
	rep.RunID = b.ID

	res.Seq = s.seq
	res.Report = rep
	s.metrics.IncBatches()
	s.finish(ctx, sink.TypeBatch, res)
	return res, nil
}

// rescanRoots returns the distinct attached parents of inserted nodes, or
// the whole document after a reset.
func (s *Session) rescanRoots(full bool, inserted []*html.Node) []*html.Node {
	if full {
		return []*html.Node{nil}
	}
	var roots []*html.Node
	seen := make(map[*html.Node]bool)
	for _, n := range inserted {
		p := n.Parent
		if p == nil || seen[p] || !dom.Contains(s.doc.Root(), p) {
			continue
		}
		seen[p] = true
		roots = append(roots, p)
	}
	return roots
}

// arm starts the live-update watcher. Its invocations outlive the request
// that armed it, so they run on a context without the request's deadline.
func (s *Session) arm(ctx context.Context) {
	s.watcher = s.engine.Watch(context.WithoutCancel(ctx), s.doc, func(r *search.Report) {
		s.live.Merge(r)
	})
}

func (s *Session) stopWatch() {
	if s.watcher != nil {
		s.watcher.Stop()
		s.watcher = nil
	}
}

func (s *Session) finish(ctx context.Context, typ string, res *Result) {
	s.updated = time.Now()
	if s.totals == nil {
		s.totals = newReport(s.Provider)
	}
	s.totals.Merge(res.Report)

	ev := sink.NewEvent(typ, s.ID, res.Report)
	ev.PageURL, ev.Seq, ev.Unapplied = s.url, res.Seq, res.Unapplied
	if err := s.sink.Send(ctx, ev); err != nil {
		s.logger.Warn("page: sink", "page_id", s.ID, "error", err)
	}
	s.logger.Debug("page: applied", "page_id", s.ID, "type", typ, "seq", res.Seq,
		"applied", res.Applied, "unapplied", res.Unapplied, "transformed", res.Report.Total())
}

// HTML renders the current document.
func (s *Session) HTML() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return "", ErrNoDocument
	}
	return s.doc.String(), nil
}

// Info returns the session state.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	totals := newReport(s.Provider)
	totals.Merge(s.totals)
	return Info{
		ID:         s.ID,
		Provider:   s.Provider,
		URL:        s.url,
		SnapshotID: s.snapshotID,
		Seq:        s.seq,
		Updated:    s.updated,
		Totals:     totals,
	}
}

// Watching reports whether the live-update area is being followed.
func (s *Session) Watching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watcher != nil && s.watcher.Following()
}

// Close stops the watcher and drops the document.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopWatch()
	s.doc = nil
}
