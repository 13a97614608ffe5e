// Package browser acquires search result pages as snapshots: a plain HTTP
// GET first, and a headless Chrome render (Rod + stealth) when the static
// markup does not contain results.
package browser

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/farmshift/horosafe"
	"github.com/hazyhaar/farmshift/idgen"
	"github.com/hazyhaar/farmshift/mutation"
)

// Source produces a snapshot of a page.
type Source interface {
	Snapshot(ctx context.Context, pageURL, pageID string) (*mutation.Snapshot, error)
}

// Fetcher performs HTTP GETs.
type Fetcher struct {
	client       *http.Client
	ua           string
	logger       *slog.Logger
	allowPrivate bool
}

// FetchOption configures a Fetcher.
type FetchOption func(*Fetcher)

// WithClient sets a custom HTTP client.
func WithClient(c *http.Client) FetchOption {
	return func(f *Fetcher) { f.client = c }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetchOption {
	return func(f *Fetcher) { f.ua = ua }
}

// WithPrivateHosts lets the fetcher reach loopback and private addresses.
func WithPrivateHosts() FetchOption {
	return func(f *Fetcher) { f.allowPrivate = true }
}

// WithFetchLogger sets a custom logger.
func WithFetchLogger(l *slog.Logger) FetchOption {
	return func(f *Fetcher) { f.logger = l }
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts ...FetchOption) *Fetcher {
	f := &Fetcher{
		client: &http.Client{Timeout: 30 * time.Second},
		ua:     "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36",
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Snapshot GETs pageURL. Non-2xx responses are errors, and so are
// private targets unless WithPrivateHosts is set.
func (f *Fetcher) Snapshot(ctx context.Context, pageURL, pageID string) (*mutation.Snapshot, error) {
	if !f.allowPrivate {
		if err := horosafe.ValidateURL(pageURL); err != nil {
			return nil, fmt.Errorf("browser: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("browser: new request: %w", err)
	}
	req.Header.Set("User-Agent", f.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("browser: get %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	body, err := horosafe.LimitedReadAll(resp.Body, horosafe.MaxPageBody)
	if err != nil {
		return nil, fmt.Errorf("browser: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("browser: get %s: status %d", pageURL, resp.StatusCode)
	}

	f.logger.Debug("browser: fetched", "url", pageURL, "status", resp.StatusCode, "size", len(body))
	return newSnapshot(pageURL, pageID, body), nil
}

func newSnapshot(pageURL, pageID string, body []byte) *mutation.Snapshot {
	return &mutation.Snapshot{
		ID:        idgen.Snapshot(),
		PageURL:   pageURL,
		PageID:    pageID,
		HTML:      body,
		HTMLHash:  mutation.HashHTML(body),
		Timestamp: time.Now().UnixMilli(),
	}
}

// HasResults reports whether body contains an element matching probe.
// Script-rendered result pages ship without one.
func HasResults(body []byte, probe string) bool {
	if probe == "" {
		return len(body) > 0
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	return doc.Find(probe).Length() > 0
}

// Auto fetches over HTTP and falls back to Render when the page has no
// element matching Probe.
type Auto struct {
	Fetch  Source
	Render Source // nil disables escalation
	Probe  string
	Logger *slog.Logger
}

func (a *Auto) Snapshot(ctx context.Context, pageURL, pageID string) (*mutation.Snapshot, error) {
	log := a.Logger
	if log == nil {
		log = slog.Default()
	}
	snap, err := a.Fetch.Snapshot(ctx, pageURL, pageID)
	if err == nil && HasResults(snap.HTML, a.Probe) {
		return snap, nil
	}
	if a.Render == nil {
		if err != nil {
			return nil, err
		}
		return snap, nil
	}
	log.Info("browser: escalating to render", "url", pageURL, "fetch_error", err)
	return a.Render.Snapshot(ctx, pageURL, pageID)
}
