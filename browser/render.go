// CLAUDE:SUMMARY Renders pages in headless Chrome through Rod, with stealth and resource blocking, and returns the DOM as a snapshot.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/farmshift/horosafe"
	"github.com/hazyhaar/farmshift/mutation"
)

// Config configures the renderer.
type Config struct {
	// RemoteURL is the DevTools WebSocket URL of an external Chrome.
	// Empty launches a local headless Chrome.
	RemoteURL string

	// Timeout bounds navigation and load. Default: 30s.
	Timeout time.Duration

	// Stealth applies go-rod/stealth evasions to each tab.
	Stealth bool

	// ResourceBlocking lists resource types to block (images, fonts,
	// media, stylesheets).
	ResourceBlocking []string

	// AllowPrivate lets the renderer open loopback and private addresses.
	AllowPrivate bool

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Renderer owns one Chrome instance, started on first use.
type Renderer struct {
	cfg Config

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// NewRenderer creates a Renderer. Chrome starts on the first Snapshot.
func NewRenderer(cfg Config) *Renderer {
	cfg.defaults()
	return &Renderer{cfg: cfg}
}

func (r *Renderer) connect() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, fmt.Errorf("browser: renderer is closed")
	}
	if r.browser != nil {
		return r.browser, nil
	}

	wsURL := r.cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().Headless(true).Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		r.lnch = l
		r.cfg.Logger.Info("browser: launched local chrome", "url", wsURL)
	} else {
		r.cfg.Logger.Info("browser: connecting to remote", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	r.browser = b
	return b, nil
}

// Snapshot navigates a new tab to pageURL, waits for load and serialises
// the document.
func (r *Renderer) Snapshot(ctx context.Context, pageURL, pageID string) (*mutation.Snapshot, error) {
	if !r.cfg.AllowPrivate {
		if err := horosafe.ValidateURL(pageURL); err != nil {
			return nil, fmt.Errorf("browser: %w", err)
		}
	}
	b, err := r.connect()
	if err != nil {
		return nil, err
	}

	var page *rod.Page
	if r.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	defer page.Close()

	if len(r.cfg.ResourceBlocking) > 0 {
		router := blockResources(page, r.cfg.ResourceBlocking)
		defer router.Stop()
	}

	navCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	p := page.Context(navCtx)
	if err := p.Navigate(pageURL); err != nil {
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := p.WaitLoad(); err != nil {
		r.cfg.Logger.Warn("browser: wait load", "url", pageURL, "error", err)
	}

	res, err := p.Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("browser: get DOM: %w", err)
	}
	body := []byte("<!DOCTYPE html>" + res.Value.Str())
	r.cfg.Logger.Debug("browser: rendered", "url", pageURL, "size", len(body))
	return newSnapshot(pageURL, pageID, body), nil
}

// Close shuts Chrome down.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	var err error
	if r.browser != nil {
		err = r.browser.Close()
		r.browser = nil
	}
	if r.lnch != nil {
		r.lnch.Cleanup()
		r.lnch = nil
	}
	return err
}

func blockResources(page *rod.Page, types []string) *rod.HijackRouter {
	blockSet := make(map[string]bool, len(types))
	for _, t := range types {
		blockSet[strings.ToLower(t)] = true
	}
	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if shouldBlock(blockSet, string(h.Request.Type())) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	return router
}

func shouldBlock(blockSet map[string]bool, resType string) bool {
	lower := strings.ToLower(resType)
	switch lower {
	case "image":
		return blockSet["images"]
	case "font":
		return blockSet["fonts"]
	case "media":
		return blockSet["media"]
	case "stylesheet":
		return blockSet["stylesheets"]
	}
	return blockSet[lower]
}
