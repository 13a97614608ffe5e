// CLAUDE:SUMMARY CLI entry point for farmshift: one-shot file/URL rewrites, HTTP server, or stdio MCP server.
// Command farmshift rewrites legacy wiki results on search result pages.
//
// Usage:
//
//	farmshift -in a.html,b.html -provider google -catalog sites.yaml   # rewrite files
//	farmshift -url URL -render -provider google -format md             # fetch (or render) then rewrite
//	farmshift -serve :8080 -config farmshift.yaml                      # HTTP API
//	farmshift -mcp -config farmshift.yaml                              # MCP over stdio
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/farmshift/browser"
	"github.com/hazyhaar/farmshift/catalog"
	"github.com/hazyhaar/farmshift/config"
	"github.com/hazyhaar/farmshift/metrics"
	"github.com/hazyhaar/farmshift/search"
	"github.com/hazyhaar/farmshift/search/ddg"
	"github.com/hazyhaar/farmshift/search/google"
	"github.com/hazyhaar/farmshift/server"
)

var providers = map[string]search.Provider{
	google.ID: google.Provider,
	ddg.ID:    ddg.Provider,
}

// resultProbe tells a fetched page with results from a consent or
// challenge page.
const resultProbe = `#rso, #main, #links, #react-layout`

type flags struct {
	in, url     string
	render      bool
	provider    string
	format      string
	catalogPath string
	settings    string
	out         string
	serve       string
	configPath  string
	mcp         bool
	logLevel    string
}

func main() {
	var f flags
	flag.StringVar(&f.in, "in", "", "comma-separated HTML files to rewrite")
	flag.StringVar(&f.url, "url", "", "search results URL to fetch and rewrite")
	flag.BoolVar(&f.render, "render", false, "render -url in a headless browser when fetching finds no results")
	flag.StringVar(&f.provider, "provider", google.ID, "search provider: google, ddg")
	flag.StringVar(&f.format, "format", "html", "output format: html, md, results")
	flag.StringVar(&f.catalogPath, "catalog", "", "site catalog file (overrides config)")
	flag.StringVar(&f.settings, "settings", "", "settings YAML file (overrides config)")
	flag.StringVar(&f.out, "out", "", "output directory for -in (default: stdout for one file, next to the input otherwise)")
	flag.StringVar(&f.serve, "serve", "", "listen address for the HTTP API")
	flag.StringVar(&f.configPath, "config", "", "path to farmshift.yaml")
	flag.BoolVar(&f.mcp, "mcp", false, "serve MCP over stdio")
	flag.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flag.Parse()

	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.LoadFile(f.configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.catalogPath != "" {
		cfg.Catalog = f.catalogPath
	}
	if f.settings != "" {
		cfg.Settings = config.SettingsConfig{Source: config.SourceFile, Path: f.settings}
	}
	if f.serve != "" {
		cfg.Listen = f.serve
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg, f); err != nil {
		logger.Error("farmshift: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg *config.Config, f flags) error {
	if cfg.Catalog == "" {
		return errors.New("a site catalog is required (-catalog or config catalog)")
	}
	cat, err := catalog.Load(cfg.Catalog)
	if err != nil {
		return err
	}
	for _, issue := range catalog.Validate(cat) {
		logger.Warn("farmshift: catalog", "issue", issue.String())
	}

	settingsSrc, closer, err := cfg.SettingsSource()
	if err != nil {
		return err
	}
	defer closer.Close()

	enabled := make([]search.Provider, 0, len(cfg.Providers))
	for _, id := range cfg.Providers {
		p, ok := providers[id]
		if !ok {
			return fmt.Errorf("%w: %q", search.ErrUnknownProvider, id)
		}
		enabled = append(enabled, p)
	}

	events := cfg.Sink(logger)
	defer events.Close()

	reg := prometheus.NewRegistry()
	source, closeSource := newSource(cfg, logger, f.render || f.serve != "" || f.mcp)
	defer closeSource()

	srv := server.New(server.Options{
		Providers:  enabled,
		Catalog:    cat,
		Settings:   settingsSrc,
		Logger:     logger,
		Metrics:    metrics.New(reg),
		Gatherer:   reg,
		Sink:       events,
		Source:     source,
		MaxBody:    cfg.MaxBody,
		RateLimits: cfg.RateLimits,
	})
	defer srv.Close()

	if cfg.Reload && (f.serve != "" || f.mcp) {
		rl := config.NewCatalogReloader(cfg.Catalog, srv.SetCatalog, logger)
		if err := rl.Start(ctx); err != nil {
			return err
		}
		defer rl.Stop()
	}

	switch {
	case f.mcp:
		return runMCP(ctx, srv)
	case f.serve != "":
		return runServe(ctx, logger, srv, cfg.Listen)
	case f.url != "":
		return rewriteURL(ctx, srv, f)
	case f.in != "":
		return rewriteFiles(ctx, logger, srv, f)
	}
	flag.Usage()
	return errors.New("one of -in, -url, -serve or -mcp is required")
}

// newSource builds the page acquisition chain: a plain fetch, escalated
// to a headless browser when allowed.
func newSource(cfg *config.Config, logger *slog.Logger, allowRender bool) (browser.Source, func()) {
	fetch := browser.NewFetcher(browser.WithFetchLogger(logger))
	if !allowRender {
		return fetch, func() {}
	}
	r := browser.NewRenderer(browser.Config{
		RemoteURL:        cfg.Browser.Remote,
		Timeout:          cfg.Browser.Timeout,
		Stealth:          cfg.Browser.Stealth,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		Logger:           logger,
	})
	auto := &browser.Auto{Fetch: fetch, Render: r, Probe: resultProbe, Logger: logger}
	return auto, func() { r.Close() }
}

func runServe(ctx context.Context, logger *slog.Logger, srv *server.Server, addr string) error {
	hs := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.StartGC(ctx.Done())

	errc := make(chan error, 1)
	go func() {
		logger.Info("farmshift: listening", "addr", addr)
		errc <- hs.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("farmshift: shutting down")
	return hs.Shutdown(shutdownCtx)
}

func runMCP(ctx context.Context, srv *server.Server) error {
	mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "farmshift", Version: "0.1.0"}, nil)
	srv.RegisterMCP(mcpSrv)
	return mcpSrv.Run(ctx, &mcp.StdioTransport{})
}

func rewriteURL(ctx context.Context, srv *server.Server, f flags) error {
	resp, err := srv.Rewrite(ctx, &server.RewriteRequest{Provider: f.provider, URL: f.url, Format: f.format})
	if err != nil {
		return err
	}
	_, err = io.WriteString(os.Stdout, resp.Output)
	return err
}

// rewriteFiles processes the -in files concurrently, one document each.
func rewriteFiles(ctx context.Context, logger *slog.Logger, srv *server.Server, f flags) error {
	files := strings.Split(f.in, ",")
	toStdout := len(files) == 1 && f.out == ""

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, path := range files {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			resp, err := srv.Rewrite(ctx, &server.RewriteRequest{Provider: f.provider, HTML: string(data), Format: f.format})
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			rep := resp.Report
			logger.Info("farmshift: rewritten",
				"file", path,
				"run_id", rep.RunID,
				"hits", rep.Hits,
				"transformed", rep.Total(),
				"sites", rep.Sites,
			)
			if toStdout {
				_, err = io.WriteString(os.Stdout, resp.Output)
				return err
			}
			return os.WriteFile(outputPath(path, f.out, f.format), []byte(resp.Output), 0o644)
		})
	}
	return g.Wait()
}

// outputPath names the rewritten copy of in: "page.html" becomes
// "page.farmshift.html" (or ".md"), in dir when set.
func outputPath(in, dir, format string) string {
	ext := ".html"
	if format != "html" {
		ext = ".md"
	}
	base := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in)) + ".farmshift" + ext
	if dir == "" {
		dir = filepath.Dir(in)
	}
	return filepath.Join(dir, base)
}
