package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hazyhaar/farmshift/kit"
	"github.com/hazyhaar/farmshift/mutation"
	"github.com/hazyhaar/farmshift/shield"
)

// Handler returns the HTTP API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	for _, mw := range shield.DefaultStack(s.maxBody) {
		r.Use(mw)
	}
	r.Use(s.limiter.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "pages": s.pages.Len()})
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/providers", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"providers": s.Providers()})
		})
		r.Post("/rewrite/{provider}", s.handleRewrite)
		r.Get("/lookup", s.handleLookup)

		r.Get("/pages", s.handlePages)
		r.Route("/pages/{id}", func(r chi.Router) {
			r.Get("/", s.handlePageInfo)
			r.Get("/html", s.handlePageHTML)
			r.Delete("/", s.handlePageClose)
			r.Post("/snapshot", s.handleSnapshot)
			r.Post("/batches", s.handleBatch)
		})
	})
	return r
}

// StartGC evicts expired rate-limit windows until done closes.
func (s *Server) StartGC(done <-chan struct{}) {
	s.limiter.StartGC(done, time.Minute)
}

func (s *Server) handleRewrite(w http.ResponseWriter, r *http.Request) {
	req := &RewriteRequest{
		Provider: chi.URLParam(r, "provider"),
		URL:      r.URL.Query().Get("url"),
		Format:   r.URL.Query().Get("format"),
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		fail(w, r, err)
		return
	}
	req.HTML = string(body)

	resp, err := s.rewrite(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	out := resp.(*RewriteResponse)
	rep := out.Report

	h := w.Header()
	h.Set("X-Farmshift-Run-Id", rep.RunID)
	h.Set("X-Farmshift-Hits", strconv.Itoa(rep.Hits))
	h.Set("X-Farmshift-Transformed", strconv.Itoa(rep.Total()))
	if len(rep.Sites) > 0 {
		h.Set("X-Farmshift-Sites", strings.Join(rep.Sites, ","))
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, out)
		return
	}
	if out.Format == "html" {
		h.Set("Content-Type", "text/html; charset=utf-8")
	} else {
		h.Set("Content-Type", "text/markdown; charset=utf-8")
	}
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, out.Output)
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	resp, err := s.lookup(r.Context(), &LookupRequest{URL: r.URL.Query().Get("url")})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePages(w http.ResponseWriter, _ *http.Request) {
	ids := s.pages.IDs()
	infos := make([]any, 0, len(ids))
	for _, id := range ids {
		if sess, err := s.pages.Get(id); err == nil {
			infos = append(infos, sess.Info())
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"pages": infos})
}

func (s *Server) handlePageInfo(w http.ResponseWriter, r *http.Request) {
	sess, err := s.pages.Get(chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Info())
}

func (s *Server) handlePageHTML(w http.ResponseWriter, r *http.Request) {
	sess, err := s.pages.Get(chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	out, err := sess.HTML()
	if err != nil {
		fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, out)
}

func (s *Server) handlePageClose(w http.ResponseWriter, r *http.Request) {
	if err := s.pages.Close(chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSnapshot opens (or replaces) the session and applies a full page.
// A snapshot without a provider falls back to the ?provider= parameter.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	data, err := io.ReadAll(r.Body)
	if err != nil {
		fail(w, r, err)
		return
	}
	snap, err := mutation.DecodeSnapshot(data)
	if err != nil {
		fail(w, r, err)
		return
	}
	provider := snap.Provider
	if provider == "" {
		provider = r.URL.Query().Get("provider")
	}
	if provider == "" {
		writeError(w, http.StatusBadRequest, badRequest("provider required"))
		return
	}
	snap.PageID = id

	sess, err := s.pages.Open(id, provider)
	if err != nil {
		fail(w, r, err)
		return
	}
	ctx := kit.WithPageID(r.Context(), id)
	res, err := sess.ApplySnapshot(ctx, snap)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.pages.Get(id)
	if err != nil {
		fail(w, r, err)
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		fail(w, r, err)
		return
	}
	b, err := mutation.DecodeBatch(data)
	if err != nil {
		fail(w, r, err)
		return
	}
	if b.PageID != id {
		writeError(w, http.StatusBadRequest, badRequest("batch page_id %q does not match %q", b.PageID, id))
		return
	}
	res, err := sess.ApplyBatch(kit.WithPageID(r.Context(), id), b)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// fail answers with the status mapped from err. Server-side failures are
// logged with the request's trace id.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		shield.GetLogger(r.Context()).Error("server: request failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, code, err)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
