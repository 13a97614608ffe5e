package page

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/hazyhaar/farmshift/idgen"
	"github.com/hazyhaar/farmshift/metrics"
	"github.com/hazyhaar/farmshift/search"
	"github.com/hazyhaar/farmshift/sink"
)

// EngineFunc returns the engine for a provider id.
type EngineFunc func(provider string) (*search.Engine, error)

// Registry holds the open sessions, keyed by page id.
type Registry struct {
	engines EngineFunc
	sink    sink.Sink
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	sessions map[string]*Session
}

// Option configures a Registry.
type Option func(*Registry)

// WithSink sets where session events go. Default: discarded.
func WithSink(s sink.Sink) Option {
	return func(r *Registry) { r.sink = s }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithMetrics enables the session gauge and batch counter.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// NewRegistry creates an empty registry.
func NewRegistry(engines EngineFunc, opts ...Option) *Registry {
	r := &Registry{engines: engines, sessions: make(map[string]*Session)}
	for _, o := range opts {
		o(r)
	}
	if r.sink == nil {
		r.sink = sink.Discard{}
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Open returns the session for id, creating it when missing. An empty id
// gets a fresh one. A session opened for another provider is closed and
// replaced.
func (r *Registry) Open(id, provider string) (*Session, error) {
	if id == "" {
		id = idgen.Page()
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		if s.Provider == provider {
			return s, nil
		}
		s.Close()
		delete(r.sessions, id)
	}

	e, err := r.engines(provider)
	if err != nil {
		return nil, fmt.Errorf("page: open %s: %w", id, err)
	}
	s := &Session{
		ID:       id,
		Provider: provider,
		engine:   e,
		sink:     r.sink,
		logger:   r.logger,
		metrics:  r.metrics,
	}
	r.sessions[id] = s
	r.metrics.SetSessions(len(r.sessions))
	r.logger.Info("page: session opened", "page_id", id, "provider", provider)
	return s, nil
}

// Get returns the session for id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSession, id)
	}
	return s, nil
}

// Close stops and removes the session for id.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSession, id)
	}
	s.Close()
	r.metrics.SetSessions(n)
	r.logger.Info("page: session closed", "page_id", id)
	return nil
}

// CloseAll stops every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	r.metrics.SetSessions(0)
}

// IDs lists the open page ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
