// Package connectivity dispatches named services either to an in-process
// handler or to a remote endpoint, according to a route table that can be
// swapped at runtime.
//
// The site routes each form to its provider over HTTP ("form_purchase",
// "form_concierge", ...), with the local outbox as fallback, and exposes
// the registry operations as local services:
//
//	router := connectivity.New()
//	router.RegisterTransport("http", connectivity.HTTPFactory())
//	router.RegisterLocal("form_purchase", outbox.Handler("purchase"))
//	router.Apply(connectivity.FormRoutes(cfg.Forms.Endpoints()))
//	go router.Watch(ctx, db, 2*time.Second)
//
//	resp, err := router.Call(ctx, "form_purchase", payload)
package connectivity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"
)

// Handler is a transport-agnostic service function: bytes in, bytes out.
type Handler func(ctx context.Context, payload []byte) ([]byte, error)

// TransportFactory builds a Handler for a remote endpoint. The returned
// close function runs when the route is removed or replaced; it may be nil.
type TransportFactory func(endpoint string, config json.RawMessage) (handler Handler, close func(), err error)

// Strategies understood by the router. Any other strategy names a
// registered transport.
const (
	StrategyLocal = "local"
	StrategyNoop  = "noop"
	StrategyHTTP  = "http"
)

// Route maps a service name to a dispatch strategy.
type Route struct {
	Service  string          `json:"service"`
	Strategy string          `json:"strategy"`
	Endpoint string          `json:"endpoint,omitempty"`
	Config   json.RawMessage `json:"config,omitempty"`
}

func (rt Route) fingerprint() string {
	return rt.Strategy + "|" + rt.Endpoint + "|" + string(rt.Config)
}

type remoteEntry struct {
	handler Handler
	close   func()
}

// Router dispatches service calls. Reads take the read lock; Apply
// swaps the route snapshot under the write lock.
type Router struct {
	mu            sync.RWMutex
	localHandlers map[string]Handler
	remoteEntries map[string]remoteEntry
	routeSnap     map[string]Route
	factories     map[string]TransportFactory
	logger        *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the router logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// New creates a Router with no routes.
func New(opts ...Option) *Router {
	r := &Router{
		localHandlers: make(map[string]Handler),
		remoteEntries: make(map[string]remoteEntry),
		routeSnap:     make(map[string]Route),
		factories:     make(map[string]TransportFactory),
		logger:        slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RegisterLocal registers an in-process handler for a service. It serves
// the service when no remote route exists, or when the route says "local".
func (r *Router) RegisterLocal(service string, h Handler) {
	r.mu.Lock()
	r.localHandlers[service] = h
	r.mu.Unlock()
}

// RegisterTransport registers a factory for a strategy such as "http".
func (r *Router) RegisterTransport(strategy string, f TransportFactory) {
	r.mu.Lock()
	r.factories[strategy] = f
	r.mu.Unlock()
}

// Call dispatches a service call: a noop route succeeds with a nil
// response, a remote route wins over a local handler, and a service with
// neither fails with ErrServiceNotFound.
func (r *Router) Call(ctx context.Context, service string, payload []byte) ([]byte, error) {
	r.mu.RLock()
	entry, hasRemote := r.remoteEntries[service]
	localH := r.localHandlers[service]
	snap, hasRoute := r.routeSnap[service]
	r.mu.RUnlock()

	if hasRoute && snap.Strategy == StrategyNoop {
		r.logger.DebugContext(ctx, "routing noop", "service", service)
		return nil, nil
	}
	if hasRemote {
		r.logger.DebugContext(ctx, "routing remote",
			"service", service, "strategy", snap.Strategy, "endpoint", snap.Endpoint)
		return entry.handler(ctx, payload)
	}
	if localH != nil {
		r.logger.DebugContext(ctx, "routing local", "service", service)
		return localH(ctx, payload)
	}
	return nil, &ErrServiceNotFound{Service: service}
}

// Apply replaces the route table. Only routes whose strategy, endpoint or
// config changed are rebuilt; unchanged remote handlers are kept. Routes
// that cannot be built are skipped and reported in the joined error, the
// rest of the table still takes effect.
func (r *Router) Apply(routes []Route) error {
	next := make(map[string]Route, len(routes))
	for _, rt := range routes {
		next[rt.Service] = rt
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	entries := make(map[string]remoteEntry, len(next))
	for name, rt := range next {
		if rt.Strategy == StrategyLocal || rt.Strategy == StrategyNoop {
			continue
		}
		if old, ok := r.routeSnap[name]; ok && old.fingerprint() == rt.fingerprint() {
			if existing, ok := r.remoteEntries[name]; ok {
				entries[name] = existing
				continue
			}
		}
		factory, ok := r.factories[rt.Strategy]
		if !ok {
			errs = append(errs, &ErrNoFactory{Service: name, Strategy: rt.Strategy})
			continue
		}
		h, closeFn, err := factory(rt.Endpoint, rt.Config)
		if err != nil {
			errs = append(errs, &ErrFactoryFailed{Service: name, Strategy: rt.Strategy, Endpoint: rt.Endpoint, Cause: err})
			continue
		}
		entries[name] = remoteEntry{handler: h, close: closeFn}
		r.logger.Info("route built", "service", name, "strategy", rt.Strategy, "endpoint", rt.Endpoint)
	}

	// Close handlers that were dropped or rebuilt.
	for name, old := range r.remoteEntries {
		if old.close == nil {
			continue
		}
		if _, kept := entries[name]; !kept || r.routeSnap[name].fingerprint() != next[name].fingerprint() {
			old.close()
		}
	}

	r.remoteEntries = entries
	r.routeSnap = next
	r.logger.Info("routes applied", "total", len(next), "remote", len(entries))

	for _, err := range errs {
		r.logger.Warn("route skipped", "error", err)
	}
	return errors.Join(errs...)
}

// Reload applies the routes stored in the routes table.
func (r *Router) Reload(ctx context.Context, db *sql.DB) error {
	routes, err := LoadRoutes(ctx, db)
	if err != nil {
		return err
	}
	return r.Apply(routes)
}

// Routes returns the active route table, sorted by service name.
func (r *Router) Routes() []Route {
	r.mu.RLock()
	out := make([]Route, 0, len(r.routeSnap))
	for _, rt := range r.routeSnap {
		out = append(out, rt)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	return out
}

// Close shuts down all remote handlers and clears the route table.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.remoteEntries {
		if entry.close != nil {
			entry.close()
		}
	}
	r.remoteEntries = make(map[string]remoteEntry)
	r.routeSnap = make(map[string]Route)
	return nil
}

// FormService is the service name a form is relayed under.
func FormService(form string) string { return "form_" + form }

// FormRoutes turns the configured form endpoints into HTTP routes. Empty
// endpoints are skipped so those forms fall through to their local handler.
func FormRoutes(endpoints map[string]string) []Route {
	names := make([]string, 0, len(endpoints))
	for name := range endpoints {
		names = append(names, name)
	}
	sort.Strings(names)

	routes := make([]Route, 0, len(names))
	for _, name := range names {
		ep := endpoints[name]
		if ep == "" {
			continue
		}
		routes = append(routes, Route{Service: FormService(name), Strategy: StrategyHTTP, Endpoint: ep})
	}
	return routes
}
