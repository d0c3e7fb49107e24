// Package site serves the MASUKAME web surface: priced pages, the currency
// switch, the registry API and update feed, and validated form relay.
package site

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/microcosm-cc/bluemonday"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hazyhaar/masukame/connectivity"
	"github.com/hazyhaar/masukame/currency"
	"github.com/hazyhaar/masukame/formcheck"
	"github.com/hazyhaar/masukame/observability"
	"github.com/hazyhaar/masukame/registry"
	"github.com/hazyhaar/masukame/shield"
	"github.com/hazyhaar/masukame/siteconfig"
)

// ThankYou is flashed after a successful submission.
const ThankYou = "Thank you. We will reply within 3 business days."

// relayTimeout bounds the provider call; the outbox fallback runs outside it.
const relayTimeout = 20 * time.Second

// Deps are the collaborators of a Server. Config, Converter, Registry,
// Router, Outbox and Pages are required.
type Deps struct {
	Config      siteconfig.Config
	Logger      *slog.Logger
	Converter   *currency.Converter
	Registry    *registry.Client
	Router      *connectivity.Router
	Outbox      *Outbox
	Pages       *Pages
	Validator   *formcheck.Validator
	Events      *observability.EventLogger // optional
	Maintenance *shield.MaintenanceMode    // optional
	RateLimiter *shield.RateLimiter        // optional
	Metrics     *prometheus.Registry       // optional; enables /metrics
	DB          *sql.DB                    // optional; pinged by /healthz
}

// Server is the site HTTP handler.
type Server struct {
	cfg      siteconfig.Config
	logger   *slog.Logger
	conv     *currency.Converter
	reg      *registry.Client
	router   *connectivity.Router
	outbox   *Outbox
	pages    *Pages
	validate *formcheck.Validator
	events   *observability.EventLogger
	mm       *shield.MaintenanceMode
	rl       *shield.RateLimiter
	metrics  *prometheus.Registry
	httpM    *observability.HTTPMetrics
	db       *sql.DB

	sanitize *bluemonday.Policy
	upgrader websocket.Upgrader
	relays   map[string]connectivity.Handler
}

// New wires a Server. Every form found in the pages or configured with an
// endpoint gets its outbox registered as the local handler, and the
// registry operations are registered as local services.
func New(d Deps) *Server {
	s := &Server{
		cfg:      d.Config,
		logger:   d.Logger,
		conv:     d.Converter,
		reg:      d.Registry,
		router:   d.Router,
		outbox:   d.Outbox,
		pages:    d.Pages,
		validate: d.Validator,
		events:   d.Events,
		mm:       d.Maintenance,
		rl:       d.RateLimiter,
		metrics:  d.Metrics,
		db:       d.DB,
		sanitize: bluemonday.StrictPolicy(),
		relays:   make(map[string]connectivity.Handler),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.validate == nil {
		s.validate = formcheck.New()
	}
	var calls *prometheus.CounterVec
	if s.metrics != nil {
		s.httpM = observability.NewHTTPMetrics(s.metrics)
		calls = connectivity.NewCallsCounter(s.metrics)
	}

	names := map[string]bool{}
	for name := range s.cfg.Forms.Endpoints() {
		names[name] = true
	}
	for _, name := range s.pages.FormNames() {
		names[name] = true
	}
	for name := range names {
		svc := connectivity.FormService(name)
		local := s.outbox.Handler(name)
		s.router.RegisterLocal(svc, local)
		call := func(ctx context.Context, payload []byte) ([]byte, error) {
			return s.router.Call(ctx, svc, payload)
		}
		mws := []connectivity.HandlerMiddleware{
			connectivity.Logging(s.logger, svc),
			connectivity.Recovery(s.logger, svc),
			connectivity.WithFallback(local, svc, s.logger),
			connectivity.Timeout(relayTimeout),
		}
		if calls != nil {
			mws = append([]connectivity.HandlerMiddleware{connectivity.Metrics(calls, svc)}, mws...)
		}
		s.relays[name] = connectivity.Chain(mws...)(call)
	}

	s.reg.RegisterConnectivity(s.router)
	return s
}

// Handler returns the chi router with the shield stack applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	if s.httpM != nil {
		r.Use(s.httpM.Middleware)
	}
	for _, mw := range shield.Stack(s.logger, s.mm, s.rl) {
		r.Use(mw)
	}
	r.Use(Visitor(!s.cfg.IsDevelopment()))

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", observability.Handler(s.metrics))
	}

	r.Post("/currency", s.handleCurrency)
	r.Post("/forms/{name}", s.handleForm)

	if s.cfg.Features.EnableNFTRegistry {
		r.Route("/api/registry", func(r chi.Router) {
			r.Get("/search", s.handleSearch)
			r.Get("/statistics", s.handleStatistics)
			r.Post("/verify", s.handleVerify)
			r.Get("/transfers/{tokenID}", s.handleTransfers)
		})
		r.Get("/ws/updates", s.handleUpdates)
	}

	r.Get("/*", s.handlePage)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]any{
		"status":         "ok",
		"env":            s.cfg.Env,
		"registry_cache": s.reg.CachedEntries(),
		"maintenance":    s.mm != nil && s.mm.Active(),
	}
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["db"] = err.Error()
		}
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// wantsJSON reports whether the client asked for, or sent, JSON.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == "application/json"
}
