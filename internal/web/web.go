// Package web serves the browser dashboard that drives the authorization-code flow.
package web

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/brizzai/oauth-playground/internal/auth"
	"github.com/brizzai/oauth-playground/internal/auth/flow"
	"github.com/brizzai/oauth-playground/internal/config"
	"github.com/brizzai/oauth-playground/internal/metrics"
	"github.com/brizzai/oauth-playground/internal/persistence"
	"github.com/brizzai/oauth-playground/internal/present"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/fx"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"json": present.PrettyJSON,
}).ParseFS(templatesFS, "templates/*.html"))

// Handler is the dashboard router.
type Handler struct {
	service   *auth.Service
	engine    *flow.Engine
	store     *SessionStore
	persister *persistence.Persister
	metrics   *metrics.Metrics
	router    chi.Router
}

type HandlerParams struct {
	fx.In

	Service   *auth.Service
	Engine    *flow.Engine
	Server    *config.ServerConfig   `optional:"true"`
	Persister *persistence.Persister `optional:"true"`
	Metrics   *metrics.Metrics       `optional:"true"`
}

func NewHandler(params HandlerParams) *Handler {
	var ttl time.Duration
	if params.Server != nil {
		ttl = params.Server.SessionTTL
	}
	h := &Handler{
		service:   params.Service,
		engine:    params.Engine,
		store:     NewSessionStore(params.Service, ttl),
		persister: params.Persister,
		metrics:   params.Metrics,
	}
	h.router = h.routes()
	return h
}

func (h *Handler) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger)
	if h.metrics != nil {
		r.Use(h.metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Get("/healthz", h.healthz)
	r.Get("/", h.dashboard)
	r.Get("/credentials", h.credentials)

	r.Group(func(r chi.Router) {
		r.Post("/config", h.updateConfig)
		r.Post("/code", h.submitCode)
		r.Post("/exchange", h.exchange)
		r.Post("/long-lived", h.longLived)
		r.Post("/reset", h.reset)
		r.Post("/persist", h.persist)
	})
	return r
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

var Module = fx.Module("web",
	fx.Provide(NewHandler),
)
