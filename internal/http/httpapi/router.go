package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"studio/internal/http/handlers"
	"studio/internal/infra"
	"studio/internal/middleware"
)

// Options carries the router's collaborators beyond the handler container.
type Options struct {
	Logger          infra.Logger
	AllowedOrigins  []string
	RateLimitPerMin int
	// Static serves synced artifacts under /static when set.
	Static http.Handler
	// Gatherer exposes /metrics when set.
	Gatherer prometheus.Gatherer
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)

	r.With(middleware.RateLimit(opts.RateLimitPerMin, time.Minute)).Post("/v1/generations", app.CreateGeneration)

	r.Route("/v1/console", func(r chi.Router) {
		r.Get("/", app.ConsoleState)
		r.Post("/toggle", app.ToggleConsole)
	})
	r.Get("/v1/history", app.ListHistory)
	r.Get("/v1/library", app.Library)

	if opts.Static != nil {
		r.Handle("/static/*", http.StripPrefix("/static", opts.Static))
	}
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	return r
}
