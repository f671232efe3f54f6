package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"feedback-app/internal/config"
	"feedback-app/internal/metrics"
	"feedback-app/internal/session"
)

type Deps struct {
	Config   *config.Config
	Store    FeedbackStore
	Pool     Pinger
	Sessions *session.Manager
	Metrics  *metrics.Metrics
	Log      *zap.Logger
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(log))
	r.Use(RecoverMiddleware(log))
	if d.Metrics != nil {
		r.Use(MetricsMiddleware(d.Metrics))
	}
	if len(d.Config.CORS.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: d.Config.CORS.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-API-Key"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", HealthHandler(d.Pool, log))
	r.Get("/version", VersionHandler())
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	// Feedback form
	submit := FeedbackSubmitHandler(d.Store, d.Metrics, log)
	r.Get("/", IndexHandler(log))
	r.Post("/feedback", submit)
	r.Post("/hibernateFeedback", submit)

	// Cookie and session demo
	demo := &SessionDemo{Sessions: d.Sessions, Log: log}
	r.Get("/first", demo.FirstGet)
	r.Post("/first", demo.FirstPost)
	r.Get("/firstRequest", demo.FirstRequest)
	r.Get("/secondRequest", demo.SecondRequest)

	// External APIs
	r.Route("/api", func(api chi.Router) {
		api.Use(APIKeyAuth(d.Config))
		api.Get("/feedback", FeedbackListHandler(d.Store, log))
		api.Get("/feedback/{id}", FeedbackGetHandler(d.Store, log))
	})

	return r
}
