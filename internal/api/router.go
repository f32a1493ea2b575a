package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/yegors/co-notam/internal/briefing"
	"github.com/yegors/co-notam/internal/config"
	"github.com/yegors/co-notam/internal/observability"
	"github.com/yegors/co-notam/internal/websocket"
	"github.com/yegors/co-notam/pkg/logger"
)

// Router wires the API handlers, the WebSocket endpoint, metrics and the
// static explorer into one chi mux
type Router struct {
	handler  *Handler
	wsServer *websocket.Server
	metrics  *observability.Metrics
	limiter  *clientLimiter
	config   *config.Config
	logger   *logger.Logger
}

// NewRouter creates a new router. wsServer, metrics and weatherService may be nil.
func NewRouter(briefingService *briefing.Service, weatherService WeatherSource, wsServer *websocket.Server, metrics *observability.Metrics, cfg *config.Config, log *logger.Logger) *Router {
	var limiter *clientLimiter
	if cfg.Server.RequestsPerSecond > 0 {
		limiter = newClientLimiter(cfg.Server.RequestsPerSecond, 10*time.Minute)
	}
	return &Router{
		handler:  NewHandler(briefingService, weatherService, wsServer, cfg, log),
		wsServer: wsServer,
		metrics:  metrics,
		limiter:  limiter,
		config:   cfg,
		logger:   log.Named("router"),
	}
}

// Routes builds the HTTP handler
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if rt.metrics != nil {
		r.Use(rt.metrics.Middleware)
	}
	r.Use(corsMiddleware(rt.config.Server.CORSAllowedOrigins))

	r.Route("/api/v1", func(r chi.Router) {
		if rt.limiter != nil {
			r.Use(rt.limiter.Middleware)
		}

		r.Get("/health", rt.handler.GetHealth)
		r.Get("/config", rt.handler.GetConfig)

		r.Get("/notams", rt.handler.GetNotams)
		r.Get("/notams/{id}", rt.handler.GetNotamByID)
		r.Get("/categories", rt.handler.GetCategories)
		r.Get("/airports/{icao}", rt.handler.GetAirport)
		r.Get("/briefing/{icao}", rt.handler.GetBriefing)
		r.Get("/route", rt.handler.GetRoute)
		r.Get("/weather", rt.handler.GetWeatherData)
		r.Post("/refresh", rt.handler.TriggerRefresh)
	})

	if rt.wsServer != nil {
		r.Get("/ws", rt.wsServer.HandleConnection)
	}
	if rt.metrics != nil {
		r.Handle("/metrics", rt.metrics.Handler())
	}

	if dir := rt.config.Server.StaticFilesDir; dir != "" {
		rt.logger.Info("Serving static files", logger.String("dir", dir))
		r.Handle("/*", NewStaticFileHandler(dir, rt.logger))
	}

	return r
}
