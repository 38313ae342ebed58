package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/photo-curator/internal/web/handlers"
	"github.com/kozaktomas/photo-curator/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	searchHandler := handlers.NewSearchHandler(s.deps.Searcher, s.logger)
	albumsHandler := handlers.NewAlbumsHandler(s.deps.Builder, s.deps.Albums, s.logger)

	// Health check and metrics (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)
	if s.deps.Metrics != nil {
		s.router.Handle("/metrics", s.deps.Metrics.Handler())
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireToken(s.config.APIToken))

		// Search
		r.Post("/search", searchHandler.Search)
		r.Post("/search/voice", searchHandler.Voice)

		// Albums
		r.Get("/albums", albumsHandler.List)
		r.Post("/albums", albumsHandler.Create)
		r.Get("/albums/{id}", albumsHandler.Get)
		r.Delete("/albums/{id}", albumsHandler.Delete)
	})
}
