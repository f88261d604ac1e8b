package server

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

func (s *Server) setupMiddleware() {
	s.router.Use(recoveryMiddleware(s.logger))
	s.router.Use(correlationIDMiddleware)
	s.router.Use(loggingMiddleware(s.logger))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Correlation-ID"},
		MaxAge:         300,
	}))
}

// setupRoutes registers the REST API routes. Trailing slashes match the
// paths the portfolio client calls.
func (s *Server) setupRoutes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/version", s.handleVersion)

	s.router.Group(func(r chi.Router) {
		r.Use(bearerAuthMiddleware([]byte(s.config.Server.JWTSecret)))

		r.Get("/api/portfolio/", s.handlePortfolioList)
		r.Post("/api/portfolio/", s.handlePortfolioUpsert)
		r.Patch("/api/portfolio/company/{id}/", s.handleHoldingUpdate)
		r.Delete("/api/portfolio/company/{id}/", s.handleHoldingDelete)

		r.Get("/api/companies/", s.handleCompanyList)
	})
}
