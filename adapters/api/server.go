// Package api exposes the simulation service over HTTP. The routes are a
// thin JSON layer: all validation and execution semantics live in the app
// service and the engine packages.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gorisk/app"
	"gorisk/internal"
)

// Server hosts the simulation HTTP API
type Server struct {
	svc    *app.SimulationService
	log    *internal.Logger
	router chi.Router
}

// NewServer wires the router
func NewServer(svc *app.SimulationService, logger *internal.Logger) *Server {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	s := &Server{svc: svc, log: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Route("/api", func(r chi.Router) {
		r.Get("/distributions", s.handleListDistributions)
		r.Get("/templates", s.handleListTemplates)
		r.Get("/templates/{name}", s.handleGetTemplate)
		r.Post("/simulations", s.handleSimulate)
		r.Get("/results/{fingerprint}", s.handleGetResult)
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	s.router = r
	return s
}

// Router returns the http handler
func (s *Server) Router() http.Handler {
	return s.router
}
