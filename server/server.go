// Package server wires the HTTP surface: the browser-facing auth endpoints
// and the cached game-data API.
package server

import (
	"fmt"
	"net/http"
	"strings"

	"armory/auth"
	"armory/gamedata"
	"armory/internal/config"
	"armory/sessions"
)

type Server struct {
	env      string // Environment (e.g., "development", "production")
	mux      *http.ServeMux
	routes   []string
	config   *config.Config
	auth     *auth.Service
	sessions sessions.Repo
	gamedata *gamedata.Fetcher
}

func New(cfg *config.Config, authService *auth.Service, sessionRepo sessions.Repo, fetcher *gamedata.Fetcher) (*Server, error) {
	if authService == nil {
		return nil, fmt.Errorf("[Server New] auth service is required")
	}
	if sessionRepo == nil {
		return nil, fmt.Errorf("[Server New] session repo is required")
	}

	s := &Server{
		env:      cfg.Env,
		mux:      http.NewServeMux(),
		config:   cfg,
		auth:     authService,
		sessions: sessionRepo,
		gamedata: fetcher,
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "development" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
