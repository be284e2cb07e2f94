// Package server is the studio's HTTP surface: the studio and presentation
// pages, the deck REST API and the per-tab websocket sessions.
package server

import (
	"context"
	"log"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/livetemplate/slidestudio/internal/assets"
	"github.com/livetemplate/slidestudio/internal/config"
	"github.com/livetemplate/slidestudio/internal/geometry"
)

// maxRequestBodySize limits the size of incoming request bodies (8MB)
const maxRequestBodySize = 8 << 20

// Server is the slidestudio HTTP server.
type Server struct {
	studio      *Studio
	config      *config.Config
	geometry    geometry.Geometry
	sessionOpts SessionOptions
	debug       bool
	router      chi.Router

	cancel      context.CancelFunc
	limiterDone <-chan struct{}
	closeOnce   sync.Once
}

// New creates a server for studio.
func New(studio *Studio, cfg *config.Config) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		studio:   studio,
		config:   cfg,
		geometry: geometry.New(float64(cfg.Design.NaturalWidth), float64(cfg.Design.NaturalHeight)),
		sessionOpts: SessionOptions{
			EmitDuringDrag: cfg.Design.EmitDuringDrag,
			Debug:          cfg.Server.Debug,
		},
		debug:  cfg.Server.Debug,
		cancel: cancel,
	}

	// Zoom and present-scale are recomputed on every resize and wheel tick.
	limiter, done := RateLimit(ctx, RateLimitOptions{
		RPS:    cfg.Rate.GetRPS(),
		Burst:  cfg.Rate.GetBurst(),
		Exempt: []string{"/api/zoom", "/api/present-scale"},
	})
	s.limiterDone = done

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if s.debug {
		r.Use(RequestLogMiddleware)
	}
	r.Use(SecurityHeadersMiddleware())

	r.Get("/ws", s.handleWebSocket)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5, "text/html", "text/css", "application/javascript", "application/json"))
		r.Get("/", s.servePage(assets.GetStudioHTML))
		r.Get("/present", s.servePage(assets.GetPresentHTML))
		r.Get("/assets/*", s.serveAsset)
		r.Get("/frame/{id}", s.handleFrame)

		r.Route("/api", func(r chi.Router) {
			r.Use(limiter)
			r.Use(middleware.NoCache)
			s.registerAPI(r)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			writeJSONError(w, http.StatusNotFound, "not found")
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Studio returns the deck service.
func (s *Server) Studio() *Studio { return s.studio }

// Close stops background work and disconnects every session.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.limiterDone
		for _, sess := range s.studio.openSessions() {
			sess.close()
		}
	})
}

func (s *Server) servePage(get func() ([]byte, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		html, err := get()
		if err != nil {
			log.Printf("[HTTP] Missing page asset: %v", err)
			http.Error(w, "page not found", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(html)
	}
}

// serveAsset serves embedded client files.
func (s *Server) serveAsset(w http.ResponseWriter, r *http.Request) {
	name := path.Clean(chi.URLParam(r, "*"))
	ctype, ok := assets.ContentTypes[name]
	if !ok {
		http.NotFound(w, r)
		return
	}
	data, err := assets.ReadFile(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", ctype)
	w.Write(data)
}

// handleFrame serves a slide's raw markup for previews outside the studio.
// The sandbox directive keeps slide scripts away from this origin.
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	slide, err := s.studio.Slide(chi.URLParam(r, "id"))
	if err != nil {
		writeDeckError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", "sandbox allow-scripts")
	w.Write([]byte(slide.Code))
}
