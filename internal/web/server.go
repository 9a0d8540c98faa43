package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"portfolio/internal/profile"
	"portfolio/internal/sessions"
	"portfolio/internal/storage"
	"portfolio/internal/suggest"
)

//go:embed templates/*.html
var templateFS embed.FS

type Options struct {
	Addr           string
	AllowedOrigins []string
	Profile        profile.Profile
	Sessions       *sessions.Manager
	Board          *suggest.Board
	Recorder       storage.Recorder
}

// Server exposes the portfolio page and the assistant API.
type Server struct {
	opts      Options
	router    *mux.Router
	page      *template.Template
	upgrader  websocket.Upgrader
	server    *http.Server
	startTime time.Time
}

func NewServer(opts Options) (*Server, error) {
	page, err := template.New("index.html").Funcs(template.FuncMap{
		"add": func(a, b int) int { return a + b },
	}).ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, err
	}
	if opts.Recorder == nil {
		opts.Recorder = storage.Nop{}
	}
	s := &Server{
		opts:      opts,
		router:    mux.NewRouter(),
		page:      page,
		startTime: time.Now(),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := s.router
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/profile", s.handleProfile).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)

	api.HandleFunc("/sessions", s.handleCreateSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{id}/messages", s.handleSubmit).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/messages", s.handleClear).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{id}/draft", s.handleDraft).Methods(http.MethodPut)
	api.HandleFunc("/sessions/{id}/visibility", s.handleToggle).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/ws", s.handleEvents).Methods(http.MethodGet)

	api.HandleFunc("/projects/suggestions", s.handleSuggestions).Methods(http.MethodGet)
	api.HandleFunc("/projects/{idx:[0-9]+}/suggestion", s.handleSuggest).Methods(http.MethodPost)
}

// Handler returns the router wrapped in CORS handling.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.router)
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.opts.Addr).Msg("starting portfolio web server")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
		return err
	}
	log.Info().Msg("web server stopped")
	return nil
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	// same-host pages are always allowed
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}
