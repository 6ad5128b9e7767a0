package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"golang.org/x/text/language"

	"github.com/oMygpt/readitdeep/internal/pipeline"
	"github.com/oMygpt/readitdeep/internal/progress"
	"github.com/oMygpt/readitdeep/internal/store"
	"github.com/oMygpt/readitdeep/internal/translate"
)

const defaultMaxUploadBytes = 100 * 1024 * 1024

// Server is the HTTP surface of the pipeline: uploads, point status reads,
// SSE and websocket progress streams, retriggering and translation.
type Server struct {
	orchestrator *pipeline.Orchestrator
	translator   *translate.Translator
	publisher    *progress.Publisher
	store        *store.Dual

	dataDir         string
	defaultLanguage language.Tag
	maxUploadBytes  int64

	upgrader websocket.Upgrader

	router *chi.Mux
	server *http.Server
}

type Option func(*Server)

func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		s.maxUploadBytes = n
	}
}

func WithDefaultLanguage(tag language.Tag) Option {
	return func(s *Server) {
		s.defaultLanguage = tag
	}
}

func NewServer(
	orchestrator *pipeline.Orchestrator,
	translator *translate.Translator,
	publisher *progress.Publisher,
	dual *store.Dual,
	dataDir string,
	opts ...Option,
) *Server {
	s := &Server{
		orchestrator:    orchestrator,
		translator:      translator,
		publisher:       publisher,
		store:           dual,
		dataDir:         dataDir,
		defaultLanguage: language.Chinese,
		maxUploadBytes:  defaultMaxUploadBytes,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		router: chi.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)

	s.router.Post("/api/papers", s.handleUpload)
	s.router.Get("/api/papers/{id}", s.handleStatus)
	s.router.Get("/api/papers/{id}/stream", s.handleStream)
	s.router.Get("/api/papers/{id}/ws", s.handleStreamWS)
	s.router.Post("/api/papers/{id}/retrigger", s.handleRetrigger)
	s.router.Post("/api/papers/{id}/translate", s.handleTranslate)
	s.router.Get("/api/jobs", s.handleListJobs)
	s.router.Get("/healthz", s.handleHealth)

	assetFS := http.FileServer(http.Dir(s.assetDir()))
	s.router.Handle("/uploads/assets/*", http.StripPrefix("/uploads/assets/", assetFS))
}
