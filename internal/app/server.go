package app

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/okoro-dev/translingo/internal/api/handlers"
	appMiddleware "github.com/okoro-dev/translingo/internal/api/middlewares"
	"github.com/okoro-dev/translingo/internal/config"
	"github.com/okoro-dev/translingo/internal/core"
	"github.com/okoro-dev/translingo/internal/session"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, store core.StoreClient, tr core.Translator, ex core.Extractor, obj core.ObjectClient, sessions *session.Manager) *Server {
	authHandler := handlers.NewAuthHandler(store, cfg.JWTSecret)
	translateHandler := handlers.NewTranslateHandler(tr)
	extractHandler := handlers.NewExtractHandler(ex, obj, cfg)
	chatHandler := handlers.NewChatHandler(sessions, obj, cfg)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Post("/signup", authHandler.Signup)
		api.Post("/login", authHandler.Login)

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware(cfg.JWTSecret))

			protected.Post("/translate", translateHandler.Translate)
			protected.Post("/extract", extractHandler.Extract)

			protected.Get("/chats", chatHandler.ListChats)
			protected.Post("/chats", chatHandler.NewChat)
			protected.Delete("/chats/{id}", chatHandler.DeleteChat)
			protected.Get("/chats/{id}/messages", chatHandler.ListMessages)
			protected.Post("/chats/{id}/messages", chatHandler.SendMessage)
			protected.Post("/chats/{id}/files", chatHandler.AttachFiles)

			protected.Get("/session", chatHandler.GetSession)
			protected.Put("/session/languages", chatHandler.SetLanguages)
			protected.Delete("/session/errors", chatHandler.DismissErrors)
			protected.Delete("/session/attachments/{id}", chatHandler.RemoveAttachment)
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv}
}

// Start runs the HTTP server.
func (s *Server) Start() {
	log.Printf("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
