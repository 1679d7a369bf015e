package app

import (
	"context"
	"log"
	"time"

	"github.com/okoro-dev/translingo/internal/config"
	"github.com/okoro-dev/translingo/internal/core"
	db "github.com/okoro-dev/translingo/internal/core/database"
	"github.com/okoro-dev/translingo/internal/core/extraction"
	"github.com/okoro-dev/translingo/internal/core/llm"
	objectclient "github.com/okoro-dev/translingo/internal/core/object-client"
	"github.com/okoro-dev/translingo/internal/session"
)

type App struct {
	Store      core.StoreClient
	Translator *llm.GeminiTranslator
	Sessions   *session.Manager
	Server     *Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	store, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Database initialized and ready.")

	translator, err := llm.NewGeminiTranslator(appCtx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		return nil, err
	}

	extractor := extraction.NewDocconvExtractor()

	objClient, err := objectclient.NewS3Client(appCtx, cfg)
	if err != nil {
		log.Printf("Upload archiving disabled: %v", err)
		objClient = nil
	}

	sessions := session.NewManager(store, translator, extractor, cfg.GenModel, cfg.FromLang, cfg.ToLang)

	server := NewServer(cfg, store, translator, extractor, objClient, sessions)

	return &App{Store: store, Translator: translator, Sessions: sessions, Server: server}, nil
}

func (a *App) Close() {
	if a.Translator != nil {
		_ = a.Translator.Close()
	}
	if a.Store != nil {
		_ = a.Store.Close()
	}
}
