package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/docreader/internal/ai"
	cfgpkg "github.com/local/docreader/internal/config"
	"github.com/local/docreader/internal/extract"
	"github.com/local/docreader/internal/imagerender"
	"github.com/local/docreader/internal/limiter"
	logpkg "github.com/local/docreader/internal/logger"
	"github.com/local/docreader/internal/metrics"
	"github.com/local/docreader/internal/pages"
	"github.com/local/docreader/internal/pdfcheck"
	"github.com/local/docreader/internal/reader"
	"github.com/local/docreader/internal/session"
	"github.com/local/docreader/internal/storage"
	"github.com/local/docreader/internal/store"
	web "github.com/local/docreader/internal/web"
)

func main() {
	cfg := cfgpkg.FromEnv()

	_ = logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	})
	defer logpkg.Close()

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	metrics.Init()

	docs, err := store.NewDocumentStore(cfg.Session.RedisURL, cfg.Session.TTL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init document store")
	}
	defer docs.Close()

	sessions, err := session.NewStore(cfg.Session.RedisURL, cfg.Session.TTL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init session store")
	}
	defer sessions.Close()

	backend, err := newStorageBackend(cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init storage backend")
	}

	aiClient, err := ai.NewClient(ai.Config{
		APIKey:         cfg.Retrieval.OpenAIAPIKey,
		BaseURL:        cfg.Retrieval.OpenAIBaseURL,
		ChatModel:      cfg.Retrieval.ChatModel,
		EmbeddingModel: cfg.Retrieval.EmbeddingModel,
		Temperature:    float32(cfg.Retrieval.Temperature),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init AI client")
	}

	svc := reader.New(
		reader.Options{
			Window: pages.Window{
				Before: cfg.Reader.ContextPagesBefore,
				After:  cfg.Reader.ContextPagesAfter,
			},
			DefaultPage: cfg.Reader.DefaultPage,
			Render: imagerender.Options{
				DPI:       cfg.Reader.ImageDPI,
				Quality:   cfg.Reader.JPEGQuality,
				ColorMode: imagerender.ColorMode(cfg.Reader.ColorMode),
			},
			TopK:          cfg.Retrieval.TopK,
			TextThreshold: cfg.Retrieval.TextThreshold,
		},
		reader.Dependencies{
			Docs:      docs,
			Sessions:  sessions,
			Limiter:   limiter.New(limiter.Options{Cooldown: cfg.Session.Cooldown, MaxQueries: cfg.Session.MaxQueries}),
			Storage:   backend,
			Embedder:  aiClient,
			Answerer:  aiClient,
			Extractor: extract.New(),
			Raster:    imagerender.NewCache(imagerender.Fitz{}),
			Checker: func(pdfPath string, threshold int) (bool, error) {
				ok, _, err := pdfcheck.HasExtractableText(pdfPath, threshold)
				return ok, err
			},
		},
	)

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	mux.Handle("/metrics", metrics.Handler())

	// Dashboard
	w := web.New()
	w.RegisterRoutes(mux)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{Addr: ":" + port, Handler: mux}

	go func() {
		log.Info().Msgf("HTTP server listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("shutdown complete")
}

func newStorageBackend(cfg cfgpkg.StorageConfig) (storage.Backend, error) {
	switch cfg.Backend {
	case "", "local":
		return storage.NewLocal(cfg.UploadDir)
	case "s3":
		return storage.NewS3(context.Background(), storage.S3Options{
			Bucket:     cfg.S3Bucket,
			Prefix:     cfg.S3Prefix,
			Passphrase: cfg.Passphrase,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}
