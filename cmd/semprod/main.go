package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alexbevz/ai-istok-sem-pro/internal/auth"
	"github.com/alexbevz/ai-istok-sem-pro/internal/config"
	"github.com/alexbevz/ai-istok-sem-pro/internal/embedder"
	"github.com/alexbevz/ai-istok-sem-pro/internal/repository/postgres"
	"github.com/alexbevz/ai-istok-sem-pro/internal/server"
	"github.com/alexbevz/ai-istok-sem-pro/internal/service"
	"github.com/alexbevz/ai-istok-sem-pro/internal/similarity"
	"github.com/alexbevz/ai-istok-sem-pro/internal/vectorstore"
)

func main() {
	if err := run(); err != nil {
		slog.Error("failed to run server", "error", err)
		os.Exit(1)
	}
}

func parseLogLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Set up structured logging at the configured level
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	metric, err := similarity.ParseMetric(cfg.DefaultMetric)
	if err != nil {
		return fmt.Errorf("invalid metric in config: %w", err)
	}

	slog.Info("starting semantic search service",
		"http_port", cfg.HTTPPort,
		"environment", cfg.Environment,
		"metric", metric,
	)

	// Initialize PostgreSQL
	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	slog.Info("connected to PostgreSQL")

	// Initialize repositories
	userRepo := postgres.NewUserRepo(db)
	collectionRepo := postgres.NewCollectionRepo(db)
	itemRepo := postgres.NewItemRepo(db)

	// Initialize Qdrant vector store
	vectorStore, err := vectorstore.NewQdrantStore(ctx, cfg.QdrantAddr)
	if err != nil {
		return fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	defer vectorStore.Close()
	slog.Info("connected to Qdrant")

	// Initialize Ollama embedder
	embed := embedder.NewOllamaEmbedder(embedder.OllamaConfig{
		BaseURL:   cfg.OllamaURL,
		Model:     cfg.OllamaEmbeddingModel,
		Dimension: cfg.EmbeddingDimension,
	})
	slog.Info("initialized Ollama embedder", "model", embed.ModelName(), "dimension", embed.Dimension())

	// Initialize auth
	jwtConfig := auth.DefaultJWTConfig(cfg.JWTSecret)
	jwtConfig.AccessExpiry = cfg.JWTAccessExpiry
	jwtConfig.RefreshExpiry = cfg.JWTRefreshExpiry
	jwtManager := auth.NewJWTManager(jwtConfig)

	// Initialize services
	accountSvc := service.NewAccountService(userRepo, jwtManager)
	collectionSvc := service.NewCollectionService(collectionRepo, itemRepo, vectorStore, embed.Dimension(), metric, slog.Default())
	itemSvc := service.NewItemService(collectionRepo, itemRepo, vectorStore, embed, cfg.MaxBatchSize, slog.Default())
	proximitySvc := service.NewProximityService(collectionRepo, itemSvc, vectorStore, embed, metric, slog.Default())

	// Create HTTP server
	httpServer := server.NewHTTPServer(server.HTTPServerConfig{
		Port:            cfg.HTTPPort,
		Logger:          slog.Default(),
		JWTManager:      jwtManager,
		Accounts:        accountSvc,
		Collections:     collectionSvc,
		Items:           itemSvc,
		Proximity:       proximitySvc,
		DefaultTopK:     cfg.DefaultTopK,
		DefaultMinScore: cfg.DefaultMinScore,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown HTTP server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
