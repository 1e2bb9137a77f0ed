package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/davin/policyrag/internal/api"
	"github.com/davin/policyrag/internal/config"
	"github.com/davin/policyrag/internal/logger"
	"github.com/davin/policyrag/internal/repository"
	"github.com/davin/policyrag/internal/service"
)

func main() {
	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger := logger.New(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: "policyrag-api",
		LogFile:     cfg.Log.File,
		MaxSize:     100,
		MaxBackups:  5,
		MaxAge:      30,
		Compress:    true,
	})
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	if err := cfg.Embedding.Validate(); err != nil {
		appLogger.WithError(err).Fatal("Invalid embedding configuration")
	}

	ctx := context.Background()

	// Connect to the document store
	store := repository.NewMongoStore(&repository.MongoConnectionConfig{
		URI:            cfg.Mongo.URI,
		Database:       cfg.Mongo.Database,
		ConnectTimeout: cfg.Mongo.ConnectTimeout,
	})
	if err := store.Connect(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to connect to document store")
	}
	defer func() {
		if err := store.Disconnect(context.Background()); err != nil {
			appLogger.WithError(err).Warn("Failed to disconnect from document store")
		}
	}()

	indexManager := repository.NewVectorIndexManager(store)

	// Initialize the index-job ledger; the API degrades gracefully without it
	var jobRepo *repository.IndexJobRepository
	if db, err := repository.InitDB(&cfg.Database); err != nil {
		appLogger.WithError(err).Warn("Job ledger unavailable, /api/v1/jobs disabled")
	} else {
		jobRepo = repository.NewIndexJobRepository(db)
	}

	// Initialize services
	embeddingService := service.NewEmbeddingService(&service.EmbeddingServiceConfig{
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
	})

	retrievalService := service.NewRetrievalService(
		embeddingService,
		store,
		indexManager,
		appLogger,
		&service.RetrievalConfig{
			DefaultCollection: cfg.Mongo.VectorsCollection,
			DefaultIndex:      cfg.Mongo.VectorIndex,
			VectorField:       cfg.Mongo.VectorField,
			Similarity:        cfg.Mongo.Similarity,
			NumCandidates:     cfg.Search.NumCandidates,
		},
	)

	// Setup router
	router := api.SetupRouter(&api.RouterConfig{
		Retrieval:           retrievalService,
		Store:               store,
		Jobs:                jobRepo,
		DocumentsCollection: cfg.Mongo.DocumentsCollection,
		Mode:                cfg.Server.Mode,
		AllowedOrigins:      cfg.Server.CORS.AllowedOrigins,
		AllowAllOrigins:     cfg.Server.CORS.AllowAllOrigins,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		appLogger.WithField("port", cfg.Server.Port).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Fatal("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
