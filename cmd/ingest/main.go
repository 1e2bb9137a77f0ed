package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/davin/policyrag/internal/config"
	"github.com/davin/policyrag/internal/logger"
	"github.com/davin/policyrag/internal/repository"
	"github.com/davin/policyrag/internal/service"
)

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "policyrag-ingest",
	})
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Parse command line flags
	dir := flag.String("dir", "", "Folder of .txt documents to index (defaults to ingest.documents_dir)")
	clear := flag.Bool("clear", false, "Delete all existing documents and vectors before indexing")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	if err := cfg.Embedding.Validate(); err != nil {
		appLogger.WithError(err).Fatal("Invalid embedding configuration")
	}

	folder := *dir
	if folder == "" {
		folder = cfg.Ingest.DocumentsDir
	}

	appLogger.WithFields(logger.Fields{
		logger.FieldFolder: folder,
		"clear":            *clear,
	}).Info("Starting document ingestion")

	// Cancel the run on SIGINT/SIGTERM; the indexer stops between files
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		appLogger.Warn("Interrupt received, stopping after current file")
		cancel()
	}()

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

	// Initialize the index-job ledger
	var jobRepo *repository.IndexJobRepository
	if db, err := repository.InitDB(&cfg.Database); err != nil {
		appLogger.WithError(err).Warn("Job ledger unavailable, run will not be recorded")
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

	indexer := service.NewFolderIndexer(store, retrievalService, jobRepo, appLogger, &service.IndexerConfig{
		DocumentsCollection: cfg.Mongo.DocumentsCollection,
		VectorsCollection:   cfg.Mongo.VectorsCollection,
		IndexName:           cfg.Mongo.VectorIndex,
	})

	stats, err := indexer.IndexFolder(ctx, folder, &service.IndexFolderOptions{Clear: *clear})
	if err != nil {
		appLogger.WithError(err).Fatal("Ingestion failed")
	}

	appLogger.WithFields(logger.Fields{
		"total":   stats.TotalFiles,
		"indexed": stats.IndexedFiles,
		"skipped": stats.SkippedFiles,
		"failed":  stats.FailedFiles,
	}).Info("Ingestion completed")
}
