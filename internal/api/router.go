package api

import (
	"github.com/davin/policyrag/internal/api/handler"
	"github.com/davin/policyrag/internal/api/middleware"
	"github.com/davin/policyrag/internal/repository"
	"github.com/davin/policyrag/internal/service"
	"github.com/gin-gonic/gin"
)

// RouterConfig carries the dependencies and settings for the HTTP router.
type RouterConfig struct {
	Retrieval           *service.RetrievalService
	Store               *repository.MongoStore
	Jobs                *repository.IndexJobRepository
	DocumentsCollection string
	Mode                string
	AllowedOrigins      []string
	AllowAllOrigins     bool
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(cfg *RouterConfig) *gin.Engine {
	// Set Gin mode
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.AllowedOrigins,
		AllowAllOrigins: cfg.AllowAllOrigins || len(cfg.AllowedOrigins) == 0,
	}))

	// Create handlers
	healthHandler := handler.NewHealthHandler()
	searchHandler := handler.NewSearchHandler(cfg.Retrieval)
	documentHandler := handler.NewDocumentHandler(cfg.Store, cfg.DocumentsCollection)

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Search
		v1.POST("/search", searchHandler.Search)
		v1.GET("/search", searchHandler.SearchGet)

		// Documents
		v1.GET("/documents", documentHandler.ListDocuments)

		// Index jobs (only when the job ledger is enabled)
		if cfg.Jobs != nil {
			jobHandler := handler.NewJobHandler(cfg.Jobs)
			v1.GET("/jobs", jobHandler.ListJobs)
		}
	}

	return r
}
