package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/coursemate-backend/config"
	"github.com/dustin/coursemate-backend/internal/adapter"
	"github.com/dustin/coursemate-backend/internal/catalog"
	"github.com/dustin/coursemate-backend/internal/enrichment"
	"github.com/dustin/coursemate-backend/internal/metrics"
	"github.com/dustin/coursemate-backend/internal/recommendation"
	"github.com/dustin/coursemate-backend/internal/repository"
	"github.com/dustin/coursemate-backend/internal/search"
	"github.com/dustin/coursemate-backend/internal/similarity"
	"github.com/dustin/coursemate-backend/internal/vectorizer"
	"github.com/dustin/coursemate-backend/internal/vectors"
	"github.com/dustin/coursemate-backend/internal/worker"
	"github.com/dustin/coursemate-backend/pkg/database"
	"github.com/dustin/coursemate-backend/pkg/logger"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const serviceName = "coursemate-backend"

// app holds the wired service components
type app struct {
	router   *gin.Engine
	service  recommendation.Service
	enricher *enrichment.Enricher
	prewarm  *worker.Worker
}

func main() {
	// Load configuration from environment variables
	cfg := config.Load()

	// Initialize logger with validation and defaults
	appLogger, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	appLogger.Info("Starting coursemate backend service")

	application, err := newApp(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize service: " + err.Error())
	}

	// Start background processing
	if err := application.prewarm.Start(); err != nil {
		appLogger.Error("Failed to start prewarm worker: " + err.Error())
	}
	if application.enricher.Enabled() {
		go application.prewarm.RunOnce()
	}

	// Parse server configuration with defaults
	serverPort := cfg.Server.Port
	if serverPort == "" {
		serverPort = "8080" // default
	}

	serverReadTimeout := 30 * time.Second // default
	if cfg.Server.ReadTimeout != "" {
		if duration, err := time.ParseDuration(cfg.Server.ReadTimeout); err == nil {
			serverReadTimeout = duration
		}
	}

	serverWriteTimeout := 30 * time.Second // default
	if cfg.Server.WriteTimeout != "" {
		if duration, err := time.ParseDuration(cfg.Server.WriteTimeout); err == nil {
			serverWriteTimeout = duration
		}
	}

	serverEnvironment := cfg.Server.Environment
	if serverEnvironment == "" {
		serverEnvironment = "development" // default
	}

	// Start HTTP server
	srv := &http.Server{
		Addr:         ":" + serverPort,
		Handler:      application.router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
	}

	// Start server in goroutine for graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server: " + err.Error())
		}
	}()

	appLogger.Info("Server started successfully on port " + serverPort + " (" + serverEnvironment + " environment)")

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Stop prewarm worker first
	if err := application.prewarm.Stop(); err != nil {
		appLogger.Error("Error stopping prewarm worker: " + err.Error())
	}

	// Shutdown server with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Fatal("Server forced to shutdown: " + err.Error())
	}

	appLogger.Info("Server shutdown complete")
}

// newApp loads the catalog and wires every component behind the router.
// Data problems degrade the service; only invalid settings are errors.
func newApp(cfg *config.Config, appLogger *logger.Logger) (*app, error) {
	appMetrics := metrics.New()

	// Load the catalog snapshot; a missing catalog leaves the service degraded
	store := loadCatalog(cfg, appLogger)
	store = loadVectors(cfg, store, appLogger)
	appMetrics.CatalogLoaded(store.Len(), store.HasVectors())

	// Initialize ranking components over the shared store
	matcher, err := search.NewMatcher(store, cfg.Recommend.FuzzyThreshold, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize search matcher: %w", err)
	}
	similarityEngine := similarity.NewEngine(store, appLogger)

	// Initialize the metadata enricher; without a base URL it stays disabled
	enrichSettings, err := enrichment.NewSettings(&cfg.Enrichment)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize enrichment settings: %w", err)
	}
	var provider enrichment.Provider
	var httpProvider *enrichment.HTTPProvider
	if enrichSettings.Enabled() {
		httpProvider = enrichment.NewHTTPProvider(enrichSettings, appMetrics, appLogger)
		provider = httpProvider
		appLogger.Info("Metadata enrichment enabled with base URL: " + enrichSettings.BaseURL)
	} else {
		appLogger.Info("Metadata enrichment disabled, no base URL configured")
	}
	enricher := enrichment.NewEnricher(provider, enrichSettings, appMetrics, appLogger)

	// Create adapter to bridge the enricher into the recommendation service
	recommendationEnricher := adapter.NewEnricherToRecommendationEnricher(enricher)

	// Initialize business services with dependency injection
	recommendOptions, err := recommendation.NewOptions(&cfg.Recommend)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize recommendation options: %w", err)
	}
	recommendationService := recommendation.NewService(store, similarityEngine, matcher, recommendationEnricher, recommendOptions, appMetrics, appLogger)
	recommendationHandler := recommendation.NewHandler(recommendationService, appLogger)

	// Initialize background worker for enrichment cache prewarming
	prewarmWorker, err := worker.NewPrewarmWorker(&cfg.Worker, store, enricher, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize prewarm worker: %w", err)
	}

	// Setup HTTP router with middleware
	router := gin.New()

	// Configure standard middleware stack
	router.Use(requestid.New())
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID"},
	}))
	router.Use(appMetrics.Middleware())

	// Health check endpoints
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   serviceName,
		})
	})

	router.GET("/health/detailed", func(c *gin.Context) {
		status := recommendationService.Status()
		health := "healthy"
		if status.Degraded {
			health = "degraded"
		}
		breaker := "disabled"
		if httpProvider != nil {
			breaker = httpProvider.State()
		}
		c.JSON(http.StatusOK, gin.H{
			"status":         health,
			"timestamp":      time.Now(),
			"service":        serviceName,
			"model":          status,
			"enrichment":     breaker,
			"cached_items":   enricher.Cache().Len(),
			"prewarm_worker": prewarmWorker.Status(),
		})
	})

	router.GET("/metrics", gin.WrapH(appMetrics.Handler()))

	// Auth is only enforced when a secret is configured
	var authMiddleware gin.HandlerFunc
	if cfg.Auth.JWTSecret != "" {
		authMiddleware = createJWTMiddleware(cfg.Auth.JWTSecret)
		appLogger.Info("JWT authentication enabled for recommendation routes")
	}

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		recommendationHandler.RegisterRoutes(v1, authMiddleware)
	}

	// Root-level routes kept for existing clients
	recommendationHandler.RegisterRoutes(router.Group("/"), authMiddleware)

	return &app{
		router:   router,
		service:  recommendationService,
		enricher: enricher,
		prewarm:  prewarmWorker,
	}, nil
}

// loadCatalog reads the configured catalog source. Any failure yields an
// empty store so the service can still answer with empty lists.
func loadCatalog(cfg *config.Config, log *logger.Logger) *catalog.Store {
	source, err := catalogSource(cfg, log)
	if err != nil {
		log.Error("Catalog unavailable, starting degraded: " + err.Error())
		return catalog.NewEmpty()
	}

	raw, err := source.Load(context.Background())
	if err != nil {
		log.Error("Catalog unavailable, starting degraded: " + err.Error())
		return catalog.NewEmpty()
	}

	store, report := catalog.Build(raw)
	log.Info("Catalog loaded from " + source.Name() + ": " + strconv.Itoa(report.Kept) + " of " +
		strconv.Itoa(report.SourceRows) + " rows kept")
	if dropped := report.MissingTitle + report.MissingID + report.DuplicateID; dropped > 0 {
		log.Warn("Dropped " + strconv.Itoa(dropped) + " catalog rows (missing title " + strconv.Itoa(report.MissingTitle) +
			", missing id " + strconv.Itoa(report.MissingID) + ", duplicate id " + strconv.Itoa(report.DuplicateID) + ")")
	}
	return store
}

func catalogSource(cfg *config.Config, log *logger.Logger) (catalog.Source, error) {
	switch strings.ToLower(cfg.Catalog.Source) {
	case "", "file":
		path := cfg.Catalog.DataFile
		if path == "" {
			path = "data/catalog.parquet" // default
		}
		return catalog.NewFileSource(path)
	case "database":
		db, err := database.NewConnection(&cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := repository.EnsureSchema(db, cfg.Database.Table); err != nil {
			return nil, err
		}
		log.Info("Database connection established")
		return repository.NewGORMCatalogRepository(db, cfg.Database.Table, log), nil
	default:
		return nil, fmt.Errorf("invalid catalog source '%s': must be file or database", cfg.Catalog.Source)
	}
}

// loadVectors attaches the precomputed item vectors. When the file is missing
// the vectors are optionally rebuilt from the catalog; otherwise similar-item
// requests fall back to rule-based ranking.
func loadVectors(cfg *config.Config, store *catalog.Store, log *logger.Logger) *catalog.Store {
	if store.Len() == 0 {
		return store
	}

	path := cfg.Catalog.VectorFile
	if path == "" {
		path = "data/vectors.npy" // default
	}

	m, err := vectors.LoadNPY(path)
	if err == nil {
		withVectors, err := store.WithVectors(m)
		if err == nil {
			log.Info("Vectors loaded from " + path + " (" + strconv.Itoa(m.Rows()) + " x " + strconv.Itoa(m.Dim()) + ")")
			return withVectors
		}
		log.Error("Vector file does not match catalog: " + err.Error())
	} else {
		log.Warn("Vector file unavailable: " + err.Error())
	}

	build, _ := strconv.ParseBool(cfg.Catalog.BuildVectorsOnStart)
	if !build {
		log.Warn("Similar-item requests will use rule-based ranking")
		return store
	}

	opts, err := vectorizer.NewOptions(&cfg.Vectorizer)
	if err != nil {
		log.Error("Failed to build vectors: " + err.Error())
		return store
	}
	m, vocab, err := vectorizer.BuildMatrix(store, opts)
	if err != nil {
		log.Error("Failed to build vectors: " + err.Error())
		return store
	}
	withVectors, err := store.WithVectors(m)
	if err != nil {
		log.Error("Failed to attach built vectors: " + err.Error())
		return store
	}
	log.Info("Vectors built from catalog text (" + strconv.Itoa(vocab.Len()) + " terms)")
	return withVectors
}

// createJWTMiddleware creates a simple JWT validation middleware
func createJWTMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})

		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Next()
	}
}
