package config

import "os"

// Load reads configuration from environment variables as raw strings
// Components handle validation and defaults during initialization
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         os.Getenv("SERVER_PORT"),
			Environment:  os.Getenv("SERVER_ENV"),
			ReadTimeout:  os.Getenv("SERVER_READ_TIMEOUT"),
			WriteTimeout: os.Getenv("SERVER_WRITE_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Host:     os.Getenv("DB_HOST"),
			Port:     os.Getenv("DB_PORT"),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			DBName:   os.Getenv("DB_NAME"),
			SSLMode:  os.Getenv("DB_SSLMODE"),
			Table:    os.Getenv("DB_CATALOG_TABLE"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("AUTH_JWT_SECRET"),
		},
		Worker: WorkerConfig{
			PrewarmInterval: os.Getenv("WORKER_PREWARM_INTERVAL"),
			PrewarmCount:    os.Getenv("WORKER_PREWARM_COUNT"),
		},
		Logging: LoggingConfig{
			Level:       os.Getenv("LOG_LEVEL"),
			Format:      os.Getenv("LOG_FORMAT"),
			ServiceName: os.Getenv("SERVICE_NAME"),
			Dir:         os.Getenv("LOG_DIR"),
		},
		Catalog: CatalogConfig{
			Source:              os.Getenv("CATALOG_SOURCE"),
			DataFile:            os.Getenv("CATALOG_DATA_FILE"),
			VectorFile:          os.Getenv("CATALOG_VECTOR_FILE"),
			BuildVectorsOnStart: os.Getenv("CATALOG_BUILD_VECTORS"),
		},
		Vectorizer: VectorizerConfig{
			MaxFeatures: os.Getenv("VECTORIZER_MAX_FEATURES"),
			MinDF:       os.Getenv("VECTORIZER_MIN_DF"),
			MaxDF:       os.Getenv("VECTORIZER_MAX_DF"),
		},
		Recommend: RecommendConfig{
			DefaultLimit:       os.Getenv("RECOMMEND_DEFAULT_LIMIT"),
			MaxLimit:           os.Getenv("RECOMMEND_MAX_LIMIT"),
			OverSelectFactor:   os.Getenv("RECOMMEND_OVERSELECT_FACTOR"),
			MinCandidates:      os.Getenv("RECOMMEND_MIN_CANDIDATES"),
			RequestTimeout:     os.Getenv("RECOMMEND_REQUEST_TIMEOUT"),
			FuzzyThreshold:     os.Getenv("RECOMMEND_FUZZY_THRESHOLD"),
			TopRatedMinReviews: os.Getenv("RECOMMEND_TOP_RATED_MIN_REVIEWS"),
			TopRatedMinRating:  os.Getenv("RECOMMEND_TOP_RATED_MIN_RATING"),
		},
		Enrichment: EnrichmentConfig{
			BaseURL:        os.Getenv("ENRICHMENT_BASE_URL"),
			ItemPath:       os.Getenv("ENRICHMENT_ITEM_PATH"),
			APIKey:         os.Getenv("ENRICHMENT_API_KEY"),
			AuthMode:       os.Getenv("ENRICHMENT_AUTH_MODE"),
			Timeout:        os.Getenv("ENRICHMENT_TIMEOUT"),
			MaxConcurrency: os.Getenv("ENRICHMENT_MAX_CONCURRENCY"),
			RateLimit:      os.Getenv("ENRICHMENT_RATE_LIMIT"),
			Burst:          os.Getenv("ENRICHMENT_BURST"),
			CacheSize:      os.Getenv("ENRICHMENT_CACHE_SIZE"),
			CacheTTL:       os.Getenv("ENRICHMENT_CACHE_TTL"),
			UserAgent:      os.Getenv("ENRICHMENT_USER_AGENT"),
			ImageBaseURL:   os.Getenv("ENRICHMENT_IMAGE_BASE_URL"),
		},
	}
}
