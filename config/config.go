package config

// Config contains all configuration grouped by domain
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Auth       AuthConfig
	Worker     WorkerConfig
	Logging    LoggingConfig
	Catalog    CatalogConfig
	Vectorizer VectorizerConfig
	Recommend  RecommendConfig
	Enrichment EnrichmentConfig
}

// All config structs use string fields only - packages handle conversion during initialization
type ServerConfig struct {
	Port         string
	Environment  string
	ReadTimeout  string
	WriteTimeout string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	Table    string
}

// AuthConfig enables bearer-token auth on the API when Secret is set
type AuthConfig struct {
	JWTSecret string
}

type WorkerConfig struct {
	PrewarmInterval string
	PrewarmCount    string
}

type LoggingConfig struct {
	Level       string
	Format      string
	ServiceName string
	Dir         string
}

// CatalogConfig describes where the catalog snapshot and its vectors come from
type CatalogConfig struct {
	Source              string // "file" or "database"
	DataFile            string
	VectorFile          string
	BuildVectorsOnStart string
}

type VectorizerConfig struct {
	MaxFeatures string
	MinDF       string
	MaxDF       string
}

type RecommendConfig struct {
	DefaultLimit       string
	MaxLimit           string
	OverSelectFactor   string
	MinCandidates      string
	RequestTimeout     string
	FuzzyThreshold     string
	TopRatedMinReviews string
	TopRatedMinRating  string
}

type EnrichmentConfig struct {
	BaseURL        string
	ItemPath       string
	APIKey         string
	AuthMode       string
	Timeout        string
	MaxConcurrency string
	RateLimit      string
	Burst          string
	CacheSize      string
	CacheTTL       string
	UserAgent      string
	ImageBaseURL   string
}
