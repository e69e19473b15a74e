package config

import (
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/lensworks/lumen/internal/log"
)

// EnvConfig holds all environment-based configuration. Variables carry the
// LUMEN_ prefix; nested structs use underscore delimiters
// (e.g. LUMEN_STORE_URL, LUMEN_EMBEDDING_MODEL).
type EnvConfig struct {
	// Host is the admin API host to bind to.
	// Env: LUMEN_HOST (default: 0.0.0.0)
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// Port is the admin API port to listen on.
	// Env: LUMEN_PORT (default: 8088)
	Port int `envconfig:"PORT" default:"8088"`

	// DataDir is the local data directory.
	// Env: LUMEN_DATA_DIR
	// Default: ~/.lumen
	DataDir string `envconfig:"DATA_DIR"`

	// CachePath is the embedding cache database path.
	// Env: LUMEN_CACHE_PATH
	// Default: {data_dir}/embeddings.db
	CachePath string `envconfig:"CACHE_PATH"`

	// LogLevel is the log verbosity level.
	// Env: LUMEN_LOG_LEVEL (default: INFO)
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// LogFormat is the log output format (pretty or json).
	// Env: LUMEN_LOG_FORMAT (default: pretty)
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// DebounceSeconds is the quiet interval before a filesystem event
	// becomes stable.
	// Env: LUMEN_DEBOUNCE_SECONDS (default: 2)
	DebounceSeconds float64 `envconfig:"DEBOUNCE_SECONDS" default:"2"`

	// ScanWorkers bounds parallelism during full-corpus scans.
	// Env: LUMEN_SCAN_WORKERS (default: 4)
	ScanWorkers int `envconfig:"SCAN_WORKERS" default:"4"`

	// NearThreshold is the default Hamming distance for near-duplicate
	// clustering.
	// Env: LUMEN_NEAR_THRESHOLD (default: 5)
	NearThreshold int `envconfig:"NEAR_THRESHOLD" default:"5"`

	// Store configures the vector store.
	Store StoreEnv `envconfig:"STORE"`

	// Embedding configures the embedding model endpoint.
	Embedding EndpointEnv `envconfig:"EMBEDDING"`

	// Caption configures the caption model endpoint.
	Caption EndpointEnv `envconfig:"CAPTION"`
}

// StoreEnv holds environment configuration for the vector store.
type StoreEnv struct {
	// URL is the vector store base URL.
	// Env: LUMEN_STORE_URL (default: http://localhost:6333)
	URL string `envconfig:"URL" default:"http://localhost:6333"`

	// APIKey authenticates requests to the store.
	// Env: LUMEN_STORE_API_KEY
	APIKey string `envconfig:"API_KEY"`

	// Collection is the collection holding index records.
	// Env: LUMEN_STORE_COLLECTION (default: lumen)
	Collection string `envconfig:"COLLECTION" default:"lumen"`

	// Dimension is the fixed embedding dimension.
	// Env: LUMEN_STORE_DIMENSION (default: 512)
	Dimension int `envconfig:"DIMENSION" default:"512"`

	// BatchSize is the number of records per bulk upsert.
	// Env: LUMEN_STORE_BATCH_SIZE (default: 64)
	BatchSize int `envconfig:"BATCH_SIZE" default:"64"`

	// TimeoutSeconds is the per-request timeout.
	// Env: LUMEN_STORE_TIMEOUT_SECONDS (default: 30)
	TimeoutSeconds float64 `envconfig:"TIMEOUT_SECONDS" default:"30"`

	// MaxRetries is the maximum retry count per call.
	// Env: LUMEN_STORE_MAX_RETRIES (default: 3)
	MaxRetries int `envconfig:"MAX_RETRIES" default:"3"`
}

// EndpointEnv holds environment configuration for a model endpoint.
type EndpointEnv struct {
	// BaseURL is the endpoint base URL.
	// Env: *_BASE_URL
	BaseURL string `envconfig:"BASE_URL"`

	// APIKey authenticates against the endpoint.
	// Env: *_API_KEY
	APIKey string `envconfig:"API_KEY"`

	// Model is the model identifier.
	// Env: *_MODEL
	Model string `envconfig:"MODEL"`

	// TimeoutSeconds is the request timeout.
	// Env: *_TIMEOUT_SECONDS (default: 60)
	TimeoutSeconds float64 `envconfig:"TIMEOUT_SECONDS" default:"60"`

	// MaxRetries is the maximum retry count.
	// Env: *_MAX_RETRIES (default: 5)
	MaxRetries int `envconfig:"MAX_RETRIES" default:"5"`

	// InitialDelaySeconds is the initial retry delay.
	// Env: *_INITIAL_DELAY_SECONDS (default: 2)
	InitialDelaySeconds float64 `envconfig:"INITIAL_DELAY_SECONDS" default:"2"`

	// BackoffFactor is the retry backoff multiplier.
	// Env: *_BACKOFF_FACTOR (default: 2)
	BackoffFactor float64 `envconfig:"BACKOFF_FACTOR" default:"2"`
}

// LoadFromEnv loads configuration from LUMEN_-prefixed environment variables.
func LoadFromEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process("lumen", &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// ToAppConfig converts the raw environment configuration into a validated
// AppConfig, resolving defaults that depend on other fields.
func (e EnvConfig) ToAppConfig() AppConfig {
	dataDir := e.DataDir
	if dataDir == "" {
		dataDir = defaultDataDir()
	}

	cachePath := e.CachePath
	if cachePath == "" {
		cachePath = filepath.Join(dataDir, "embeddings.db")
	}

	format := log.FormatPretty
	if log.Format(e.LogFormat) == log.FormatJSON {
		format = log.FormatJSON
	}

	return AppConfig{
		host:      e.Host,
		port:      e.Port,
		dataDir:   dataDir,
		cachePath: cachePath,
		logLevel:  e.LogLevel,
		logFormat: format,
		watch: NewWatchConfig(
			secondsToDuration(e.DebounceSeconds),
			e.ScanWorkers,
			e.NearThreshold,
		),
		store: NewStoreConfig(
			e.Store.URL,
			e.Store.APIKey,
			e.Store.Collection,
			e.Store.Dimension,
			e.Store.BatchSize,
			secondsToDuration(e.Store.TimeoutSeconds),
			e.Store.MaxRetries,
		),
		embedder: e.Embedding.toEndpointConfig(),
		captions: e.Caption.toEndpointConfig(),
	}
}

func (e EndpointEnv) toEndpointConfig() EndpointConfig {
	return NewEndpointConfig(
		e.BaseURL,
		e.APIKey,
		e.Model,
		secondsToDuration(e.TimeoutSeconds),
		e.MaxRetries,
		secondsToDuration(e.InitialDelaySeconds),
		e.BackoffFactor,
	)
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
