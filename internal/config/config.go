// Package config provides application configuration.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/lensworks/lumen/internal/log"
)

// Default configuration values.
const (
	DefaultHost              = "0.0.0.0"
	DefaultPort              = 8088
	DefaultLogLevel          = "INFO"
	DefaultScanWorkers       = 4
	DefaultDebounceInterval  = 2 * time.Second
	DefaultNearThreshold     = 5
	DefaultStoreURL          = "http://localhost:6333"
	DefaultStoreCollection   = "lumen"
	DefaultStoreDimension    = 512
	DefaultStoreBatchSize    = 64
	DefaultStoreTimeout      = 30 * time.Second
	DefaultStoreMaxRetries   = 3
	DefaultModelTimeout      = 60 * time.Second
	DefaultModelMaxRetries   = 5
	DefaultModelInitialDelay = 2 * time.Second
	DefaultModelBackoff      = 2.0
)

// AppConfig is the validated application configuration.
type AppConfig struct {
	host      string
	port      int
	dataDir   string
	cachePath string
	logLevel  string
	logFormat log.Format

	watch    WatchConfig
	store    StoreConfig
	embedder EndpointConfig
	captions EndpointConfig
}

// Host returns the admin API bind host.
func (c AppConfig) Host() string { return c.host }

// Port returns the admin API bind port.
func (c AppConfig) Port() int { return c.port }

// DataDir returns the local data directory.
func (c AppConfig) DataDir() string { return c.dataDir }

// CachePath returns the path of the embedding cache database.
func (c AppConfig) CachePath() string { return c.cachePath }

// LogLevel returns the configured log level name.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the configured log output format.
func (c AppConfig) LogFormat() log.Format { return c.logFormat }

// Watch returns the watcher configuration.
func (c AppConfig) Watch() WatchConfig { return c.watch }

// Store returns the vector store configuration.
func (c AppConfig) Store() StoreConfig { return c.store }

// Embedder returns the embedding endpoint configuration.
func (c AppConfig) Embedder() EndpointConfig { return c.embedder }

// Captions returns the caption endpoint configuration.
func (c AppConfig) Captions() EndpointConfig { return c.captions }

// WatchConfig configures the filesystem watcher and scanner.
type WatchConfig struct {
	debounce      time.Duration
	workers       int
	nearThreshold int
}

// NewWatchConfig creates a WatchConfig, substituting defaults for
// non-positive values.
func NewWatchConfig(debounce time.Duration, workers, nearThreshold int) WatchConfig {
	if debounce <= 0 {
		debounce = DefaultDebounceInterval
	}
	if workers <= 0 {
		workers = DefaultScanWorkers
	}
	if nearThreshold <= 0 {
		nearThreshold = DefaultNearThreshold
	}
	return WatchConfig{debounce: debounce, workers: workers, nearThreshold: nearThreshold}
}

// Debounce returns the quiet interval before a filesystem event is processed.
func (w WatchConfig) Debounce() time.Duration { return w.debounce }

// Workers returns the bounded parallelism used by full-corpus scans.
func (w WatchConfig) Workers() int { return w.workers }

// NearThreshold returns the default Hamming distance for near-duplicate
// clustering.
func (w WatchConfig) NearThreshold() int { return w.nearThreshold }

// StoreConfig configures the vector store client.
type StoreConfig struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	batchSize  int
	timeout    time.Duration
	maxRetries int
}

// NewStoreConfig creates a StoreConfig, substituting defaults for empty or
// non-positive values.
func NewStoreConfig(url, apiKey, collection string, dimension, batchSize int, timeout time.Duration, maxRetries int) StoreConfig {
	if url == "" {
		url = DefaultStoreURL
	}
	if collection == "" {
		collection = DefaultStoreCollection
	}
	if dimension <= 0 {
		dimension = DefaultStoreDimension
	}
	if batchSize <= 0 {
		batchSize = DefaultStoreBatchSize
	}
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	if maxRetries < 0 {
		maxRetries = DefaultStoreMaxRetries
	}
	return StoreConfig{
		url:        url,
		apiKey:     apiKey,
		collection: collection,
		dimension:  dimension,
		batchSize:  batchSize,
		timeout:    timeout,
		maxRetries: maxRetries,
	}
}

// URL returns the vector store base URL.
func (s StoreConfig) URL() string { return s.url }

// APIKey returns the vector store API key, if any.
func (s StoreConfig) APIKey() string { return s.apiKey }

// Collection returns the collection name.
func (s StoreConfig) Collection() string { return s.collection }

// Dimension returns the fixed embedding dimension.
func (s StoreConfig) Dimension() int { return s.dimension }

// BatchSize returns the number of records per bulk upsert call.
func (s StoreConfig) BatchSize() int { return s.batchSize }

// Timeout returns the per-request timeout.
func (s StoreConfig) Timeout() time.Duration { return s.timeout }

// MaxRetries returns the maximum retry count for store calls.
func (s StoreConfig) MaxRetries() int { return s.maxRetries }

// EndpointConfig configures an OpenAI-compatible model endpoint.
type EndpointConfig struct {
	baseURL       string
	apiKey        string
	model         string
	timeout       time.Duration
	maxRetries    int
	initialDelay  time.Duration
	backoffFactor float64
}

// NewEndpointConfig creates an EndpointConfig, substituting defaults for
// non-positive values.
func NewEndpointConfig(baseURL, apiKey, model string, timeout time.Duration, maxRetries int, initialDelay time.Duration, backoffFactor float64) EndpointConfig {
	if timeout <= 0 {
		timeout = DefaultModelTimeout
	}
	if maxRetries < 0 {
		maxRetries = DefaultModelMaxRetries
	}
	if initialDelay <= 0 {
		initialDelay = DefaultModelInitialDelay
	}
	if backoffFactor <= 0 {
		backoffFactor = DefaultModelBackoff
	}
	return EndpointConfig{
		baseURL:       baseURL,
		apiKey:        apiKey,
		model:         model,
		timeout:       timeout,
		maxRetries:    maxRetries,
		initialDelay:  initialDelay,
		backoffFactor: backoffFactor,
	}
}

// BaseURL returns the endpoint base URL.
func (e EndpointConfig) BaseURL() string { return e.baseURL }

// APIKey returns the endpoint API key.
func (e EndpointConfig) APIKey() string { return e.apiKey }

// Model returns the model identifier.
func (e EndpointConfig) Model() string { return e.model }

// Timeout returns the request timeout.
func (e EndpointConfig) Timeout() time.Duration { return e.timeout }

// MaxRetries returns the maximum retry count.
func (e EndpointConfig) MaxRetries() int { return e.maxRetries }

// InitialDelay returns the initial retry delay.
func (e EndpointConfig) InitialDelay() time.Duration { return e.initialDelay }

// BackoffFactor returns the retry backoff multiplier.
func (e EndpointConfig) BackoffFactor() float64 { return e.backoffFactor }

// IsConfigured reports whether the endpoint has a model configured.
func (e EndpointConfig) IsConfigured() bool { return e.model != "" }

// defaultDataDir resolves the default data directory (~/.lumen, falling back
// to the working directory when the home directory cannot be determined).
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lumen"
	}
	return filepath.Join(home, ".lumen")
}
