// Package config provides configuration loading and structs for the Benkyo server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Gemini  GeminiConfig  `yaml:"gemini"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Query   QueryConfig   `yaml:"query"`
	OCR     OCRConfig     `yaml:"ocr"`
	Watch   WatchConfig   `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the vector database, catalog, keyword index,
// and the extracted-image store.
type StorageConfig struct {
	VectorDBPath     string `yaml:"vector_db_path"`
	CatalogPath      string `yaml:"catalog_path"`
	KeywordIndexPath string `yaml:"keyword_index_path"`
	ImageStorePath   string `yaml:"image_store_path"`
	CollectionName   string `yaml:"collection_name"`
}

// GeminiConfig holds remote model settings. The API key is never read from
// YAML; it comes from the GEMINI_API_KEY environment variable (a local .env
// file is honored by the CLI before config load).
type GeminiConfig struct {
	APIKey          string        `yaml:"-"`
	BaseURL         string        `yaml:"base_url"`
	GenerationModel string        `yaml:"generation_model"`
	EmbeddingModel  string        `yaml:"embedding_model"`
	Timeout         time.Duration `yaml:"timeout"`
}

// IngestConfig holds chunking and upload settings.
type IngestConfig struct {
	ChunkSize    int           `yaml:"chunk_size"`
	ChunkOverlap int           `yaml:"chunk_overlap"`
	BatchSize    int           `yaml:"batch_size"`
	PacingDelay  time.Duration `yaml:"pacing_delay"`
	QuotaBackoff time.Duration `yaml:"quota_backoff"`
	// MaxRetries bounds quota retries per batch; 0 means retry until the
	// quota clears.
	MaxRetries int `yaml:"max_retries"`
}

// QueryConfig holds retrieval-augmented query settings.
type QueryConfig struct {
	TopK         int           `yaml:"top_k"`
	QuotaBackoff time.Duration `yaml:"quota_backoff"`
	MaxRetries   int           `yaml:"max_retries"`
}

// OCRConfig holds OCR engine settings.
type OCRConfig struct {
	// Enabled turns OCR of embedded and standalone images on or off.
	Enabled *bool `yaml:"enabled"`
	// TesseractPath is the tesseract binary; resolved from PATH when empty.
	TesseractPath string `yaml:"tesseract_path"`
	Language      string `yaml:"language"`
}

// EnabledOrDefault returns whether OCR is enabled; defaults to true when unset.
func (o *OCRConfig) EnabledOrDefault() bool {
	if o.Enabled != nil {
		return *o.Enabled
	}
	return true
}

// WatchConfig holds notes-directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, expands paths, applies
// defaults, and picks up the API key from the environment.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.VectorDBPath = expandPath(cfg.Storage.VectorDBPath, configDir)
	cfg.Storage.CatalogPath = expandPath(cfg.Storage.CatalogPath, configDir)
	cfg.Storage.KeywordIndexPath = expandPath(cfg.Storage.KeywordIndexPath, configDir)
	cfg.Storage.ImageStorePath = expandPath(cfg.Storage.ImageStorePath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	cfg.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
