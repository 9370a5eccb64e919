package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8087
	}
	if cfg.Storage.VectorDBPath == "" {
		cfg.Storage.VectorDBPath = "/usr/local/var/benkyo/data/db/vectors"
	}
	if cfg.Storage.CatalogPath == "" {
		cfg.Storage.CatalogPath = "/usr/local/var/benkyo/data/db/catalog.db"
	}
	if cfg.Storage.KeywordIndexPath == "" {
		cfg.Storage.KeywordIndexPath = "/usr/local/var/benkyo/data/indices/bleve"
	}
	if cfg.Storage.ImageStorePath == "" {
		cfg.Storage.ImageStorePath = "/usr/local/var/benkyo/data/images"
	}
	if cfg.Storage.CollectionName == "" {
		cfg.Storage.CollectionName = "university_notes"
	}
	if cfg.Gemini.BaseURL == "" {
		cfg.Gemini.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Gemini.GenerationModel == "" {
		cfg.Gemini.GenerationModel = "gemini-2.0-flash"
	}
	if cfg.Gemini.EmbeddingModel == "" {
		cfg.Gemini.EmbeddingModel = "gemini-embedding-001"
	}
	if cfg.Gemini.Timeout == 0 {
		cfg.Gemini.Timeout = 120 * time.Second
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 1000
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 50
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = 15
	}
	if cfg.Ingest.PacingDelay == 0 {
		cfg.Ingest.PacingDelay = 2 * time.Second
	}
	if cfg.Ingest.QuotaBackoff == 0 {
		cfg.Ingest.QuotaBackoff = 60 * time.Second
	}
	if cfg.Query.TopK == 0 {
		cfg.Query.TopK = 5
	}
	if cfg.Query.QuotaBackoff == 0 {
		cfg.Query.QuotaBackoff = 60 * time.Second
	}
	if cfg.OCR.Language == "" {
		cfg.OCR.Language = "eng"
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".pdf", ".pptx", ".xlsx", ".png", ".jpg", ".jpeg"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
