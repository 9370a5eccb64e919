package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/hyperjump/benkyo/internal/models"
	"github.com/hyperjump/benkyo/internal/retry"
	"github.com/hyperjump/benkyo/internal/storage"
	"github.com/hyperjump/benkyo/internal/vector"
	"go.uber.org/zap"
)

// Default upload pacing, sized to stay under free-tier rate limits.
const (
	DefaultBatchSize    = 15
	DefaultPacingDelay  = 2 * time.Second
	DefaultQuotaBackoff = 60 * time.Second
)

// Progress weighting between the extraction and embedding phases.
const (
	extractWeight = 0.3
	embedWeight   = 0.7
)

// Extractor turns a document file into per-page text records.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]models.Page, error)
}

// Lexical is the keyword index fed alongside the vector store. Optional.
type Lexical interface {
	Add(chunks []models.Chunk) error
	DeleteSource(source string) error
}

// ProgressFunc receives human-readable status lines with a completion
// fraction in [0, 1]. The fraction never decreases over one ingestion run.
type ProgressFunc func(status string, fraction float64)

// Outcome is the user-facing result of an ingestion run. Failures that the
// user can act on (empty files, exhausted retries) are reported here rather
// than as errors; OK distinguishes the two.
type Outcome struct {
	OK             bool
	Message        string
	FilesProcessed int
	ChunkCount     int
}

// PipelineConfig tunes the upload loop. Zero values take the defaults.
type PipelineConfig struct {
	BatchSize    int
	PacingDelay  time.Duration
	QuotaBackoff time.Duration
	MaxRetries   int // retry attempts per batch on quota errors; 0 means retry until ctx cancel
}

func (c *PipelineConfig) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.PacingDelay == 0 {
		c.PacingDelay = DefaultPacingDelay
	}
	if c.QuotaBackoff == 0 {
		c.QuotaBackoff = DefaultQuotaBackoff
	}
}

// Pipeline ingests documents end to end: extract, chunk, embed in paced
// batches, and record provenance in the catalog and keyword index.
type Pipeline struct {
	extractor Extractor
	chunker   *Chunker
	index     vector.Index
	catalog   storage.Catalog
	lexical   Lexical
	cfg       PipelineConfig
	retryable func(error) bool
	logger    *zap.Logger
	sleep     func(ctx context.Context, d time.Duration)
}

// NewPipeline assembles an ingestion pipeline. lexical and logger may be
// nil. retryable decides which upload errors are worth waiting out; it is
// normally the quota predicate of the embedding backend.
func NewPipeline(cfg PipelineConfig, extractor Extractor, chunker *Chunker,
	index vector.Index, catalog storage.Catalog, lexical Lexical,
	retryable func(error) bool, logger *zap.Logger) *Pipeline {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		extractor: extractor,
		chunker:   chunker,
		index:     index,
		catalog:   catalog,
		lexical:   lexical,
		cfg:       cfg,
		retryable: retryable,
		logger:    logger,
		sleep:     sleepCtx,
	}
}

// Ingest processes the given files and uploads their chunks. Per-file
// extraction failures are logged and skipped; the run fails only when
// nothing could be extracted at all or the store rejects an upload with a
// non-retryable error. progress may be nil.
func (p *Pipeline) Ingest(ctx context.Context, paths []string, progress ProgressFunc) Outcome {
	if progress == nil {
		progress = func(string, float64) {}
	}

	var chunks []models.Chunk
	filesProcessed := 0
	for i, path := range paths {
		progress(fmt.Sprintf("Analyzing: %s...", path), extractWeight*float64(i)/float64(len(paths)))
		pages, err := p.extractor.Extract(ctx, path)
		if err != nil {
			p.logger.Warn("extraction failed, skipping file",
				zap.String("path", path), zap.Error(err))
			continue
		}
		fileChunks := p.chunker.Split(sourceName(path), pages)
		if len(fileChunks) == 0 {
			p.logger.Info("no text extracted from file", zap.String("path", path))
			continue
		}
		chunks = append(chunks, fileChunks...)
		filesProcessed++
	}

	if len(chunks) == 0 {
		return Outcome{Message: "No text could be extracted. Check file content."}
	}

	uploaded := 0
	for start := 0; start < len(chunks); start += p.cfg.BatchSize {
		end := start + p.cfg.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		progress(fmt.Sprintf("Embedding: %d/%d chunks...", uploaded, len(chunks)),
			extractWeight+embedWeight*float64(uploaded)/float64(len(chunks)))

		policy := retry.Policy{
			MaxAttempts: p.cfg.MaxRetries,
			Backoff:     p.cfg.QuotaBackoff,
			Retryable:   p.retryable,
		}
		err := policy.Do(ctx, func(wait time.Duration) {
			p.logger.Warn("embedding quota exhausted, backing off",
				zap.Duration("wait", wait), zap.Int("uploaded", uploaded))
			progress("Quota full. Waiting...",
				extractWeight+embedWeight*float64(uploaded)/float64(len(chunks)))
		}, func() error {
			return p.index.Add(ctx, batch)
		})
		if err != nil {
			p.logger.Error("batch upload failed", zap.Int("uploaded", uploaded), zap.Error(err))
			return Outcome{
				Message:        fmt.Sprintf("Database error: %v", err),
				FilesProcessed: filesProcessed,
				ChunkCount:     uploaded,
			}
		}

		if err := p.catalog.RecordChunks(ctx, batch); err != nil {
			p.logger.Error("catalog record failed", zap.Error(err))
			return Outcome{
				Message:        fmt.Sprintf("Database error: %v", err),
				FilesProcessed: filesProcessed,
				ChunkCount:     uploaded,
			}
		}
		if p.lexical != nil {
			if err := p.lexical.Add(batch); err != nil {
				// Keyword search is a secondary surface; a failed add
				// degrades find-in-notes but must not fail ingestion.
				p.logger.Warn("keyword index add failed", zap.Error(err))
			}
		}
		uploaded = end

		if uploaded < len(chunks) {
			p.sleep(ctx, p.cfg.PacingDelay)
		}
	}

	progress(fmt.Sprintf("Embedding: %d/%d chunks...", uploaded, len(chunks)), 1.0)
	return Outcome{
		OK:             true,
		Message:        fmt.Sprintf("Success! Added %d files (%d chunks) and saved diagrams.", filesProcessed, uploaded),
		FilesProcessed: filesProcessed,
		ChunkCount:     uploaded,
	}
}

// sourceName is the stored identity of an ingested file. Chunks, catalog
// rows and citations all use the base name, not the ingestion-time path.
func sourceName(path string) string {
	return filepath.Base(path)
}

// sleepCtx pauses for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
