// Package storage defines the ingest catalog: which sources are in the
// vector store and which extracted images each source owns.
package storage

import (
	"context"

	"github.com/hyperjump/benkyo/internal/models"
)

// Catalog persists ingest provenance. The vector store holds the chunks
// themselves; the catalog answers "which sources exist" without scanning the
// store and records image ownership so source deletion can cascade to the
// image store.
type Catalog interface {
	// RecordChunks notes the provenance of newly stored chunks.
	RecordChunks(ctx context.Context, chunks []models.Chunk) error
	// RecordImage notes an extracted image owned by source.
	RecordImage(ctx context.Context, name, source string, page int) error
	// ListSources returns the distinct source names, lexicographically
	// sorted. An empty catalog returns an empty slice.
	ListSources(ctx context.Context) ([]string, error)
	// DeleteSource removes all records for source and returns the names of
	// the images it owned. Deleting an unknown source is a no-op.
	DeleteSource(ctx context.Context, source string) ([]string, error)
	// CountChunks returns the number of recorded chunks.
	CountChunks(ctx context.Context) (int64, error)
	// Reset removes every record.
	Reset(ctx context.Context) error

	Close() error
}
