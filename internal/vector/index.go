// Package vector provides the handle to the chunk vector store.
package vector

import (
	"context"

	"github.com/hyperjump/benkyo/internal/models"
)

// Index is the keyed vector store for chunks. Embeddings are computed
// internally by the store's injected embedding function; callers never touch
// vectors directly.
type Index interface {
	// Add inserts chunks with their provenance metadata. Inserts are
	// append-only: the same text added twice under fresh IDs yields
	// duplicate entries.
	Add(ctx context.Context, chunks []models.Chunk) error
	// Query returns up to k chunks nearest to text. An empty store returns
	// no hits, not an error.
	Query(ctx context.Context, text string, k int) ([]models.Hit, error)
	// DeleteSource removes every chunk whose source matches exactly.
	// Deleting an absent source is a no-op.
	DeleteSource(ctx context.Context, source string) error
	// Count returns the number of stored chunks.
	Count() int
}
