package vector

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hyperjump/benkyo/internal/models"
	"github.com/philippgille/chromem-go"
)

const (
	metaKeySource = "source"
	metaKeyPage   = "page"
)

// Chromem implements Index over an embedded chromem-go collection. The
// collection is opened once and the handle reused for every operation.
type Chromem struct {
	coll *chromem.Collection
}

// Open opens (creating if needed) a persistent collection at path with the
// given embedding function. The function is invoked by the store itself
// during add and query; this package never calls it directly.
func Open(path, collection string, embed chromem.EmbeddingFunc) (*Chromem, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("open vector db: %w", err)
	}
	coll, err := db.GetOrCreateCollection(collection, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("open collection %q: %w", collection, err)
	}
	return &Chromem{coll: coll}, nil
}

// OpenMemory opens an in-memory collection, used by tests and the reset path.
func OpenMemory(collection string, embed chromem.EmbeddingFunc) (*Chromem, error) {
	coll, err := chromem.NewDB().GetOrCreateCollection(collection, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("open collection %q: %w", collection, err)
	}
	return &Chromem{coll: coll}, nil
}

// Add stores the chunks sequentially (concurrency 1 keeps a single in-flight
// embedding request, which makes quota backoff reasoning predictable).
func (c *Chromem) Add(ctx context.Context, chunks []models.Chunk) error {
	docs := make([]chromem.Document, len(chunks))
	for i, ch := range chunks {
		docs[i] = chromem.Document{
			ID:      ch.ID,
			Content: ch.Text,
			Metadata: map[string]string{
				metaKeySource: ch.Source,
				metaKeyPage:   strconv.Itoa(ch.Page),
			},
		}
	}
	if err := c.coll.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}
	return nil
}

// Query returns the top-k nearest chunks. k is clamped to the collection
// size; an empty collection yields no hits.
func (c *Chromem) Query(ctx context.Context, text string, k int) ([]models.Hit, error) {
	if n := c.coll.Count(); n < k {
		k = n
	}
	if k <= 0 {
		return nil, nil
	}
	results, err := c.coll.Query(ctx, text, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	hits := make([]models.Hit, len(results))
	for i, r := range results {
		page, _ := strconv.Atoi(r.Metadata[metaKeyPage])
		hits[i] = models.Hit{
			Text:       r.Content,
			Source:     r.Metadata[metaKeySource],
			Page:       page,
			Similarity: r.Similarity,
		}
	}
	return hits, nil
}

// DeleteSource removes every chunk whose source metadata matches exactly.
func (c *Chromem) DeleteSource(ctx context.Context, source string) error {
	if c.coll.Count() == 0 {
		return nil
	}
	if err := c.coll.Delete(ctx, map[string]string{metaKeySource: source}, nil); err != nil {
		return fmt.Errorf("delete source %q: %w", source, err)
	}
	return nil
}

// Count returns the number of stored chunks.
func (c *Chromem) Count() int {
	return c.coll.Count()
}
