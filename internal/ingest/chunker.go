// Package ingest turns extracted documents into embedded, indexed chunks.
// It owns the chunking policy, the quota-aware batch upload loop, and
// source maintenance (listing and cascading deletion).
package ingest

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hyperjump/benkyo/internal/models"
)

// Default chunking parameters, tuned for lecture notes.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 50
)

// ErrInvalidConfig is returned when the chunk size and overlap combination
// cannot make progress through the text.
var ErrInvalidConfig = errors.New("chunk overlap must be smaller than chunk size")

// Chunker splits page text into fixed-size overlapping windows. Sizes are in
// runes, so multi-byte scripts chunk at the same density as ASCII.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker validates the window parameters and returns a chunker. The
// window advances by size-overlap runes, so overlap >= size is rejected.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size %d: %w", size, ErrInvalidConfig)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d with size %d: %w", overlap, size, ErrInvalidConfig)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split chunks every page of a source document. Each chunk carries the
// source name and page number it came from, and a fresh random ID.
func (c *Chunker) Split(source string, pages []models.Page) []models.Chunk {
	var chunks []models.Chunk
	for _, page := range pages {
		for _, text := range c.split(page.Text) {
			chunks = append(chunks, models.Chunk{
				ID:     uuid.NewString(),
				Text:   text,
				Source: source,
				Page:   page.Number,
			})
		}
	}
	return chunks
}

// split windows a single text. The last window keeps whatever remains past
// the final full step, so no trailing text is lost.
func (c *Chunker) split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	step := c.size - c.overlap
	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}
