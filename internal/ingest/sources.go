package ingest

import (
	"context"
	"fmt"

	"github.com/hyperjump/benkyo/internal/imagestore"
	"github.com/hyperjump/benkyo/internal/storage"
	"github.com/hyperjump/benkyo/internal/vector"
	"go.uber.org/zap"
)

// Maintainer manages the set of ingested sources across the stores.
type Maintainer struct {
	index   vector.Index
	catalog storage.Catalog
	lexical Lexical
	images  *imagestore.Store
	logger  *zap.Logger
}

// NewMaintainer creates a source maintainer. lexical and logger may be nil.
func NewMaintainer(index vector.Index, catalog storage.Catalog, lexical Lexical,
	images *imagestore.Store, logger *zap.Logger) *Maintainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Maintainer{index: index, catalog: catalog, lexical: lexical, images: images, logger: logger}
}

// ListSources returns the distinct ingested source names, sorted.
func (m *Maintainer) ListSources(ctx context.Context) ([]string, error) {
	return m.catalog.ListSources(ctx)
}

// DeleteSource removes every chunk of source from the vector store, the
// keyword index and the catalog, then deletes the diagram images the source
// owned. Deleting an unknown source is a no-op. The vector store is purged
// first so a partial failure leaves orphaned catalog rows rather than
// unreachable embeddings.
func (m *Maintainer) DeleteSource(ctx context.Context, source string) (string, error) {
	if err := m.index.DeleteSource(ctx, source); err != nil {
		return "", fmt.Errorf("delete from vector store: %w", err)
	}
	if m.lexical != nil {
		if err := m.lexical.DeleteSource(source); err != nil {
			m.logger.Warn("keyword index delete failed", zap.String("source", source), zap.Error(err))
		}
	}
	imageNames, err := m.catalog.DeleteSource(ctx, source)
	if err != nil {
		return "", fmt.Errorf("delete from catalog: %w", err)
	}
	if err := m.images.Remove(imageNames); err != nil {
		m.logger.Warn("image cleanup incomplete", zap.String("source", source), zap.Error(err))
	}
	return fmt.Sprintf("Removed %s successfully.", source), nil
}
