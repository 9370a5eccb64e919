package extract

import (
	"bytes"
	"context"
	"image"

	"github.com/hyperjump/benkyo/internal/models"
	"go.uber.org/zap"
)

// extractImage handles a standalone image file: a verbatim copy goes to the
// image store under the file's own name (the UI shows it as the diagram for
// page 1), then OCR runs on a preprocessed copy. Yields a single record at
// page 1 when recognition finds text.
func (e *Extractor) extractImage(ctx context.Context, content []byte, source string) ([]models.Page, error) {
	if err := e.images.SaveBytes(source, content); err != nil {
		e.logf("image copy failed", zap.String("source", source), zap.Error(err))
	} else {
		e.record(source, source, 1)
	}
	img, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		e.logf("image undecodable", zap.String("source", source), zap.Error(err))
		return nil, nil
	}
	text := e.recognize(ctx, img, false)
	if text == "" {
		return nil, nil
	}
	return []models.Page{{Text: text, Number: 1}}, nil
}
