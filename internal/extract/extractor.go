// Package extract converts lecture documents into per-page text records,
// saving embedded diagram images and running OCR on image-only content.
package extract

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/benkyo/internal/imagestore"
	"github.com/hyperjump/benkyo/internal/models"
	"github.com/hyperjump/benkyo/internal/ocr"
	"go.uber.org/zap"
)

// diagramPrefix marks OCR'd diagram text inside a slide or page record. The
// query service instructs the model to describe content carrying this tag.
const diagramPrefix = "[Diagram Content]: "

// Extractor extracts paginated text from document files. Embedded raster
// images are saved to the image store under deterministic names; image-only
// content falls back to OCR when an engine is configured.
type Extractor struct {
	images   *imagestore.Store
	engine   ocr.Engine  // nil disables OCR
	logger   *zap.Logger // optional; when set, logs recovered per-item errors
	recorder func(name, source string, page int)
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithLogger sets a logger for recovered extraction errors.
func WithLogger(l *zap.Logger) ExtractorOption {
	return func(e *Extractor) { e.logger = l }
}

// WithImageRecorder sets a callback invoked after each image is saved to the
// store, with the stored name, the owning source file and the page number.
// The catalog uses it to track image ownership for source deletion.
func WithImageRecorder(fn func(name, source string, page int)) ExtractorOption {
	return func(e *Extractor) { e.recorder = fn }
}

// NewExtractor creates an extractor saving images to store. engine may be
// nil, in which case OCR fallback is skipped and image-only pages yield no text.
func NewExtractor(store *imagestore.Store, engine ocr.Engine, opts ...ExtractorOption) *Extractor {
	e := &Extractor{images: store, engine: engine}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract reads the file at path and returns one record per page or slide
// with non-empty text, in document order. Input files are never mutated.
// Per-page and per-image failures are logged and skipped; only a whole-file
// failure (unreadable, corrupt container) returns an error.
func (e *Extractor) Extract(ctx context.Context, path string) ([]models.Page, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	source := filepath.Base(path)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pptx":
		return e.extractPPTX(ctx, content, source)
	case ".pdf":
		return e.extractPDF(ctx, content, source)
	case ".png", ".jpg", ".jpeg":
		return e.extractImage(ctx, content, source)
	case ".xlsx":
		return extractExcel(content)
	default:
		return extractPlain(content)
	}
}

// recognize preprocesses img and runs OCR on it, returning trimmed text.
// Returns "" when no engine is configured or recognition fails (the failure
// is logged; a single bad image must not abort extraction).
func (e *Extractor) recognize(ctx context.Context, img image.Image, upscale bool) string {
	if e.engine == nil {
		return ""
	}
	text, err := e.engine.Recognize(ctx, ocr.Preprocess(img, upscale))
	if err != nil {
		e.logf("ocr failed", zap.Error(err))
		return ""
	}
	return strings.TrimSpace(text)
}

// record notifies the image recorder, if any, of a saved image.
func (e *Extractor) record(name, source string, page int) {
	if e.recorder != nil {
		e.recorder(name, source, page)
	}
}

func (e *Extractor) logf(msg string, fields ...zap.Field) {
	if e.logger != nil {
		e.logger.Warn(msg, fields...)
	}
}
