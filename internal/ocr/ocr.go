// Package ocr provides optical character recognition for extracted images.
// The engine is an opaque image-to-text collaborator; the default
// implementation shells out to the tesseract CLI.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strings"
)

// Engine converts raster image content into text.
type Engine interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// Tesseract runs the tesseract binary over a PNG piped through stdin.
type Tesseract struct {
	binary   string
	language string
}

// NewTesseract returns an engine using the given tesseract binary and language.
// binary may be empty, in which case "tesseract" is resolved from PATH.
func NewTesseract(binary, language string) *Tesseract {
	if binary == "" {
		binary = "tesseract"
	}
	if language == "" {
		language = "eng"
	}
	return &Tesseract{binary: binary, language: language}
}

// Recognize encodes img as PNG and runs tesseract over it. The returned text
// is whitespace-trimmed; an empty string means nothing was recognized.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image) (string, error) {
	var in bytes.Buffer
	if err := png.Encode(&in, img); err != nil {
		return "", fmt.Errorf("encode image: %w", err)
	}
	cmd := exec.CommandContext(ctx, t.binary, "stdin", "stdout", "-l", t.language)
	cmd.Stdin = &in
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(out.String()), nil
}
