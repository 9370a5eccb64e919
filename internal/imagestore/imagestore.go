// Package imagestore persists diagram images extracted during ingestion.
// File names follow the contract {source}_{page|slide}{N}_img{M}.png; the
// external UI resolves citation markers against these names, so the format
// must stay stable.
package imagestore

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
)

// Store is a directory-backed image store. Saved files are never mutated;
// they are removed only by Remove (source cascade) or Reset (bulk wipe).
type Store struct {
	dir string
}

// New opens (creating if needed) an image store rooted at dir.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create image store dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the root directory of the store.
func (s *Store) Dir() string {
	return s.dir
}

// SlideImageName returns the canonical name for image number img on slide
// number slide of source. Both numbers are 1-indexed.
func SlideImageName(source string, slide, img int) string {
	return fmt.Sprintf("%s_slide%d_img%d.png", source, slide, img)
}

// PageImageName returns the canonical name for image number img on page
// number page of source. Both numbers are 1-indexed.
func PageImageName(source string, page, img int) string {
	return fmt.Sprintf("%s_page%d_img%d.png", source, page, img)
}

// SaveImage encodes img as PNG under name.
func (s *Store) SaveImage(name string, img image.Image) error {
	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return fmt.Errorf("create image file: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return nil
}

// SaveBytes writes raw file contents under name, for formats copied verbatim.
func (s *Store) SaveBytes(name string, data []byte) error {
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0644); err != nil {
		return fmt.Errorf("write image file: %w", err)
	}
	return nil
}

// Remove deletes the named images. Missing files are not an error, so a
// cascade after a partial ingest still succeeds.
func (s *Store) Remove(names []string) error {
	for _, name := range names {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}

// Reset wipes the whole store and recreates the empty directory.
func (s *Store) Reset() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("reset image store: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("recreate image store dir: %w", err)
	}
	return nil
}
