package storage

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hyperjump/benkyo/internal/models"
)

func newTestCatalog(t *testing.T) *SQLiteCatalog {
	t.Helper()
	c, err := NewSQLiteCatalog(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestListSourcesSortedDeduplicated(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	err := c.RecordChunks(ctx, []models.Chunk{
		{ID: "1", Source: "b.txt", Page: 1},
		{ID: "2", Source: "a.pdf", Page: 1},
		{ID: "3", Source: "a.pdf", Page: 2},
	})
	if err != nil {
		t.Fatalf("RecordChunks: %v", err)
	}
	sources, err := c.ListSources(ctx)
	if err != nil {
		t.Fatalf("ListSources: %v", err)
	}
	if !reflect.DeepEqual(sources, []string{"a.pdf", "b.txt"}) {
		t.Errorf("sources = %v", sources)
	}
}

func TestListSourcesEmpty(t *testing.T) {
	c := newTestCatalog(t)
	sources, err := c.ListSources(context.Background())
	if err != nil {
		t.Fatalf("ListSources: %v", err)
	}
	if len(sources) != 0 {
		t.Errorf("sources = %v, want empty", sources)
	}
}

func TestDeleteSourceReturnsOwnedImages(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	if err := c.RecordChunks(ctx, []models.Chunk{{ID: "1", Source: "a.pdf", Page: 2}}); err != nil {
		t.Fatal(err)
	}
	if err := c.RecordImage(ctx, "a.pdf_page2_img1.png", "a.pdf", 2); err != nil {
		t.Fatal(err)
	}
	if err := c.RecordImage(ctx, "b.pptx_slide1_img1.png", "b.pptx", 1); err != nil {
		t.Fatal(err)
	}

	images, err := c.DeleteSource(ctx, "a.pdf")
	if err != nil {
		t.Fatalf("DeleteSource: %v", err)
	}
	if !reflect.DeepEqual(images, []string{"a.pdf_page2_img1.png"}) {
		t.Errorf("images = %v", images)
	}

	sources, err := c.ListSources(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range sources {
		if s == "a.pdf" {
			t.Error("a.pdf still listed after delete")
		}
	}
}

func TestDeleteUnknownSourceIsNoOp(t *testing.T) {
	c := newTestCatalog(t)
	images, err := c.DeleteSource(context.Background(), "never-ingested.pdf")
	if err != nil {
		t.Fatalf("DeleteSource: %v", err)
	}
	if len(images) != 0 {
		t.Errorf("images = %v, want none", images)
	}
}

func TestCountChunksAndReset(t *testing.T) {
	c := newTestCatalog(t)
	ctx := context.Background()
	if err := c.RecordChunks(ctx, []models.Chunk{
		{ID: "1", Source: "a.pdf", Page: 1},
		{ID: "2", Source: "a.pdf", Page: 1},
	}); err != nil {
		t.Fatal(err)
	}
	n, err := c.CountChunks(ctx)
	if err != nil || n != 2 {
		t.Errorf("CountChunks = %d, %v", n, err)
	}
	if err := c.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	n, _ = c.CountChunks(ctx)
	if n != 0 {
		t.Errorf("CountChunks after reset = %d", n)
	}
}
