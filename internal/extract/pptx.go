package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"image"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/hyperjump/benkyo/internal/imagestore"
	"github.com/hyperjump/benkyo/internal/models"
	"go.uber.org/zap"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// slidePathRe matches ppt/slides/slideN.xml inside a .pptx zip and captures N.
var slidePathRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// atTag matches <a:t>text</a:t> with any attributes. Text runs of plain
// shapes, shapes nested in groups, and table cells all land in a:t nodes, so
// one pattern covers the whole slide body.
var atTag = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)

// blipTag matches picture references (<a:blip r:embed="rIdN"/>) in slide
// document order, which fixes the image numbering for the store names.
var blipTag = regexp.MustCompile(`<a:blip[^>]*r:embed="([^"]+)"`)

// relTagAfterType and relTagBeforeType extract (Id, Target) pairs from a
// slide relationship file, tolerating either attribute order.
var (
	relTagAfterType  = regexp.MustCompile(`<Relationship[^>]*Id="([^"]+)"[^>]*Target="([^"]+)"`)
	relTagBeforeType = regexp.MustCompile(`<Relationship[^>]*Target="([^"]+)"[^>]*Id="([^"]+)"`)
)

// extractPPTX extracts per-slide text from .pptx bytes. PPTX is a ZIP of
// Office Open XML parts: slide text lives in ppt/slides/slideN.xml, picture
// bytes in ppt/media, and the r:embed indirection in the slide's .rels part.
// Each picture is saved to the image store and OCR'd; recognized text is
// appended to the slide under the diagram tag.
func (e *Extractor) extractPPTX(ctx context.Context, content []byte, source string) ([]models.Page, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract PPTX: not a zip: %w", err)
	}

	parts := make(map[string][]byte)
	for _, f := range zr.File {
		data, err := readZipFile(f)
		if err != nil {
			e.logf("pptx part unreadable", zap.String("part", f.Name), zap.Error(err))
			continue
		}
		parts[f.Name] = data
	}

	var slideNums []int
	for name := range parts {
		if m := slidePathRe.FindStringSubmatch(name); m != nil {
			n, _ := strconv.Atoi(m[1])
			slideNums = append(slideNums, n)
		}
	}
	sort.Ints(slideNums)

	var pages []models.Page
	for _, n := range slideNums {
		slideXML := string(parts[fmt.Sprintf("ppt/slides/slide%d.xml", n)])

		var texts []string
		for _, m := range atTag.FindAllStringSubmatch(slideXML, -1) {
			texts = append(texts, m[1])
		}

		rels := parseRelationships(parts[fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", n)])
		imgCount := 0
		for _, m := range blipTag.FindAllStringSubmatch(slideXML, -1) {
			target, ok := rels[m[1]]
			if !ok {
				continue
			}
			imgCount++
			data, ok := parts[resolveRelTarget(target)]
			if !ok {
				e.logf("pptx media part missing", zap.String("target", target))
				continue
			}
			img, _, err := image.Decode(bytes.NewReader(data))
			if err != nil {
				e.logf("pptx image undecodable", zap.String("target", target), zap.Error(err))
				continue
			}
			name := imagestore.SlideImageName(source, n, imgCount)
			if err := e.images.SaveImage(name, img); err != nil {
				e.logf("pptx image save failed", zap.String("name", name), zap.Error(err))
			} else {
				e.record(name, source, n)
			}
			if ocrText := e.recognize(ctx, img, true); ocrText != "" {
				texts = append(texts, diagramPrefix+ocrText)
			}
		}

		final := strings.TrimSpace(strings.Join(texts, "\n"))
		if final != "" {
			pages = append(pages, models.Page{Text: final, Number: n})
		}
	}
	return pages, nil
}

// parseRelationships returns the Id -> Target map of a .rels part.
func parseRelationships(data []byte) map[string]string {
	rels := make(map[string]string)
	s := string(data)
	for _, m := range relTagAfterType.FindAllStringSubmatch(s, -1) {
		rels[m[1]] = m[2]
	}
	for _, m := range relTagBeforeType.FindAllStringSubmatch(s, -1) {
		if _, ok := rels[m[2]]; !ok {
			rels[m[2]] = m[1]
		}
	}
	return rels
}

// resolveRelTarget resolves a relationship target (relative to ppt/slides/)
// to a zip part path, e.g. "../media/image1.png" -> "ppt/media/image1.png".
func resolveRelTarget(target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Clean(path.Join("ppt/slides", target))
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
