package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/hyperjump/benkyo/internal/imagestore"
	"github.com/hyperjump/benkyo/internal/models"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// extractPDF extracts per-page text from PDF bytes. The native text layer is
// read first; every embedded raster image is saved to the image store
// regardless of whether OCR runs. When a page has no native text (scanned or
// image-only pages), its extracted images are OCR'd as a fallback.
func (e *Extractor) extractPDF(ctx context.Context, content []byte, source string) ([]models.Page, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	var pages []models.Page
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			e.logf("pdf page text failed", zap.Int("page", i), zap.Error(err))
			text = ""
		}
		text = strings.TrimSpace(text)

		imgs := e.savePageImages(page, source, i)

		if text == "" && e.engine != nil {
			var ocrParts []string
			for _, img := range imgs {
				if t := e.recognize(ctx, img, false); t != "" {
					ocrParts = append(ocrParts, t)
				}
			}
			text = strings.TrimSpace(strings.Join(ocrParts, "\n"))
		}

		if text != "" {
			pages = append(pages, models.Page{Text: text, Number: i})
		}
	}
	return pages, nil
}

// savePageImages walks the page's XObject resources, decodes each raster
// image it can, and saves it as {source}_page{N}_img{M}.png. Decoded images
// are returned for the OCR fallback. Unsupported streams are skipped.
func (e *Extractor) savePageImages(page pdf.Page, source string, pageNum int) []image.Image {
	xobj := page.V.Key("Resources").Key("XObject")
	if xobj.Kind() != pdf.Dict {
		return nil
	}
	var imgs []image.Image
	imgCount := 0
	for _, key := range xobj.Keys() {
		obj := xobj.Key(key)
		if obj.Kind() != pdf.Stream || obj.Key("Subtype").Name() != "Image" {
			continue
		}
		imgCount++
		img, err := decodeImageStream(obj)
		if err != nil {
			e.logf("pdf image skipped", zap.String("source", source),
				zap.Int("page", pageNum), zap.String("xobject", key), zap.Error(err))
			continue
		}
		name := imagestore.PageImageName(source, pageNum, imgCount)
		if err := e.images.SaveImage(name, img); err != nil {
			e.logf("pdf image save failed", zap.String("name", name), zap.Error(err))
			continue
		}
		e.record(name, source, pageNum)
		imgs = append(imgs, img)
	}
	return imgs
}

// decodeImageStream reconstructs a raster image from a FlateDecode XObject
// stream with 8 bits per component in DeviceGray or DeviceRGB. Other filters
// (DCTDecode, JBIG2, CCITT) are reported as unsupported. The pdf library
// panics on filters it does not know, so the whole decode is panic-guarded.
func decodeImageStream(obj pdf.Value) (img image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			img, err = nil, fmt.Errorf("decode image stream: %v", r)
		}
	}()

	if name := imageFilterName(obj); name != "FlateDecode" {
		return nil, fmt.Errorf("unsupported image filter %q", name)
	}
	if bpc := obj.Key("BitsPerComponent").Int64(); bpc != 8 {
		return nil, fmt.Errorf("unsupported bits per component %d", bpc)
	}
	w := int(obj.Key("Width").Int64())
	h := int(obj.Key("Height").Int64())
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", w, h)
	}

	rc := obj.Reader()
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read image stream: %w", err)
	}

	switch cs := obj.Key("ColorSpace").Name(); cs {
	case "DeviceGray":
		if len(data) < w*h {
			return nil, fmt.Errorf("short gray image data: %d < %d", len(data), w*h)
		}
		gray := image.NewGray(image.Rect(0, 0, w, h))
		copy(gray.Pix, data[:w*h])
		return gray, nil
	case "DeviceRGB":
		if len(data) < w*h*3 {
			return nil, fmt.Errorf("short rgb image data: %d < %d", len(data), w*h*3)
		}
		rgba := image.NewNRGBA(image.Rect(0, 0, w, h))
		for p := 0; p < w*h; p++ {
			rgba.Pix[p*4] = data[p*3]
			rgba.Pix[p*4+1] = data[p*3+1]
			rgba.Pix[p*4+2] = data[p*3+2]
			rgba.Pix[p*4+3] = 0xff
		}
		return rgba, nil
	default:
		return nil, fmt.Errorf("unsupported color space %q", cs)
	}
}

// imageFilterName returns the stream's filter name, handling the array form.
func imageFilterName(obj pdf.Value) string {
	filter := obj.Key("Filter")
	if filter.Kind() == pdf.Array && filter.Len() > 0 {
		return filter.Index(0).Name()
	}
	return filter.Name()
}
