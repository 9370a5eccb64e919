package ocr

import (
	"image"
	"image/color"
	"testing"
)

func TestPreprocessGrayscaleAndUpscale(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 10, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 10; x++ {
			src.Set(x, y, color.RGBA{R: uint8(x * 20), G: 128, B: 64, A: 255})
		}
	}
	out := Preprocess(src, true)
	b := out.Bounds()
	if b.Dx() != 20 || b.Dy() != 8 {
		t.Errorf("upscaled bounds = %dx%d, want 20x8", b.Dx(), b.Dy())
	}
	if _, ok := out.(*image.Gray); !ok {
		t.Errorf("expected grayscale output, got %T", out)
	}

	out = Preprocess(src, false)
	b = out.Bounds()
	if b.Dx() != 10 || b.Dy() != 4 {
		t.Errorf("bounds without upscale = %dx%d, want 10x4", b.Dx(), b.Dy())
	}
}

func TestAutoContrastStretches(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 2, 1))
	gray.Pix[0] = 100
	gray.Pix[1] = 150
	out := autoContrast(gray)
	if out.Pix[0] != 0 {
		t.Errorf("min pixel = %d, want 0", out.Pix[0])
	}
	if out.Pix[1] != 255 {
		t.Errorf("max pixel = %d, want 255", out.Pix[1])
	}
}

func TestAutoContrastFlatImage(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 2, 2))
	for i := range gray.Pix {
		gray.Pix[i] = 42
	}
	out := autoContrast(gray)
	for i := range out.Pix {
		if out.Pix[i] != 42 {
			t.Fatalf("flat image changed at %d: %d", i, out.Pix[i])
		}
	}
}
