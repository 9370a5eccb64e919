package ocr

import (
	"image"

	"golang.org/x/image/draw"
)

// Preprocess prepares an image for recognition: grayscale conversion and
// contrast stretching, plus an optional 2x smooth upscale for small embedded
// diagrams whose glyphs are below the size tesseract handles well.
func Preprocess(img image.Image, upscale bool) image.Image {
	gray := toGray(img)
	gray = autoContrast(gray)
	if upscale {
		gray = upscale2x(gray)
	}
	return gray
}

func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// autoContrast stretches the intensity histogram to the full 0-255 range.
// A flat image (min == max) is returned unchanged.
func autoContrast(gray *image.Gray) *image.Gray {
	min, max := uint8(255), uint8(0)
	for _, px := range gray.Pix {
		if px < min {
			min = px
		}
		if px > max {
			max = px
		}
	}
	if min >= max {
		return gray
	}
	out := image.NewGray(gray.Bounds())
	scale := 255.0 / float64(max-min)
	for i, px := range gray.Pix {
		out.Pix[i] = uint8(float64(px-min) * scale)
	}
	return out
}

func upscale2x(gray *image.Gray) *image.Gray {
	b := gray.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx()*2, b.Dy()*2))
	draw.CatmullRom.Scale(out, out.Bounds(), gray, b, draw.Src, nil)
	return out
}
