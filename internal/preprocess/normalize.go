// Package preprocess turns raw submission bytes (image or PDF scan) into a
// normalized RGB bitmap ready for text extraction.
package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gen2brain/go-fitz"
)

// ErrDecode indicates the submitted bytes are neither a supported image nor a PDF.
var ErrDecode = errors.New("undecodable submission")

const (
	defaultPDFRasterDPI = 200
	defaultContrast     = 1.5
	defaultSharpness    = 2.0
)

// Options carries the tuned preprocessing constants. The zero value selects
// the defaults used in production.
type Options struct {
	PDFRasterDPI int
	Contrast     float64
	Sharpness    float64
}

func (o Options) withDefaults() Options {
	if o.PDFRasterDPI <= 0 {
		o.PDFRasterDPI = defaultPDFRasterDPI
	}
	if o.Contrast <= 0 {
		o.Contrast = defaultContrast
	}
	if o.Sharpness <= 0 {
		o.Sharpness = defaultSharpness
	}
	return o
}

// Normalize runs the full pipeline: decode, deskew, enhance. It is a pure
// function of its input; the submitted bytes are never modified.
func Normalize(raw []byte, opts Options) (image.Image, error) {
	opts = opts.withDefaults()

	img, err := Decode(raw, opts.PDFRasterDPI)
	if err != nil {
		return nil, err
	}

	img = Deskew(img)
	img = Enhance(img, opts.Contrast, opts.Sharpness)

	return img, nil
}

// Decode interprets raw bytes as an image, falling back to rasterizing the
// first page of a PDF at the given DPI. Any other content is ErrDecode.
func Decode(raw []byte, dpi int) (image.Image, error) {
	if dpi <= 0 {
		dpi = defaultPDFRasterDPI
	}

	if img, _, err := image.Decode(bytes.NewReader(raw)); err == nil {
		return toRGBA(img), nil
	}

	if mimetype.Detect(raw).Is("application/pdf") {
		return rasterizeFirstPage(raw, dpi)
	}

	return nil, ErrDecode
}

func rasterizeFirstPage(raw []byte, dpi int) (image.Image, error) {
	doc, err := fitz.NewFromMemory(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("%w: pdf has no pages", ErrDecode)
	}

	img, err := doc.ImageDPI(0, float64(dpi))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return toRGBA(img), nil
}

// Enhance boosts contrast and sharpness using the tuned multipliers. The
// factors mirror the 1.5x contrast / 2.0x sharpness constants the extraction
// model was calibrated against.
func Enhance(img image.Image, contrast, sharpness float64) image.Image {
	if contrast <= 0 {
		contrast = defaultContrast
	}
	if sharpness <= 0 {
		sharpness = defaultSharpness
	}

	out := imaging.AdjustContrast(img, (contrast-1)*100)
	if sharpness > 1 {
		out = imaging.Sharpen(out, sharpness-1)
	}

	return out
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)
	return rgba
}
