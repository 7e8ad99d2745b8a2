package imagerender

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"
)

// ColorMode defines the color mode for rendering
type ColorMode string

const (
	ColorRGB  ColorMode = "rgb"
	ColorGray ColorMode = "gray"
)

// Page is one rendered page of a document.
type Page struct {
	Number int // zero-based page index
	JPEG   []byte
	Width  int
	Height int
}

// Options control rasterization output.
type Options struct {
	DPI       int
	Quality   int
	ColorMode ColorMode
}

// Rasterizer converts an inclusive zero-based page range of a document into
// ordered JPEG images. Implementations make a single attempt; any failure
// propagates to the caller unmodified so the presentation layer can fall back.
type Rasterizer interface {
	RenderRange(pdfPath string, start, end int, opts Options) ([]Page, error)
}

// Fitz renders pages with go-fitz (MuPDF).
type Fitz struct{}

// RenderRange renders pages [start, end] at opts.DPI and returns one JPEG per
// page in ascending page order.
func (Fitz) RenderRange(pdfPath string, start, end int, opts Options) ([]Page, error) {
	if start < 0 || end < start {
		return nil, fmt.Errorf("invalid page range (%d,%d)", start, end)
	}

	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	if end >= doc.NumPage() {
		return nil, fmt.Errorf("page range (%d,%d) exceeds document (%d pages)", start, end, doc.NumPage())
	}

	out := make([]Page, 0, end-start+1)
	for p := start; p <= end; p++ {
		img, err := doc.ImageDPI(p, float64(opts.DPI))
		if err != nil {
			return nil, fmt.Errorf("failed to render page %d: %w", p, err)
		}
		enc, w, h, err := encodeJPEG(img, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, Page{Number: p, JPEG: enc, Width: w, Height: h})
		log.Debug().
			Int("page", p).
			Int("jpeg_size", len(enc)).
			Int("dpi", opts.DPI).
			Msg("rendered page to JPEG")
	}

	return out, nil
}

func encodeJPEG(img image.Image, opts Options) ([]byte, int, int, error) {
	bounds := img.Bounds()

	var finalImg image.Image
	if opts.ColorMode == ColorGray {
		grayImg := image.NewGray(bounds)
		draw.Draw(grayImg, bounds, img, image.Point{}, draw.Src)
		finalImg = grayImg
	} else {
		// go-fitz output is already RGBA
		finalImg = img
	}

	quality := opts.Quality
	if quality <= 0 {
		quality = 85
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, finalImg, &jpeg.Options{Quality: quality}); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), bounds.Dx(), bounds.Dy(), nil
}

// EncodeToBase64 converts binary data to base64 string
func EncodeToBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeFromBase64 converts base64 string back to binary data
func DecodeFromBase64(b64 string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(b64)
}
