// Package raster holds the image buffer type shared by the whole pipeline:
// a plain row-major RGBA byte buffer with deep-copy semantics. Every stage
// that needs to keep an image (base copy, history snapshot) owns an
// independent clone; nothing in the pipeline aliases a caller's buffer.
package raster

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/disintegration/imaging"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Image is a width×height raster with row-major RGBA bytes.
type Image struct {
	Width  int
	Height int
	Pix    []uint8 // 4 bytes per pixel, RGBA order
}

// New allocates an opaque black image.
func New(w, h int) *Image {
	im := &Image{Width: w, Height: h, Pix: make([]uint8, w*h*4)}
	for i := 3; i < len(im.Pix); i += 4 {
		im.Pix[i] = 0xFF
	}
	return im
}

// Clone returns an independent deep copy.
func (im *Image) Clone() *Image {
	pix := make([]uint8, len(im.Pix))
	copy(pix, im.Pix)
	return &Image{Width: im.Width, Height: im.Height, Pix: pix}
}

// PixelCount returns the number of pixels.
func (im *Image) PixelCount() int {
	return im.Width * im.Height
}

// Equal reports whether two images have identical dimensions and bytes.
func (im *Image) Equal(other *Image) bool {
	if other == nil || im.Width != other.Width || im.Height != other.Height {
		return false
	}
	if len(im.Pix) != len(other.Pix) {
		return false
	}
	for i := range im.Pix {
		if im.Pix[i] != other.Pix[i] {
			return false
		}
	}
	return true
}

// FromImage converts any image.Image into an owned RGBA raster.
func FromImage(src image.Image) *Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(rgba, rgba.Bounds(), src, bounds.Min, draw.Src)
	return &Image{Width: w, Height: h, Pix: rgba.Pix}
}

// ToRGBA wraps the raster in an image.RGBA sharing the same pixel buffer.
func (im *Image) ToRGBA() *image.RGBA {
	return &image.RGBA{
		Pix:    im.Pix,
		Stride: im.Width * 4,
		Rect:   image.Rect(0, 0, im.Width, im.Height),
	}
}

// Load decodes an image file. PNG, JPEG and GIF come from the standard
// decoders; BMP, TIFF and WebP are registered via x/image.
func Load(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return FromImage(img), nil
}

// Save encodes the raster to a file; the format follows the extension.
func (im *Image) Save(path string) error {
	if err := imaging.Save(im.ToRGBA(), path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// WhiteBalance is a per-channel multiplicative gain applied at load time.
type WhiteBalance struct {
	R float64
	G float64
	B float64
}

// Neutral is the identity white balance.
var Neutral = WhiteBalance{R: 1, G: 1, B: 1}

// ApplyWhiteBalance returns a new image with each channel scaled by its
// gain and clamped. Gains of exactly 1 leave bytes untouched.
func (im *Image) ApplyWhiteBalance(wb WhiteBalance) *Image {
	out := im.Clone()
	if wb == Neutral {
		return out
	}
	gains := [3]float64{wb.R, wb.G, wb.B}
	for i := 0; i < len(out.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			v := float64(out.Pix[i+c]) * gains[c]
			if v > 255 {
				v = 255
			} else if v < 0 {
				v = 0
			}
			out.Pix[i+c] = uint8(v + 0.5)
		}
	}
	return out
}
