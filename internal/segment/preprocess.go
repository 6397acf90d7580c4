package segment

import (
	"image"

	"github.com/disintegration/imaging"

	"github.com/prasannaganesan/interior-design-app/internal/raster"
)

// The encoder consumes a fixed square canvas. Images are letterboxed into
// it: scaled to fit preserving aspect ratio, centered, padded with black.
const (
	canvasSize = 1024
	// The decoder emits masks at a quarter of the canvas resolution.
	lowResSize = 256

	embeddingChannels = 256
	embeddingSize     = 64
)

// Pixel normalization applied before the encoder (per-channel mean/std of
// the model's training distribution). Padding stays at zero, which is the
// canvas fill the model was trained with.
var (
	pixelMean = [3]float32{123.675, 116.28, 103.53}
	pixelStd  = [3]float32{58.395, 57.12, 57.375}
)

// Point is a prompt coordinate in original-image pixel space.
type Point struct {
	X float64
	Y float64
}

// letterbox records the geometry used to place an image on the canvas, so
// prompts can be mapped in and masks mapped back out.
type letterbox struct {
	Scale   float64
	ScaledW int
	ScaledH int
	PadX    int
	PadY    int
}

// computeLetterbox fits a w×h image into the square canvas. The scale is
// min(canvas/w, canvas/h), applied uniformly on both axes.
func computeLetterbox(w, h int) letterbox {
	scale := float64(canvasSize) / float64(w)
	if s := float64(canvasSize) / float64(h); s < scale {
		scale = s
	}
	scaledW := int(float64(w)*scale + 0.5)
	scaledH := int(float64(h)*scale + 0.5)
	if scaledW > canvasSize {
		scaledW = canvasSize
	}
	if scaledH > canvasSize {
		scaledH = canvasSize
	}
	return letterbox{
		Scale:   scale,
		ScaledW: scaledW,
		ScaledH: scaledH,
		PadX:    (canvasSize - scaledW) / 2,
		PadY:    (canvasSize - scaledH) / 2,
	}
}

// toCanvas maps a point from original-image coordinates into canvas
// coordinates. The point is clamped to the image bounds first.
func (lb letterbox) toCanvas(p Point, w, h int) (float32, float32) {
	x := clampCoord(p.X, w)
	y := clampCoord(p.Y, h)
	cx := x*lb.Scale + float64(lb.PadX)
	cy := y*lb.Scale + float64(lb.PadY)
	return float32(cx), float32(cy)
}

func clampCoord(v float64, dim int) float64 {
	if v < 0 {
		return 0
	}
	if limit := float64(dim - 1); v > limit {
		return limit
	}
	return v
}

// preprocess letterboxes the image onto the canvas and converts it to a
// normalized CHW float tensor of shape [1, 3, canvasSize, canvasSize].
func preprocess(img *raster.Image, lb letterbox) []float32 {
	resized := imaging.Resize(img.ToRGBA(), lb.ScaledW, lb.ScaledH, imaging.Linear)

	data := make([]float32, 3*canvasSize*canvasSize)
	plane := canvasSize * canvasSize
	bounds := resized.Bounds()
	for y := 0; y < lb.ScaledH; y++ {
		for x := 0; x < lb.ScaledW; x++ {
			px := resized.NRGBAAt(bounds.Min.X+x, bounds.Min.Y+y)
			cx := lb.PadX + x
			cy := lb.PadY + y
			idx := cy*canvasSize + cx
			data[0*plane+idx] = (float32(px.R) - pixelMean[0]) / pixelStd[0]
			data[1*plane+idx] = (float32(px.G) - pixelMean[1]) / pixelStd[1]
			data[2*plane+idx] = (float32(px.B) - pixelMean[2]) / pixelStd[2]
		}
	}
	return data
}

// postprocessMask takes one low-resolution decoder channel and maps it
// back to original image dimensions: the canvas content region is cropped
// out and resampled with nearest neighbor, so mask edges stay hard. The
// positivity threshold is the raw logit sign.
func postprocessMask(lowRes []float32, channel int, lb letterbox, w, h int) []bool {
	dense := make([]bool, w*h)
	base := channel * lowResSize * lowResSize
	factor := float64(lowResSize) / float64(canvasSize)
	for y := 0; y < h; y++ {
		cy := (float64(y)+0.5)*lb.Scale + float64(lb.PadY)
		my := int(cy * factor)
		if my < 0 {
			my = 0
		} else if my >= lowResSize {
			my = lowResSize - 1
		}
		for x := 0; x < w; x++ {
			cx := (float64(x)+0.5)*lb.Scale + float64(lb.PadX)
			mx := int(cx * factor)
			if mx < 0 {
				mx = 0
			} else if mx >= lowResSize {
				mx = lowResSize - 1
			}
			dense[y*w+x] = lowRes[base+my*lowResSize+mx] > 0
		}
	}
	return dense
}

// contentRect is the canvas region actually covered by image content.
func (lb letterbox) contentRect() image.Rectangle {
	return image.Rect(lb.PadX, lb.PadY, lb.PadX+lb.ScaledW, lb.PadY+lb.ScaledH)
}
