package illum

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/prasannaganesan/interior-design-app/internal/colorspace"
	"github.com/prasannaganesan/interior-design-app/internal/mask"
	"github.com/prasannaganesan/interior-design-app/internal/raster"
)

// Retinex tuning constants. Empirically chosen and preserved as-is: the
// recolor output is sensitive to both.
const (
	// maxLightnessScale caps the lightness gain so very dark source
	// regions cannot blow up toward white.
	maxLightnessScale = 5.0
	// chromaScaleFloor and chromaScaleCeil bound the per-pixel chroma
	// contrast factor. The ceiling damps chroma variation in very bright
	// specular pixels; the floor keeps some texture everywhere.
	chromaScaleFloor = 0.4
	chromaScaleCeil  = 1.0

	// logEpsilon keeps log() finite on black pixels.
	logEpsilon = 1e-4
)

// Retinex is the default decomposition: a large-radius box blur of
// log-luminance estimates the local illumination ("shade") field, and
// per-pixel reflectance is what remains after dividing it out.
//
// Invariant: shade[i] = exp(blur(log(luminance))[i]) and each linear
// channel satisfies original ≈ reflectance * shade.
type Retinex struct {
	width  int
	height int

	// Reflectance in Lab, one entry per pixel.
	l []float64
	a []float64
	b []float64
	// Gray luminance of the reflectance.
	gray []float64
	// Estimated illumination multiplier.
	shade []float64
}

// NewRetinex decomposes a white-balanced image. The blur radius trades
// illumination separation against reflectance fidelity; callers pass the
// configured value and should not re-derive it.
func NewRetinex(img *raster.Image, blurRadius int) *Retinex {
	w, h := img.Width, img.Height
	n := w * h

	linR := make([]float64, n)
	linG := make([]float64, n)
	linB := make([]float64, n)
	logLum := make([]float64, n)

	for i := 0; i < n; i++ {
		r := colorspace.SrgbToLinear(img.Pix[i*4])
		g := colorspace.SrgbToLinear(img.Pix[i*4+1])
		b := colorspace.SrgbToLinear(img.Pix[i*4+2])
		linR[i], linG[i], linB[i] = r, g, b
		lum := 0.2126*r + 0.7152*g + 0.0722*b
		logLum[i] = math.Log(lum + logEpsilon)
	}

	blurred := colorspace.BoxBlurFloat(logLum, w, h, blurRadius)

	// Normalize the shade field by its geometric mean: shade carries only
	// the local illumination variation, while absolute brightness stays in
	// the reflectance. A uniformly lit image then decomposes to shade = 1
	// everywhere and repainting it reproduces the target color exactly.
	meanLogShade := stat.Mean(blurred, nil)

	rx := &Retinex{
		width:  w,
		height: h,
		l:      make([]float64, n),
		a:      make([]float64, n),
		b:      make([]float64, n),
		gray:   make([]float64, n),
		shade:  make([]float64, n),
	}
	for i := 0; i < n; i++ {
		shade := math.Exp(blurred[i] - meanLogShade)
		rx.shade[i] = shade
		refR := linR[i] / shade
		refG := linG[i] / shade
		refB := linB[i] / shade
		lab := colorspace.LinearRGBToLab(refR, refG, refB)
		rx.l[i] = lab.L
		rx.a[i] = lab.A
		rx.b[i] = lab.B
		rx.gray[i] = 0.2126*refR + 0.7152*refG + 0.0722*refB
	}
	return rx
}

// Recolor repaints the masked pixels with the target color. Each pixel
// keeps its lightness and chroma variation relative to the mask mean, so
// shadows and texture survive the repaint, then the original shade field
// is multiplied back in.
func (rx *Retinex) Recolor(dst *raster.Image, px mask.Pixels, targetHex string) error {
	if dst.Width != rx.width || dst.Height != rx.height {
		return fmt.Errorf("image %dx%d does not match decomposition %dx%d",
			dst.Width, dst.Height, rx.width, rx.height)
	}
	if len(px) == 0 {
		return nil
	}

	target, err := colorspace.HexToLab(targetHex)
	if err != nil {
		return err
	}

	n := rx.width * rx.height
	ls := make([]float64, 0, len(px))
	as := make([]float64, 0, len(px))
	bs := make([]float64, 0, len(px))
	grays := make([]float64, 0, len(px))
	for _, i := range px {
		if i < 0 || i >= n {
			continue
		}
		ls = append(ls, rx.l[i])
		as = append(as, rx.a[i])
		bs = append(bs, rx.b[i])
		grays = append(grays, rx.gray[i])
	}
	if len(ls) == 0 {
		return nil
	}

	meanL := stat.Mean(ls, nil)
	meanA := stat.Mean(as, nil)
	meanB := stat.Mean(bs, nil)
	meanGray := stat.Mean(grays, nil)

	// A fully black masked region has zero mean lightness; fall back to a
	// unit scale rather than propagating Inf/NaN into the buffer.
	lScale := 1.0
	if meanL > 0 {
		lScale = target.L / meanL
		if lScale > maxLightnessScale {
			lScale = maxLightnessScale
		}
	}

	for _, i := range px {
		if i < 0 || i >= n {
			continue
		}
		chromaScale := 1.0
		if meanGray > 0 {
			chromaScale = rx.gray[i] / meanGray
			if chromaScale < chromaScaleFloor {
				chromaScale = chromaScaleFloor
			} else if chromaScale > chromaScaleCeil {
				chromaScale = chromaScaleCeil
			}
		}

		lab := colorspace.Lab{
			L: rx.l[i] * lScale,
			A: target.A + (rx.a[i]-meanA)*chromaScale,
			B: target.B + (rx.b[i]-meanB)*chromaScale,
		}
		r, g, b := colorspace.LabToLinearRGB(lab)

		shade := rx.shade[i]
		dst.Pix[i*4] = colorspace.LinearToSrgb(clamp01(r) * shade)
		dst.Pix[i*4+1] = colorspace.LinearToSrgb(clamp01(g) * shade)
		dst.Pix[i*4+2] = colorspace.LinearToSrgb(clamp01(b) * shade)
	}
	return nil
}
