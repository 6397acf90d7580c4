// Package colorspace provides the numeric color primitives used by the
// recolor pipeline: sRGB gamma handling, CIE Lab conversions, hex parsing,
// and a constant-time box blur over float buffers.
package colorspace

import (
	"fmt"
	"math"
	"strings"
)

// Lab is a color in CIE L*a*b* space (D65 reference white).
type Lab struct {
	L float64
	A float64
	B float64
}

// D65 reference white.
const (
	refWhiteX = 0.95047
	refWhiteY = 1.00000
	refWhiteZ = 1.08883
)

// SrgbToLinear decodes one sRGB byte to linear light in [0, 1] using the
// standard piecewise curve.
func SrgbToLinear(v uint8) float64 {
	c := float64(v) / 255.0
	if c <= 0.04045 {
		return c / 12.92
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}

// LinearToSrgb encodes linear light back to an sRGB byte. The input is
// clamped to [0, 1] before encoding.
func LinearToSrgb(v float64) uint8 {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	var c float64
	if v <= 0.0031308 {
		c = v * 12.92
	} else {
		c = 1.055*math.Pow(v, 1.0/2.4) - 0.055
	}
	return uint8(math.Round(c * 255.0))
}

// labF is the forward companding function of the XYZ->Lab transform,
// with the standard linear segment below t = 0.008856.
func labF(t float64) float64 {
	if t > 0.008856 {
		return math.Cbrt(t)
	}
	return 7.787037*t + 16.0/116.0
}

// labFInv inverts labF.
func labFInv(t float64) float64 {
	t3 := t * t * t
	if t3 > 0.008856 {
		return t3
	}
	return (t - 16.0/116.0) / 7.787037
}

// LinearRGBToLab converts linear sRGB primaries to CIE Lab via XYZ.
func LinearRGBToLab(r, g, b float64) Lab {
	x := 0.4124564*r + 0.3575761*g + 0.1804375*b
	y := 0.2126729*r + 0.7151522*g + 0.0721750*b
	z := 0.0193339*r + 0.1191920*g + 0.9503041*b

	fx := labF(x / refWhiteX)
	fy := labF(y / refWhiteY)
	fz := labF(z / refWhiteZ)

	return Lab{
		L: 116.0*fy - 16.0,
		A: 500.0 * (fx - fy),
		B: 200.0 * (fy - fz),
	}
}

// LabToLinearRGB converts a CIE Lab color back to linear sRGB primaries.
// Out-of-gamut results are not clamped here; callers clamp at encode time.
func LabToLinearRGB(c Lab) (r, g, b float64) {
	fy := (c.L + 16.0) / 116.0
	fx := fy + c.A/500.0
	fz := fy - c.B/200.0

	x := refWhiteX * labFInv(fx)
	y := refWhiteY * labFInv(fy)
	z := refWhiteZ * labFInv(fz)

	r = 3.2404542*x - 1.5371385*y - 0.4985314*z
	g = -0.9692660*x + 1.8760108*y + 0.0415560*z
	b = 0.0556434*x - 0.2040259*y + 1.0572252*z
	return r, g, b
}

// ParseHex parses "#RRGGBB" or "RRGGBB" into sRGB bytes.
func ParseHex(hex string) (r, g, b uint8, err error) {
	s := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(s) != 6 {
		return 0, 0, 0, fmt.Errorf("invalid hex color %q", hex)
	}
	var rv, gv, bv int
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &rv, &gv, &bv); err != nil {
		return 0, 0, 0, fmt.Errorf("invalid hex color %q: %w", hex, err)
	}
	return uint8(rv), uint8(gv), uint8(bv), nil
}

// HexToLinear parses a hex color and decodes each channel to linear light.
func HexToLinear(hex string) (r, g, b float64, err error) {
	rb, gb, bb, err := ParseHex(hex)
	if err != nil {
		return 0, 0, 0, err
	}
	return SrgbToLinear(rb), SrgbToLinear(gb), SrgbToLinear(bb), nil
}

// HexToLab parses a hex color and converts it to CIE Lab.
func HexToLab(hex string) (Lab, error) {
	r, g, b, err := HexToLinear(hex)
	if err != nil {
		return Lab{}, err
	}
	return LinearRGBToLab(r, g, b), nil
}

// BoxBlurFloat blurs a w×h float buffer with a square window of the given
// radius. It builds a summed-area table so each output pixel is an O(1)
// windowed sum regardless of radius. Windows are clamped at the borders
// and the divisor shrinks with them, so the result is a true local
// average with no padding bias.
func BoxBlurFloat(buf []float64, w, h, radius int) []float64 {
	out := make([]float64, len(buf))
	if w <= 0 || h <= 0 {
		return out
	}
	if radius <= 0 {
		copy(out, buf)
		return out
	}

	// Integral image with a zero row/column at the top/left:
	// sat[(y+1)*(w+1)+(x+1)] = sum of buf over [0..x]×[0..y].
	stride := w + 1
	sat := make([]float64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		rowSum := 0.0
		for x := 0; x < w; x++ {
			rowSum += buf[y*w+x]
			sat[(y+1)*stride+(x+1)] = sat[y*stride+(x+1)] + rowSum
		}
	}

	for y := 0; y < h; y++ {
		y0 := y - radius
		if y0 < 0 {
			y0 = 0
		}
		y1 := y + radius
		if y1 >= h {
			y1 = h - 1
		}
		for x := 0; x < w; x++ {
			x0 := x - radius
			if x0 < 0 {
				x0 = 0
			}
			x1 := x + radius
			if x1 >= w {
				x1 = w - 1
			}
			sum := sat[(y1+1)*stride+(x1+1)] -
				sat[y0*stride+(x1+1)] -
				sat[(y1+1)*stride+x0] +
				sat[y0*stride+x0]
			area := float64((y1 - y0 + 1) * (x1 - x0 + 1))
			out[y*w+x] = sum / area
		}
	}
	return out
}
