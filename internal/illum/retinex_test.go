package illum

import (
	"math"
	"testing"

	"github.com/prasannaganesan/interior-design-app/internal/colorspace"
	"github.com/prasannaganesan/interior-design-app/internal/mask"
	"github.com/prasannaganesan/interior-design-app/internal/raster"
)

func solidImage(w, h int, r, g, b uint8) *raster.Image {
	img := raster.New(w, h)
	for i := 0; i < w*h; i++ {
		img.Pix[i*4] = r
		img.Pix[i*4+1] = g
		img.Pix[i*4+2] = b
	}
	return img
}

func fullMask(w, h int) mask.Pixels {
	px := make(mask.Pixels, w*h)
	for i := range px {
		px[i] = i
	}
	return px
}

// meanLabOf averages the Lab coordinates of the masked output pixels.
func meanLabOf(img *raster.Image, px mask.Pixels) colorspace.Lab {
	var sum colorspace.Lab
	for _, i := range px {
		lab := colorspace.LinearRGBToLab(
			colorspace.SrgbToLinear(img.Pix[i*4]),
			colorspace.SrgbToLinear(img.Pix[i*4+1]),
			colorspace.SrgbToLinear(img.Pix[i*4+2]),
		)
		sum.L += lab.L
		sum.A += lab.A
		sum.B += lab.B
	}
	n := float64(len(px))
	return colorspace.Lab{L: sum.L / n, A: sum.A / n, B: sum.B / n}
}

func TestRecolorSolidGrayToRed(t *testing.T) {
	// The end-to-end recolor property: a flat gray region painted red
	// must land on the target's Lab coordinates with zero variance.
	img := solidImage(4, 4, 128, 128, 128)
	rx := NewRetinex(img, 32)
	px := fullMask(4, 4)

	out := img.Clone()
	if err := rx.Recolor(out, px, "#FF0000"); err != nil {
		t.Fatal(err)
	}

	want, _ := colorspace.HexToLab("#FF0000")
	got := meanLabOf(out, px)
	if math.Abs(got.L-want.L) > 1.0 || math.Abs(got.A-want.A) > 1.5 || math.Abs(got.B-want.B) > 1.5 {
		t.Errorf("mean Lab = %+v, want %+v", got, want)
	}

	// All source pixels were identical, so all outputs must be too.
	first := [3]uint8{out.Pix[0], out.Pix[1], out.Pix[2]}
	for _, i := range px {
		if out.Pix[i*4] != first[0] || out.Pix[i*4+1] != first[1] || out.Pix[i*4+2] != first[2] {
			t.Fatalf("pixel %d differs from pixel 0: output variance should be 0", i)
		}
	}
}

func TestRecolorLeavesOutsidePixelsUntouched(t *testing.T) {
	img := solidImage(8, 8, 90, 120, 150)
	rx := NewRetinex(img, 8)

	// Mask only the left half.
	var px mask.Pixels
	for y := 0; y < 8; y++ {
		for x := 0; x < 4; x++ {
			px = append(px, y*8+x)
		}
	}

	out := img.Clone()
	if err := rx.Recolor(out, px, "#00FF00"); err != nil {
		t.Fatal(err)
	}

	inMask := px.ToDense(64)
	for i := 0; i < 64; i++ {
		if inMask[i] {
			continue
		}
		for c := 0; c < 4; c++ {
			if out.Pix[i*4+c] != img.Pix[i*4+c] {
				t.Fatalf("pixel %d channel %d changed outside the mask", i, c)
			}
		}
	}
}

func TestRecolorIdempotentFromSameBase(t *testing.T) {
	img := solidImage(6, 6, 200, 180, 160)
	rx := NewRetinex(img, 8)
	px := fullMask(6, 6)

	a := img.Clone()
	b := img.Clone()
	if err := rx.Recolor(a, px, "#3366AA"); err != nil {
		t.Fatal(err)
	}
	if err := rx.Recolor(b, px, "#3366AA"); err != nil {
		t.Fatal(err)
	}
	if !a.Equal(b) {
		t.Error("same color, same mask, same base must produce identical output")
	}
}

func TestRecolorEmptyMaskIsNoOp(t *testing.T) {
	img := solidImage(4, 4, 100, 100, 100)
	rx := NewRetinex(img, 8)

	out := img.Clone()
	if err := rx.Recolor(out, nil, "#FF0000"); err != nil {
		t.Fatal(err)
	}
	if !out.Equal(img) {
		t.Error("empty mask must leave the image unchanged")
	}
}

func TestRecolorBlackRegionDoesNotNaN(t *testing.T) {
	img := solidImage(4, 4, 0, 0, 0)
	rx := NewRetinex(img, 8)
	px := fullMask(4, 4)

	out := img.Clone()
	if err := rx.Recolor(out, px, "#FFFFFF"); err != nil {
		t.Fatal(err)
	}
	// No assertion on the exact color; the guard only has to keep the
	// buffer valid (no NaN-derived garbage, alpha intact).
	for i := 0; i < 16; i++ {
		if out.Pix[i*4+3] != 0xFF {
			t.Fatalf("pixel %d alpha corrupted", i)
		}
	}
}

func TestRecolorDimensionMismatch(t *testing.T) {
	img := solidImage(4, 4, 128, 128, 128)
	rx := NewRetinex(img, 8)

	other := raster.New(8, 8)
	if err := rx.Recolor(other, fullMask(4, 4), "#FF0000"); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestRecolorBadHex(t *testing.T) {
	img := solidImage(4, 4, 128, 128, 128)
	rx := NewRetinex(img, 8)

	out := img.Clone()
	if err := rx.Recolor(out, fullMask(4, 4), "notacolor"); err == nil {
		t.Fatal("expected error for invalid hex color")
	}
	if !out.Equal(img) {
		t.Error("failed recolor must not partially write the buffer")
	}
}

func TestShadePreservesShadowContrast(t *testing.T) {
	// A vertical illumination gradient over a uniform surface: after
	// recoloring, the lit side must still be brighter than the dark side.
	const w, h = 16, 16
	img := raster.New(w, h)
	for y := 0; y < h; y++ {
		v := uint8(60 + y*10)
		for x := 0; x < w; x++ {
			i := y*w + x
			img.Pix[i*4] = v
			img.Pix[i*4+1] = v
			img.Pix[i*4+2] = v
		}
	}

	rx := NewRetinex(img, 4)
	out := img.Clone()
	if err := rx.Recolor(out, fullMask(w, h), "#AA2222"); err != nil {
		t.Fatal(err)
	}

	topLum := colorspace.SrgbToLinear(out.Pix[(1*w+8)*4])
	botLum := colorspace.SrgbToLinear(out.Pix[((h-2)*w+8)*4])
	if botLum <= topLum {
		t.Errorf("illumination gradient lost: top %v, bottom %v", topLum, botLum)
	}
}
