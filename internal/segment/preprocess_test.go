package segment

import (
	"image"
	"testing"
)

func TestComputeLetterboxLandscape(t *testing.T) {
	lb := computeLetterbox(2048, 1024)

	if lb.Scale != 0.5 {
		t.Errorf("scale = %v, want 0.5", lb.Scale)
	}
	if lb.ScaledW != 1024 || lb.ScaledH != 512 {
		t.Errorf("scaled = %dx%d, want 1024x512", lb.ScaledW, lb.ScaledH)
	}
	if lb.PadX != 0 {
		t.Errorf("padX = %d, want 0", lb.PadX)
	}
	if lb.PadY != 256 {
		t.Errorf("padY = %d, want 256", lb.PadY)
	}
}

func TestComputeLetterboxPortrait(t *testing.T) {
	lb := computeLetterbox(512, 1024)

	if lb.Scale != 1.0 {
		t.Errorf("scale = %v, want 1.0", lb.Scale)
	}
	if lb.PadX != 256 || lb.PadY != 0 {
		t.Errorf("pad = (%d,%d), want (256,0)", lb.PadX, lb.PadY)
	}
	if lb.contentRect() != image.Rect(256, 0, 768, 1024) {
		t.Errorf("content rect = %v", lb.contentRect())
	}
}

func TestComputeLetterboxUniformScale(t *testing.T) {
	// The scale is min(canvas/w, canvas/h) on both axes, never
	// anisotropic: a 4000x1000 image must not fill the canvas height.
	lb := computeLetterbox(4000, 1000)
	if lb.ScaledW != canvasSize {
		t.Errorf("scaledW = %d, want %d", lb.ScaledW, canvasSize)
	}
	if lb.ScaledH != 256 {
		t.Errorf("scaledH = %d, want 256", lb.ScaledH)
	}
}

func TestToCanvasClampsPoints(t *testing.T) {
	lb := computeLetterbox(512, 512)

	tests := []struct {
		name     string
		pt       Point
		wantX    float32
		wantY    float32
	}{
		{name: "inside", pt: Point{X: 256, Y: 128}, wantX: 512, wantY: 256},
		{name: "negative clamps to zero", pt: Point{X: -50, Y: -3}, wantX: 0, wantY: 0},
		{name: "overflow clamps to dim-1", pt: Point{X: 9999, Y: 9999}, wantX: 1022, wantY: 1022},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := lb.toCanvas(tt.pt, 512, 512)
			if x != tt.wantX || y != tt.wantY {
				t.Errorf("got (%v,%v), want (%v,%v)", x, y, tt.wantX, tt.wantY)
			}
		})
	}
}

func TestPostprocessMaskThresholdAndGeometry(t *testing.T) {
	// A 512x512 image letterboxed into the canvas maps 2:1 onto it and
	// 8:1 onto the low-res grid. Fill the low-res left half with positive
	// logits and check the split lands mid-image with a hard edge.
	const w, h = 512, 512
	lb := computeLetterbox(w, h)

	lowRes := make([]float32, lowResSize*lowResSize)
	for y := 0; y < lowResSize; y++ {
		for x := 0; x < lowResSize/2; x++ {
			lowRes[y*lowResSize+x] = 3.5
		}
	}

	dense := postprocessMask(lowRes, 0, lb, w, h)
	if !dense[100*w+10] {
		t.Error("left-half pixel should be foreground")
	}
	if dense[100*w+w-10] {
		t.Error("right-half pixel should be background")
	}

	// Logit exactly zero is background: the threshold is "> 0".
	zero := make([]float32, lowResSize*lowResSize)
	dense = postprocessMask(zero, 0, lb, w, h)
	for i, on := range dense {
		if on {
			t.Fatalf("pixel %d foreground for all-zero logits", i)
		}
	}
}

func TestPostprocessMaskChannelOffset(t *testing.T) {
	// Only the requested channel must be read.
	const w, h = 64, 64
	lb := computeLetterbox(w, h)

	lowRes := make([]float32, 2*lowResSize*lowResSize)
	for i := lowResSize * lowResSize; i < len(lowRes); i++ {
		lowRes[i] = 1
	}

	ch0 := postprocessMask(lowRes, 0, lb, w, h)
	for i, on := range ch0 {
		if on {
			t.Fatalf("channel 0 pixel %d foreground", i)
		}
	}
	ch1 := postprocessMask(lowRes, 1, lb, w, h)
	for i, on := range ch1 {
		if !on {
			t.Fatalf("channel 1 pixel %d background", i)
		}
	}
}
