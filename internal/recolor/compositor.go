// Package recolor composes painted surfaces over the pristine base image.
// Recoloring reads decomposition statistics tied to the base, so edits are
// not composable incrementally: any change to the set of enabled surfaces
// or a shared group color rebuilds the display image from the base.
package recolor

import (
	"fmt"

	"github.com/prasannaganesan/interior-design-app/config"
	"github.com/prasannaganesan/interior-design-app/internal/illum"
	"github.com/prasannaganesan/interior-design-app/internal/mask"
	"github.com/prasannaganesan/interior-design-app/internal/raster"
)

// Layer is one paintable surface from the compositor's point of view.
type Layer struct {
	Pixels  mask.Pixels
	Color   string
	Enabled bool
}

// Compositor applies the active decomposition strategy's recolor step
// against the pristine base image.
type Compositor struct {
	strategy illum.Strategy
}

// NewCompositor wraps the strategy selected for the current image.
func NewCompositor(strategy illum.Strategy) *Compositor {
	return &Compositor{strategy: strategy}
}

// ApplyColor recolors the masked pixels of a fresh working copy of base
// and returns it. The base is never mutated; on error the partially
// written copy is discarded and base remains authoritative.
func (c *Compositor) ApplyColor(base *raster.Image, px mask.Pixels, colorHex string) (*raster.Image, error) {
	work := base.Clone()
	if err := c.strategy.Recolor(work, px, colorHex); err != nil {
		return nil, err
	}
	return work, nil
}

// ReapplyAll rebuilds the displayed image from the pristine base by
// applying every enabled layer in creation order. Overlapping surfaces
// resolve as last-applied-wins, deterministic by slice order.
func (c *Compositor) ReapplyAll(base *raster.Image, layers []Layer) (*raster.Image, error) {
	work := base.Clone()
	for i, layer := range layers {
		if !layer.Enabled {
			continue
		}
		if err := c.strategy.Recolor(work, layer.Pixels, layer.Color); err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
	}
	return work, nil
}

// ApplyLighting applies a display-time lighting preset: a per-channel
// multiplicative tint scaled by brightness. The result is a new image;
// presets are never baked into the base or history snapshots, which is
// what lets the lighting mode change instantly.
func ApplyLighting(img *raster.Image, preset config.LightingPreset) *raster.Image {
	out := img.Clone()
	gains := [3]float64{
		preset.R * preset.Brightness,
		preset.G * preset.Brightness,
		preset.B * preset.Brightness,
	}
	if gains == [3]float64{1, 1, 1} {
		return out
	}
	for i := 0; i < len(out.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			v := float64(out.Pix[i+c]) * gains[c]
			if v > 255 {
				v = 255
			}
			out.Pix[i+c] = uint8(v + 0.5)
		}
	}
	return out
}
