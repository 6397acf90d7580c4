// Package illum implements single-image illumination decomposition and the
// relighting-aware recolor step built on it. Two interchangeable
// strategies share one contract: given a set of masked pixels and a target
// paint color, repaint only the reflectance of those pixels while keeping
// their original illumination (shadows, highlights, texture) intact.
package illum

import (
	"github.com/prasannaganesan/interior-design-app/internal/mask"
	"github.com/prasannaganesan/interior-design-app/internal/raster"
)

// Strategy is the decomposition-specific recolor step. A strategy is
// prepared once per loaded image and selected before segmentation begins;
// the two implementations are mutually exclusive per image because they
// precompute different per-pixel buffers.
type Strategy interface {
	// Recolor writes recolored values for the masked pixels into dst,
	// which must be a working copy of the image the strategy was prepared
	// for. Pixels outside the mask are left bit-for-bit unchanged. An
	// empty mask is a safe no-op.
	Recolor(dst *raster.Image, px mask.Pixels, targetHex string) error
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
