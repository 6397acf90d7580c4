package session

import (
	"context"
	"sync"
	"time"

	"github.com/prasannaganesan/interior-design-app/internal/raster"
	"github.com/prasannaganesan/interior-design-app/internal/segment"
)

// hoverHighlight is the preview blend factor toward white for hovered
// surface pixels.
const hoverHighlight = 0.35

// Controller is the interactive glue between pointer events and the
// session. Hover previews are debounced and cancelable: a pointer leaving
// the canvas or a new authoritative click discards any pending or
// in-flight hover before its result can reach the display.
type Controller struct {
	session  *Session
	debounce time.Duration

	mu       sync.Mutex
	hoverGen uint64
	timer    *time.Timer
}

// NewController creates a controller with the given hover debounce
// interval (use the configured milliseconds; zero disables debouncing).
func NewController(s *Session, debounce time.Duration) *Controller {
	return &Controller{session: s, debounce: debounce}
}

// HoverAt schedules a hover preview for the point. The preview fires only
// after the pointer has been still for the debounce interval; moving
// again reschedules. onPreview receives a highlighted copy of the display
// and runs only if the hover is still current when the mask arrives.
func (c *Controller) HoverAt(pt segment.Point, onPreview func(*raster.Image)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hoverGen++
	gen := c.hoverGen
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.debounce, func() {
		c.runHover(gen, pt, onPreview)
	})
}

// CancelHover discards any pending or in-flight hover preview. Called
// when the pointer leaves the canvas.
func (c *Controller) CancelHover() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hoverGen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) runHover(gen uint64, pt segment.Point, onPreview func(*raster.Image)) {
	c.mu.Lock()
	if gen != c.hoverGen {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	base := c.session.Base()
	if base == nil {
		return
	}
	px, err := c.session.seg.GenerateMask(context.Background(), base, pt)
	if err != nil || len(px) == 0 {
		return
	}

	// The mask may have taken long enough that the hover is obsolete.
	c.mu.Lock()
	stale := gen != c.hoverGen
	c.mu.Unlock()
	if stale {
		return
	}

	preview := c.session.Display(nil)
	if preview == nil {
		return
	}
	highlight(preview, px)
	onPreview(preview)
}

// ClickAt is the authoritative action: it cancels any hover preview and
// paints the surface under the point.
func (c *Controller) ClickAt(ctx context.Context, pt segment.Point, colorHex string) (*Surface, error) {
	c.CancelHover()
	return c.session.ApplyAt(ctx, pt, colorHex)
}

// HitTest returns the index of the first candidate whose mask contains
// the point, or -1 if none does. Used to let the user pick among ranked
// candidate masks.
func HitTest(candidates []segment.Candidate, pt segment.Point, width int) int {
	idx := int(pt.Y)*width + int(pt.X)
	for i, cand := range candidates {
		if cand.Pixels.Contains(idx) {
			return i
		}
	}
	return -1
}

// highlight blends the masked pixels toward white in place.
func highlight(img *raster.Image, px []int) {
	n := img.PixelCount()
	for _, i := range px {
		if i < 0 || i >= n {
			continue
		}
		for c := 0; c < 3; c++ {
			v := float64(img.Pix[i*4+c])
			img.Pix[i*4+c] = uint8(v + (255-v)*hoverHighlight)
		}
	}
}
