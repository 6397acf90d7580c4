// Package session holds all state scoped to one loaded image: the
// pristine white-balanced base, its illumination decomposition, the set
// of painted surfaces and their groups, and the snapshot history.
// Loading a new image or resetting discards and reinitializes all of it.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prasannaganesan/interior-design-app/config"
	"github.com/prasannaganesan/interior-design-app/internal/illum"
	"github.com/prasannaganesan/interior-design-app/internal/mask"
	"github.com/prasannaganesan/interior-design-app/internal/raster"
	"github.com/prasannaganesan/interior-design-app/internal/recolor"
	"github.com/prasannaganesan/interior-design-app/internal/segment"
	"github.com/prasannaganesan/interior-design-app/logger"
)

var (
	// ErrNoImage is returned by edit operations before LoadImage.
	ErrNoImage = errors.New("no image loaded")

	// ErrBusy is returned when an interactive action arrives while a
	// previous segmentation request is still in flight. Callers drop the
	// action instead of interleaving a stale mask over a newer one.
	ErrBusy = errors.New("another action is in flight")
)

// Segmenter is the capability boundary to the segmentation engine.
type Segmenter interface {
	GenerateEmbedding(ctx context.Context, img *raster.Image) error
	GenerateMask(ctx context.Context, img *raster.Image, pt segment.Point) (mask.Pixels, error)
	GenerateMasks(ctx context.Context, img *raster.Image, prompt segment.Prompt) ([]segment.Candidate, error)
}

// Surface is one painted wall: an immutable pixel set with a mutable
// color, enabled flag and optional group membership.
type Surface struct {
	ID      int
	Pixels  mask.Pixels
	Color   string
	Enabled bool
	GroupID int // 0 = ungrouped; non-owning reference into the group list
}

// Group ties several surfaces to one shared paint color.
type Group struct {
	ID    int
	Name  string
	Color string
}

// Session owns the per-image state. All exported methods are safe for
// concurrent use; long-running segmentation is performed outside the
// state lock and committed only if the session has not moved on.
type Session struct {
	cfg *config.Config
	seg Segmenter
	log *logger.BufferedLogger

	mu         sync.Mutex
	generation uint64 // bumped on LoadImage/Reset; stale commits are dropped

	base     *raster.Image // pristine, white-balanced
	display  *raster.Image
	strategy illum.Strategy
	comp     *recolor.Compositor

	surfaces []*Surface
	groups   []*Group
	history  *History

	nextSurfaceID int
	nextGroupID   int
	busy          bool
}

// New creates a session. The segmenter may be a live engine or any other
// implementation of the capability boundary.
func New(cfg *config.Config, seg Segmenter, log *logger.BufferedLogger) *Session {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Session{cfg: cfg, seg: seg, log: log}
}

// LoadImage white-balances the image, computes its illumination
// decomposition, generates the segmentation embedding and reinitializes
// surfaces, groups and history.
func (s *Session) LoadImage(ctx context.Context, img *raster.Image, wb raster.WhiteBalance) error {
	act := s.log.StartAction()
	defer act.Commit()

	base := img.ApplyWhiteBalance(wb)

	strategy, err := s.buildStrategy(ctx, base)
	if err != nil {
		return err
	}

	if s.seg != nil {
		if err := s.seg.GenerateEmbedding(ctx, base); err != nil {
			return fmt.Errorf("embedding: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.base = base
	s.display = base.Clone()
	s.strategy = strategy
	s.comp = recolor.NewCompositor(strategy)
	s.surfaces = nil
	s.groups = nil
	s.nextSurfaceID = 0
	s.nextGroupID = 0
	s.busy = false
	s.history = NewHistory(s.cfg.History.Capacity)
	s.history.Push(base)

	act.Printf("image loaded: %dx%d, strategy=%s", base.Width, base.Height, s.cfg.Recolor.Strategy)
	return nil
}

// buildStrategy selects the decomposition per configuration. The two
// strategies are mutually exclusive per image; the choice is fixed before
// any segmentation happens.
func (s *Session) buildStrategy(ctx context.Context, base *raster.Image) (illum.Strategy, error) {
	switch s.cfg.Recolor.Strategy {
	case "", "retinex":
		return illum.NewRetinex(base, s.cfg.Recolor.RetinexBlurRadius), nil
	case "intrinsic":
		fields, err := illum.Decompose(ctx, base, s.cfg.Recolor.IntrinsicModelPath)
		if err != nil {
			return nil, err
		}
		return illum.NewIntrinsic(fields)
	default:
		return nil, fmt.Errorf("unknown recolor strategy %q", s.cfg.Recolor.Strategy)
	}
}

// ApplyAt segments the surface under the point and paints it. Returns the
// created surface, or nil (and no error) when the segmentation came back
// empty: a click that misses any distinguishable boundary is a no-op.
func (s *Session) ApplyAt(ctx context.Context, pt segment.Point, colorHex string) (*Surface, error) {
	act := s.log.StartAction()
	defer act.Commit()

	s.mu.Lock()
	if s.base == nil {
		s.mu.Unlock()
		return nil, ErrNoImage
	}
	if s.busy {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.busy = true
	gen := s.generation
	base := s.base
	s.mu.Unlock()

	// Inference runs outside the lock; only the commit re-enters it.
	px, err := s.seg.GenerateMask(ctx, base, pt)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false

	if err != nil {
		return nil, err
	}
	if gen != s.generation {
		// The image changed while the mask was being computed; the result
		// would repaint the wrong picture.
		return nil, nil
	}
	if len(px) == 0 {
		act.Printf("click (%.0f,%.0f): empty mask, no-op", pt.X, pt.Y)
		return nil, nil
	}

	surface := &Surface{
		ID:      s.nextSurfaceIDLocked(),
		Pixels:  px,
		Color:   colorHex,
		Enabled: true,
	}
	s.surfaces = append(s.surfaces, surface)

	if err := s.rebuildLocked(); err != nil {
		// Roll the surface back; the display and history stay valid.
		s.surfaces = s.surfaces[:len(s.surfaces)-1]
		return nil, err
	}
	act.Printf("surface %d painted %s (%d px)", surface.ID, colorHex, len(px))
	return surface, nil
}

// ApplyMask paints an externally chosen mask (e.g. a candidate the user
// picked among ambiguous segmentations) without running the engine.
func (s *Session) ApplyMask(px mask.Pixels, colorHex string) (*Surface, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.base == nil {
		return nil, ErrNoImage
	}
	if len(px) == 0 {
		return nil, nil
	}

	surface := &Surface{
		ID:      s.nextSurfaceIDLocked(),
		Pixels:  px,
		Color:   colorHex,
		Enabled: true,
	}
	s.surfaces = append(s.surfaces, surface)
	if err := s.rebuildLocked(); err != nil {
		s.surfaces = s.surfaces[:len(s.surfaces)-1]
		return nil, err
	}
	return surface, nil
}

func (s *Session) nextSurfaceIDLocked() int {
	s.nextSurfaceID++
	return s.nextSurfaceID
}

// rebuildLocked recomputes the display image from the pristine base over
// all enabled surfaces and pushes the result onto the history.
func (s *Session) rebuildLocked() error {
	layers := make([]recolor.Layer, len(s.surfaces))
	for i, sf := range s.surfaces {
		layers[i] = recolor.Layer{Pixels: sf.Pixels, Color: sf.Color, Enabled: sf.Enabled}
	}
	display, err := s.comp.ReapplyAll(s.base, layers)
	if err != nil {
		return err
	}
	s.display = display
	s.history.Push(display)
	return nil
}

func (s *Session) findSurfaceLocked(id int) (*Surface, error) {
	for _, sf := range s.surfaces {
		if sf.ID == id {
			return sf, nil
		}
	}
	return nil, fmt.Errorf("surface %d not found", id)
}

func (s *Session) findGroupLocked(id int) (*Group, error) {
	for _, g := range s.groups {
		if g.ID == id {
			return g, nil
		}
	}
	return nil, fmt.Errorf("group %d not found", id)
}

// SetSurfaceColor recolors an existing surface.
func (s *Session) SetSurfaceColor(id int, colorHex string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sf, err := s.findSurfaceLocked(id)
	if err != nil {
		return err
	}
	prev := sf.Color
	sf.Color = colorHex
	if err := s.rebuildLocked(); err != nil {
		sf.Color = prev
		return err
	}
	return nil
}

// SetSurfaceEnabled toggles a surface's visibility. Disabling a surface
// restores its pixels to the pristine base on the next rebuild.
func (s *Session) SetSurfaceEnabled(id int, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sf, err := s.findSurfaceLocked(id)
	if err != nil {
		return err
	}
	if sf.Enabled == enabled {
		return nil
	}
	sf.Enabled = enabled
	if err := s.rebuildLocked(); err != nil {
		sf.Enabled = !enabled
		return err
	}
	return nil
}

// AddGroup creates a group. The name is an explicit validated parameter:
// it must be non-empty and unique among groups.
func (s *Session) AddGroup(name, colorHex string) (*Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == "" {
		return nil, errors.New("group name must not be empty")
	}
	for _, g := range s.groups {
		if g.Name == name {
			return nil, fmt.Errorf("group name %q already in use", name)
		}
	}
	s.nextGroupID++
	g := &Group{ID: s.nextGroupID, Name: name, Color: colorHex}
	s.groups = append(s.groups, g)
	return g, nil
}

// RenameGroup changes a group's display name, keeping names unique.
func (s *Session) RenameGroup(id int, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == "" {
		return errors.New("group name must not be empty")
	}
	for _, g := range s.groups {
		if g.Name == name && g.ID != id {
			return fmt.Errorf("group name %q already in use", name)
		}
	}
	g, err := s.findGroupLocked(id)
	if err != nil {
		return err
	}
	g.Name = name
	return nil
}

// AssignGroup puts a surface into a group and adopts the group's color.
func (s *Session) AssignGroup(surfaceID, groupID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sf, err := s.findSurfaceLocked(surfaceID)
	if err != nil {
		return err
	}
	g, err := s.findGroupLocked(groupID)
	if err != nil {
		return err
	}
	prevGroup, prevColor := sf.GroupID, sf.Color
	sf.GroupID = g.ID
	sf.Color = g.Color
	if err := s.rebuildLocked(); err != nil {
		sf.GroupID, sf.Color = prevGroup, prevColor
		return err
	}
	return nil
}

// SetGroupColor changes a group's color and cascades it to every member
// surface, then rebuilds the image from the pristine base.
func (s *Session) SetGroupColor(id int, colorHex string) error {
	act := s.log.StartAction()
	defer act.Commit()

	s.mu.Lock()
	defer s.mu.Unlock()
	g, err := s.findGroupLocked(id)
	if err != nil {
		return err
	}

	prevColors := make(map[int]string)
	for _, sf := range s.surfaces {
		if sf.GroupID == g.ID {
			prevColors[sf.ID] = sf.Color
			sf.Color = colorHex
		}
	}
	prevGroupColor := g.Color
	g.Color = colorHex

	if err := s.rebuildLocked(); err != nil {
		g.Color = prevGroupColor
		for _, sf := range s.surfaces {
			if c, ok := prevColors[sf.ID]; ok {
				sf.Color = c
			}
		}
		return err
	}
	act.Printf("group %d recolored %s (%d surfaces)", id, colorHex, len(prevColors))
	return nil
}

// Undo steps the display back one history entry; a no-op at the oldest.
func (s *Session) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.history == nil {
		return false
	}
	img, ok := s.history.Undo()
	if ok {
		s.display = img
	}
	return ok
}

// Redo steps the display forward one history entry; a no-op at the newest.
func (s *Session) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.history == nil {
		return false
	}
	img, ok := s.history.Redo()
	if ok {
		s.display = img
	}
	return ok
}

// Reset clears all surfaces and groups, restores the pristine base and
// reinitializes the history to a single entry containing it.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.base == nil {
		return ErrNoImage
	}
	s.generation++
	s.surfaces = nil
	s.groups = nil
	s.display = s.base.Clone()
	s.history = NewHistory(s.cfg.History.Capacity)
	s.history.Push(s.base)
	s.busy = false
	return nil
}

// Display returns the current image with an optional lighting preset
// applied. The preset is display-only and never persisted.
func (s *Session) Display(preset *config.LightingPreset) *raster.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.display == nil {
		return nil
	}
	if preset == nil {
		return s.display.Clone()
	}
	return recolor.ApplyLighting(s.display, *preset)
}

// Base returns a copy of the pristine white-balanced image.
func (s *Session) Base() *raster.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.base == nil {
		return nil
	}
	return s.base.Clone()
}

// Surfaces returns a snapshot of the surface list.
func (s *Session) Surfaces() []Surface {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Surface, len(s.surfaces))
	for i, sf := range s.surfaces {
		out[i] = *sf
	}
	return out
}

// Groups returns a snapshot of the group list.
func (s *Session) Groups() []Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Group, len(s.groups))
	for i, g := range s.groups {
		out[i] = *g
	}
	return out
}

// HistoryLen reports how many snapshots the history currently holds.
func (s *Session) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.history == nil {
		return 0
	}
	return s.history.Len()
}
