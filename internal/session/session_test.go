package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prasannaganesan/interior-design-app/config"
	"github.com/prasannaganesan/interior-design-app/internal/mask"
	"github.com/prasannaganesan/interior-design-app/internal/raster"
	"github.com/prasannaganesan/interior-design-app/internal/segment"
)

// fakeSegmenter returns canned masks without a model. A nil mask entry
// simulates a click that hits no distinguishable surface.
type fakeSegmenter struct {
	mu      sync.Mutex
	mask    mask.Pixels
	err     error
	calls   int
	started chan struct{} // closed when a mask request begins, if set
	release chan struct{} // blocks the request until closed, if set
}

func (f *fakeSegmenter) GenerateEmbedding(ctx context.Context, img *raster.Image) error {
	return nil
}

func (f *fakeSegmenter) GenerateMask(ctx context.Context, img *raster.Image, pt segment.Point) (mask.Pixels, error) {
	f.mu.Lock()
	f.calls++
	started := f.started
	release := f.release
	m, err := f.mask, f.err
	f.mu.Unlock()

	if started != nil {
		close(started)
		f.mu.Lock()
		f.started = nil
		f.mu.Unlock()
	}
	if release != nil {
		<-release
	}
	return m, err
}

func (f *fakeSegmenter) GenerateMasks(ctx context.Context, img *raster.Image, prompt segment.Prompt) ([]segment.Candidate, error) {
	m, err := f.GenerateMask(ctx, img, segment.Point{})
	if err != nil {
		return nil, err
	}
	return []segment.Candidate{{Pixels: m, Score: 1}}, nil
}

func testImage(w, h int, v uint8) *raster.Image {
	img := raster.New(w, h)
	for i := 0; i < w*h; i++ {
		img.Pix[i*4] = v
		img.Pix[i*4+1] = v
		img.Pix[i*4+2] = v
	}
	return img
}

func leftHalfMask(w, h int) mask.Pixels {
	var px mask.Pixels
	for y := 0; y < h; y++ {
		for x := 0; x < w/2; x++ {
			px = append(px, y*w+x)
		}
	}
	return px
}

func newTestSession(t *testing.T, seg Segmenter) *Session {
	t.Helper()
	cfg := config.Default()
	cfg.Recolor.RetinexBlurRadius = 4
	s := New(cfg, seg, nil)
	if err := s.LoadImage(context.Background(), testImage(8, 8, 128), raster.Neutral); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestApplyAtCreatesSurface(t *testing.T) {
	seg := &fakeSegmenter{mask: leftHalfMask(8, 8)}
	s := newTestSession(t, seg)

	sf, err := s.ApplyAt(context.Background(), segment.Point{X: 2, Y: 2}, "#AA3311")
	if err != nil {
		t.Fatal(err)
	}
	if sf == nil {
		t.Fatal("expected a surface")
	}
	if sf.Color != "#AA3311" || !sf.Enabled {
		t.Errorf("surface = %+v", sf)
	}
	if s.HistoryLen() != 2 {
		t.Errorf("history len = %d, want 2 (base + paint)", s.HistoryLen())
	}

	// Pixels outside the mask stay bit-identical to the base.
	base := s.Base()
	display := s.Display(nil)
	outside := sf.Pixels.ToDense(64)
	for i := 0; i < 64; i++ {
		if outside[i] {
			continue
		}
		for c := 0; c < 4; c++ {
			if display.Pix[i*4+c] != base.Pix[i*4+c] {
				t.Fatalf("pixel %d changed outside the mask", i)
			}
		}
	}
}

func TestApplyAtEmptyMaskIsNoOp(t *testing.T) {
	seg := &fakeSegmenter{mask: nil}
	s := newTestSession(t, seg)

	sf, err := s.ApplyAt(context.Background(), segment.Point{X: 1, Y: 1}, "#FF0000")
	if err != nil {
		t.Fatal(err)
	}
	if sf != nil {
		t.Error("empty mask must not create a surface")
	}
	if s.HistoryLen() != 1 {
		t.Error("empty mask must not push history")
	}
	if !s.Display(nil).Equal(s.Base()) {
		t.Error("display must stay at base")
	}
}

func TestApplyAtSegmenterFailureLeavesStateIntact(t *testing.T) {
	seg := &fakeSegmenter{err: errors.New("decoder exploded")}
	s := newTestSession(t, seg)

	if _, err := s.ApplyAt(context.Background(), segment.Point{}, "#FF0000"); err == nil {
		t.Fatal("expected segmentation error")
	}
	if len(s.Surfaces()) != 0 || s.HistoryLen() != 1 {
		t.Error("failed action must leave surfaces and history untouched")
	}
	if !s.Display(nil).Equal(s.Base()) {
		t.Error("failed action must leave the display untouched")
	}
}

func TestApplyAtWhileBusyIsDropped(t *testing.T) {
	seg := &fakeSegmenter{
		mask:    leftHalfMask(8, 8),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	s := newTestSession(t, seg)

	done := make(chan error, 1)
	started := seg.started
	go func() {
		_, err := s.ApplyAt(context.Background(), segment.Point{X: 1, Y: 1}, "#111111")
		done <- err
	}()
	<-started

	// Second click while the first mask request is in flight.
	_, err := s.ApplyAt(context.Background(), segment.Point{X: 2, Y: 2}, "#222222")
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("got %v, want ErrBusy", err)
	}

	close(seg.release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if got := len(s.Surfaces()); got != 1 {
		t.Errorf("got %d surfaces, want 1", got)
	}
}

func TestDisableSurfaceRestoresBasePixels(t *testing.T) {
	seg := &fakeSegmenter{mask: leftHalfMask(8, 8)}
	s := newTestSession(t, seg)

	sf, err := s.ApplyAt(context.Background(), segment.Point{}, "#00AA00")
	if err != nil || sf == nil {
		t.Fatal(err)
	}
	if err := s.SetSurfaceEnabled(sf.ID, false); err != nil {
		t.Fatal(err)
	}
	if !s.Display(nil).Equal(s.Base()) {
		t.Error("disabling the only surface must restore the pristine base exactly")
	}
}

func TestGroupColorCascade(t *testing.T) {
	seg := &fakeSegmenter{mask: mask.Pixels{0, 1, 2, 3}}
	s := newTestSession(t, seg)

	a, err := s.ApplyAt(context.Background(), segment.Point{}, "#111111")
	if err != nil || a == nil {
		t.Fatal(err)
	}
	seg.mu.Lock()
	seg.mask = mask.Pixels{60, 61, 62, 63}
	seg.mu.Unlock()
	b, err := s.ApplyAt(context.Background(), segment.Point{}, "#222222")
	if err != nil || b == nil {
		t.Fatal(err)
	}

	g, err := s.AddGroup("accent walls", "#111111")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.AssignGroup(a.ID, g.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.AssignGroup(b.ID, g.ID); err != nil {
		t.Fatal(err)
	}

	if err := s.SetGroupColor(g.ID, "#3366AA"); err != nil {
		t.Fatal(err)
	}

	for _, sf := range s.Surfaces() {
		if sf.Color != "#3366AA" {
			t.Errorf("surface %d color = %s, want #3366AA", sf.ID, sf.Color)
		}
	}

	// Both surfaces' rendered pixels must match: same flat source, same
	// target color, so the painted regions are identical.
	display := s.Display(nil)
	for i := 0; i < 4; i++ {
		pa := [3]uint8{display.Pix[i*4], display.Pix[i*4+1], display.Pix[i*4+2]}
		j := 60 + i
		pb := [3]uint8{display.Pix[j*4], display.Pix[j*4+1], display.Pix[j*4+2]}
		if pa != pb {
			t.Errorf("grouped surfaces rendered differently: %v vs %v", pa, pb)
		}
	}
}

func TestGroupNameValidation(t *testing.T) {
	s := newTestSession(t, &fakeSegmenter{})

	if _, err := s.AddGroup("", "#FFFFFF"); err == nil {
		t.Error("empty group name must be rejected")
	}
	if _, err := s.AddGroup("walls", "#FFFFFF"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddGroup("walls", "#000000"); err == nil {
		t.Error("duplicate group name must be rejected")
	}

	g2, err := s.AddGroup("trim", "#000000")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.RenameGroup(g2.ID, "walls"); err == nil {
		t.Error("rename onto an existing name must be rejected")
	}
	if err := s.RenameGroup(g2.ID, "ceiling"); err != nil {
		t.Fatal(err)
	}
}

func TestUndoRedoRestoresDisplay(t *testing.T) {
	seg := &fakeSegmenter{mask: leftHalfMask(8, 8)}
	s := newTestSession(t, seg)

	if _, err := s.ApplyAt(context.Background(), segment.Point{}, "#AA0000"); err != nil {
		t.Fatal(err)
	}
	painted := s.Display(nil)

	if !s.Undo() {
		t.Fatal("undo should succeed")
	}
	if !s.Display(nil).Equal(s.Base()) {
		t.Error("undo must restore the base snapshot")
	}
	if !s.Redo() {
		t.Fatal("redo should succeed")
	}
	if !s.Display(nil).Equal(painted) {
		t.Error("redo must restore the painted snapshot bit-identically")
	}
	if s.Redo() {
		t.Error("redo at the newest entry must be a no-op")
	}
}

func TestResetClearsEverything(t *testing.T) {
	seg := &fakeSegmenter{mask: leftHalfMask(8, 8)}
	s := newTestSession(t, seg)

	if _, err := s.ApplyAt(context.Background(), segment.Point{}, "#AA0000"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddGroup("walls", "#AA0000"); err != nil {
		t.Fatal(err)
	}

	if err := s.Reset(); err != nil {
		t.Fatal(err)
	}
	if len(s.Surfaces()) != 0 || len(s.Groups()) != 0 {
		t.Error("reset must clear surfaces and groups")
	}
	if s.HistoryLen() != 1 {
		t.Errorf("history len = %d, want 1", s.HistoryLen())
	}
	if !s.Display(nil).Equal(s.Base()) {
		t.Error("reset must restore the pristine base")
	}
}

func TestOperationsBeforeLoadFail(t *testing.T) {
	s := New(config.Default(), &fakeSegmenter{}, nil)

	if _, err := s.ApplyAt(context.Background(), segment.Point{}, "#FFFFFF"); !errors.Is(err, ErrNoImage) {
		t.Errorf("ApplyAt: got %v, want ErrNoImage", err)
	}
	if err := s.Reset(); !errors.Is(err, ErrNoImage) {
		t.Errorf("Reset: got %v, want ErrNoImage", err)
	}
}

func TestLightingPresetNotPersisted(t *testing.T) {
	seg := &fakeSegmenter{mask: leftHalfMask(8, 8)}
	s := newTestSession(t, seg)

	warm := config.LightingPreset{Name: "warm", R: 1.1, G: 1.0, B: 0.85, Brightness: 1.0}
	lit := s.Display(&warm)
	plain := s.Display(nil)

	if lit.Equal(plain) {
		t.Error("preset should change the displayed image")
	}
	// Undo/redo snapshots must not carry the tint.
	if _, err := s.ApplyAt(context.Background(), segment.Point{}, "#AA0000"); err != nil {
		t.Fatal(err)
	}
	s.Undo()
	if !s.Display(nil).Equal(s.Base()) {
		t.Error("history snapshot must not contain the lighting tint")
	}
}
