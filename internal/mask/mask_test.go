package mask

import "testing"

func TestDenseRoundTrip(t *testing.T) {
	dense := make([]bool, 16)
	dense[0] = true
	dense[5] = true
	dense[15] = true

	px := FromDense(dense)
	if len(px) != 3 {
		t.Fatalf("got %d indices, want 3", len(px))
	}

	back := px.ToDense(16)
	for i := range dense {
		if dense[i] != back[i] {
			t.Errorf("index %d: got %v, want %v", i, back[i], dense[i])
		}
	}
}

func TestToDenseIgnoresOutOfRange(t *testing.T) {
	px := Pixels{-1, 3, 99}
	dense := px.ToDense(4)
	if !dense[3] {
		t.Error("index 3 should be set")
	}
	count := 0
	for _, on := range dense {
		if on {
			count++
		}
	}
	if count != 1 {
		t.Errorf("got %d set pixels, want 1", count)
	}
}

func TestLargestComponentKeepsBiggestBlob(t *testing.T) {
	// 20x20 canvas with a 10x10 blob (100 px) and a separate 3 px speck.
	const w, h = 20, 20
	dense := make([]bool, w*h)
	for y := 2; y < 12; y++ {
		for x := 2; x < 12; x++ {
			dense[y*w+x] = true
		}
	}
	dense[17*w+17] = true
	dense[17*w+18] = true
	dense[18*w+17] = true

	out := LargestComponent(dense, w, h)

	kept := 0
	for _, on := range out {
		if on {
			kept++
		}
	}
	if kept != 100 {
		t.Errorf("kept %d pixels, want 100", kept)
	}
	if out[17*w+17] || out[17*w+18] || out[18*w+17] {
		t.Error("speck pixels should be discarded")
	}
	if !out[5*w+5] {
		t.Error("blob interior should be kept")
	}
}

func TestLargestComponentDiagonalConnectivity(t *testing.T) {
	// Diagonal neighbors are 8-connected, so a diagonal chain is one
	// component and beats a 2-pixel blob.
	const w, h = 8, 8
	dense := make([]bool, w*h)
	for i := 0; i < 4; i++ {
		dense[i*w+i] = true
	}
	dense[6*w+0] = true
	dense[6*w+1] = true

	out := LargestComponent(dense, w, h)
	for i := 0; i < 4; i++ {
		if !out[i*w+i] {
			t.Errorf("diagonal pixel (%d,%d) should be kept", i, i)
		}
	}
	if out[6*w+0] || out[6*w+1] {
		t.Error("smaller blob should be discarded")
	}
}

func TestLargestComponentEmpty(t *testing.T) {
	out := LargestComponent(make([]bool, 16), 4, 4)
	for i, on := range out {
		if on {
			t.Fatalf("pixel %d set in empty mask", i)
		}
	}
}
