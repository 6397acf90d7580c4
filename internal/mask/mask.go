// Package mask defines the pixel-membership representation for segmented
// surfaces. The canonical stored form is a compact list of flat pixel
// indices; the dense boolean form exists only as a conversion artifact at
// the segmentation-engine boundary.
package mask

// Pixels is a set of flat pixel indices (y*width + x). Indices are unique;
// order carries no meaning.
type Pixels []int

// FromDense collects the indices of all true cells of a dense w×h mask.
func FromDense(dense []bool) Pixels {
	px := make(Pixels, 0, len(dense)/8)
	for i, on := range dense {
		if on {
			px = append(px, i)
		}
	}
	return px
}

// ToDense expands a compact mask back into a dense buffer of n pixels.
// Indices outside [0, n) are ignored.
func (p Pixels) ToDense(n int) []bool {
	dense := make([]bool, n)
	for _, i := range p {
		if i >= 0 && i < n {
			dense[i] = true
		}
	}
	return dense
}

// LargestComponent keeps only the largest 8-connected foreground component
// of a dense w×h mask, discarding smaller disconnected specks. The input
// is not modified. An all-false mask yields an all-false result.
func LargestComponent(dense []bool, w, h int) []bool {
	labels := make([]int32, w*h)
	var bestLabel int32
	bestSize := 0
	next := int32(1)

	stack := make([]int, 0, 256)
	for start := range dense {
		if !dense[start] || labels[start] != 0 {
			continue
		}
		label := next
		next++
		size := 0
		stack = append(stack[:0], start)
		labels[start] = label
		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			size++
			x := idx % w
			y := idx / w
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					nx, ny := x+dx, y+dy
					if nx < 0 || nx >= w || ny < 0 || ny >= h {
						continue
					}
					n := ny*w + nx
					if dense[n] && labels[n] == 0 {
						labels[n] = label
						stack = append(stack, n)
					}
				}
			}
		}
		if size > bestSize {
			bestSize = size
			bestLabel = label
		}
	}

	out := make([]bool, w*h)
	if bestLabel == 0 {
		return out
	}
	for i := range out {
		out[i] = labels[i] == bestLabel
	}
	return out
}

// Contains reports whether the mask includes the given flat index.
// Linear scan; masks are only probed this way during hit-testing.
func (p Pixels) Contains(idx int) bool {
	for _, i := range p {
		if i == idx {
			return true
		}
	}
	return false
}
