package session

import (
	"time"

	"github.com/prasannaganesan/interior-design-app/internal/raster"
)

// defaultHistoryCapacity bounds the undo stack when no capacity is
// configured.
const defaultHistoryCapacity = 20

// historyEntry is an immutable full snapshot of the displayed raster.
type historyEntry struct {
	snapshot *raster.Image
	takenAt  time.Time
}

// History is a bounded sequence of snapshots with a cursor. Pushing after
// an undo truncates the redo branch; when full, the oldest entry is
// evicted first.
type History struct {
	entries  []historyEntry
	cursor   int
	capacity int
}

// NewHistory creates an empty history with the given capacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = defaultHistoryCapacity
	}
	return &History{cursor: -1, capacity: capacity}
}

// Push stores an owned snapshot of img as the new current entry.
func (h *History) Push(img *raster.Image) {
	// Discard any redo branch past the cursor.
	h.entries = h.entries[:h.cursor+1]
	h.entries = append(h.entries, historyEntry{snapshot: img.Clone(), takenAt: time.Now()})
	if len(h.entries) > h.capacity {
		over := len(h.entries) - h.capacity
		h.entries = append(h.entries[:0:0], h.entries[over:]...)
	}
	h.cursor = len(h.entries) - 1
}

// Undo moves the cursor back one entry and returns its snapshot. At the
// oldest entry it is a no-op returning (nil, false).
func (h *History) Undo() (*raster.Image, bool) {
	if h.cursor <= 0 {
		return nil, false
	}
	h.cursor--
	return h.entries[h.cursor].snapshot.Clone(), true
}

// Redo moves the cursor forward one entry and returns its snapshot. At
// the newest entry it is a no-op returning (nil, false).
func (h *History) Redo() (*raster.Image, bool) {
	if h.cursor < 0 || h.cursor >= len(h.entries)-1 {
		return nil, false
	}
	h.cursor++
	return h.entries[h.cursor].snapshot.Clone(), true
}

// Current returns the snapshot under the cursor, or nil when empty.
func (h *History) Current() *raster.Image {
	if h.cursor < 0 {
		return nil
	}
	return h.entries[h.cursor].snapshot.Clone()
}

// Len returns the number of stored entries.
func (h *History) Len() int { return len(h.entries) }

// CanUndo reports whether Undo would move the cursor.
func (h *History) CanUndo() bool { return h.cursor > 0 }

// CanRedo reports whether Redo would move the cursor.
func (h *History) CanRedo() bool { return h.cursor >= 0 && h.cursor < len(h.entries)-1 }

// Clear drops all entries.
func (h *History) Clear() {
	h.entries = nil
	h.cursor = -1
}
