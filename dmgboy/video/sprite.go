package video

import "sort"

// sortByPriority orders OAM indices by DMG (non-CGB) drawing priority: lower
// X coordinate wins, and on a tie the lower OAM index wins (spec.md §4.4).
// Resolving priority by sort order rather than a precomputed per-pixel owner
// means a transparent pixel never blocks a lower-priority opaque pixel
// underneath it — only an opaque draw claims the slot.
func sortByPriority(indices []int, xOf func(int) int) {
	sort.SliceStable(indices, func(a, b int) bool {
		ia, ib := indices[a], indices[b]
		xa, xb := xOf(ia), xOf(ib)
		if xa != xb {
			return xa < xb
		}
		return ia < ib
	})
}
