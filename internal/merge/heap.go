package merge

// less orders two cursor heads by ts_init, then by source registration index.
func less(aTs uint64, aIdx int, bTs uint64, bIdx int) bool {
	if aTs != bTs {
		return aTs < bTs
	}
	return aIdx < bIdx
}

// cursorHeap is a min-heap of cursors by their head record.
type cursorHeap []*cursor

func (h cursorHeap) Len() int { return len(h) }

func (h cursorHeap) Less(i, j int) bool {
	return less(h[i].head().TsInit, h[i].index, h[j].head().TsInit, h[j].index)
}

func (h cursorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *cursorHeap) Push(x any) { *h = append(*h, x.(*cursor)) }

func (h *cursorHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return c
}
