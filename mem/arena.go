package mem

// Arena is the simulated physical memory backing an Allocator: a flat
// slice of page-sized byte arrays indexed by Frame. Real kernels recover
// this mapping via a direct map (the teacher's Physmem_t.Dmap); a
// memory-safe simulation can just keep the slice around, which is the
// adaptation spec.md §9's Design Notes calls for when it says to avoid
// "raw pointers into the frames themselves."
type Arena struct {
	Pages []Page
}

// NewArena allocates n zeroed page frames.
func NewArena(n int) *Arena {
	return &Arena{Pages: make([]Page, n)}
}

// At returns a pointer to the bytes of frame f.
func (a *Arena) At(f Frame) *Page {
	return &a.Pages[f]
}

// Zero clears frame f to all zero bytes.
func (a *Arena) Zero(f Frame) {
	p := &a.Pages[f]
	for i := range p {
		p[i] = 0
	}
}

// Copy copies the contents of frame src into frame dst.
func (a *Arena) Copy(dst, src Frame) {
	*a.At(dst) = *a.At(src)
}
