package mem

import "sync"

// physpg tracks one physical frame: its reference count and, while free,
// the index of the next frame on the free list. Grounded in the teacher's
// Physpg_t (biscuit/src/mem/mem.go), trimmed of the per-CPU free-list and
// TLB-cpumask fields that only matter on real multi-socket hardware.
type physpg struct {
	refcnt int32
	nexti  Frame
}

// Allocator is the page-frame allocator together with its per-frame
// reference-count ledger (spec.md §3, §4.1, §4.3). The zero value is not
// ready for use; call NewAllocator.
type Allocator struct {
	mu sync.Mutex

	pgs []physpg

	freei   Frame
	freelen int

	lockEnabled bool // false until KInit2, per spec.md §4.1's two-phase init
}

// NewAllocator constructs an allocator managing n page frames, all
// initially unowned (refcnt 0, not yet on the free list — handed out by
// KInit1/KInit2, mirroring the teacher's Phys_init).
func NewAllocator(n int) *Allocator {
	a := &Allocator{
		pgs:   make([]physpg, n),
		freei: InvalidFrame,
	}
	for i := range a.pgs {
		a.pgs[i].nexti = InvalidFrame
	}
	return a
}

// NFrames returns the number of frames under management.
func (a *Allocator) NFrames() int { return len(a.pgs) }

func (a *Allocator) push(i Frame) {
	a.pgs[i].nexti = a.freei
	a.freei = i
	a.freelen++
}

func (a *Allocator) pop() (Frame, bool) {
	if a.freei == InvalidFrame {
		return InvalidFrame, false
	}
	i := a.freei
	a.freei = a.pgs[i].nexti
	a.freelen--
	return i, true
}

func (a *Allocator) lock() {
	if a.lockEnabled {
		a.mu.Lock()
	}
}

func (a *Allocator) unlock() {
	if a.lockEnabled {
		a.mu.Unlock()
	}
}

// KInit1 seeds the ledger to all zero and adds [lo, hi) to the free list
// with locking disabled, per spec.md §4.1: "Phase 1 initializes the lock
// and the ledger (all zeros) and adds the initial bootstrap range to the
// free list with locking disabled."
func (a *Allocator) KInit1(lo, hi Frame) {
	a.lockEnabled = false
	for i := lo; i < hi; i++ {
		a.push(i)
	}
}

// KInit2 adds the remaining range [lo, hi) and enables locking, per
// spec.md §4.1: "Phase 2 adds the remaining range and enables locking."
func (a *Allocator) KInit2(lo, hi Frame) {
	for i := lo; i < hi; i++ {
		a.push(i)
	}
	a.lockEnabled = true
}

// Alloc removes the head of the free list and sets its refcount to 1, per
// spec.md §4.1. It returns (InvalidFrame, false) when the list is empty;
// the caller owns any retry/OOM policy.
func (a *Allocator) Alloc() (Frame, bool) {
	a.lock()
	defer a.unlock()
	i, ok := a.pop()
	if !ok {
		return InvalidFrame, false
	}
	a.pgs[i].refcnt = 1
	return i, true
}

// Refcnt returns the current reference count of frame i. Per spec.md
// §4.3, this read is racy unless the caller holds a PTE that pins the
// frame (rc ≥ 1) or otherwise synchronizes with the allocator.
func (a *Allocator) Refcnt(i Frame) int {
	return int(a.pgs[i].refcnt)
}

// Incref raises the reference count of frame i by one. Used by fork when
// aliasing a child PTE to a parent frame, and by the CoW resolver to
// preserve refcounts across a shared mapping (spec.md §4.1).
func (a *Allocator) Incref(i Frame) {
	a.lock()
	a.pgs[i].refcnt++
	a.unlock()
}

// Free decrements the reference count of frame i. If the count reaches
// zero, the frame's bytes are poisoned and it is linked back onto the
// free list; if the count was already zero, Free is a no-op (spec.md
// §4.1, and invariant 7 of spec.md §8: idempotent double-free).
//
// pages is the backing byte arena; Free poisons pages[i] when the frame
// is actually released.
func (a *Allocator) Free(i Frame, pages []Page) {
	a.lock()
	defer a.unlock()
	if a.pgs[i].refcnt == 0 {
		return
	}
	a.pgs[i].refcnt--
	if a.pgs[i].refcnt == 0 {
		if pages != nil {
			p := &pages[i]
			for j := range p {
				p[j] = PoisonByte
			}
		}
		a.push(i)
	}
}

// FreesCount is the debug observable of spec.md §4.1: the current
// free-list length, maintained incrementally rather than recomputed.
func (a *Allocator) FreesCount() int {
	a.lock()
	defer a.unlock()
	return a.freelen
}

// InUse reports how many frames currently have a non-zero refcount; used
// by metrics.Allocator and by vmctl's boot and stat output.
func (a *Allocator) InUse() int {
	a.lock()
	defer a.unlock()
	n := 0
	for i := range a.pgs {
		if a.pgs[i].refcnt > 0 {
			n++
		}
	}
	return n
}

// ReachableFromFreeList reports whether frame i is currently linked into
// the free list — used by property test 1 of spec.md §8
// ("rc[i] == 0 iff i is reachable from the free-list head").
func (a *Allocator) ReachableFromFreeList(i Frame) bool {
	a.lock()
	defer a.unlock()
	for n := a.freei; n != InvalidFrame; n = a.pgs[n].nexti {
		if n == i {
			return true
		}
	}
	return false
}
