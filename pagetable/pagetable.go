// Package pagetable is the page-table facade of spec.md §4.2: it walks
// and mutates a two-level page table, exposing lookup, map, unmap, and
// range-allocate/deallocate, the way the teacher's vm package wraps
// pmap_walk and friends around mem.Pmap_t.
package pagetable

import (
	"github.com/afiqket/vmcore/defs"
	"github.com/afiqket/vmcore/mem"
)

// entriesPerTable sizes each level of the simulated two-level table.
// Real hardware tables are 512-entry (9 address bits per level); this
// teaching kernel keeps that same per-level width. Two levels of 512
// entries each cover 512*512*PGSIZE == proc.KernBase page-number-addressable
// bytes, which is the full range mmap_sp can ever hand out (mmap regions
// grow down from KernBase, so a table covering anything less would walk
// off the end for every process's first mmap call).
const entriesPerTable = 512

// innerTable is the second (leaf) level: PTE slots covering contiguous
// pages.
type innerTable struct {
	ptes [entriesPerTable]mem.PTE
}

// Pagetable is a process's two-level page table root, addressed by a
// page number (va / PGSIZE), per spec.md §3 ("pgdir. Root of a process's
// two-level page table.").
type Pagetable struct {
	inner [entriesPerTable]*innerTable
}

// New constructs an empty page table.
func New() *Pagetable {
	return &Pagetable{}
}

func split(pgn int) (outer, leaf int) {
	return pgn / entriesPerTable, pgn % entriesPerTable
}

// Walk returns a mutable pointer to the PTE slot covering virtual page
// number pgn. If create is set and the covering inner table is missing,
// one is allocated; on failure (never, in this pure-Go model — allocation
// here never runs out — but the signature mirrors the teacher's walk,
// which can fail when page-table-page allocation from the PFA fails) nil
// is returned. Does not touch the PTE itself, per spec.md §4.2.
func (pt *Pagetable) Walk(pgn int, create bool) *mem.PTE {
	outer, leaf := split(pgn)
	if outer < 0 || outer >= entriesPerTable {
		return nil
	}
	if pt.inner[outer] == nil {
		if !create {
			return nil
		}
		pt.inner[outer] = &innerTable{}
	}
	return &pt.inner[outer].ptes[leaf]
}

// Lookup returns the PTE covering pgn without creating anything, and
// whether it is present.
func (pt *Pagetable) Lookup(pgn int) (mem.PTE, bool) {
	p := pt.Walk(pgn, false)
	if p == nil {
		return 0, false
	}
	return *p, p.Present()
}

// FlushTLB is a hook marking that PTE mutations covering
// [pgnStart, pgnStart+count) are now visible to this address space's
// owning CPU, per spec.md §4.2: "After any batch that mutates PTEs of the
// current address space, the caller reloads the address-space root to
// flush." Modeled as a no-op method (rather than omitted entirely) that
// marks in the code the points where a flush happens, the role
// vm.Tlbshoot plays in the teacher; it records nothing, so a call cannot
// be observed afterwards, and it does no cross-CPU shootdown (spec.md
// §9's open issue; this single-logical-CPU-per-process model has nothing
// to shoot down).
func (pt *Pagetable) FlushTLB(pgnStart, count int) {}

// MapRange walks with create, allocates a fresh zero-filled frame, and
// writes a present PTE with perm for every page-aligned page in
// [pgnStart, pgnStart+count), per spec.md §4.2. On allocation failure
// partway through, already-mapped pages in this call are torn back down
// and false is returned so the caller can report the
// resource-exhaustion error required by spec.md §7 without side effects.
func (pt *Pagetable) MapRange(a *AllocState, pgnStart, count int, perm mem.PTE) bool {
	mapped := 0
	for i := 0; i < count; i++ {
		pgn := pgnStart + i
		f, ok := a.alloc.Alloc()
		if !ok {
			pt.unmapN(a, pgnStart, mapped)
			return false
		}
		a.arena.Zero(f)
		pte := pt.Walk(pgn, true)
		*pte = mem.MkPTE(f, perm|mem.PTE_P)
		mapped++
	}
	return true
}

func (pt *Pagetable) unmapN(a *AllocState, pgnStart, n int) {
	for i := 0; i < n; i++ {
		pt.unmapOne(a, pgnStart+i)
	}
}

func (pt *Pagetable) unmapOne(a *AllocState, pgn int) {
	pte := pt.Walk(pgn, false)
	if pte == nil || !pte.Present() {
		return
	}
	f := pte.Frame()
	*pte = 0
	a.alloc.Free(f, a.arena.Pages)
}

// AllocState bundles the allocator and arena MapRange/DeallocRange need;
// kept distinct from Pagetable itself since the table has no allocator of
// its own (spec.md's PFA and page-table facade are separate components
// sharing the allocator only through explicit calls).
type AllocState struct {
	alloc *mem.Allocator
	arena *mem.Arena
}

// NewAllocState bundles an allocator and its backing arena for use with
// AllocRange/DeallocRange/MapRange.
func NewAllocState(alloc *mem.Allocator, arena *mem.Arena) *AllocState {
	return &AllocState{alloc: alloc, arena: arena}
}

// AllocRange grows a page table from oldSz to newSz bytes using MapRange,
// per spec.md §4.2. Returns the new size, or 0 on failure with partial
// progress rolled back.
func (pt *Pagetable) AllocRange(a *AllocState, oldSz, newSz int) int {
	if newSz <= oldSz {
		return newSz
	}
	oldPgn := (oldSz + mem.PGSIZE - 1) / mem.PGSIZE
	newPgn := (newSz + mem.PGSIZE - 1) / mem.PGSIZE
	if !pt.MapRange(a, oldPgn, newPgn-oldPgn, mem.PTE_U|mem.PTE_W) {
		return 0
	}
	return newSz
}

// DeallocRange shrinks a page table from oldSz to newSz (oldSz > newSz):
// for each page in the shrinking region it loads the PTE, clears it, and
// frees the underlying frame. A null or non-present PTE is skipped, per
// spec.md §4.2.
func (pt *Pagetable) DeallocRange(a *AllocState, oldSz, newSz int) {
	if oldSz <= newSz {
		return
	}
	newPgn := (newSz + mem.PGSIZE - 1) / mem.PGSIZE
	oldPgn := (oldSz + mem.PGSIZE - 1) / mem.PGSIZE
	for pgn := newPgn; pgn < oldPgn; pgn++ {
		pt.unmapOne(a, pgn)
	}
	pt.FlushTLB(newPgn, oldPgn-newPgn)
}

// errAlign names defs.EINVAL for PGSIZE-alignment failures; no function
// in this package currently returns it.
const errAlign = defs.EINVAL
