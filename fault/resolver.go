// Package fault is the page-fault resolver of spec.md §4.5, the join
// point where the copy-on-write state machine and the mmap manager's
// first-touch policy meet. Grounded in the teacher's vm.Sys_pgfault
// (biscuit/src/vm/as.go) and original_source/trap.c's T_PGFLT branch,
// adapted from the teacher's VMA-indexed Vminfo_t lookup to this
// subsystem's flatter per-process mmap region table.
package fault

import (
	"github.com/afiqket/vmcore/defs"
	"github.com/afiqket/vmcore/mem"
	"github.com/afiqket/vmcore/proc"
)

// Outcome classifies how a fault was resolved, for logging and metrics.
type Outcome int

const (
	// OutcomeCoWCopied is the cow_shared branch: rc[i] > 1, a fresh frame
	// was allocated and the old frame's bytes copied into it.
	OutcomeCoWCopied Outcome = iota
	// OutcomeCoWClaimed is the cow_solo branch: the faulting process was
	// the last sharer, so the PTE was flipped writable in place.
	OutcomeCoWClaimed
	// OutcomeMmapFirstTouch is the mmap branch: a writable region's base
	// page took its first write and was flipped writable.
	OutcomeMmapFirstTouch
	// OutcomeFatal means the fault matched none of the above; the caller
	// must mark the process killed.
	OutcomeFatal
)

// Result reports what the resolver did, so the trap-dispatch caller (not
// part of this module, per spec.md §6) can log and, for OutcomeFatal,
// kill the process.
type Result struct {
	Outcome Outcome
	VA      int
}

// Resolve implements spec.md §4.5's three-way classification and CoW
// state machine. faultAddr is the raw faulting linear address (rounded
// down to a page boundary here, mirroring "Let va := PGROUNDDOWN(fault_addr)");
// iswrite reports whether the trapping access was a write. The caller
// supplies alloc/arena so this package never owns allocator state itself
// — it only drives the PFA and page-table facade the way the teacher's
// resolver drives mem.Physmem and the pmap.
//
// Resolve holds no locks of its own: the PFA lock is taken only inside
// Alloc/Free/Incref, and the caller is assumed to already hold whatever
// per-process lock serializes this process's page table (proc.Proc.Lock),
// per spec.md §4.5's "Atomicity" note.
func Resolve(p *proc.Proc, alloc *mem.Allocator, arena *mem.Arena, faultAddr int, iswrite bool) Result {
	va := roundDown(faultAddr, mem.PGSIZE)
	pgn := va / mem.PGSIZE
	pte := p.Pagetable.Walk(pgn, false)

	if pte != nil && pte.Present() && !pte.Writable() && pte.CoW() {
		return resolveCoW(p, alloc, arena, pte, pgn, va)
	}

	if region := findRegion(p, va); region != nil {
		return resolveMmap(p, region, pgn, va, iswrite)
	}

	return Result{Outcome: OutcomeFatal, VA: va}
}

// resolveCoW implements spec.md §4.5 step 2: the CoW branch.
func resolveCoW(p *proc.Proc, alloc *mem.Allocator, arena *mem.Arena, pte *mem.PTE, pgn, va int) Result {
	oldFrame := pte.Frame()
	rc := alloc.Refcnt(oldFrame)

	if rc > 1 {
		newFrame, ok := alloc.Alloc()
		if !ok {
			// Out of memory mid-fault: spec.md names no explicit
			// recovery path here; the safest option available to a
			// resolver holding no locks is to treat it as fatal rather
			// than leave the PTE in an inconsistent state.
			return Result{Outcome: OutcomeFatal, VA: va}
		}
		arena.Copy(newFrame, oldFrame)
		*pte = mem.MkPTE(newFrame, (pte.Flags()&^mem.PTE_COW)|mem.PTE_W)
		alloc.Free(oldFrame, arena.Pages)
		p.Pagetable.FlushTLB(pgn, 1)
		return Result{Outcome: OutcomeCoWCopied, VA: va}
	}

	*pte = mem.MkPTE(oldFrame, (pte.Flags()&^mem.PTE_COW)|mem.PTE_W)
	p.Pagetable.FlushTLB(pgn, 1)
	return Result{Outcome: OutcomeCoWClaimed, VA: va}
}

// resolveMmap implements spec.md §4.5 step 3: the mmap branch's
// first-touch policy. The faulting address must equal the region's base
// page exactly — "matching the region's base page only."
func resolveMmap(p *proc.Proc, region *proc.MmapRegion, pgn, va int, iswrite bool) Result {
	if region.Addr != va {
		return Result{Outcome: OutcomeFatal, VA: va}
	}
	if !iswrite || region.Flags&defs.MAP_PROT_WRITE == 0 {
		return Result{Outcome: OutcomeFatal, VA: va}
	}

	pte := p.Pagetable.Walk(pgn, false)
	if pte == nil || !pte.Present() {
		return Result{Outcome: OutcomeFatal, VA: va}
	}
	*pte = mem.MkPTE(pte.Frame(), pte.Flags()|mem.PTE_W)
	p.Pagetable.FlushTLB(pgn, 1)
	region.Dirty = true
	return Result{Outcome: OutcomeMmapFirstTouch, VA: va}
}

// findRegion searches p's mmap region table for a used region whose base
// address equals va, per spec.md §4.5 step 3.
func findRegion(p *proc.Proc, va int) *proc.MmapRegion {
	for i := range p.Mmaps {
		r := &p.Mmaps[i]
		if r.Used && r.Addr == va {
			return r
		}
	}
	return nil
}

func roundDown(v, b int) int { return v - (v % b) }
