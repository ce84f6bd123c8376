// Package proc is the process-table collaborator named in spec.md §6
// ("Process table: myproc() returns the current process with fields
// pgdir, sz, mmaps[], mmap_sp, killed, pid, name"). Grounded in
// original_source/proc.h and the teacher's (stub) proc package.
package proc

import (
	"sync"

	"github.com/afiqket/vmcore/defs"
	"github.com/afiqket/vmcore/mem"
	"github.com/afiqket/vmcore/pagetable"
)

// MmapRegion is the per-process mmap record of spec.md §3: "Record
// {addr, file, offset, length, flags, used, dirty}." The file field is
// deliberately untyped here (any) so this package does not need to
// import fs — mmapmgr, which does know the concrete file type, populates
// it.
type MmapRegion struct {
	Addr   int
	File   any
	Offset int
	Length int
	Flags  int
	Used   bool
	Dirty  bool
}

// Proc is a single process's address space and mmap arena: the minimal
// slice of original_source/proc.h's struct proc this subsystem needs.
type Proc struct {
	mu sync.Mutex

	PID  int
	Name string

	Pagetable *pagetable.Pagetable
	Sz        int // bytes of process memory mapped below the heap ceiling

	Mmaps  [defs.MaxMmapsProc]MmapRegion
	MmapSP int // downward-growing mmap cursor, initially KERNBASE

	Killed bool
}

// KernBase is this teaching kernel's mmap ceiling (spec.md §3: "a
// per-process pointer mmap_sp whose initial value is KERNBASE").
const KernBase = 1 << 30

// New creates a fresh process with an empty address space.
func New(pid int, name string) *Proc {
	return &Proc{
		PID:       pid,
		Name:      name,
		Pagetable: pagetable.New(),
		MmapSP:    KernBase,
	}
}

// Lock/Unlock serialize mutations to this process's page table and mmap
// table, mirroring the teacher's Vm_t.Lock_pmap discipline (spec.md §4.5:
// "the resolver ... runs with the faulting process's page table
// current").
func (p *Proc) Lock()   { p.mu.Lock() }
func (p *Proc) Unlock() { p.mu.Unlock() }

// Kill marks the process killed; per spec.md §7 it "exits at the next
// trap return" — this module models that as a flag a driver loop checks,
// since there is no real trap return here.
func (p *Proc) Kill() { p.Killed = true }

// Fork creates a child process sharing every currently-mapped anonymous
// page with the parent via copy-on-write: every writable PTE in the
// parent's page table is downgraded to read-only+CoW in both the parent
// and the child, and the underlying frame's refcount is bumped, per
// spec.md §4.5's CoW state machine ("Fork transitions parent and child
// PTEs from writable to cow_shared (and incref the frame).").
func Fork(childPID int, parent *Proc, alloc *mem.Allocator, pgCount int) *Proc {
	parent.Lock()
	defer parent.Unlock()

	child := New(childPID, parent.Name+"-child")
	child.Sz = parent.Sz

	for pgn := 0; pgn < pgCount; pgn++ {
		ppte := parent.Pagetable.Walk(pgn, false)
		if ppte == nil || !ppte.Present() {
			continue
		}
		shared := downgradeToCoW(*ppte)
		*ppte = shared
		cpte := child.Pagetable.Walk(pgn, true)
		*cpte = shared
		alloc.Incref(shared.Frame())
	}
	parent.Pagetable.FlushTLB(0, pgCount)
	return child
}

// downgradeToCoW clears the writable bit and sets the software CoW bit
// on a present PTE, per spec.md §4.5's fork transition. A PTE that is
// already read-only and not CoW (e.g. a genuine read-only mmap mapping)
// is left untouched, matching spec.md §3's PTE invariant distinguishing
// CoW shares from genuine read-only mappings.
func downgradeToCoW(pte mem.PTE) mem.PTE {
	if !pte.Writable() {
		return pte
	}
	flags := (pte.Flags() &^ mem.PTE_W) | mem.PTE_COW
	return mem.MkPTE(pte.Frame(), flags)
}

// Exit tears down every mapped page of the process, decrementing the
// refcount of each underlying frame. Per spec.md §9's "Region table
// cyclic reference" note, the mmap regions must be unmapped before this
// teardown, which is why the mmap manager's Exit hook
// (mmapmgr.ExitProcess) must be called first when a real exit path wires
// both together — this method only tears down the anonymous/page-table
// side, [0, Sz).
func (p *Proc) Exit(alloc *mem.Allocator, arena *mem.Arena) {
	p.Lock()
	defer p.Unlock()
	as := pagetable.NewAllocState(alloc, arena)
	p.Pagetable.DeallocRange(as, p.Sz, 0)
}
