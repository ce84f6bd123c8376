// Package mmapmgr is the mmap manager of spec.md §4.4: a per-process
// table of file-backed regions growing downward from a fixed virtual
// ceiling, bounded by a per-process and a system-wide cap.
package mmapmgr

import (
	"sync"

	"github.com/afiqket/vmcore/defs"
	"github.com/afiqket/vmcore/fs"
	"github.com/afiqket/vmcore/mem"
	"github.com/afiqket/vmcore/pagetable"
	"github.com/afiqket/vmcore/proc"
)

// Manager tracks the system-wide mmap region cap (spec.md §3:
// "the system holds up to MAX_MMAPS_SYS (= 16) in total") across every
// process sharing this kernel instance.
type Manager struct {
	mu        sync.Mutex
	sysCount  int
	alloc     *mem.Allocator
	arena     *mem.Arena
	allocator *pagetable.AllocState
	journal   *fs.Journal
}

// New constructs a mmap manager bound to the given allocator and arena.
func New(alloc *mem.Allocator, arena *mem.Arena) *Manager {
	return &Manager{
		alloc:     alloc,
		arena:     arena,
		allocator: pagetable.NewAllocState(alloc, arena),
		journal:   fs.NewJournal(),
	}
}

// SysCount reports the system-wide count of live mmap regions, the
// spec.md §3 MAX_MMAPS_SYS budget this manager enforces. Exposed for
// metrics.Mmap.
func (m *Manager) SysCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sysCount
}

// Mmap implements spec.md §4.4's mmap operation. f must be non-nil and
// readable; offset must be page-aligned; length must be positive; flags
// must request at least one of READ/WRITE. On success it returns the
// mapped address; on any validation or resource failure it returns
// (0, err) and leaves all process and system state untouched.
func (m *Manager) Mmap(p *proc.Proc, f *fs.File, offset, length, flags int) (int, defs.Err_t) {
	if f == nil || !f.Readable() {
		return 0, defs.EFAULT
	}
	if offset%mem.PGSIZE != 0 {
		return 0, defs.EINVAL
	}
	if length <= 0 {
		return 0, defs.EINVAL
	}
	if flags&(defs.MAP_PROT_READ|defs.MAP_PROT_WRITE) == 0 {
		return 0, defs.EINVAL
	}

	m.mu.Lock()
	if m.sysCount >= defs.MaxMmapsSys {
		m.mu.Unlock()
		return 0, defs.ENFILE
	}
	m.mu.Unlock()

	p.Lock()
	defer p.Unlock()

	slot := -1
	for i := range p.Mmaps {
		if !p.Mmaps[i].Used {
			slot = i
			break
		}
	}
	if slot == -1 {
		return 0, defs.EMFILE
	}

	addr := roundDown(p.MmapSP-length, mem.PGSIZE)
	if overlapsExisting(p, addr, length) {
		return 0, defs.EINVAL
	}

	pgn := addr / mem.PGSIZE
	count := roundUp(length, mem.PGSIZE) / mem.PGSIZE
	mappedEnd := addr + count*mem.PGSIZE
	if !p.Pagetable.MapRange(m.allocator, pgn, count, mem.PTE_U|mem.PTE_W) {
		return 0, defs.ENOMEM
	}

	// Read the file's bytes into the freshly mapped pages using a
	// positional read — the Open Question resolution of spec.md §9:
	// "use positional read readi(ip, buf, offset, length) instead,
	// leaving the file's seek position untouched."
	if err := m.readInto(p, addr, length, f, offset); err != nil {
		// Roll back exactly the range just mapped — addr is near
		// KernBase, nowhere close to the heap bytes p.Sz tracks, so the
		// teardown must be expressed in terms of addr/length, not p.Sz.
		p.Pagetable.DeallocRange(m.allocator, mappedEnd, addr)
		return 0, defs.EFAULT
	}

	// Clear the writable bit on every page of the region so the first
	// write traps, per spec.md §4.4: "walks each PTE in [addr, addr+length)
	// and clears the writable bit, so the first write will trap."
	for i := 0; i < count; i++ {
		pte := p.Pagetable.Walk(pgn+i, false)
		*pte = mem.MkPTE(pte.Frame(), pte.Flags()&^mem.PTE_W)
	}
	p.Pagetable.FlushTLB(pgn, count)

	p.Mmaps[slot] = proc.MmapRegion{
		Addr:   addr,
		File:   f.Dup(),
		Offset: offset,
		Length: length,
		Flags:  flags,
		Used:   true,
		Dirty:  false,
	}
	p.MmapSP = addr

	m.mu.Lock()
	m.sysCount++
	m.mu.Unlock()

	return addr, 0
}

// readInto copies length bytes from f at off into the process's freshly
// mapped [addr, addr+length) range, page by page.
func (m *Manager) readInto(p *proc.Proc, addr, length int, f *fs.File, off int) error {
	remaining := length
	va := addr
	srcOff := off
	for remaining > 0 {
		pgn := va / mem.PGSIZE
		pte := p.Pagetable.Walk(pgn, false)
		voff := va % mem.PGSIZE
		n := mem.PGSIZE - voff
		if n > remaining {
			n = remaining
		}
		dst := m.arena.At(pte.Frame())[voff : voff+n]
		if _, err := f.ReadAt(dst, srcOff); err != nil {
			return err
		}
		remaining -= n
		va += n
		srcOff += n
	}
	return nil
}

// Munmap implements spec.md §4.4's munmap operation.
func (m *Manager) Munmap(p *proc.Proc, addr, length int) defs.Err_t {
	if addr%mem.PGSIZE != 0 || length <= 0 {
		return defs.EINVAL
	}

	p.Lock()
	defer p.Unlock()

	slot := -1
	for i := range p.Mmaps {
		r := &p.Mmaps[i]
		if r.Used && r.Addr == addr {
			if r.Length != length {
				return defs.EINVAL
			}
			slot = i
			break
		}
	}
	if slot == -1 {
		// Unknown address: a no-op returning 0, per spec.md §7's
		// documented intentional divergence from POSIX.
		return 0
	}

	region := &p.Mmaps[slot]
	f, _ := region.File.(*fs.File)

	if region.Dirty && f != nil {
		m.writeBack(p, region, f)
	}

	pgn := addr / mem.PGSIZE
	count := roundUp(length, mem.PGSIZE) / mem.PGSIZE
	base := pgn * mem.PGSIZE
	p.Pagetable.DeallocRange(m.allocator, base+count*mem.PGSIZE, base)

	region.Used = false
	region.File = nil
	if f != nil {
		f.Close()
	}

	min := proc.KernBase
	for i := range p.Mmaps {
		if p.Mmaps[i].Used && p.Mmaps[i].Addr < min {
			min = p.Mmaps[i].Addr
		}
	}
	p.MmapSP = min

	m.mu.Lock()
	m.sysCount--
	m.mu.Unlock()

	return 0
}

// writeBack writes every page of a dirty region back to its file at
// offset+stride, wrapped in a filesystem transaction, per spec.md §4.4.
func (m *Manager) writeBack(p *proc.Proc, region *proc.MmapRegion, f *fs.File) {
	txn := m.journal.BeginOp()
	defer txn.EndOp()
	for stride := 0; stride < region.Length; stride += mem.PGSIZE {
		va := region.Addr + stride
		pgn := va / mem.PGSIZE
		pte := p.Pagetable.Walk(pgn, false)
		if pte == nil || !pte.Present() {
			continue
		}
		n := mem.PGSIZE
		if stride+n > region.Length {
			n = region.Length - stride
		}
		src := m.arena.At(pte.Frame())[:n]
		f.WriteAt(src, region.Offset+stride)
	}
}

// ExitProcess munmaps every used region of p, per spec.md §3's lifecycle
// note ("Regions: created by mmap, destroyed by munmap (or by process
// exit, which must munmap each used region)."). Per spec.md §9's cyclic
// reference note, this must run before the process's page table is torn
// down and before any other file-reference cleanup, so the region's file
// dup is released here rather than lingering.
func (m *Manager) ExitProcess(p *proc.Proc) {
	for i := range p.Mmaps {
		r := p.Mmaps[i]
		if r.Used {
			m.Munmap(p, r.Addr, r.Length)
		}
	}
}

func overlapsExisting(p *proc.Proc, addr, length int) bool {
	end := addr + length
	for i := range p.Mmaps {
		r := &p.Mmaps[i]
		if !r.Used {
			continue
		}
		rend := r.Addr + r.Length
		if addr < rend && r.Addr < end {
			return true
		}
	}
	return false
}

func roundDown(v, b int) int { return v - (v % b) }
func roundUp(v, b int) int   { return roundDown(v+b-1, b) }
