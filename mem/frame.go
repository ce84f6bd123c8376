// Package mem owns the page-frame allocator and its reference-count
// ledger: the one piece of shared, reference-counted state that the
// copy-on-write resolver and the mmap manager both depend on.
package mem

import "github.com/afiqket/vmcore/defs"

// PGSHIFT is the base-2 exponent of the page size.
const PGSHIFT uint = 12

// PGSIZE is the size of a single page frame in bytes.
const PGSIZE = 1 << PGSHIFT

// Frame identifies a physical page frame by index, not by pointer — the
// memory-safe adaptation spec.md §9 asks for ("keep the free list as
// indices into a frame-table array rather than raw pointers into the
// frames themselves").
type Frame uint32

// InvalidFrame is returned by allocation paths that fail to reserve a
// frame.
const InvalidFrame = Frame(^uint32(0))

// Valid reports whether f names a real frame.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Page is the fixed-size byte contents of one physical page frame.
type Page [PGSIZE]byte

// PoisonByte fills a freed frame so that dangling reads are easy to spot,
// per spec.md §4.1 ("poison the frame's bytes with a fixed non-zero
// pattern").
const PoisonByte = 0xdb

// PTE is a simulated page-table entry: a frame number plus permission
// bits. The low bits carry flags; the remaining bits carry the frame
// number, mirroring the teacher's Pa_t / PTE_ADDR split without needing
// real physical addresses.
type PTE uint64

// PTE flag bits. The low pteFlagBits (8) bits are reserved for flags,
// which is ample room since Frame is only 32 bits wide here.
const (
	PTE_P   PTE = 1 << 0 /// present
	PTE_W   PTE = 1 << 1 /// writable
	PTE_U   PTE = 1 << 2 /// user-accessible
	PTE_COW PTE = 1 << 3 /// software copy-on-write bit
)

const pteFlagBits = 8
const pteFlagMask PTE = (1 << pteFlagBits) - 1

// MkPTE builds a PTE from a frame number and flags.
func MkPTE(f Frame, flags PTE) PTE {
	return PTE(uint64(f)<<pteFlagBits) | (flags & pteFlagMask)
}

// Frame extracts the frame number encoded in the PTE.
func (p PTE) Frame() Frame {
	return Frame(uint64(p) >> pteFlagBits)
}

// Flags extracts the permission/state bits of the PTE.
func (p PTE) Flags() PTE {
	return p & pteFlagMask
}

// Present reports whether the PTE's P bit is set.
func (p PTE) Present() bool { return p&PTE_P != 0 }

// Writable reports whether the PTE's W bit is set.
func (p PTE) Writable() bool { return p&PTE_W != 0 }

// CoW reports whether the PTE's software CoW bit is set.
func (p PTE) CoW() bool { return p&PTE_COW != 0 }

// errInvalid is a package-local alias for defs.EINVAL; no function in
// this package currently returns it.
const errInvalid = defs.EINVAL
