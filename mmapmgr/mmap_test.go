package mmapmgr

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/afiqket/vmcore/defs"
	"github.com/afiqket/vmcore/fs"
	"github.com/afiqket/vmcore/mem"
	"github.com/afiqket/vmcore/proc"
)

const nframes = 64

func setup(t *testing.T) (*Manager, *proc.Proc, *mem.Allocator) {
	t.Helper()
	alloc := mem.NewAllocator(nframes)
	arena := mem.NewArena(nframes)
	alloc.KInit1(0, mem.Frame(nframes))
	return New(alloc, arena), proc.New(1, "test"), alloc
}

func writeAlice(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "alice.txt")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// S1 — mmap read-only then read.
func TestScenarioS1ReadOnlyMmap(t *testing.T) {
	m, p, _ := setup(t)
	contents := "the quick brown fox jumps over the lazy dog, seventy bytes needed here!!"
	if len(contents) < 70 {
		t.Fatal("fixture too short")
	}
	path := writeAlice(t, contents)
	f, err := fs.Open(path, true, false)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	addr, errno := m.Mmap(p, f, 0, mem.PGSIZE, defs.MAP_PROT_READ)
	if errno != 0 {
		t.Fatalf("mmap failed: %v", errno)
	}

	pgn := addr / mem.PGSIZE
	pte, _ := p.Pagetable.Lookup(pgn)
	got := string(m.arena.At(pte.Frame())[:70])
	if got != contents[:70] {
		t.Fatalf("mapped bytes = %q, want %q", got, contents[:70])
	}

	if errno := m.Munmap(p, addr, mem.PGSIZE); errno != 0 {
		t.Fatalf("munmap = %v, want 0", errno)
	}
}

// S2 — mmap writable, first-write fault (simulated directly, since the
// fault resolver lives in package fault and is exercised end to end
// there), write-back on munmap.
func TestScenarioS2WritableMmapWriteBack(t *testing.T) {
	m, p, _ := setup(t)
	path := writeAlice(t, "xxxxxxxxxx")
	f, err := fs.Open(path, true, true)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	addr, errno := m.Mmap(p, f, 0, mem.PGSIZE, defs.MAP_PROT_WRITE)
	if errno != 0 {
		t.Fatalf("mmap failed: %v", errno)
	}

	pgn := addr / mem.PGSIZE
	pte, _ := p.Pagetable.Lookup(pgn)
	if pte.Writable() {
		t.Fatal("writable region mapped writable before first fault")
	}

	// Simulate the resolver's write-fault fixup: flip W, mark dirty.
	frame := m.arena.At(pte.Frame())
	copy(frame[:5], []byte("Bobby"))
	*p.Pagetable.Walk(pgn, false) = mem.MkPTE(pte.Frame(), pte.Flags()|mem.PTE_W)
	p.Mmaps[0].Dirty = true

	if errno := m.Munmap(p, addr, mem.PGSIZE); errno != 0 {
		t.Fatalf("munmap = %v, want 0", errno)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got[:5]) != "Bobby" {
		t.Fatalf("file contents = %q, want prefix %q", got, "Bobby")
	}
}

// S3 — munmap length mismatch.
func TestScenarioS3LengthMismatch(t *testing.T) {
	m, p, _ := setup(t)
	path := writeAlice(t, "0123456789")
	f, _ := fs.Open(path, true, false)
	defer f.Close()

	addr, errno := m.Mmap(p, f, 0, mem.PGSIZE, defs.MAP_PROT_READ)
	if errno != 0 {
		t.Fatalf("mmap failed: %v", errno)
	}

	if errno := m.Munmap(p, addr, 2*mem.PGSIZE); errno != defs.EINVAL {
		t.Fatalf("munmap length mismatch = %v, want EINVAL", errno)
	}

	// Region must still be intact.
	pgn := addr / mem.PGSIZE
	if _, ok := p.Pagetable.Lookup(pgn); !ok {
		t.Fatal("region torn down despite length-mismatch munmap")
	}
}

// S4 — munmap of an unknown address is a no-op returning 0.
func TestScenarioS4UnknownAddress(t *testing.T) {
	m, p, _ := setup(t)
	if errno := m.Munmap(p, 0xdead000, mem.PGSIZE); errno != 0 {
		t.Fatalf("munmap unknown addr = %v, want 0", errno)
	}
}

// Invariant 6 — round trip: write, munmap, re-mmap at the same offset
// yields the written bytes back.
func TestRoundTripWriteRemap(t *testing.T) {
	m, p, _ := setup(t)
	path := writeAlice(t, "0123456789")
	f, err := fs.Open(path, true, true)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	addr, errno := m.Mmap(p, f, 0, mem.PGSIZE, defs.MAP_PROT_WRITE)
	if errno != 0 {
		t.Fatalf("mmap failed: %v", errno)
	}
	pgn := addr / mem.PGSIZE
	pte, _ := p.Pagetable.Lookup(pgn)
	copy(m.arena.At(pte.Frame())[:4], []byte("ABCD"))
	*p.Pagetable.Walk(pgn, false) = mem.MkPTE(pte.Frame(), pte.Flags()|mem.PTE_W)
	p.Mmaps[0].Dirty = true

	if errno := m.Munmap(p, addr, mem.PGSIZE); errno != 0 {
		t.Fatalf("munmap failed: %v", errno)
	}

	f2, err := fs.Open(path, true, true)
	if err != nil {
		t.Fatal(err)
	}
	defer f2.Close()
	addr2, errno := m.Mmap(p, f2, 0, mem.PGSIZE, defs.MAP_PROT_WRITE)
	if errno != 0 {
		t.Fatalf("remap failed: %v", errno)
	}
	pgn2 := addr2 / mem.PGSIZE
	pte2, _ := p.Pagetable.Lookup(pgn2)
	got := string(m.arena.At(pte2.Frame())[:4])
	if got != "ABCD" {
		t.Fatalf("remapped bytes = %q, want %q", got, "ABCD")
	}
}

// Invariant 4 — region bookkeeping: aligned addr, positive length,
// disjoint from other regions of the same process.
func TestRegionsStayDisjointAfterRearrangement(t *testing.T) {
	m, p, _ := setup(t)
	path := writeAlice(t, "0123456789abcdef")
	f1, _ := fs.Open(path, true, false)
	defer f1.Close()
	f2, _ := fs.Open(path, true, false)
	defer f2.Close()
	f3, _ := fs.Open(path, true, false)
	defer f3.Close()

	a1, errno := m.Mmap(p, f1, 0, mem.PGSIZE, defs.MAP_PROT_READ)
	if errno != 0 {
		t.Fatal(errno)
	}
	a2, errno := m.Mmap(p, f2, 0, mem.PGSIZE, defs.MAP_PROT_READ)
	if errno != 0 {
		t.Fatal(errno)
	}
	if errno := m.Munmap(p, a1, mem.PGSIZE); errno != 0 {
		t.Fatal(errno)
	}
	a3, errno := m.Mmap(p, f3, 0, mem.PGSIZE, defs.MAP_PROT_READ)
	if errno != 0 {
		t.Fatal(errno)
	}
	if a3%mem.PGSIZE != 0 {
		t.Fatalf("addr %d not page aligned", a3)
	}
	if a3 == a2 {
		t.Fatalf("new region %d overlaps surviving region %d", a3, a2)
	}
}

func TestMmapRejectsBadArguments(t *testing.T) {
	m, p, _ := setup(t)
	path := writeAlice(t, "data")
	f, _ := fs.Open(path, true, false)
	defer f.Close()

	cases := []struct {
		name   string
		offset int
		length int
		flags  int
	}{
		{"unaligned offset", 1, mem.PGSIZE, defs.MAP_PROT_READ},
		{"zero length", 0, 0, defs.MAP_PROT_READ},
		{"no prot flags", 0, mem.PGSIZE, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, errno := m.Mmap(p, f, c.offset, c.length, c.flags); errno != defs.EINVAL {
				t.Fatalf("errno = %v, want EINVAL", errno)
			}
		})
	}
}

func TestMmapSystemWideCap(t *testing.T) {
	alloc := mem.NewAllocator(4096)
	arena := mem.NewArena(4096)
	alloc.KInit1(0, 4096)
	m := New(alloc, arena)
	path := writeAlice(t, "data")

	procs := make([]*proc.Proc, 0, defs.MaxMmapsSys+1)
	for i := 0; i < defs.MaxMmapsSys+1; i++ {
		pr := proc.New(i, "p")
		procs = append(procs, pr)
	}
	for i := 0; i < defs.MaxMmapsSys; i++ {
		f, _ := fs.Open(path, true, false)
		defer f.Close()
		if _, errno := m.Mmap(procs[i], f, 0, mem.PGSIZE, defs.MAP_PROT_READ); errno != 0 {
			t.Fatalf("mmap %d failed: %v", i, errno)
		}
	}
	f, _ := fs.Open(path, true, false)
	defer f.Close()
	if _, errno := m.Mmap(procs[defs.MaxMmapsSys], f, 0, mem.PGSIZE, defs.MAP_PROT_READ); errno != defs.ENFILE {
		t.Fatalf("errno at system cap = %v, want ENFILE", errno)
	}
}
