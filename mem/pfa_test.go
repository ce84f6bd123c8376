package mem

import "testing"

func newBootedAllocator(n int) (*Allocator, *Arena) {
	a := NewAllocator(n)
	arena := NewArena(n)
	half := Frame(n / 2)
	a.KInit1(0, half)
	a.KInit2(half, Frame(n))
	return a, arena
}

// Property 1: rc[i] == 0 iff i is reachable from the free-list head.
func TestFreeListRefcountInvariant(t *testing.T) {
	a, arena := newBootedAllocator(8)

	f, ok := a.Alloc()
	if !ok {
		t.Fatal("alloc failed on fresh allocator")
	}
	if a.ReachableFromFreeList(f) {
		t.Fatalf("frame %d allocated but still on free list", f)
	}
	if a.Refcnt(f) != 1 {
		t.Fatalf("refcnt = %d, want 1", a.Refcnt(f))
	}

	a.Free(f, arena.Pages)
	if a.Refcnt(f) != 0 {
		t.Fatalf("refcnt after free = %d, want 0", a.Refcnt(f))
	}
	if !a.ReachableFromFreeList(f) {
		t.Fatalf("frame %d freed but not reachable from free list", f)
	}
}

// Property 3: FreesCount equals the length of the free list.
func TestFreesCountMatchesList(t *testing.T) {
	a, arena := newBootedAllocator(4)
	if a.FreesCount() != 4 {
		t.Fatalf("FreesCount = %d, want 4", a.FreesCount())
	}
	f, _ := a.Alloc()
	if a.FreesCount() != 3 {
		t.Fatalf("FreesCount after alloc = %d, want 3", a.FreesCount())
	}
	a.Free(f, arena.Pages)
	if a.FreesCount() != 4 {
		t.Fatalf("FreesCount after free = %d, want 4", a.FreesCount())
	}
}

// Property 7: free(p) called twice with no intervening alloc is a safe
// no-op the second time.
func TestDoubleFreeIsNoop(t *testing.T) {
	a, arena := newBootedAllocator(2)
	f, _ := a.Alloc()
	a.Free(f, arena.Pages)
	before := a.FreesCount()
	a.Free(f, arena.Pages) // second free: must be a no-op
	if a.FreesCount() != before {
		t.Fatalf("double free changed FreesCount: %d -> %d", before, a.FreesCount())
	}
}

// Scenario S6: exhaustion recovers after a single free.
func TestAllocExhaustionAndRecovery(t *testing.T) {
	a, arena := newBootedAllocator(2)
	var got []Frame
	for {
		f, ok := a.Alloc()
		if !ok {
			break
		}
		got = append(got, f)
	}
	if len(got) != 2 {
		t.Fatalf("allocated %d frames from a 2-frame pool", len(got))
	}
	if _, ok := a.Alloc(); ok {
		t.Fatal("alloc succeeded on exhausted allocator")
	}
	if a.FreesCount() != 0 {
		t.Fatalf("FreesCount = %d on exhausted allocator, want 0", a.FreesCount())
	}
	a.Free(got[0], arena.Pages)
	if _, ok := a.Alloc(); !ok {
		t.Fatal("alloc failed after a single free restored the list")
	}
}

func TestIncrefKeepsFrameAliveUntilLastDecref(t *testing.T) {
	a, arena := newBootedAllocator(2)
	f, _ := a.Alloc()
	a.Incref(f) // now rc == 2: simulates a second PTE sharing the frame

	a.Free(f, arena.Pages)
	if a.Refcnt(f) != 1 {
		t.Fatalf("refcnt = %d after one free of a shared frame, want 1", a.Refcnt(f))
	}
	if a.ReachableFromFreeList(f) {
		t.Fatal("shared frame returned to free list too early")
	}

	a.Free(f, arena.Pages)
	if !a.ReachableFromFreeList(f) {
		t.Fatal("frame not returned to free list on last decref")
	}
}

func TestFreePoisonsReleasedFrame(t *testing.T) {
	a, arena := newBootedAllocator(1)
	f, _ := a.Alloc()
	p := arena.At(f)
	p[0] = 0x42
	a.Free(f, arena.Pages)
	for i, b := range p {
		if b != PoisonByte {
			t.Fatalf("byte %d = %#x after free, want poison %#x", i, b, PoisonByte)
		}
	}
}
